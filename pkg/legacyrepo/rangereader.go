package legacyrepo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/galaxydl/galaxydl/pkg/errkind"
	"github.com/galaxydl/galaxydl/pkg/transport"
)

// rangeReaderAt implements io.ReaderAt over an HTTP resource by issuing
// one ranged GET per ReadAt call, compensating every offset by base so
// the caller can address the embedded zip as if it started at 0 — this
// is what lets archive/zip.NewReader iterate a central directory that
// in the real file sits after a shell-script prelude, without ever
// downloading that prelude or the archive payload (§4.5 steps 1-4).
type rangeReaderAt struct {
	ctx  context.Context
	http *transport.Client
	url  string
	base int64 // zip_start_offset within the remote file
}

func (r *rangeReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	start := r.base + off
	end := start + int64(len(p)) - 1
	var buf bytes.Buffer
	opts := transport.DefaultOptions()
	n, err := r.http.DownloadRange(r.ctx, r.url, &buf, fmt.Sprintf("bytes=%d-%d", start, end), opts)
	if err != nil {
		return int(n), err
	}
	copy(p, buf.Bytes())
	if int(n) < len(p) {
		return int(n), io.ErrUnexpectedEOF
	}
	return int(n), nil
}

// remoteSize issues a 1-byte ranged GET and reads the Content-Range
// response header to learn the resource's total size without
// downloading it whole.
func remoteSize(ctx context.Context, c *transport.Client, url string) (int64, error) {
	opts := transport.DefaultOptions()
	opts.Range = "bytes=0-0"
	resp, err := c.Get(ctx, url, opts)
	if err != nil {
		return 0, fmt.Errorf("probing size of %s: %w", url, err)
	}
	defer resp.Body.Close()

	cr := resp.Header.Get("Content-Range")
	idx := strings.LastIndex(cr, "/")
	if idx < 0 || idx == len(cr)-1 {
		return 0, errkind.ParseError.New("probing size of %s: missing Content-Range total (got %q)", url, cr)
	}
	total, err := strconv.ParseInt(cr[idx+1:], 10, 64)
	if err != nil {
		return 0, errkind.ParseError.Wrap(fmt.Errorf("parsing Content-Range total %q: %w", cr, err))
	}
	return total, nil
}
