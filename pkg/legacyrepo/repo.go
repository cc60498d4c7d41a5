// Package legacyrepo implements LegacyInstallerRepo (§4.5): when the
// service has no build manifest for a platform, a single monolithic
// installer (a shell script prepended to a zip archive) is treated as a
// synthetic repository. Rather than replicating the original's
// hand-rolled EOCD/Zip64 binary parser, this package locates the
// embedded zip's start offset from the script prelude and hands a
// range-fetching io.ReaderAt to the standard library's archive/zip,
// which already implements EOCD, Zip64, and extra-field parsing
// correctly — see DESIGN.md for why this is a deliberate stdlib choice
// rather than a dropped dependency.
package legacyrepo

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/galaxydl/galaxydl/pkg/errkind"
	"github.com/galaxydl/galaxydl/pkg/transport"
)

const headFetchSize = 100 * 1024 // 100 KiB, per §4.5 step 1

// inMemoryThreshold is the compressed-size cutoff below which a member
// is extracted fully in memory rather than streamed through a temp
// file (§4.5: "Small members (< 5 MiB compressed)...").
const inMemoryThreshold = 5 * 1024 * 1024

// Member describes one entry of the synthetic repository, carrying
// enough of the zip.File metadata for callers that want it (progress
// telemetry, symlink detection) without re-parsing the central
// directory themselves.
type Member struct {
	Path             string
	CompressedSize   int64
	UncompressedSize int64
	CRC32            uint32
	IsSymlink        bool
	ModTime          int64 // unix seconds, 0 if unknown/invalid

	zf *zip.File
}

// Repo is an opened legacy installer: an io.ReaderAt-backed zip.Reader
// addressed through rangeReaderAt, plus the offset compensation needed
// to report absolute positions within the original file.
type Repo struct {
	ctx       context.Context
	http      *transport.Client
	url       string
	zipStart  int64
	totalSize int64
	zr        *zip.Reader
}

// Open performs the head/tail discovery described in §4.5 steps 1-4 and
// returns a Repo ready to enumerate Members.
func Open(ctx context.Context, http *transport.Client, url string) (*Repo, error) {
	total, err := remoteSize(ctx, http, url)
	if err != nil {
		return nil, err
	}

	opts := transport.DefaultOptions()
	headBuf := &byteCollector{}
	end := headFetchSize - 1
	if int64(end) > total-1 {
		end = int(total - 1)
	}
	if _, err := http.DownloadRange(ctx, url, headBuf, fmt.Sprintf("bytes=0-%d", end), opts); err != nil {
		return nil, fmt.Errorf("head-fetching installer: %w", err)
	}

	prelude, err := parseScriptPrelude(headBuf.buf)
	if err != nil {
		return nil, err
	}
	zipStart := prelude.ScriptBytes + prelude.ArchivePayloadBytes

	rr := &rangeReaderAt{ctx: ctx, http: http, url: url, base: zipStart}
	zr, err := zip.NewReader(rr, total-zipStart)
	if err != nil {
		return nil, errkind.ParseError.Wrap(fmt.Errorf("parsing embedded zip at offset %d: %w", zipStart, err))
	}

	return &Repo{ctx: ctx, http: http, url: url, zipStart: zipStart, totalSize: total, zr: zr}, nil
}

// byteCollector is an io.Writer that buffers written bytes, used for
// the small, bounded head fetch.
type byteCollector struct{ buf []byte }

func (b *byteCollector) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// Members returns every entry of the installer's central directory, in
// the order archive/zip parsed them (§4.5 step 5: symlinks are
// distinguished by Unix mode bits carried in zip.File's external
// attributes, which zip.FileHeader.Mode() already decodes for us).
func (r *Repo) Members() []Member {
	out := make([]Member, 0, len(r.zr.File))
	for _, zf := range r.zr.File {
		m := Member{
			Path:             zf.Name,
			CompressedSize:   int64(zf.CompressedSize64),
			UncompressedSize: int64(zf.UncompressedSize64),
			CRC32:            zf.CRC32,
			IsSymlink:        zf.Mode()&os.ModeSymlink != 0,
			zf:               zf,
		}
		if !zf.Modified.IsZero() {
			m.ModTime = zf.Modified.Unix()
		}
		out = append(out, m)
	}
	return out
}

// Extract writes m's decompressed content to destPath. Members at or
// above inMemoryThreshold stream through a ".~incomplete" temp file
// first and are renamed into place atomically; smaller members are
// buffered in memory (§4.5).
func (r *Repo) Extract(m Member, destPath string) error {
	rc, err := m.zf.Open()
	if err != nil {
		return errkind.ParseError.Wrap(fmt.Errorf("opening zip member %s: %w", m.Path, err))
	}
	defer rc.Close()

	if err := os.MkdirAll(path.Dir(destPath), 0o755); err != nil {
		return errkind.DiskFull.Wrap(err)
	}

	if m.CompressedSize < inMemoryThreshold {
		return extractInMemory(rc, destPath)
	}
	return extractStreaming(rc, destPath)
}

func extractInMemory(rc io.ReadCloser, destPath string) error {
	data, err := io.ReadAll(rc)
	if err != nil {
		return errkind.TransportRetryable.Wrap(err)
	}
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return errkind.DiskFull.Wrap(err)
	}
	return nil
}

func extractStreaming(rc io.ReadCloser, destPath string) error {
	tmp := destPath + ".~incomplete"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return errkind.DiskFull.Wrap(err)
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		os.Remove(tmp)
		return errkind.TransportRetryable.Wrap(err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errkind.DiskFull.Wrap(err)
	}
	if err := os.Rename(tmp, destPath); err != nil {
		return errkind.DiskFull.Wrap(err)
	}
	return nil
}

// ExtractSymlink reads m's short link-target payload and creates destPath
// as a symlink to it, rather than writing file data (§4.5 last paragraph).
func (r *Repo) ExtractSymlink(m Member, destPath string) error {
	rc, err := m.zf.Open()
	if err != nil {
		return errkind.ParseError.Wrap(fmt.Errorf("opening symlink member %s: %w", m.Path, err))
	}
	defer rc.Close()

	target, err := io.ReadAll(rc)
	if err != nil {
		return errkind.TransportRetryable.Wrap(err)
	}
	if err := os.MkdirAll(path.Dir(destPath), 0o755); err != nil {
		return errkind.DiskFull.Wrap(err)
	}
	os.Remove(destPath)
	if err := os.Symlink(string(target), destPath); err != nil {
		return errkind.DiskFull.Wrap(err)
	}
	return nil
}
