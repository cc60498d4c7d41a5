// Package transport implements HttpClient (§4.2): pooled HTTP execution
// with bounded retry, range requests, streaming writes to disk, and
// tolerant gzip/deflate JSON decoding.
package transport

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/klauspost/compress/flate"
	"golang.org/x/time/rate"

	"github.com/galaxydl/galaxydl/pkg/errkind"
)

// Config is the client-wide configuration (CurlConfig in the original).
// One Config is shared by many independently-owned Client values — no
// global mutable handle (§9 redesign note).
type Config struct {
	MaxRetries int
	RetryWait  time.Duration // fixed inter-request wait on 429/5xx, not exponential (§4.2)

	VerifyPeer bool
	CACertPath string
	UserAgent  string

	Jar CookieJar
}

// DefaultConfig returns sane defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		RetryWait:  2 * time.Second,
		VerifyPeer: true,
		UserAgent:  "galaxydl/1.0",
	}
}

// Client is an owned HTTP handle: an *http.Client with its own
// connection pool. It is not a package global; callers construct it and
// pass it in, and one Client may be shared by many goroutines (the
// engine's workers all use the Client in engine.Deps).
type Client struct {
	cfg  Config
	http *http.Client
}

// New builds a Client from cfg. The underlying *http.Transport is tuned
// for many short-lived range requests against a CDN.
func New(cfg Config) *Client {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.effectiveConnectTimeout(),
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if !cfg.VerifyPeer {
		tr.TLSClientConfig = insecureTLSConfig()
	}

	hc := &http.Client{Transport: tr}
	if cfg.Jar != nil {
		hc.Jar = cfg.Jar
	}

	return &Client{cfg: cfg, http: hc}
}

func (c Config) effectiveConnectTimeout() time.Duration {
	return 30 * time.Second
}

// CompletionStatus describes the outcome of download_to_file.
type CompletionStatus struct {
	BytesWritten int64
	StatusCode   int
	// Filetime is the server's Last-Modified time, or zero if absent.
	Filetime time.Time
	// Complete is true when the server returned 200/206 and the body was
	// fully read.
	Complete bool
}

func (c *Client) newRequest(ctx context.Context, method, url string, opts Options) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = c.cfg.UserAgent
	}
	if ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	if opts.AcceptEncoding != "" {
		req.Header.Set("Accept-Encoding", opts.AcceptEncoding)
	}
	if opts.Range != "" {
		req.Header.Set("Range", opts.Range)
	}
	if opts.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+opts.BearerToken)
	}
	for k, vs := range opts.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

// classify maps a transport-level error or HTTP status into an errkind
// class, matching §7's error-kind table: timeouts, partial bodies,
// connection resets, and TLS connect failures are all retryable at this
// layer, same as 5xx and 429; everything else 4xx is fatal.
func classify(err error, statusCode int) error {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return errkind.UserAborted.Wrap(err)
		}
		return errkind.TransportRetryable.Wrap(err)
	}
	switch {
	case statusCode == http.StatusRequestedRangeNotSatisfiable:
		return errkind.TransportFatal.New("http %d: range not satisfiable", statusCode)
	case statusCode == http.StatusTooManyRequests:
		return errkind.TransportRetryable.New("http %d", statusCode)
	case statusCode >= 500:
		return errkind.TransportRetryable.New("http %d", statusCode)
	case statusCode >= 400:
		return errkind.TransportFatal.New("http %d", statusCode)
	default:
		return nil
	}
}

// withRetry runs fn up to cfg.MaxRetries+1 times, waiting cfg.RetryWait
// between attempts, stopping immediately on a non-retryable error (§4.2:
// "Do not retry on 416 ... or 4xx other than 429").
func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !errkind.Retryable(lastErr) {
			return lastErr
		}
		if attempt == c.cfg.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.RetryWait):
		}
	}
	return lastErr
}

// Get performs a GET and returns the raw response body. The caller must
// close Body when non-nil.
func (c *Client) Get(ctx context.Context, url string, opts Options) (*http.Response, error) {
	var resp *http.Response
	err := c.withRetry(ctx, func() error {
		req, err := c.newRequest(ctx, http.MethodGet, url, opts)
		if err != nil {
			return err
		}
		r, err := c.http.Do(req)
		if err != nil {
			return classify(err, 0)
		}
		if cerr := classify(nil, r.StatusCode); cerr != nil {
			r.Body.Close()
			return cerr
		}
		resp = r
		return nil
	})
	return resp, err
}

// GetJSON fetches url and decodes the body as JSON, tolerating a body
// that is gzip/zlib-framed even when Content-Encoding is missing: it
// sniffs the first two bytes for a zlib header (0x78) or gzip magic
// (0x1f 0x8b) and transparently decompresses before parsing (§4.2, §7
// ParseError handling).
func (c *Client) GetJSON(ctx context.Context, url string, opts Options, out any) error {
	resp, err := c.Get(ctx, url, opts)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errkind.TransportRetryable.Wrap(err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		decoded, derr := tolerantDecompress(body)
		if derr != nil {
			return errkind.ParseError.Wrap(fmt.Errorf("decoding json from %s: %w", url, err))
		}
		if err2 := json.Unmarshal(decoded, out); err2 != nil {
			return errkind.ParseError.Wrap(fmt.Errorf("decoding json from %s after decompression: %w", url, err2))
		}
	}
	return nil
}

func tolerantDecompress(body []byte) ([]byte, error) {
	if len(body) >= 2 && body[0] == 0x1f && body[1] == 0x8b {
		gr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer gr.Close()
		return io.ReadAll(gr)
	}
	if len(body) >= 2 && body[0] == 0x78 {
		zr, err := zlib.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	}
	fr := flate.NewReader(bytes.NewReader(body))
	defer fr.Close()
	return io.ReadAll(fr)
}

// DownloadRange issues a ranged GET and copies the body into dest,
// returning the number of bytes written.
func (c *Client) DownloadRange(ctx context.Context, url string, dest io.Writer, rangeHeader string, opts Options) (int64, error) {
	opts.Range = rangeHeader
	var n int64
	err := c.withRetry(ctx, func() error {
		resp, err := c.doOnce(ctx, url, opts)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		reader := c.rateLimited(ctx, resp.Body, opts)
		written, cerr := io.Copy(dest, reader)
		n += written
		if cerr != nil {
			return errkind.TransportRetryable.Wrap(cerr)
		}
		return nil
	})
	return n, err
}

func (c *Client) doOnce(ctx context.Context, url string, opts Options) (*http.Response, error) {
	req, err := c.newRequest(ctx, http.MethodGet, url, opts)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(err, 0)
	}
	if cerr := classify(nil, resp.StatusCode); cerr != nil {
		resp.Body.Close()
		return nil, cerr
	}
	return resp, nil
}

// rateLimited wraps r with a rate.Limiter-backed reader when
// opts.MaxDownloadRate is set, realizing CurlConfig.iDownloadRate (§4.2).
func (c *Client) rateLimited(ctx context.Context, r io.Reader, opts Options) io.Reader {
	if opts.MaxDownloadRate <= 0 {
		return lowSpeedGuard(ctx, r, opts)
	}
	lim := rate.NewLimiter(rate.Limit(opts.MaxDownloadRate), int(opts.MaxDownloadRate))
	return &limitedReader{ctx: ctx, r: lowSpeedGuard(ctx, r, opts), lim: lim}
}

type limitedReader struct {
	ctx context.Context
	r   io.Reader
	lim *rate.Limiter
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if len(p) > l.lim.Burst() {
		p = p[:l.lim.Burst()]
	}
	n, err := l.r.Read(p)
	if n > 0 {
		if werr := l.lim.WaitN(l.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

// DownloadToFile writes directly into path, seeking to resumeFrom when
// >0 and issuing a matching Range request (§4.2).
func (c *Client) DownloadToFile(ctx context.Context, url, path string, resumeFrom int64, opts Options) (CompletionStatus, error) {
	flags := os.O_CREATE | os.O_WRONLY
	if resumeFrom > 0 {
		flags |= os.O_APPEND
		opts.Range = "bytes=" + strconv.FormatInt(resumeFrom, 10) + "-"
	} else {
		flags |= os.O_TRUNC
	}

	var status CompletionStatus
	err := c.withRetry(ctx, func() error {
		f, ferr := os.OpenFile(path, flags, 0o644)
		if ferr != nil {
			return errkind.DiskFull.Wrap(ferr)
		}
		defer f.Close()

		resp, derr := c.doOnce(ctx, url, opts)
		if derr != nil {
			if errkind.TransportFatal.Has(derr) {
				return derr
			}
			return derr
		}
		defer resp.Body.Close()

		status.StatusCode = resp.StatusCode
		if lm := resp.Header.Get("Last-Modified"); lm != "" {
			if t, perr := http.ParseTime(lm); perr == nil {
				status.Filetime = t
			}
		}

		reader := c.rateLimited(ctx, resp.Body, opts)
		n, cerr := io.Copy(f, reader)
		status.BytesWritten += n
		if cerr != nil {
			return errkind.TransportRetryable.Wrap(cerr)
		}
		status.Complete = true
		return nil
	})
	return status, err
}
