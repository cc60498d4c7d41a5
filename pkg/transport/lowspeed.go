package transport

import (
	"context"
	"crypto/tls"
	"io"
	"sync/atomic"
	"time"

	"github.com/galaxydl/galaxydl/pkg/errkind"
)

func insecureTLSConfig() *tls.Config {
	return &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via CurlConfig.bVerifyPeer=false
}

// lowSpeedGuard wraps r so that if fewer than opts.LowSpeedThreshold
// bytes/sec are read for longer than opts.LowSpeedWindow, the returned
// reader starts returning a TransportRetryable error (§4.2, §5: "a
// transfer held below rate_floor for longer than time_window is aborted
// by the transport with a retryable error").
func lowSpeedGuard(ctx context.Context, r io.Reader, opts Options) io.Reader {
	if opts.LowSpeedThreshold <= 0 || opts.LowSpeedWindow <= 0 {
		return r
	}
	g := &guardedReader{
		r:         r,
		threshold: opts.LowSpeedThreshold,
		window:    opts.LowSpeedWindow,
		start:     time.Now(),
	}
	return g
}

type guardedReader struct {
	r         io.Reader
	threshold int64
	window    time.Duration
	start     time.Time
	total     atomic.Int64
}

func (g *guardedReader) Read(p []byte) (int, error) {
	n, err := g.r.Read(p)
	if n > 0 {
		g.total.Add(int64(n))
	}
	elapsed := time.Since(g.start)
	if elapsed > g.window {
		avgRate := float64(g.total.Load()) / elapsed.Seconds()
		if avgRate < float64(g.threshold) {
			return n, errkind.TransportRetryable.New("transfer rate %.1f B/s below floor %d B/s for %s", avgRate, g.threshold, elapsed)
		}
		g.start = time.Now()
		g.total.Store(0)
	}
	return n, err
}
