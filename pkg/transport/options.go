package transport

import (
	"net/http"
	"time"
)

// Options configures a single request (§4.2). A zero Options is valid
// and uses Client-level defaults.
type Options struct {
	Timeout        time.Duration
	ConnectTimeout time.Duration

	// LowSpeedThreshold/LowSpeedWindow implement the "low-speed-abort":
	// a transfer held below LowSpeedThreshold bytes/sec for longer than
	// LowSpeedWindow is aborted with a retryable error.
	LowSpeedThreshold int64
	LowSpeedWindow    time.Duration

	// MaxDownloadRate, when non-zero, caps the response body read rate
	// in bytes/sec via a golang.org/x/time/rate limiter.
	MaxDownloadRate int64

	AcceptEncoding string
	Range          string // "bytes=N-" or "bytes=N-M"
	BearerToken    string
	UserAgent      string

	Header http.Header
}

// DefaultOptions mirrors the CurlConfig defaults in original_source's
// config.h: a generous connect timeout and a low-speed-abort window so
// a stalled transfer is noticed instead of hanging forever.
func DefaultOptions() Options {
	return Options{
		Timeout:           0, // no overall deadline by default; low-speed-abort covers stalls
		ConnectTimeout:    30 * time.Second,
		LowSpeedThreshold: 200,
		LowSpeedWindow:    30 * time.Second,
		UserAgent:         "galaxydl/1.0",
	}
}
