// Package progress implements ProgressAggregator (§4.8): it turns raw
// per-worker transfer telemetry into the aggregate rate/ETA/bar-fraction
// figures the terminal sink renders.
package progress

import "time"

type sample struct {
	t     time.Time
	bytes int64
}

// rollingWindow is a per-worker deque of (t, bytes) samples bounded to
// both a time window and a sample-count cap (§4.8: "deque of (t, bytes)
// pairs, max 100" over a 10-second window).
type rollingWindow struct {
	window  time.Duration
	maxLen  int
	samples []sample
}

func newRollingWindow(window time.Duration, maxLen int) *rollingWindow {
	return &rollingWindow{window: window, maxLen: maxLen}
}

// Add appends a new (t, bytesDone) observation, evicting samples older
// than the window or beyond the length cap.
func (w *rollingWindow) Add(t time.Time, bytesDone int64) {
	w.samples = append(w.samples, sample{t: t, bytes: bytesDone})

	cutoff := t.Add(-w.window)
	i := 0
	for i < len(w.samples) && w.samples[i].t.Before(cutoff) {
		i++
	}
	w.samples = w.samples[i:]

	if len(w.samples) > w.maxLen {
		w.samples = w.samples[len(w.samples)-w.maxLen:]
	}
}

// Rate returns the rolling-average bytes/sec computed from the first
// and last sample currently retained, or 0 with fewer than two samples.
func (w *rollingWindow) Rate() float64 {
	if len(w.samples) < 2 {
		return 0
	}
	first, last := w.samples[0], w.samples[len(w.samples)-1]
	elapsed := last.t.Sub(first.t).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(last.bytes-first.bytes) / elapsed
}

func (w *rollingWindow) Reset() {
	w.samples = w.samples[:0]
}
