package progress

import (
	"time"

	"github.com/galaxydl/galaxydl/pkg/engine"
	"github.com/galaxydl/galaxydl/pkg/model"
)

const (
	defaultWindow       = 10 * time.Second
	defaultMaxSamples   = 100
	defaultBarMinLength = 10
)

// WorkerLine is one worker's rendered telemetry line (§4.8: "#i
// filename" / "p% [bar] done/total @ rate ETA: hh:mm:ss").
type WorkerLine struct {
	Index    int
	Filename string
	Fraction float64
	Rate     float64 // bytes/sec
	Done     int64
	Total    int64
	ETA      time.Duration
	State    model.WorkState
}

// Summary is the trailing aggregate line (§4.8: "Total: R/s | Remaining:
// N (S size) ETA: T").
type Summary struct {
	TotalRate      float64
	RemainingUnits int
	RemainingBytes int64
	ETA            time.Duration
}

// Aggregator maintains a rolling window per worker slot and derives
// fraction/rate/ETA on each Tick.
type Aggregator struct {
	windows []*rollingWindow
}

func New(workers int) *Aggregator {
	a := &Aggregator{windows: make([]*rollingWindow, workers)}
	for i := range a.windows {
		a.windows[i] = newRollingWindow(defaultWindow, defaultMaxSamples)
	}
	return a
}

// Tick folds one round of per-worker snapshots (as reported by
// engine.Engine.Progress) into the rolling windows and returns the
// current aggregate view. remainingUnits/remainingBytes come from the
// caller's queue/engine state, not from the worker snapshots.
func (a *Aggregator) Tick(now time.Time, snapshots []engine.WorkerProgress, remainingUnits int, remainingBytes int64) ([]WorkerLine, Summary) {
	lines := make([]WorkerLine, len(snapshots))
	var totalRate float64

	for i, s := range snapshots {
		if i >= len(a.windows) {
			break
		}
		if s.State.Terminal() {
			a.windows[i].Reset()
		} else {
			a.windows[i].Add(now, s.BytesDone)
		}
		rate := a.windows[i].Rate()
		totalRate += rate

		var fraction float64
		if s.BytesTotal > 0 {
			fraction = float64(s.BytesDone) / float64(s.BytesTotal)
			if fraction > 1 {
				fraction = 1
			}
		}

		lines[i] = WorkerLine{
			Index:    i,
			Filename: s.Filename,
			Fraction: fraction,
			Rate:     rate,
			Done:     s.BytesDone,
			Total:    s.BytesTotal,
			ETA:      eta(rate, s.BytesTotal-s.BytesDone),
			State:    s.State,
		}
	}

	summary := Summary{
		TotalRate:      totalRate,
		RemainingUnits: remainingUnits,
		RemainingBytes: remainingBytes,
		ETA:            eta(totalRate, remainingBytes),
	}
	return lines, summary
}

func eta(rate float64, remaining int64) time.Duration {
	if rate <= 0 || remaining <= 0 {
		return 0
	}
	return time.Duration(float64(remaining)/rate) * time.Second
}
