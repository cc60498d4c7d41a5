package progress

import (
	"fmt"
	"strings"
	"time"

	"github.com/pterm/pterm"
)

// BarMinLength is the minimum rendered bar width below which §4.8 says
// the bar is suppressed entirely (narrow terminals just show the
// percentage and numbers).
const BarMinLength = defaultBarMinLength

// Bar renders a fraction∈[0,1] as a `[#####.....]`-style string sized
// to width columns, or "" if width is below BarMinLength — the
// aggregator only ever hands the renderer a fraction, per §4.8's
// "bar-length/fraction-only" split.
func Bar(fraction float64, width int) string {
	if width < BarMinLength {
		return ""
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(fraction * float64(width))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

// WorkerLines renders each WorkerLine as the two-line block §4.8
// describes, colored via pterm's terminal-aware palette so a worker
// that failed renders visibly differently from one still running.
func WorkerLines(lines []WorkerLine, barWidth int) []string {
	out := make([]string, 0, len(lines)*2)
	for _, l := range lines {
		header := fmt.Sprintf("#%d  %s", l.Index, l.Filename)
		if l.State.Terminal() {
			header = pterm.FgGreen.Sprint(header)
		}
		bar := Bar(l.Fraction, barWidth)
		detail := fmt.Sprintf("%3.0f%%  %s  %s/%s @ %s  ETA: %s",
			l.Fraction*100, bar, humanBytes(l.Done), humanBytes(l.Total), humanRate(l.Rate), humanDuration(l.ETA))
		out = append(out, header, detail)
	}
	return out
}

// SummaryLine renders the trailing aggregate line.
func SummaryLine(s Summary) string {
	return fmt.Sprintf("Total: %s | Remaining: %d (%s) ETA: %s",
		humanRate(s.TotalRate), s.RemainingUnits, humanBytes(s.RemainingBytes), humanDuration(s.ETA))
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func humanRate(bytesPerSec float64) string {
	return humanBytes(int64(bytesPerSec)) + "/s"
}

func humanDuration(d time.Duration) string {
	if d <= 0 {
		return "--:--:--"
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
