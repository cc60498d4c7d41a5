package progress

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/galaxydl/galaxydl/pkg/model"
)

func TestBar_SuppressedBelowMinLength(t *testing.T) {
	assert.Empty(t, Bar(0.5, BarMinLength-1))
}

func TestBar_RendersFilledAndEmptyRunes(t *testing.T) {
	bar := Bar(0.5, 20)
	assert.Equal(t, "["+strings.Repeat("#", 10)+strings.Repeat(".", 10)+"]", bar)
}

func TestBar_ClampsOutOfRangeFractions(t *testing.T) {
	assert.Equal(t, "["+strings.Repeat("#", 20)+"]", Bar(1.5, 20))
	assert.Equal(t, "["+strings.Repeat(".", 20)+"]", Bar(-1, 20))
}

func TestWorkerLines_ProducesTwoLinesPerWorker(t *testing.T) {
	lines := WorkerLines([]WorkerLine{
		{Index: 0, Filename: "game.exe", Fraction: 0.5, Rate: 1024, Done: 512, Total: 1024, ETA: 5 * time.Second, State: model.StateRunning},
	}, 20)
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "game.exe")
	assert.Contains(t, lines[1], "50%")
}

func TestSummaryLine_FormatsTotals(t *testing.T) {
	line := SummaryLine(Summary{TotalRate: 2048, RemainingUnits: 3, RemainingBytes: 4096, ETA: 90 * time.Second})
	assert.Contains(t, line, "Remaining: 3")
	assert.Contains(t, line, "00:01:30")
}

func TestHumanDuration_RendersZeroAsPlaceholder(t *testing.T) {
	assert.Equal(t, "--:--:--", humanDuration(0))
}

func TestHumanBytes_ScalesUnits(t *testing.T) {
	assert.Equal(t, "1.0KiB", humanBytes(1024))
	assert.Equal(t, "512B", humanBytes(512))
}
