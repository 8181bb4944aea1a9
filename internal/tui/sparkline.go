package tui

import (
	"math"
	"strings"
)

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders the last width values as block characters scaled to
// peak. A non-positive peak scales to the largest value. Shorter series are
// left-padded with spaces so the newest value is always at the right edge.
func Sparkline(values []float64, width int, peak float64) string {
	if width <= 0 {
		return ""
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}
	if peak <= 0 {
		for _, v := range values {
			peak = math.Max(peak, v)
		}
	}

	var sb strings.Builder
	sb.WriteString(strings.Repeat(" ", width-len(values)))
	top := len(sparkBlocks) - 1
	for _, v := range values {
		idx := 0
		if peak > 0 && v > 0 && !math.IsInf(v, 0) {
			idx = int(math.Round(v / peak * float64(top)))
		}
		sb.WriteRune(sparkBlocks[min(max(idx, 0), top)])
	}
	return sb.String()
}
