package util

import (
	"fmt"
	"math"
)

var byteUnits = []string{"B", "KB", "MB", "GB"}

// FormatBytes renders a byte count with one decimal and a binary unit,
// e.g. "1.5 KB". Negative and non-finite values render as "0.0 B".
func FormatBytes(n float64) string {
	if n < 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		n = 0
	}
	for _, unit := range byteUnits {
		if n < 1024 {
			return fmt.Sprintf("%.1f %s", n, unit)
		}
		n /= 1024
	}
	return fmt.Sprintf("%.1f TB", n)
}

// FormatRate renders a bytes-per-second rate, e.g. "1.5 KB/s".
func FormatRate(perSec float64) string {
	return FormatBytes(perSec) + "/s"
}
