package ui

import (
	"fmt"
	"strings"
)

var byteUnits = []string{"B", "K", "M", "G", "T"}

// FormatBytes renders size in a fixed six-column width, e.g. "  2.0K".
func FormatBytes(size uint64) string {
	if size < 1024 {
		return fmt.Sprintf("%5dB", size)
	}
	v := float64(size)
	for _, unit := range byteUnits {
		if v < 1024 {
			return fmt.Sprintf("%5.1f%s", v, unit)
		}
		v /= 1024
	}
	return fmt.Sprintf("%.1fP", v)
}

// FormatUptime renders seconds as "HH:MM:SS", prefixed by "N days, " after
// the first day.
func FormatUptime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int64(seconds)
	days := total / 86400
	hours := total % 86400 / 3600
	minutes := total % 3600 / 60
	secs := total % 60
	if days > 0 {
		return fmt.Sprintf("%d days, %02d:%02d:%02d", days, hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
}

// Bar draws a width-cell gauge for a 0-100 percentage.
func Bar(percent float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(percent / 100 * float64(width))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

var sparkGlyphs = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders the newest width values of a 0-100 series.
func Sparkline(values []float64, width int) string {
	if width > 0 && len(values) > width {
		values = values[len(values)-width:]
	}
	var b strings.Builder
	for _, v := range values {
		idx := int(v / 100 * float64(len(sparkGlyphs)-1))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkGlyphs) {
			idx = len(sparkGlyphs) - 1
		}
		b.WriteRune(sparkGlyphs[idx])
	}
	return b.String()
}
