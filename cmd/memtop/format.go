package main

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB"}

// formatBytes renders n with a binary unit, e.g. "1.5 MiB".
func formatBytes(n int64) string {
	if n < 1024 && n > -1024 {
		return printer.Sprintf("%d B", n)
	}
	v := float64(n)
	unit := 0
	for (v >= 1024 || v <= -1024) && unit < len(byteUnits)-1 {
		v /= 1024
		unit++
	}
	return printer.Sprintf("%.1f %s", v, byteUnits[unit])
}

// formatCount groups digits: 1234567 -> "1,234,567".
func formatCount(n uint64) string {
	return printer.Sprintf("%d", n)
}

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// sparkline scales values between their minimum and maximum.
func sparkline(values []int64) string {
	if len(values) == 0 {
		return ""
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	var b strings.Builder
	for _, v := range values {
		i := 0
		if hi > lo {
			i = int((v - lo) * int64(len(sparkBlocks)-1) / (hi - lo))
		}
		b.WriteRune(sparkBlocks[i])
	}
	return b.String()
}
