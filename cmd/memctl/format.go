package main

import (
	"sort"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// printer groups digits in every number the commands print.
var printer = message.NewPrinter(language.English)

var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB"}

// formatBytes renders n as "1.5 MiB (1,572,864 bytes)".
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
	return printer.Sprintf("%.1f %s (%d bytes)", v, byteUnits[unit], n)
}

// sortedKeys returns the counter names in a stable order.
func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
