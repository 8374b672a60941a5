// Package cli provides the command-line interface for the market data manager.
package cli

import (
	"fmt"
	"time"
)

// FormatDate formats a time as a day-granularity date.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

// FormatPrice formats a price with two decimals.
func FormatPrice(price float64) string {
	return fmt.Sprintf("%.2f", price)
}

// FormatOptionalPrice formats a nullable price.
func FormatOptionalPrice(price *float64) string {
	if price == nil {
		return "-"
	}
	return FormatPrice(*price)
}

// FormatVolume formats volume in compact form (K/M/B).
func FormatVolume(volume *float64) string {
	if volume == nil {
		return "-"
	}
	v := *volume
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.1fK", v/1e3)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

// Truncate shortens a string to max runes, appending an ellipsis.
func Truncate(s string, max int) string {
	if max <= 3 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
