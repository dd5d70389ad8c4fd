// Package report renders scheduling results for the terminal.
package report

import (
	"fmt"

	"github.com/dustin/go-humanize/english"
	"github.com/fatih/color"

	"github.com/aristath/siteplan/internal/conflict"
)

// Sprint color functions for building styled strings.
var (
	Bold       = color.New(color.Bold).SprintFunc()
	Dim        = color.New(color.Faint).SprintFunc()
	Cyan       = color.New(color.FgCyan).SprintFunc()
	Green      = color.New(color.FgGreen).SprintFunc()
	Red        = color.New(color.FgRed).SprintFunc()
	Yellow     = color.New(color.FgYellow).SprintFunc()
	BoldRed    = color.New(color.Bold, color.FgRed).SprintFunc()
	BoldYellow = color.New(color.Bold, color.FgYellow).SprintFunc()
)

// Days renders a day count with the right plural, e.g. "1 day", "3 days".
func Days(n int) string {
	return english.Plural(n, "day", "")
}

// SignedDays renders a shift, e.g. "+3 days", "-1 day", "0 days".
func SignedDays(n int) string {
	abs := n
	if abs < 0 {
		abs = -abs
	}
	return fmt.Sprintf("%+d %s", n, english.PluralWord(abs, "day", ""))
}

// SeverityLabel returns a colored severity name.
func SeverityLabel(s conflict.Severity) string {
	switch s {
	case conflict.SeverityCritical:
		return BoldRed(string(s))
	case conflict.SeverityHigh:
		return Red(string(s))
	case conflict.SeverityMedium:
		return Yellow(string(s))
	case conflict.SeverityLow:
		return Dim(string(s))
	default:
		return string(s)
	}
}

// Shift colors a day delta: later is red, earlier is green.
func Shift(n int) string {
	s := SignedDays(n)
	switch {
	case n > 0:
		return Red(s)
	case n < 0:
		return Green(s)
	default:
		return Dim(s)
	}
}
