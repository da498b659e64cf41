// Package ui holds ANSI styling helpers for CLI output.
package ui

import "fmt"

// ANSI color and style constants for CLI output
const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorDim   = "\033[2m"

	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorWhite  = "\033[97m"
	ColorRed    = "\033[31m"
)

func Bold(s string) string {
	return ColorBold + s + ColorReset
}

func Success(s string) string {
	return ColorGreen + s + ColorReset
}

func Info(s string) string {
	return ColorDim + ColorYellow + s + ColorReset
}

func Error(s string) string {
	return ColorRed + s + ColorReset
}

func Dim(s string) string {
	return ColorDim + s + ColorReset
}

// Header styles a section title for command output.
func Header(s string) string {
	return ColorBold + ColorCyan + s + ColorReset
}

// Count styles a numeric summary like "12 urls".
func Count(n int, noun string) string {
	return fmt.Sprintf("%s%d%s %s", ColorBold, n, ColorReset, noun)
}
