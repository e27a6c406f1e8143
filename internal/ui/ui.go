// Package ui provides colored terminal output for the CLI.
package ui

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow, color.Bold)
	red    = color.New(color.FgRed)

	// Grouped number formatting for report tables, e.g. 1,250,000.50.
	printer = message.NewPrinter(language.English)
)

// Header prints a formatted section header.
func Header(text string) {
	line := strings.Repeat("=", 60)
	green.Printf("\n%s\n", line)
	green.Printf("%-60s\n", center(text, 60))
	green.Printf("%s\n\n", line)
}

// Success prints a success message.
func Success(format string, args ...any) {
	green.Printf("  → %s\n", fmt.Sprintf(format, args...))
}

// Info prints an info message.
func Info(format string, args ...any) {
	fmt.Printf("  → %s\n", fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func Warning(format string, args ...any) {
	yellow.Printf("  ⚠ %s\n", fmt.Sprintf(format, args...))
}

// Error prints an error message.
func Error(format string, args ...any) {
	red.Printf("Error: %s\n", fmt.Sprintf(format, args...))
}

// Row prints one label/amount report line with grouped digits.
func Row(label string, amount float64) {
	printer.Printf("  %-30s %15.2f\n", label, amount)
}

func center(text string, width int) string {
	if len(text) >= width {
		return text
	}
	padding := (width - len(text)) / 2
	return strings.Repeat(" ", padding) + text
}
