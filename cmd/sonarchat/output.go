package main

import (
	"fmt"
	"io"
	"os"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorDim    = "\033[2m"
	colorBold   = "\033[1m"
)

// stderr receives status lines; tests swap it for a buffer.
var stderr io.Writer = os.Stderr

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	fmt.Fprintln(stderr, colorize(colorGreen, "✓ "+fmt.Sprintf(format, args...)))
}

func printError(format string, args ...any) {
	fmt.Fprintln(stderr, colorize(colorRed, "✗ "+fmt.Sprintf(format, args...)))
}

func printWarning(format string, args ...any) {
	fmt.Fprintln(stderr, colorize(colorYellow, "⚠ "+fmt.Sprintf(format, args...)))
}

func printStatus(label string, format string, args ...any) {
	l := colorize(colorBold, label+":")
	fmt.Fprintf(stderr, "  %s %s\n", l, fmt.Sprintf(format, args...))
}

// printTurn writes one chat message with a role prefix.
func printTurn(w io.Writer, role, content string) {
	prefix := colorize(colorCyan, role+">")
	if role == "you" {
		prefix = colorize(colorDim, role+">")
	}
	fmt.Fprintf(w, "%s %s\n", prefix, content)
}

// shortID trims a UUID to its first block for listings.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
