package logger

import (
	"io"

	"github.com/fatih/color" // Import the fatih/color package for colored console output
)

// Colorized printing functions for the different log levels.
// They behave like fmt.Printf with the text colored for the level.

// Info logs informational messages in green color.
var Info = color.New(color.FgGreen).PrintfFunc()

// Warn logs warning messages in bright magenta color.
var Warn = color.New(color.FgHiMagenta).PrintfFunc()

// Error logs error messages in red color.
var Error = color.New(color.FgRed).PrintfFunc()

// Debug logs debug messages in cyan color when enabled, otherwise is a no-op.
// It starts as a no-op so packages can log before Init is called (tests, library use).
var Debug = func(format string, a ...any) {}

// Init enables or disables debug logging and color output.
// When noColor is set every level prints plain text, which is what
// you want when output is piped into a file or a CI log.
func Init(enableDebug, noColor bool) {
	color.NoColor = noColor

	if enableDebug {
		Debug = color.New(color.FgCyan).PrintfFunc()
	} else {
		Debug = func(format string, a ...any) {}
	}
}

// SetOutput redirects all levels to w. Used by the CLI tests to capture output.
func SetOutput(w io.Writer) {
	Info = fprintf(w, color.FgGreen)
	Warn = fprintf(w, color.FgHiMagenta)
	Error = fprintf(w, color.FgRed)
}

func fprintf(w io.Writer, attr color.Attribute) func(format string, a ...any) {
	c := color.New(attr)
	return func(format string, a ...any) {
		_, _ = c.Fprintf(w, format, a...)
	}
}
