// Package presenter provides consistent CLI output for user-facing
// messages: success, error, warning, and informational output with
// color support and quiet mode.
package presenter

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// TerminalPresenter writes user-facing messages to a terminal.
type TerminalPresenter struct {
	output      io.Writer
	errorOutput io.Writer
	quiet       bool
}

// ColorMode represents color output modes.
type ColorMode int

const (
	// ColorAuto lets the color package detect terminal capabilities.
	ColorAuto ColorMode = iota
	// ColorAlways forces colored output.
	ColorAlways
	// ColorNever disables colored output.
	ColorNever
)

var defaultPresenter = New()

// New creates a TerminalPresenter with default settings.
func New() *TerminalPresenter {
	return NewWithOptions(os.Stdout, os.Stderr, detectColorMode())
}

// NewWithOptions creates a TerminalPresenter with custom settings.
func NewWithOptions(output, errorOutput io.Writer, colorMode ColorMode) *TerminalPresenter {
	switch colorMode {
	case ColorAlways:
		color.NoColor = false
	case ColorNever:
		color.NoColor = true
	}
	return &TerminalPresenter{output: output, errorOutput: errorOutput}
}

func detectColorMode() ColorMode {
	if os.Getenv("NO_COLOR") != "" {
		return ColorNever
	}
	switch os.Getenv("SKILLCORTEX_COLOR") {
	case "always", "force":
		return ColorAlways
	case "never", "off":
		return ColorNever
	default:
		return ColorAuto
	}
}

// SetQuiet suppresses all non-error output.
func (p *TerminalPresenter) SetQuiet(quiet bool) {
	p.quiet = quiet
}

// Error displays an error message with optional context to stderr.
func (p *TerminalPresenter) Error(err error, context string) {
	if err == nil {
		return
	}
	errorColor := color.New(color.FgRed, color.Bold)
	if context != "" {
		errorColor.Fprintf(p.errorOutput, "[ERROR] %s: %v\n", context, err)
	} else {
		errorColor.Fprintf(p.errorOutput, "[ERROR] %v\n", err)
	}
}

// Success displays a success message.
func (p *TerminalPresenter) Success(message string) {
	if p.quiet {
		return
	}
	color.New(color.FgGreen, color.Bold).Fprintf(p.output, "✓ %s\n", message)
}

// Warning displays a warning message.
func (p *TerminalPresenter) Warning(message string) {
	if p.quiet {
		return
	}
	color.New(color.FgYellow, color.Bold).Fprintf(p.output, "⚠ %s\n", message)
}

// Info displays an informational message.
func (p *TerminalPresenter) Info(message string) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.output, "%s\n", message)
}

// Section displays a section header.
func (p *TerminalPresenter) Section(title string) {
	if p.quiet {
		return
	}
	headerColor := color.New(color.Bold)
	headerColor.Fprintf(p.output, "%s\n", title)
	headerColor.Fprintf(p.output, "%s\n", strings.Repeat("-", len(title)))
}

// Package-level helpers writing through the default presenter.

// Error displays an error through the default presenter.
func Error(err error, context string) { defaultPresenter.Error(err, context) }

// Success displays a success message through the default presenter.
func Success(message string) { defaultPresenter.Success(message) }

// Warning displays a warning message through the default presenter.
func Warning(message string) { defaultPresenter.Warning(message) }

// Info displays an informational message through the default presenter.
func Info(message string) { defaultPresenter.Info(message) }

// Section displays a section header through the default presenter.
func Section(title string) { defaultPresenter.Section(title) }

// SetQuiet toggles quiet mode on the default presenter.
func SetQuiet(quiet bool) { defaultPresenter.SetQuiet(quiet) }
