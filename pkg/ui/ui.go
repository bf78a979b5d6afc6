// Package ui holds the terminal presentation helpers shared by every command.
package ui

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// ErrCancelled is returned when the user aborts a prompt (Ctrl+C, Esc or EOF).
var ErrCancelled = errors.New("cancelled")

var (
	accentColor  = lipgloss.Color("39")
	successColor = lipgloss.Color("42")
	warnColor    = lipgloss.Color("214")
	errorColor   = lipgloss.Color("203")
	dimColor     = lipgloss.Color("244")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	successStyle = lipgloss.NewStyle().Foreground(successColor)
	warnStyle    = lipgloss.NewStyle().Foreground(warnColor)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(errorColor)
	dimStyle     = lipgloss.NewStyle().Foreground(dimColor)
	boldStyle    = lipgloss.NewStyle().Bold(true)
)

// Box frames body in a rounded border with an optional bold title line.
func Box(title, body string, color lipgloss.Color) string {
	if color == "" {
		color = accentColor
	}
	content := body
	if title != "" {
		content = titleStyle.Foreground(color).Render(title) + "\n\n" + body
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(1, 2).
		Render(content)
}

// Colors exposed for callers that frame their own boxes.
var (
	ColorAccent  = accentColor
	ColorSuccess = successColor
	ColorWarn    = warnColor
	ColorError   = errorColor
)

func Title(s string) string   { return titleStyle.Render(s) }
func Success(s string) string { return successStyle.Render(s) }
func Warn(s string) string    { return warnStyle.Render(s) }
func Error(s string) string   { return errorStyle.Render(s) }
func Dim(s string) string     { return dimStyle.Render(s) }
func Bold(s string) string    { return boldStyle.Render(s) }

// Successf writes a green line to w.
func Successf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintln(w, Success(fmt.Sprintf(format, args...)))
}

// Warnf writes a yellow line to w.
func Warnf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintln(w, Warn(fmt.Sprintf(format, args...)))
}

// Errorf writes a red line to w.
func Errorf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintln(w, Error(fmt.Sprintf(format, args...)))
}

// Dimf writes a gray line to w.
func Dimf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintln(w, Dim(fmt.Sprintf(format, args...)))
}
