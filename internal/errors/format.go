package errors

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"
)

type style string

const (
	styleReset style = "\033[0m"
	styleError style = "\033[1;31m"
	styleTitle style = "\033[1;37m"
	styleText  style = "\033[37m"
	styleMuted style = "\033[90m"
	styleHint  style = "\033[36m"
)

// colorEnabled controls whether ANSI colors are used. Setting NO_COLOR
// turns them off.
var colorEnabled = os.Getenv("NO_COLOR") == ""

// DisableColors disables ANSI color output.
func DisableColors() { colorEnabled = false }

// EnableColors enables ANSI color output.
func EnableColors() { colorEnabled = true }

func paint(st style, text string) string {
	if !colorEnabled || text == "" {
		return text
	}
	return string(st) + text + string(styleReset)
}

// Format returns a multi-line error message for terminal display. Coded
// errors in the cause chain are listed one per line.
func (e *Error) Format() string {
	var b strings.Builder

	b.WriteString("\n" + paint(styleError, "ERROR "))
	if e.Code != "" {
		b.WriteString(paint(styleTitle, e.Code+": "))
	}
	b.WriteString(paint(styleText, e.Message))
	if e.Category != "" {
		b.WriteString(paint(styleMuted, " ["+string(e.Category)+"]"))
	}
	b.WriteString("\n\n")

	if e.Detail != "" {
		for _, line := range wrapText(e.Detail, 70) {
			b.WriteString("  " + line + "\n")
		}
		b.WriteString("\n")
	}

	for i, cause := range causes(e.Wrapped) {
		label := "           "
		if i == 0 {
			label = paint(styleMuted, "Caused by: ")
		}
		b.WriteString("  " + label + cause + "\n")
	}
	if e.Wrapped != nil {
		b.WriteString("\n")
	}

	if e.Suggestion != "" {
		b.WriteString("  " + paint(styleHint, "Hint: ") + e.Suggestion + "\n")
	}

	return b.String()
}

// causes flattens err's chain. Coded links are shown compactly; the first
// plain error ends the walk, since its message already includes the rest.
func causes(err error) []string {
	var out []string
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) || e != err {
			return append(out, err.Error())
		}
		out = append(out, e.FormatCompact())
		err = e.Wrapped
	}
	return out
}

// FormatCompact returns a compact single-line error format.
func (e *Error) FormatCompact() string {
	var b strings.Builder
	if e.Code != "" {
		b.WriteString(e.Code)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Detail != "" {
		b.WriteString(fmt.Sprintf(" (%s)", e.Detail))
	}
	return b.String()
}

// wrapText wraps text to the specified width.
func wrapText(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		if len(current)+1+len(word) > width {
			lines = append(lines, current)
			current = word
			continue
		}
		current += " " + word
	}
	return append(lines, current)
}
