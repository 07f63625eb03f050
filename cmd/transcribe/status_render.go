package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/aminsmd/multimodal-transcription/internal/preflight"
)

type checkState int

const (
	checkPassed checkState = iota
	checkSkipped
	checkFailed
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
)

var checkStyles = map[checkState]struct{ tag, color string }{
	checkPassed:  {"OK", ansiGreen},
	checkSkipped: {"SKIP", ansiYellow},
	checkFailed:  {"FAIL", ansiRed},
}

const checkLabelWidth = 24

// stateOf maps a preflight result onto a display state. Checks that were
// not run report Passed with a "Skipped" detail.
func stateOf(r preflight.Result) checkState {
	switch {
	case !r.Passed:
		return checkFailed
	case strings.HasPrefix(r.Detail, "Skipped"):
		return checkSkipped
	default:
		return checkPassed
	}
}

// renderSection returns a titled block with one aligned line per check.
func renderSection(title string, results []preflight.Result, colorize bool) []string {
	header := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	lines := []string{paint(header, ansiCyan, colorize)}
	for _, r := range results {
		style := checkStyles[stateOf(r)]
		line := fmt.Sprintf("  %-*s [%s]", checkLabelWidth, r.Name+":", style.tag)
		if r.Detail != "" {
			line += " " + r.Detail
		}
		lines = append(lines, paint(line, style.color, colorize))
	}
	return lines
}

func paint(s, color string, colorize bool) string {
	if !colorize || color == "" {
		return s
	}
	return color + s + ansiReset
}

// shouldColorize is true only when writer is an interactive terminal.
func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
