package logs

import (
	"encoding/json"
	"strings"

	"github.com/aminsmd/multimodal-transcription/internal/logging"
)

// Filter selects log lines. Zero fields match everything.
type Filter struct {
	RunID   string
	VideoID string
	// MinLevel is one of debug, info, warn, error.
	MinLevel string
}

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "warning": 2, "error": 3}

// Empty reports whether the filter matches every line.
func (f Filter) Empty() bool {
	return f.RunID == "" && f.VideoID == "" && f.MinLevel == ""
}

// Match reports whether line passes the filter.
func (f Filter) Match(line string) bool {
	if f.Empty() {
		return true
	}
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "{") {
		var fields map[string]any
		if err := json.Unmarshal([]byte(trimmed), &fields); err == nil {
			return f.matchFields(fields)
		}
	}
	return f.matchText(trimmed)
}

// Apply returns the lines that pass the filter.
func (f Filter) Apply(lines []string) []string {
	if f.Empty() {
		return lines
	}
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if f.Match(line) {
			out = append(out, line)
		}
	}
	return out
}

func (f Filter) matchFields(fields map[string]any) bool {
	if f.RunID != "" && stringField(fields, logging.FieldRunID) != f.RunID {
		return false
	}
	if f.VideoID != "" && stringField(fields, logging.FieldVideoID) != f.VideoID {
		return false
	}
	if floor, ok := levelRank[strings.ToLower(f.MinLevel)]; ok {
		rank, known := levelRank[strings.ToLower(stringField(fields, "level"))]
		if known && rank < floor {
			return false
		}
	}
	return true
}

func (f Filter) matchText(line string) bool {
	if f.RunID != "" && !strings.Contains(line, f.RunID) {
		return false
	}
	if f.VideoID != "" && !strings.Contains(line, f.VideoID) {
		return false
	}
	// Console lines start with "<timestamp> <LEVEL>".
	if floor, ok := levelRank[strings.ToLower(f.MinLevel)]; ok {
		if parts := strings.Fields(line); len(parts) >= 2 {
			if rank, known := levelRank[strings.ToLower(parts[1])]; known && rank < floor {
				return false
			}
		}
	}
	return true
}

func stringField(fields map[string]any, key string) string {
	value, ok := fields[key]
	if !ok {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return ""
}
