package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/aminsmd/multimodal-transcription/internal/services"
	"github.com/aminsmd/multimodal-transcription/internal/transcript"
)

// Representation names an output format.
type Representation string

const (
	Full  Representation = "full"
	Clean Representation = "clean"
	Text  Representation = "text"
)

// All lists every representation in output order.
var All = []Representation{Full, Clean, Text}

// ParseRepresentation validates a representation name.
func ParseRepresentation(value string) (Representation, error) {
	rep := Representation(strings.ToLower(strings.TrimSpace(value)))
	switch rep {
	case Full, Clean, Text:
		return rep, nil
	}
	return "", services.Wrap(services.ErrInvalidConfiguration, "format", "representation",
		fmt.Sprintf("unsupported representation %q (want full, clean or text)", value), nil)
}

// FileName is the conventional output file name for rep.
func (r Representation) FileName() string {
	switch r {
	case Full:
		return "full.json"
	case Clean:
		return "clean.json"
	case Text:
		return "transcript.txt"
	}
	return string(r)
}

// Options carry the caller-supplied context rendered alongside entries.
type Options struct {
	RunID       string
	GeneratedAt time.Time
	// GroupSpeakers merges consecutive utterances by the same speaker under
	// one heading in the text representation.
	GroupSpeakers bool
}

// Render produces rep for t.
func Render(t *transcript.Transcript, rep Representation, opts Options) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("render %s: transcript is nil", rep)
	}
	switch rep {
	case Full:
		return renderFull(t, opts)
	case Clean:
		return renderClean(t, opts)
	case Text:
		return renderText(t, opts), nil
	}
	_, err := ParseRepresentation(string(rep))
	return nil, err
}
