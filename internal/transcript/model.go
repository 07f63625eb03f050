package transcript

import (
	"strings"
	"time"

	"github.com/aminsmd/multimodal-transcription/internal/chunking"
)

// Kind distinguishes spoken utterances from non-verbal events.
type Kind string

const (
	KindUtterance Kind = "utterance"
	KindEvent     Kind = "event"
)

// ParseKind maps a response type onto a Kind. Unknown values are rejected.
func ParseKind(value string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "utterance", "speech", "":
		return KindUtterance, true
	case "event", "visual", "action":
		return KindEvent, true
	}
	return "", false
}

// Entry is one item reported for a chunk, in chunk-local time.
type Entry struct {
	Kind              Kind          `json:"type"`
	Start             time.Duration `json:"local_start"`
	End               time.Duration `json:"local_end"`
	Speaker           string        `json:"speaker,omitempty"`
	SpokenText        string        `json:"spoken_text,omitempty"`
	EventDescription  string        `json:"event_description,omitempty"`
	VisualDescription string        `json:"visual_description,omitempty"`
}

// Text returns the content used to compare entries: spoken text for
// utterances, the event or visual description otherwise.
func (e Entry) Text() string {
	if e.Kind == KindUtterance && strings.TrimSpace(e.SpokenText) != "" {
		return e.SpokenText
	}
	if strings.TrimSpace(e.EventDescription) != "" {
		return e.EventDescription
	}
	return e.VisualDescription
}

// CombinedEntry is an Entry placed on the video timeline with a canonical speaker.
type CombinedEntry struct {
	Kind              Kind          `json:"type"`
	Start             time.Duration `json:"start"`
	End               time.Duration `json:"end"`
	LocalStart        time.Duration `json:"local_start"`
	LocalEnd          time.Duration `json:"local_end"`
	Speaker           string        `json:"speaker,omitempty"`
	WorkingSpeaker    string        `json:"working_speaker,omitempty"`
	SpokenText        string        `json:"spoken_text,omitempty"`
	EventDescription  string        `json:"event_description,omitempty"`
	VisualDescription string        `json:"visual_description,omitempty"`
	ChunkIndex        int           `json:"chunk_index"`
	Seq               int           `json:"seq"`
}

// Text mirrors Entry.Text.
func (e CombinedEntry) Text() string {
	return Entry{Kind: e.Kind, SpokenText: e.SpokenText, EventDescription: e.EventDescription, VisualDescription: e.VisualDescription}.Text()
}

// Duration returns the entry span.
func (e CombinedEntry) Duration() time.Duration {
	return e.End - e.Start
}

// Gap records a span with no content because its chunk failed terminally.
type Gap struct {
	ChunkIndex int           `json:"chunk_index"`
	Start      time.Duration `json:"start"`
	End        time.Duration `json:"end"`
	Reason     string        `json:"reason"`
	Error      string        `json:"error,omitempty"`
}

// SpeakerAssignment records how a chunk-local label was resolved.
type SpeakerAssignment struct {
	ChunkIndex int     `json:"chunk_index"`
	Working    string  `json:"working"`
	Canonical  string  `json:"canonical"`
	Score      float64 `json:"score"`
	Matched    bool    `json:"matched"`
}

// Transcript is the combined, time-ordered deliverable for one video.
type Transcript struct {
	VideoID     string              `json:"video_id"`
	ContentHash string              `json:"content_hash"`
	Duration    time.Duration       `json:"duration"`
	ChunkCount  int                 `json:"chunk_count"`
	Entries     []CombinedEntry     `json:"entries"`
	Gaps        []Gap               `json:"gaps"`
	Speakers    []string            `json:"speakers"`
	Assignments []SpeakerAssignment `json:"speaker_assignments,omitempty"`
}

// Complete reports whether every chunk produced content.
func (t *Transcript) Complete() bool {
	return t != nil && len(t.Gaps) == 0
}

// ChunkResult is the outcome of analysing one chunk. Exactly one of Entries
// or Err is meaningful.
type ChunkResult struct {
	Spec    chunking.Spec
	Entries []Entry
	Err     error
}
