package format

import (
	"strings"
	"time"

	"github.com/aminsmd/multimodal-transcription/internal/transcript"
)

type cleanDocument struct {
	VideoID         string       `json:"video_id"`
	DurationSeconds float64      `json:"duration_seconds"`
	TotalEntries    int          `json:"total_entries"`
	Generated       string       `json:"generated,omitempty"`
	RunID           string       `json:"run_id,omitempty"`
	Entries         []cleanEntry `json:"transcript"`
	Gaps            []cleanGap   `json:"known_gaps"`
}

type cleanEntry struct {
	Type      transcript.Kind `json:"type"`
	StartTime string          `json:"start_time"`
	EndTime   string          `json:"end_time"`
	Speaker   string          `json:"speaker,omitempty"`
	Text      string          `json:"text,omitempty"`
	Visual    string          `json:"visual,omitempty"`
}

type cleanGap struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason"`
}

func renderClean(t *transcript.Transcript, opts Options) ([]byte, error) {
	doc := cleanDocument{
		VideoID:         t.VideoID,
		DurationSeconds: transcript.Seconds(t.Duration),
		TotalEntries:    len(t.Entries),
		Generated:       generatedStamp(opts.GeneratedAt),
		RunID:           opts.RunID,
		Entries:         make([]cleanEntry, 0, len(t.Entries)),
		Gaps:            make([]cleanGap, 0, len(t.Gaps)),
	}
	for _, e := range t.Entries {
		doc.Entries = append(doc.Entries, cleanEntry{
			Type:      e.Kind,
			StartTime: transcript.FormatTimecode(e.Start),
			EndTime:   transcript.FormatTimecode(e.End),
			Speaker:   strings.TrimSpace(e.Speaker),
			Text:      strings.TrimSpace(primaryText(e)),
			Visual:    strings.TrimSpace(e.VisualDescription),
		})
	}
	for _, g := range t.Gaps {
		doc.Gaps = append(doc.Gaps, cleanGap{
			StartTime: transcript.FormatTimecode(g.Start),
			EndTime:   transcript.FormatTimecode(g.End),
			Reason:    g.Reason,
		})
	}
	return encodeJSON(doc)
}

// primaryText is the spoken text of an utterance or the description of an event.
func primaryText(e transcript.CombinedEntry) string {
	if e.Kind == transcript.KindEvent {
		return e.EventDescription
	}
	return e.SpokenText
}

func generatedStamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}
