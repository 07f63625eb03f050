package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aminsmd/multimodal-transcription/internal/transcript"
)

const (
	fullFormatName    = "full"
	fullFormatVersion = 1
)

type fullDocument struct {
	Format          string                         `json:"format"`
	Version         int                            `json:"version"`
	GeneratedAt     time.Time                      `json:"generated_at,omitzero"`
	RunID           string                         `json:"run_id,omitempty"`
	VideoID         string                         `json:"video_id"`
	ContentHash     string                         `json:"content_hash"`
	Duration        time.Duration                  `json:"duration"`
	DurationSeconds float64                        `json:"duration_seconds"`
	ChunkCount      int                            `json:"chunk_count"`
	TotalEntries    int                            `json:"total_entries"`
	Speakers        []string                       `json:"speakers"`
	Assignments     []transcript.SpeakerAssignment `json:"speaker_assignments,omitempty"`
	Gaps            []fullGap                      `json:"known_gaps"`
	Entries         []fullEntry                    `json:"transcript"`
}

// fullEntry adds readable timecodes next to the exact nanosecond offsets.
type fullEntry struct {
	transcript.CombinedEntry
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type fullGap struct {
	transcript.Gap
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func renderFull(t *transcript.Transcript, opts Options) ([]byte, error) {
	doc := fullDocument{
		Format:          fullFormatName,
		Version:         fullFormatVersion,
		GeneratedAt:     opts.GeneratedAt.UTC(),
		RunID:           opts.RunID,
		VideoID:         t.VideoID,
		ContentHash:     t.ContentHash,
		Duration:        t.Duration,
		DurationSeconds: transcript.Seconds(t.Duration),
		ChunkCount:      t.ChunkCount,
		TotalEntries:    len(t.Entries),
		Speakers:        t.Speakers,
		Assignments:     t.Assignments,
		Gaps:            make([]fullGap, 0, len(t.Gaps)),
		Entries:         make([]fullEntry, 0, len(t.Entries)),
	}
	for _, g := range t.Gaps {
		doc.Gaps = append(doc.Gaps, fullGap{Gap: g, StartTime: transcript.FormatTimecode(g.Start), EndTime: transcript.FormatTimecode(g.End)})
	}
	for _, e := range t.Entries {
		doc.Entries = append(doc.Entries, fullEntry{CombinedEntry: e, StartTime: transcript.FormatTimecode(e.Start), EndTime: transcript.FormatTimecode(e.End)})
	}
	return encodeJSON(doc)
}

// ParseFull reads a full representation back into a transcript.
func ParseFull(data []byte) (*transcript.Transcript, error) {
	var doc fullDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse full transcript: %w", err)
	}
	if doc.Format != fullFormatName {
		return nil, fmt.Errorf("parse full transcript: unexpected format %q", doc.Format)
	}
	if doc.Version != fullFormatVersion {
		return nil, fmt.Errorf("parse full transcript: unsupported version %d", doc.Version)
	}
	t := &transcript.Transcript{
		VideoID:     doc.VideoID,
		ContentHash: doc.ContentHash,
		Duration:    doc.Duration,
		ChunkCount:  doc.ChunkCount,
		Speakers:    doc.Speakers,
		Assignments: doc.Assignments,
		Gaps:        make([]transcript.Gap, 0, len(doc.Gaps)),
		Entries:     make([]transcript.CombinedEntry, 0, len(doc.Entries)),
	}
	for _, g := range doc.Gaps {
		t.Gaps = append(t.Gaps, g.Gap)
	}
	for _, e := range doc.Entries {
		t.Entries = append(t.Entries, e.CombinedEntry)
	}
	return t, nil
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
