package gemini

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aminsmd/multimodal-transcription/internal/services"
	"github.com/aminsmd/multimodal-transcription/internal/transcript"
)

func TestParseTranscriptEnvelope(t *testing.T) {
	payload := "```json\n" + `{"transcript":[
		{"type":"utterance","start_time":"00:01","end_time":"00:04.5","speaker":"teacher","spoken_text":" Good morning "},
		{"type":"event","start_time":"00:04","end_time":"00:06","event_description":"Slide changes","visual_description":"Nine hearts"},
		{"start_time":7,"end_time":"01:02:03","visual_description":"Board close-up"}
	]}` + "\n```"
	entries, err := ParseTranscript(payload, 0)
	if err != nil {
		t.Fatalf("ParseTranscript: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	first := entries[0]
	if first.Kind != transcript.KindUtterance || first.Start != time.Second || first.End != 4500*time.Millisecond {
		t.Fatalf("unexpected first entry %+v", first)
	}
	if first.SpokenText != "Good morning" || first.Speaker != "teacher" {
		t.Fatalf("expected trimmed fields, got %+v", first)
	}
	if entries[1].Kind != transcript.KindEvent || entries[1].VisualDescription != "Nine hearts" {
		t.Fatalf("unexpected event %+v", entries[1])
	}
	if entries[2].Kind != transcript.KindEvent || entries[2].Start != 7*time.Second || entries[2].End != time.Hour+2*time.Minute+3*time.Second {
		t.Fatalf("unexpected inferred event %+v", entries[2])
	}
}

func TestParseTranscriptBareArray(t *testing.T) {
	entries, err := ParseTranscript(`[{"type":"speech","start_time":"75:00","end_time":"75:02","spoken_text":"late"}]`, 0)
	if err != nil {
		t.Fatalf("ParseTranscript: %v", err)
	}
	if len(entries) != 1 || entries[0].Start != 75*time.Minute {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestParseTranscriptEmptyListIsValid(t *testing.T) {
	entries, err := ParseTranscript(`{"transcript":[]}`, 0)
	if err != nil {
		t.Fatalf("ParseTranscript: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}

func TestParseTranscriptKeepsSilentUtterance(t *testing.T) {
	payload := `{"transcript":[
		{"type":"utterance","start_time":"00:01","end_time":"00:03","speaker":"teacher","spoken_text":"Any questions?"},
		{"type":"utterance","start_time":"00:04","end_time":"00:05","speaker":"student_A","visual_description":"raises hand silently"}
	]}`
	entries, err := ParseTranscript(payload, 5*time.Minute)
	if err != nil {
		t.Fatalf("ParseTranscript: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	silent := entries[1]
	if silent.Kind != transcript.KindUtterance || silent.SpokenText != "" || silent.VisualDescription != "raises hand silently" {
		t.Fatalf("unexpected silent utterance %+v", silent)
	}
}

func TestParseTranscriptSpanAllowsStartAtBoundary(t *testing.T) {
	payload := `{"transcript":[{"type":"utterance","start_time":"05:00","end_time":"05:01","spoken_text":"bye"}]}`
	if _, err := ParseTranscript(payload, 5*time.Minute); err != nil {
		t.Fatalf("expected start at the chunk length to pass, got %v", err)
	}
	if _, err := ParseTranscript(payload, 4*time.Minute); !errors.Is(err, services.ErrMalformedResponse) {
		t.Fatalf("expected malformed response beyond span, got %v", err)
	}
}

func TestParseTranscriptRejectsMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{name: "not json", payload: "I could not process this video.", want: "decode"},
		{name: "missing field", payload: `{"entries":[]}`, want: "missing transcript"},
		{name: "missing end", payload: `{"transcript":[{"type":"utterance","start_time":"00:01","spoken_text":"hi"}]}`, want: "required"},
		{name: "end before start", payload: `{"transcript":[{"type":"utterance","start_time":"00:05","end_time":"00:01","spoken_text":"hi"}]}`, want: "precedes start"},
		{name: "unordered", payload: `{"transcript":[
			{"type":"utterance","start_time":"00:05","end_time":"00:06","spoken_text":"b"},
			{"type":"utterance","start_time":"00:01","end_time":"00:02","spoken_text":"a"}]}`, want: "precedes previous"},
		{name: "bad timestamp", payload: `{"transcript":[{"type":"utterance","start_time":"00:75","end_time":"00:80","spoken_text":"x"}]}`, want: "seconds"},
		{name: "unknown type", payload: `{"transcript":[{"type":"music","start_time":"00:01","end_time":"00:02"}]}`, want: "unknown type"},
		{name: "no content", payload: `{"transcript":[{"type":"utterance","start_time":"00:01","end_time":"00:02","speaker":"teacher"}]}`, want: "without spoken_text or description"},
		{name: "empty event", payload: `{"transcript":[{"type":"event","start_time":"00:01","end_time":"00:02"}]}`, want: "without spoken_text or description"},
		{name: "huge number", payload: `{"transcript":[{"type":"utterance","start_time":1e15,"end_time":2e15,"spoken_text":"x"}]}`, want: "exceeds"},
		{name: "huge clock", payload: `{"transcript":[{"type":"utterance","start_time":"99999999:00","end_time":"99999999:01","spoken_text":"x"}]}`, want: "exceeds"},
		{name: "past chunk end", payload: `{"transcript":[{"type":"utterance","start_time":"07:30","end_time":"07:32","spoken_text":"x"}]}`, want: "past the chunk length"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTranscript(tt.payload, 5*time.Minute)
			if !errors.Is(err, services.ErrMalformedResponse) {
				t.Fatalf("expected malformed response, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in %q", tt.want, err.Error())
			}
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt, err := BuildPrompt("v1", Segment{
		Index:         1,
		Start:         300 * time.Second,
		End:           600 * time.Second,
		VideoDuration: 640 * time.Second,
		KnownSpeakers: []string{"teacher", "Dr. Lee"},
	})
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}
	for _, want := range []string{
		"from 00:00 to 05:00 without gaps",
		"segment 05:00 to 10:00 of 10:40",
		"Known speakers in this video: teacher, Dr. Lee",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("expected %q in prompt", want)
		}
	}
	if strings.Contains(prompt, durationPlaceholder) {
		t.Fatal("placeholder was not replaced")
	}

	if _, err := BuildPrompt("v9", Segment{}); !errors.Is(err, services.ErrInvalidConfiguration) {
		t.Fatalf("expected invalid configuration for unknown version, got %v", err)
	}
}

func TestDecodeJSONExtractsEmbeddedObject(t *testing.T) {
	var out struct {
		OK bool `json:"ok"`
	}
	if err := DecodeJSON(`Here you go: {"ok":true} thanks`, &out); err != nil || !out.OK {
		t.Fatalf("DecodeJSON: ok=%v err=%v", out.OK, err)
	}
	if err := DecodeJSON("   ", &out); err == nil {
		t.Fatal("expected error for empty payload")
	}
}
