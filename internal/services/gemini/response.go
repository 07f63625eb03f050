package gemini

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aminsmd/multimodal-transcription/internal/services"
	"github.com/aminsmd/multimodal-transcription/internal/transcript"
)

// timestamp accepts "MM:SS"-style strings as well as bare numbers of seconds.
type timestamp struct {
	value time.Duration
	set   bool
}

func (t *timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			return nil
		}
		d, err := transcript.ParseTimestamp(s)
		if err != nil {
			return err
		}
		t.value, t.set = d, true
		return nil
	}
	seconds, err := strconv.ParseFloat(string(data), 64)
	if err != nil || seconds < 0 {
		return fmt.Errorf("invalid timestamp %s", data)
	}
	if seconds > transcript.MaxTimestamp.Seconds() {
		return fmt.Errorf("timestamp %s exceeds %s", data, transcript.MaxTimestamp)
	}
	t.value, t.set = transcript.FromSeconds(seconds), true
	return nil
}

type responseEntry struct {
	Type              string    `json:"type"`
	StartTime         timestamp `json:"start_time"`
	EndTime           timestamp `json:"end_time"`
	Speaker           string    `json:"speaker"`
	SpokenText        string    `json:"spoken_text"`
	EventDescription  string    `json:"event_description"`
	VisualDescription string    `json:"visual_description"`
}

type responseEnvelope struct {
	Transcript *[]responseEntry `json:"transcript"`
}

// ParseTranscript validates a model response and converts it into
// chunk-local entries. Accepted shapes are {"transcript":[...]} and a bare
// array. When span is positive, an entry starting after span is rejected:
// the model placed it outside the media it was given. Every structural
// problem is reported as services.ErrMalformedResponse.
func ParseTranscript(payload string, span time.Duration) ([]transcript.Entry, error) {
	raw, err := decodeEntries(payload)
	if err != nil {
		return nil, malformed("decode", err)
	}
	entries := make([]transcript.Entry, 0, len(raw))
	var prevStart time.Duration
	for i, item := range raw {
		entry, err := item.toEntry()
		if err != nil {
			return nil, malformed(fmt.Sprintf("entry %d", i), err)
		}
		if span > 0 && entry.Start > span {
			return nil, malformed(fmt.Sprintf("entry %d", i),
				fmt.Errorf("start %s is past the chunk length %s", transcript.FormatTimecode(entry.Start), transcript.FormatTimecode(span)))
		}
		if i > 0 && entry.Start < prevStart {
			return nil, malformed(fmt.Sprintf("entry %d", i),
				fmt.Errorf("start %s precedes previous start %s", transcript.FormatTimecode(entry.Start), transcript.FormatTimecode(prevStart)))
		}
		prevStart = entry.Start
		entries = append(entries, entry)
	}
	return entries, nil
}

func decodeEntries(payload string) ([]responseEntry, error) {
	trimmed := strings.TrimSpace(sanitizeJSONPayload(payload))
	if trimmed == "" {
		return nil, errors.New("empty payload")
	}
	if trimmed[0] == '[' {
		var list []responseEntry
		if err := DecodeJSON(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var env responseEnvelope
	if err := DecodeJSON(trimmed, &env); err != nil {
		return nil, err
	}
	if env.Transcript == nil {
		return nil, fmt.Errorf("missing transcript field (payload snippet: %s)", summarizePayloadSnippet(trimmed))
	}
	return *env.Transcript, nil
}

func (r responseEntry) toEntry() (transcript.Entry, error) {
	kind, ok := transcript.ParseKind(r.Type)
	if !ok {
		return transcript.Entry{}, fmt.Errorf("unknown type %q", r.Type)
	}
	if strings.TrimSpace(r.Type) == "" && strings.TrimSpace(r.SpokenText) == "" &&
		(strings.TrimSpace(r.EventDescription) != "" || strings.TrimSpace(r.VisualDescription) != "") {
		kind = transcript.KindEvent
	}
	if !r.StartTime.set || !r.EndTime.set {
		return transcript.Entry{}, errors.New("start_time and end_time are required")
	}
	if r.EndTime.value < r.StartTime.value {
		return transcript.Entry{}, fmt.Errorf("end %s precedes start %s",
			transcript.FormatTimecode(r.EndTime.value), transcript.FormatTimecode(r.StartTime.value))
	}
	entry := transcript.Entry{
		Kind:              kind,
		Start:             r.StartTime.value,
		End:               r.EndTime.value,
		Speaker:           strings.TrimSpace(r.Speaker),
		SpokenText:        strings.TrimSpace(r.SpokenText),
		EventDescription:  strings.TrimSpace(r.EventDescription),
		VisualDescription: strings.TrimSpace(r.VisualDescription),
	}
	// A silent utterance (a raised hand, a nod) carries only a visual
	// description; validation flags entries that end up with no content.
	if entry.SpokenText == "" && entry.EventDescription == "" && entry.VisualDescription == "" {
		return transcript.Entry{}, fmt.Errorf("%s without spoken_text or description", kind)
	}
	return entry, nil
}

func malformed(op string, err error) error {
	return services.Wrap(services.ErrMalformedResponse, "analysis", "parse", op, err)
}

// DecodeJSON decodes JSON from a model response, handling common formatting quirks.
func DecodeJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}

	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}

	sanitized := sanitizeJSONPayload(trimmed)
	if sanitized == "" || sanitized == trimmed {
		return fmt.Errorf("%w (payload snippet: %s)", directErr, summarizePayloadSnippet(trimmed))
	}

	sanitizedErr := json.Unmarshal([]byte(sanitized), target)
	if sanitizedErr == nil {
		return nil
	}
	return fmt.Errorf("%w (sanitized payload snippet: %s)", sanitizedErr, summarizePayloadSnippet(sanitized))
}

func sanitizeJSONPayload(content string) string {
	trimmed := strings.TrimSpace(stripCodeFenceBlock(content))
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	if start := strings.Index(trimmed, "["); start >= 0 {
		if end := strings.LastIndex(trimmed, "]"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

func stripCodeFenceBlock(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimLeft(trimmed[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func summarizePayloadSnippet(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "<empty>"
	}
	clean := strings.Join(strings.Fields(trimmed), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
