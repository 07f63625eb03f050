package validation_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aminsmd/multimodal-transcription/internal/transcript"
	"github.com/aminsmd/multimodal-transcription/internal/validation"
)

func utter(start, end time.Duration, text string) transcript.CombinedEntry {
	return transcript.CombinedEntry{Kind: transcript.KindUtterance, Start: start, End: end, Speaker: "Teacher", SpokenText: text}
}

func event(start, end time.Duration, desc string) transcript.CombinedEntry {
	return transcript.CombinedEntry{Kind: transcript.KindEvent, Start: start, End: end, EventDescription: desc}
}

func TestCleanTranscriptPasses(t *testing.T) {
	tr := &transcript.Transcript{
		VideoID:  "v",
		Duration: 30 * time.Second,
		Entries: []transcript.CombinedEntry{
			utter(0, 5*time.Second, "Welcome back everyone."),
			event(2*time.Second, 4*time.Second, "Projector turns on"),
			utter(6*time.Second, 15*time.Second, "Today we look at fractions."),
			utter(16*time.Second, 28*time.Second, "Take out your worksheets please."),
		},
	}
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	report := validation.Checker{Now: func() time.Time { return now }}.Check(tr)
	if !report.Passed || !report.ChronologyValid {
		t.Fatalf("expected passing report, got %+v", report.Issues)
	}
	if len(report.Issues) != 0 {
		t.Fatalf("expected no issues, got %+v", report.Issues)
	}
	if report.TotalEntries != 4 || report.DurationSeconds != 30 || !report.CheckedAt.Equal(now) {
		t.Fatalf("unexpected header %+v", report)
	}
}

func TestReportsEachIssueType(t *testing.T) {
	tr := &transcript.Transcript{
		VideoID:  "v",
		Duration: 120 * time.Second,
		Entries: []transcript.CombinedEntry{
			utter(12*time.Second, 20*time.Second, "Let us begin the lesson."),
			utter(18*time.Second, 25*time.Second, "Overlapping sentence here."),
			utter(15*time.Second, 17*time.Second, "Out of order sentence."),
			utter(40*time.Second, 40500*time.Millisecond, "ok"),
			utter(41*time.Second, 43*time.Second, "um"),
			event(44*time.Second, 46*time.Second, ""),
			utter(47*time.Second, 60*time.Second, "Closing remarks for today."),
		},
		Gaps: []transcript.Gap{{ChunkIndex: 1, Start: 60 * time.Second, End: 120 * time.Second, Reason: "chunk analysis failed"}},
	}
	report := validation.Checker{GapThreshold: 10 * time.Second}.Check(tr)

	wantCounts := map[validation.IssueType]int{
		validation.IssueChronology: 1,
		validation.IssueOverlap:    1,
		validation.IssueGap:        3,
		validation.IssueShort:      1,
		validation.IssueFiller:     1,
		validation.IssueEmpty:      1,
		validation.IssueKnownGap:   1,
	}
	for kind, want := range wantCounts {
		if got := report.Count(kind); got != want {
			t.Errorf("%s: got %d issues want %d", kind, got, want)
		}
	}
	if report.Passed {
		t.Fatal("expected failing report")
	}
	if report.ChronologyValid {
		t.Fatal("expected chronology to be invalid")
	}
	if len(report.FailedChunks) != 1 || report.FailedChunks[0] != 1 {
		t.Fatalf("unexpected failed chunks %v", report.FailedChunks)
	}
	if report.GapsFound != 3 || report.OverlapsFound != 1 {
		t.Fatalf("unexpected summary counts gaps=%d overlaps=%d", report.GapsFound, report.OverlapsFound)
	}
}

func TestUtteranceAndEventMayOverlap(t *testing.T) {
	tr := &transcript.Transcript{
		Duration: 10 * time.Second,
		Entries: []transcript.CombinedEntry{
			utter(0, 8*time.Second, "Watch the demonstration closely."),
			event(1*time.Second, 7*time.Second, "Teacher pours water into a beaker"),
		},
	}
	report := validation.Checker{}.Check(tr)
	if report.Count(validation.IssueOverlap) != 0 {
		t.Fatalf("cross-type overlap reported: %+v", report.Issues)
	}
}

func TestWriteText(t *testing.T) {
	tr := &transcript.Transcript{
		VideoID:  "v",
		Duration: 10 * time.Second,
		Gaps:     []transcript.Gap{{ChunkIndex: 0, Start: 0, End: 10 * time.Second, Reason: "chunk analysis failed", Error: "retries exhausted"}},
	}
	var b strings.Builder
	if err := validation.WriteText(&b, validation.Checker{}.Check(tr)); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	out := b.String()
	for _, fragment := range []string{"TRANSCRIPT VALIDATION REPORT", "Validation Passed: no", "KNOWN_GAP (ERROR)", "Chunk Index: 0", "retries exhausted"} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("missing %q in:\n%s", fragment, out)
		}
	}
}

func TestNilTranscript(t *testing.T) {
	report := validation.Checker{}.Check(nil)
	if !report.Passed || len(report.Issues) != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
}
