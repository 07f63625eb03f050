package transcript

import (
	"reflect"
	"testing"
	"time"
)

func TestClassifyLabels(t *testing.T) {
	tests := []struct {
		in    string
		class labelClass
		role  string
	}{
		{"teacher", classNamed, ""},
		{"Dr. Smith", classNamed, ""},
		{"multiple_students", classNamed, ""},
		{"student_A", classNumbered, "student"},
		{"Speaker 2", classNumbered, "speaker"},
		{"speaker", classAnonymous, ""},
		{"  ", classAnonymous, ""},
	}
	for _, tt := range tests {
		got := classify(tt.in)
		if got.class != tt.class || got.role != tt.role {
			t.Fatalf("classify(%q) = %v/%q, want %v/%q", tt.in, got.class, got.role, tt.class, tt.role)
		}
	}
}

func TestRegistryMatchesNamedLabelsAcrossChunks(t *testing.T) {
	r := NewRegistry(DefaultSpeakerPolicy())
	first := r.Resolve(0, []string{"teacher", "student_A"}, nil)
	second := r.Resolve(1, []string{"Teacher", "student_A"}, nil)

	if first["teacher"] != "teacher" || second["Teacher"] != "teacher" {
		t.Fatalf("expected teacher to be reconciled, got %v then %v", first, second)
	}
	if second["student_A"] != "student_A #2" {
		t.Fatalf("numbered label without continuity must become a new canonical label, got %q", second["student_A"])
	}
	want := []string{"teacher", "student_A", "student_A #2"}
	if got := r.Speakers(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Speakers = %v, want %v", got, want)
	}
}

func TestRegistryKnownSpeakersSeedCanonicalLabels(t *testing.T) {
	policy := DefaultSpeakerPolicy()
	policy.KnownSpeakers = []string{"Ms. Rivera"}
	r := NewRegistry(policy)
	mapping := r.Resolve(0, []string{"ms rivera"}, nil)
	if mapping["ms rivera"] != "Ms. Rivera" {
		t.Fatalf("expected known speaker match, got %v", mapping)
	}
}

func TestRegistryBoundaryContinuityForNumberedLabels(t *testing.T) {
	r := NewRegistry(DefaultSpeakerPolicy())
	r.Resolve(0, []string{"speaker_1", "speaker_2"}, nil)

	ev := &boundaryEvidence{
		tailSpeakers: map[string]struct{}{"speaker_2": {}},
		headSpeakers: map[string]struct{}{"speaker_1": {}},
		duplicates:   map[[2]string]struct{}{},
	}
	mapping := r.Resolve(1, []string{"speaker_1", "speaker_3"}, ev)
	if mapping["speaker_1"] != "speaker_2" {
		t.Fatalf("expected continuity match to speaker_2, got %v", mapping)
	}
	if mapping["speaker_3"] != "speaker_3" {
		t.Fatalf("expected new canonical label, got %v", mapping)
	}
}

func TestRegistrySpeakerChangeAtBoundaryDoesNotMerge(t *testing.T) {
	r := NewRegistry(DefaultSpeakerPolicy())
	r.Resolve(0, []string{"teacher"}, nil)
	ev := &boundaryEvidence{
		tailSpeakers: map[string]struct{}{"teacher": {}},
		headSpeakers: map[string]struct{}{"student_A": {}},
		duplicates:   map[[2]string]struct{}{},
	}
	mapping := r.Resolve(1, []string{"student_A"}, ev)
	if mapping["student_A"] != "student_A" {
		t.Fatalf("a different role starting at the cut must not merge, got %v", mapping)
	}
}

func TestRegistryTieBreaksOnEarliestCanonicalThenWorking(t *testing.T) {
	policy := DefaultSpeakerPolicy()
	r := NewRegistry(policy)
	r.Resolve(0, []string{"speaker_1", "speaker_2"}, nil)

	// Both working labels duplicate both canonical labels: equal scores.
	ev := &boundaryEvidence{
		tailSpeakers: map[string]struct{}{},
		headSpeakers: map[string]struct{}{},
		duplicates: map[[2]string]struct{}{
			{"speaker_9", "speaker_1"}: {},
			{"speaker_9", "speaker_2"}: {},
			{"speaker_8", "speaker_1"}: {},
			{"speaker_8", "speaker_2"}: {},
		},
	}
	mapping := r.Resolve(1, []string{"speaker_9", "speaker_8"}, ev)
	if mapping["speaker_9"] != "speaker_1" || mapping["speaker_8"] != "speaker_2" {
		t.Fatalf("unexpected tie-break result %v", mapping)
	}
}

func TestRegistryAnonymousLabelsPassThrough(t *testing.T) {
	r := NewRegistry(DefaultSpeakerPolicy())
	mapping := r.Resolve(0, []string{"speaker"}, nil)
	if mapping["speaker"] != "speaker" {
		t.Fatalf("unexpected mapping %v", mapping)
	}
	if len(r.Speakers()) != 0 {
		t.Fatalf("anonymous labels must not be registered: %v", r.Speakers())
	}
}

func TestRegistryThresholdIsTunable(t *testing.T) {
	policy := SpeakerPolicy{MatchThreshold: 0.8, BoundaryScore: 0.75, BoundaryWindow: time.Second}
	r := NewRegistry(policy)
	r.Resolve(0, []string{"speaker_1"}, nil)
	ev := &boundaryEvidence{
		tailSpeakers: map[string]struct{}{"speaker_1": {}},
		headSpeakers: map[string]struct{}{"speaker_4": {}},
		duplicates:   map[[2]string]struct{}{},
	}
	if got := r.Resolve(1, []string{"speaker_4"}, ev)["speaker_4"]; got != "speaker_4" {
		t.Fatalf("boundary score below threshold must not match, got %q", got)
	}
}
