package chunking_test

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/aminsmd/multimodal-transcription/internal/chunking"
	"github.com/aminsmd/multimodal-transcription/internal/services"
)

func TestPlanSplitsDurationIntoFixedWidthChunks(t *testing.T) {
	specs, err := chunking.Plan(640*time.Second, 300*time.Second)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	want := []chunking.Spec{
		{Index: 0, Start: 0, End: 300 * time.Second},
		{Index: 1, Start: 300 * time.Second, End: 600 * time.Second},
		{Index: 2, Start: 600 * time.Second, End: 640 * time.Second},
	}
	if !reflect.DeepEqual(specs, want) {
		t.Fatalf("Plan = %v, want %v", specs, want)
	}
}

func TestPlanPartitionIsExactAndDeterministic(t *testing.T) {
	cases := []struct {
		duration time.Duration
		chunk    time.Duration
	}{
		{duration: time.Millisecond, chunk: time.Second},
		{duration: 600 * time.Second, chunk: 300 * time.Second},
		{duration: 601 * time.Second, chunk: 300 * time.Second},
		{duration: 3723456 * time.Millisecond, chunk: 7 * time.Second},
		{duration: 10 * time.Second, chunk: 3333 * time.Millisecond},
		{duration: 2 * time.Hour, chunk: time.Hour},
	}
	for _, tc := range cases {
		first, err := chunking.Plan(tc.duration, tc.chunk)
		if err != nil {
			t.Fatalf("Plan(%s, %s): %v", tc.duration, tc.chunk, err)
		}
		second, _ := chunking.Plan(tc.duration, tc.chunk)
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("Plan(%s, %s) not deterministic", tc.duration, tc.chunk)
		}
		if first[0].Start != 0 {
			t.Fatalf("first chunk starts at %s", first[0].Start)
		}
		if last := first[len(first)-1]; last.End != tc.duration {
			t.Fatalf("last chunk ends at %s, want %s", last.End, tc.duration)
		}
		for i, spec := range first {
			if spec.Index != i {
				t.Fatalf("chunk %d has index %d", i, spec.Index)
			}
			if spec.Duration() <= 0 || spec.Duration() > tc.chunk {
				t.Fatalf("chunk %d has invalid width %s", i, spec.Duration())
			}
			if i > 0 && first[i-1].End != spec.Start {
				t.Fatalf("gap or overlap between chunk %d and %d", i-1, i)
			}
		}
	}
}

func TestPlanRejectsNonPositiveInputs(t *testing.T) {
	for _, tc := range []struct{ duration, chunk time.Duration }{
		{0, time.Second},
		{-time.Second, time.Second},
		{time.Second, 0},
		{time.Second, -time.Second},
	} {
		_, err := chunking.Plan(tc.duration, tc.chunk)
		if !errors.Is(err, services.ErrInvalidConfiguration) {
			t.Fatalf("Plan(%s, %s) error = %v, want invalid configuration", tc.duration, tc.chunk, err)
		}
	}
}

func TestPlanBySize(t *testing.T) {
	// 100 kB/s with a 20.5 MB budget allows 205s chunks.
	specs, err := chunking.PlanBySize(1000*time.Second, 100_000_000, 20_500_000, time.Hour)
	if err != nil {
		t.Fatalf("PlanBySize: %v", err)
	}
	if got := specs[0].Duration(); got != 205*time.Second {
		t.Fatalf("chunk width = %s, want 205s", got)
	}
	if len(specs) != 5 {
		t.Fatalf("len(specs) = %d, want 5", len(specs))
	}

	small, err := chunking.PlanBySize(90*time.Second, 1024, 20*1024*1024, 60*time.Second)
	if err != nil {
		t.Fatalf("PlanBySize small: %v", err)
	}
	if len(small) != 2 || small[0].Duration() != 60*time.Second {
		t.Fatalf("expected ceiling to cap chunk width, got %v", small)
	}
}
