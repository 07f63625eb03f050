package chunking_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aminsmd/multimodal-transcription/internal/chunking"
	"github.com/aminsmd/multimodal-transcription/internal/logging"
	"github.com/aminsmd/multimodal-transcription/internal/services"
)

type fakeDecoder struct {
	durations  map[string]time.Duration
	extractErr error
	shortfall  time.Duration
}

func (f *fakeDecoder) Duration(_ context.Context, path string) (time.Duration, error) {
	d, ok := f.durations[path]
	if !ok {
		return 0, errors.New("no such media")
	}
	return d, nil
}

func (f *fakeDecoder) Extract(_ context.Context, src string, start, end time.Duration, dest string) error {
	if f.extractErr != nil {
		return f.extractErr
	}
	if err := os.WriteFile(dest, []byte(src+dest), 0o644); err != nil {
		return err
	}
	f.durations[dest] = end - start - f.shortfall
	return nil
}

func newSource(t *testing.T, dec *fakeDecoder, duration time.Duration) chunking.Source {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lecture.mp4")
	if err := os.WriteFile(path, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	dec.durations[path] = duration
	return chunking.Source{ID: "lecture", Path: path, Duration: duration}
}

func TestExtractProducesHashedArtifact(t *testing.T) {
	dec := &fakeDecoder{durations: map[string]time.Duration{}}
	src := newSource(t, dec, 640*time.Second)
	ex := chunking.NewExtractor(dec, filepath.Join(t.TempDir(), "work"), time.Second, logging.NewNop())

	spec := chunking.Spec{Index: 2, Start: 600 * time.Second, End: 640 * time.Second}
	artifact, err := ex.Extract(context.Background(), src, spec)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if filepath.Base(artifact.Path) != "chunk_002.mp4" {
		t.Fatalf("unexpected artifact path %s", artifact.Path)
	}
	if artifact.ContentHash == "" || artifact.Size == 0 {
		t.Fatalf("expected hash and size, got %+v", artifact)
	}
	if artifact.MimeType != "video/mp4" {
		t.Fatalf("unexpected mime type %s", artifact.MimeType)
	}
	if err := artifact.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(artifact.Path); !os.IsNotExist(err) {
		t.Fatalf("expected artifact removed, stat err=%v", err)
	}
	if err := artifact.Remove(); err != nil {
		t.Fatalf("second Remove should be a no-op: %v", err)
	}
}

func TestExtractRejectsOffsetBeyondDuration(t *testing.T) {
	dec := &fakeDecoder{durations: map[string]time.Duration{}}
	src := newSource(t, dec, 100*time.Second)
	ex := chunking.NewExtractor(dec, t.TempDir(), time.Second, nil)

	_, err := ex.Extract(context.Background(), src, chunking.Spec{Index: 1, Start: 100 * time.Second, End: 200 * time.Second})
	if !errors.Is(err, services.ErrExtraction) || !errors.Is(err, chunking.ErrOffsetBeyondDuration) {
		t.Fatalf("expected extraction error with offset cause, got %v", err)
	}
}

func TestExtractFailsLoudlyOnTruncatedArtifact(t *testing.T) {
	dec := &fakeDecoder{durations: map[string]time.Duration{}, shortfall: 20 * time.Second}
	src := newSource(t, dec, 640*time.Second)
	dir := t.TempDir()
	ex := chunking.NewExtractor(dec, dir, time.Second, nil)

	_, err := ex.Extract(context.Background(), src, chunking.Spec{Index: 2, Start: 600 * time.Second, End: 640 * time.Second})
	if !errors.Is(err, services.ErrExtraction) || !errors.Is(err, chunking.ErrOffsetBeyondDuration) {
		t.Fatalf("expected truncated artifact to fail, got %v", err)
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Fatalf("expected truncated artifact to be removed, found %d files", len(entries))
	}
}

func TestExtractToleratesSmallShortfall(t *testing.T) {
	dec := &fakeDecoder{durations: map[string]time.Duration{}, shortfall: 500 * time.Millisecond}
	src := newSource(t, dec, 640*time.Second)
	ex := chunking.NewExtractor(dec, t.TempDir(), time.Second, nil)
	if _, err := ex.Extract(context.Background(), src, chunking.Spec{Index: 0, Start: 0, End: 300 * time.Second}); err != nil {
		t.Fatalf("expected shortfall within tolerance to pass, got %v", err)
	}
}

func TestExtractWrapsDecoderFailures(t *testing.T) {
	dec := &fakeDecoder{durations: map[string]time.Duration{}, extractErr: errors.New("moov atom not found")}
	src := newSource(t, dec, 640*time.Second)
	ex := chunking.NewExtractor(dec, t.TempDir(), time.Second, nil)

	_, err := ex.Extract(context.Background(), src, chunking.Spec{Index: 0, Start: 0, End: 300 * time.Second})
	if !errors.Is(err, services.ErrExtraction) {
		t.Fatalf("expected extraction error, got %v", err)
	}
	if errors.Is(err, chunking.ErrOffsetBeyondDuration) {
		t.Fatalf("decode failure must be distinct from offset errors: %v", err)
	}
	if services.Kind(err) != "extraction_error" {
		t.Fatalf("unexpected kind %s", services.Kind(err))
	}
}

func TestProbe(t *testing.T) {
	dec := &fakeDecoder{durations: map[string]time.Duration{}}
	src := newSource(t, dec, 42*time.Second)
	ex := chunking.NewExtractor(dec, t.TempDir(), time.Second, nil)
	d, err := ex.Probe(context.Background(), src.Path)
	if err != nil || d != 42*time.Second {
		t.Fatalf("Probe = %s, %v", d, err)
	}
	if _, err := ex.Probe(context.Background(), "/missing.mp4"); !errors.Is(err, services.ErrExtraction) {
		t.Fatalf("expected extraction error for missing media, got %v", err)
	}
}
