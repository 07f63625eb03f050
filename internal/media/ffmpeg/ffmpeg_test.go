package ffmpeg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aminsmd/multimodal-transcription/internal/chunking"
	"github.com/aminsmd/multimodal-transcription/internal/testsupport"
)

func TestBuildArgsStreamCopy(t *testing.T) {
	d := New("", "", false)
	args := strings.Join(d.buildArgs("in.mp4", 300*time.Second, 600*time.Second, "out.mp4"), " ")
	for _, want := range []string{"-ss 300.000", "-i in.mp4", "-t 300.000", "-c copy", "out.mp4"} {
		if !strings.Contains(args, want) {
			t.Fatalf("args %q missing %q", args, want)
		}
	}
}

func TestBuildArgsReencode(t *testing.T) {
	d := New("", "", true)
	args := strings.Join(d.buildArgs("in.mp4", 0, 40500*time.Millisecond, "out.mp4"), " ")
	if !strings.Contains(args, "-c:v libx264") || strings.Contains(args, "-c copy") {
		t.Fatalf("unexpected reencode args %q", args)
	}
	if !strings.Contains(args, "-t 40.500") {
		t.Fatalf("unexpected duration arg in %q", args)
	}
}

func TestExtractReportsMissingOutputAsOffsetError(t *testing.T) {
	dir := t.TempDir()
	bin := testsupport.WriteScript(t, dir, "ffmpeg", "exit 0")
	d := New(bin, "", false)
	err := d.Extract(context.Background(), "in.mp4", 0, time.Second, filepath.Join(dir, "out.mp4"))
	if !errors.Is(err, chunking.ErrOffsetBeyondDuration) {
		t.Fatalf("expected offset error, got %v", err)
	}
}

func TestExtractWritesOutput(t *testing.T) {
	dir := t.TempDir()
	// The last argument is the destination path.
	bin := testsupport.WriteScript(t, dir, "ffmpeg", `for last; do :; done; printf data > "$last"`)
	d := New(bin, "", false)
	dest := filepath.Join(dir, "out.mp4")
	if err := d.Extract(context.Background(), "in.mp4", 0, time.Second, dest); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if data, _ := os.ReadFile(dest); string(data) != "data" {
		t.Fatalf("unexpected output %q", data)
	}
}

func TestExtractSurfacesToolFailure(t *testing.T) {
	dir := t.TempDir()
	bin := testsupport.WriteScript(t, dir, "ffmpeg", `echo "Invalid data found when processing input" >&2; exit 1`)
	d := New(bin, "", false)
	err := d.Extract(context.Background(), "in.mp4", 0, time.Second, filepath.Join(dir, "out.mp4"))
	if err == nil || !strings.Contains(err.Error(), "Invalid data") {
		t.Fatalf("expected tool stderr in error, got %v", err)
	}
	if errors.Is(err, chunking.ErrOffsetBeyondDuration) {
		t.Fatal("tool failure must not look like an offset error")
	}
}

func TestDurationRequiresStreams(t *testing.T) {
	dir := t.TempDir()
	probe := testsupport.WriteScript(t, dir, "ffprobe", `echo '{"streams":[],"format":{"duration":"10"}}'`)
	d := New("", probe, false)
	if _, err := d.Duration(context.Background(), "x.mp4"); err == nil {
		t.Fatal("expected error for stream-less media")
	}
	probe = testsupport.WriteScript(t, dir, "ffprobe2", `echo '{"streams":[{"codec_type":"audio"}],"format":{"duration":"10.25"}}'`)
	d = New("", probe, false)
	got, err := d.Duration(context.Background(), "x.mp4")
	if err != nil || got != 10250*time.Millisecond {
		t.Fatalf("Duration = %s, %v", got, err)
	}
}
