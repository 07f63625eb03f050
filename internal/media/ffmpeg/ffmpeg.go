// Package ffmpeg implements chunk extraction on top of the ffmpeg and ffprobe
// command line tools.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/aminsmd/multimodal-transcription/internal/chunking"
	"github.com/aminsmd/multimodal-transcription/internal/media/ffprobe"
)

// DefaultBinary is used when no ffmpeg path is configured.
const DefaultBinary = "ffmpeg"

// Decoder satisfies chunking.Decoder by shelling out to ffmpeg/ffprobe.
type Decoder struct {
	ffmpeg   string
	ffprobe  string
	reencode bool
}

// New constructs a Decoder. Empty binaries fall back to PATH lookups.
// With reencode set, segments are transcoded for frame-accurate cuts;
// otherwise streams are copied, which snaps starts to keyframes.
func New(ffmpegBinary, ffprobeBinary string, reencode bool) *Decoder {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = DefaultBinary
	}
	if strings.TrimSpace(ffprobeBinary) == "" {
		ffprobeBinary = ffprobe.DefaultBinary
	}
	return &Decoder{ffmpeg: ffmpegBinary, ffprobe: ffprobeBinary, reencode: reencode}
}

// Duration probes the decoded duration of path.
func (d *Decoder) Duration(ctx context.Context, path string) (time.Duration, error) {
	result, err := ffprobe.Inspect(ctx, d.ffprobe, path)
	if err != nil {
		return 0, err
	}
	if result.VideoStreamCount() == 0 && result.AudioStreamCount() == 0 {
		return 0, fmt.Errorf("ffprobe: %s has no audio or video streams", path)
	}
	return result.Duration()
}

// Extract writes [start, end) of src into dest.
func (d *Decoder) Extract(ctx context.Context, src string, start, end time.Duration, dest string) error {
	if end <= start {
		return fmt.Errorf("ffmpeg extract: empty range [%s, %s)", start, end)
	}
	args := d.buildArgs(src, start, end, dest)
	cmd := exec.CommandContext(ctx, d.ffmpeg, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg extract: %w: %s", err, lastLines(string(output), 5))
	}
	info, err := os.Stat(dest)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("ffmpeg extract: no output for [%s, %s): %w", start, end, chunking.ErrOffsetBeyondDuration)
		}
		return fmt.Errorf("ffmpeg extract: stat output: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("ffmpeg extract: empty output for [%s, %s): %w", start, end, chunking.ErrOffsetBeyondDuration)
	}
	return nil
}

func (d *Decoder) buildArgs(src string, start, end time.Duration, dest string) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-nostdin", "-y",
		"-ss", formatSeconds(start),
		"-i", src,
		"-t", formatSeconds(end - start),
		"-map", "0:v:0?", "-map", "0:a:0?",
	}
	if d.reencode {
		args = append(args, "-c:v", "libx264", "-preset", "veryfast", "-crf", "28", "-c:a", "aac", "-b:a", "128k")
	} else {
		args = append(args, "-c", "copy", "-avoid_negative_ts", "make_zero")
	}
	return append(args, dest)
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func lastLines(output string, n int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
