package chunking

import (
	"fmt"
	"time"

	"github.com/aminsmd/multimodal-transcription/internal/services"
)

// Spec is one time slice of the source video, [Start, End).
type Spec struct {
	Index int           `json:"index"`
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
}

// Duration returns the slice length.
func (s Spec) Duration() time.Duration {
	return s.End - s.Start
}

func (s Spec) String() string {
	return fmt.Sprintf("#%d [%.3fs, %.3fs)", s.Index, s.Start.Seconds(), s.End.Seconds())
}

// Plan slices [0, duration) greedily into chunkDuration-wide specs. The final
// spec is clamped to duration and may be shorter.
func Plan(duration, chunkDuration time.Duration) ([]Spec, error) {
	if duration <= 0 {
		return nil, services.Wrap(services.ErrInvalidConfiguration, "plan", "validate", fmt.Sprintf("video duration must be positive (got %s)", duration), nil)
	}
	if chunkDuration <= 0 {
		return nil, services.Wrap(services.ErrInvalidConfiguration, "plan", "validate", fmt.Sprintf("chunk duration must be positive (got %s)", chunkDuration), nil)
	}
	count := int((duration + chunkDuration - 1) / chunkDuration)
	specs := make([]Spec, 0, count)
	for start := time.Duration(0); start < duration; start += chunkDuration {
		end := start + chunkDuration
		if end > duration {
			end = duration
		}
		specs = append(specs, Spec{Index: len(specs), Start: start, End: end})
	}
	return specs, nil
}

// ChunkDurationForSize estimates how long a chunk may be so that its payload
// stays under maxBytes, assuming a constant bitrate across the file. The
// result is rounded down to whole seconds and capped at ceiling.
func ChunkDurationForSize(duration time.Duration, fileSize, maxBytes int64, ceiling time.Duration) (time.Duration, error) {
	if duration <= 0 || fileSize <= 0 {
		return 0, services.Wrap(services.ErrInvalidConfiguration, "plan", "size", "duration and file size must be positive", nil)
	}
	if maxBytes <= 0 {
		return 0, services.Wrap(services.ErrInvalidConfiguration, "plan", "size", "chunk size must be positive", nil)
	}
	if fileSize <= maxBytes {
		if ceiling > 0 && duration > ceiling {
			return ceiling, nil
		}
		return duration, nil
	}
	bytesPerSecond := float64(fileSize) / duration.Seconds()
	seconds := int64(float64(maxBytes) / bytesPerSecond)
	if seconds < 1 {
		seconds = 1
	}
	chunk := time.Duration(seconds) * time.Second
	if ceiling > 0 && chunk > ceiling {
		chunk = ceiling
	}
	return chunk, nil
}

// PlanBySize derives a chunk duration from the payload budget and plans with it.
func PlanBySize(duration time.Duration, fileSize, maxBytes int64, ceiling time.Duration) ([]Spec, error) {
	chunk, err := ChunkDurationForSize(duration, fileSize, maxBytes, ceiling)
	if err != nil {
		return nil, err
	}
	return Plan(duration, chunk)
}
