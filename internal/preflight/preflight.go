package preflight

import (
	"context"
	"fmt"
	"strings"

	"github.com/aminsmd/multimodal-transcription/internal/config"
	"github.com/aminsmd/multimodal-transcription/internal/deps"
	"github.com/aminsmd/multimodal-transcription/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the local checks a run needs: media tools and directory
// access. Network checks are left to the status command.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	for _, status := range deps.CheckMediaTools(ctx, cfg.Chunking.FFmpegBinary, cfg.Chunking.FFprobeBinary) {
		results = append(results, fromStatus(status))
	}
	results = append(results, CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir))
	results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
	return results
}

// Failures returns the results that did not pass.
func Failures(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// Err folds failed results into a single external-tool error, or nil.
func Err(results []Result) error {
	failed := Failures(results)
	if len(failed) == 0 {
		return nil
	}
	parts := make([]string, 0, len(failed))
	for _, r := range failed {
		parts = append(parts, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	return services.Wrap(services.ErrExternalTool, "preflight", "checks", strings.Join(parts, "; "), nil)
}

func fromStatus(status deps.Status) Result {
	if !status.Available {
		return Result{Name: status.Name, Passed: status.Optional, Detail: status.Detail}
	}
	detail := status.Path
	if status.Version != "" {
		detail = fmt.Sprintf("%s (%s)", status.Path, status.Version)
	}
	return Result{Name: status.Name, Passed: true, Detail: detail}
}
