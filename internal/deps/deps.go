// Package deps resolves the external media tools the transcriber shells out to
// and reports their availability and versions for preflight and status output.
package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const versionTimeout = 10 * time.Second

// Requirement names one external binary.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is a Requirement after resolution against PATH.
type Status struct {
	Requirement
	Available bool
	Path      string
	Version   string
	Detail    string
}

// MediaRequirements lists the decode tools chunk extraction shells out to.
func MediaRequirements(ffmpegBinary, ffprobeBinary string) []Requirement {
	return []Requirement{
		{Name: "FFmpeg", Command: orDefault(ffmpegBinary, "ffmpeg"), Description: "Required for chunk extraction"},
		{Name: "FFprobe", Command: orDefault(ffprobeBinary, "ffprobe"), Description: "Required for duration probing"},
	}
}

// CheckBinaries resolves every requirement. Results keep the input order.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, len(requirements))
	for i, req := range requirements {
		results[i] = resolve(req)
	}
	return results
}

// CheckMediaTools resolves the decode tools and records their reported versions.
// A binary that exists but cannot report a version counts as unavailable.
func CheckMediaTools(ctx context.Context, ffmpegBinary, ffprobeBinary string) []Status {
	statuses := CheckBinaries(MediaRequirements(ffmpegBinary, ffprobeBinary))
	for i := range statuses {
		s := &statuses[i]
		if !s.Available {
			continue
		}
		version, err := Version(ctx, s.Path)
		if err != nil {
			s.Available = false
			s.Detail = err.Error()
			continue
		}
		s.Version = version
	}
	return statuses
}

// Missing returns the required dependencies that are unavailable.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			out = append(out, s)
		}
	}
	return out
}

// Version runs "<binary> -version" and returns the token after "version" on
// the first line, e.g. "6.1.1" for "ffmpeg version 6.1.1 Copyright ...".
func Version(ctx context.Context, binary string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	output, err := exec.CommandContext(runCtx, binary, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("%s -version: %w", binary, err)
	}
	first, _, _ := strings.Cut(strings.TrimSpace(string(output)), "\n")
	if first == "" {
		return "", fmt.Errorf("%s -version: empty output", binary)
	}
	fields := strings.Fields(first)
	for i := 0; i+1 < len(fields); i++ {
		if fields[i] == "version" {
			return fields[i+1], nil
		}
	}
	return first, nil
}

func resolve(req Requirement) Status {
	req.Command = strings.TrimSpace(req.Command)
	req.Description = strings.TrimSpace(req.Description)
	status := Status{Requirement: req}
	if req.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(req.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", req.Command)
		return status
	}
	status.Available = true
	status.Path = path
	return status
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
