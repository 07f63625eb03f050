package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aminsmd/multimodal-transcription/internal/preflight"
	"github.com/aminsmd/multimodal-transcription/internal/staging"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check tools, directories, cache backend, and API access",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			local := preflight.RunAll(cmd.Context(), cfg)
			local = append(local,
				preflight.CheckFreeSpace("Work disk space", cfg.Paths.WorkDir, preflight.MinFreeBytes),
				preflight.CheckFreeSpace("Output disk space", cfg.Paths.OutputDir, preflight.MinFreeBytes),
				workDirSummary(cfg.Paths.WorkDir),
			)

			remote := []preflight.Result{
				preflight.CheckCacheBackend(cmd.Context(), cfg),
				preflight.CheckWebhook(cfg),
			}
			if offline {
				remote = append(remote, preflight.Result{Name: "Analysis API", Passed: true, Detail: "Skipped (--offline)"})
			} else {
				remote = append(remote, preflight.CheckAnalysis(cmd.Context(), cfg.Analysis))
			}

			lines := renderSection("Environment", local, colorize)
			lines = append(lines, "")
			lines = append(lines, renderSection("Services", remote, colorize)...)
			fmt.Fprintln(out, strings.Join(lines, "\n"))

			failed := len(preflight.Failures(local)) + len(preflight.Failures(remote))
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the analysis API request")
	return cmd
}

// workDirSummary reports leftover run directories; a large count usually
// means runs were interrupted before cleanup.
func workDirSummary(workDir string) preflight.Result {
	dirs, err := staging.ListDirectories(workDir)
	if err != nil {
		return preflight.Result{Name: "Work directories", Passed: false, Detail: err.Error()}
	}
	if len(dirs) == 0 {
		return preflight.Result{Name: "Work directories", Passed: true, Detail: "None"}
	}
	var total int64
	for _, d := range dirs {
		total += d.Size
	}
	return preflight.Result{
		Name:   "Work directories",
		Passed: true,
		Detail: fmt.Sprintf("%d run dir(s), %.1f MB", len(dirs), float64(total)/(1<<20)),
	}
}
