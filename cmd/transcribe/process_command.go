package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aminsmd/multimodal-transcription/internal/fileutil"
	"github.com/aminsmd/multimodal-transcription/internal/pipeline"
	"github.com/aminsmd/multimodal-transcription/internal/preflight"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var videoID string
	var force bool
	var skipPreflight bool
	var jsonOutput bool
	var exportDir string

	cmd := &cobra.Command{
		Use:   "process <video>",
		Short: "Transcribe one video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if !skipPreflight {
				if err := preflight.Err(preflight.RunAll(cmd.Context(), cfg)); err != nil {
					return err
				}
			}

			runner, closeFn, err := pipeline.Open(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer closeFn()

			out, err := runner.Run(cmd.Context(), pipeline.Input{VideoID: videoID, Path: args[0], Force: force})
			if err != nil {
				return err
			}
			if exportDir != "" {
				if _, err := exportOutputs(exportDir, out.Files); err != nil {
					return err
				}
			}
			if jsonOutput {
				return writeJSON(cmd, out.Metadata)
			}
			printOutcome(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&videoID, "video-id", "", "Identifier for the video (defaults to the file name)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Recompute even when a cached transcript exists")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip ffmpeg and directory checks")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print run metadata as JSON")
	cmd.Flags().StringVar(&exportDir, "export", "", "Also copy the output files into this directory")
	return cmd
}

func printOutcome(w io.Writer, out *pipeline.Outcome) {
	t := out.Transcript
	fmt.Fprintf(w, "Video:       %s\n", out.VideoID)
	fmt.Fprintf(w, "Run:         %s\n", out.RunID)
	fmt.Fprintf(w, "Fingerprint: %s\n", out.Fingerprint.Key())
	fmt.Fprintf(w, "Cache hit:   %s\n", yesNo(out.CacheHit))
	fmt.Fprintf(w, "Entries:     %d across %d chunks\n", len(t.Entries), t.ChunkCount)
	if len(t.Speakers) > 0 {
		fmt.Fprintf(w, "Speakers:    %s\n", strings.Join(t.Speakers, ", "))
	}
	if len(t.Gaps) > 0 {
		fmt.Fprintf(w, "Known gaps:  %d (rerun with --force once resolved)\n", len(t.Gaps))
	}
	if out.Validation != nil && !out.Validation.Passed {
		fmt.Fprintln(w, "Validation:  issues found (see validation.json)")
	}
	fmt.Fprintf(w, "Output:      %s\n", out.OutputDir)

	names := make([]string, 0, len(out.Files))
	for name := range out.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-10s %s\n", name, out.Files[name])
	}
}

// exportOutputs copies every produced file into dir, verifying each copy.
func exportOutputs(dir string, files map[string]string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	copied := make([]string, 0, len(names))
	for _, name := range names {
		dst := filepath.Join(dir, filepath.Base(files[name]))
		if err := fileutil.CopyFileVerified(files[name], dst); err != nil {
			return copied, fmt.Errorf("export %s: %w", name, err)
		}
		copied = append(copied, dst)
	}
	return copied, nil
}
