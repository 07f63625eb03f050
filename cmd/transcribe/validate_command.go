package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aminsmd/multimodal-transcription/internal/format"
	"github.com/aminsmd/multimodal-transcription/internal/transcript"
	"github.com/aminsmd/multimodal-transcription/internal/validation"
)

func newValidateCommand(ctx *commandContext) *cobra.Command {
	var gapThreshold float64
	var jsonOutput bool
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate <full.json>",
		Short: "Check a full transcript for ordering, gaps, overlaps, and empty entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			t, err := loadFullTranscript(args[0])
			if err != nil {
				return err
			}
			if gapThreshold <= 0 {
				gapThreshold = cfg.Validation.GapThresholdSeconds
			}
			checker := validation.Checker{GapThreshold: time.Duration(gapThreshold * float64(time.Second))}
			report := checker.Check(t)

			if jsonOutput {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else if err := validation.WriteText(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if strict && !report.Passed {
				return fmt.Errorf("validation failed: %d error(s)", report.Severities[validation.SeverityError])
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&gapThreshold, "gap-threshold", 0, "Seconds of silence reported as a gap (defaults to validation.gap_threshold_seconds)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the report as JSON")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when error-level issues are found")
	return cmd
}

func loadFullTranscript(path string) (*transcript.Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	return format.ParseFull(data)
}
