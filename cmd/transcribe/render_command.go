package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aminsmd/multimodal-transcription/internal/fileutil"
	"github.com/aminsmd/multimodal-transcription/internal/format"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var representation string
	var outputPath string
	var groupSpeakers bool

	cmd := &cobra.Command{
		Use:   "render <full.json>",
		Short: "Re-render a full transcript as clean JSON or plain text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rep, err := format.ParseRepresentation(representation)
			if err != nil {
				return err
			}
			t, err := loadFullTranscript(args[0])
			if err != nil {
				return err
			}
			group := groupSpeakers || cfg.Output.GroupSpeakers
			data, err := format.Render(t, rep, format.Options{GeneratedAt: time.Now(), GroupSpeakers: group})
			if err != nil {
				return err
			}

			target := strings.TrimSpace(outputPath)
			if target == "" || target == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := fileutil.WriteFileAtomic(target, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", target, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", target)
			return nil
		},
	}
	cmd.Flags().StringVar(&representation, "format", string(format.Text), "Representation: full, clean, or text")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write to this file instead of stdout")
	cmd.Flags().BoolVar(&groupSpeakers, "group-speakers", false, "Group consecutive utterances by speaker (text only)")
	return cmd
}

