package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aminsmd/multimodal-transcription/internal/transcript"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage cached transcripts",
	}

	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheShowCommand(ctx))
	cacheCmd.AddCommand(newCacheInvalidateCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached transcripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeFn, err := ctx.openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			summaries, err := c.List(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, summaries)
			}
			out := cmd.OutOrStdout()
			if len(summaries) == 0 {
				fmt.Fprintln(out, "Cache is empty")
				return nil
			}
			const stampLayout = "2006-01-02 15:04"
			rows := make([][]string, 0, len(summaries))
			for _, s := range summaries {
				if s.Corrupt {
					rows = append(rows, []string{s.Key, "(corrupt)", "", "", "", "", "", s.ProducedAt.Local().Format(stampLayout)})
					continue
				}
				rows = append(rows, []string{
					s.Key,
					s.VideoID,
					shortHash(s.Fingerprint.VideoHash),
					s.Fingerprint.ChunkDuration.String(),
					s.Fingerprint.Model + "/" + s.Fingerprint.PromptVersion,
					strconv.Itoa(s.Entries),
					strconv.Itoa(s.Gaps),
					s.ProducedAt.Local().Format(stampLayout),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Key", "Video", "Hash", "Chunk", "Model/Prompt", "Entries", "Gaps", "Produced"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newCacheShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "show <key>",
		Short: "Show one cached transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeFn, err := ctx.openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			rec, err := c.Get(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, rec)
			}
			t := rec.Transcript
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Key:            %s\n", rec.Key)
			fmt.Fprintf(out, "Video:          %s\n", t.VideoID)
			fmt.Fprintf(out, "Content hash:   %s\n", rec.Fingerprint.VideoHash)
			fmt.Fprintf(out, "Chunk duration: %s\n", rec.Fingerprint.ChunkDuration)
			fmt.Fprintf(out, "Model:          %s (prompt %s)\n", rec.Fingerprint.Model, rec.Fingerprint.PromptVersion)
			fmt.Fprintf(out, "Produced:       %s\n", rec.ProducedAt.Local().Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "Duration:       %s\n", transcript.FormatTimecode(t.Duration))
			fmt.Fprintf(out, "Entries:        %d across %d chunks\n", len(t.Entries), t.ChunkCount)
			if len(t.Speakers) > 0 {
				fmt.Fprintf(out, "Speakers:       %s\n", strings.Join(t.Speakers, ", "))
			}
			for _, g := range t.Gaps {
				fmt.Fprintf(out, "Gap:            chunk %d [%s - %s] %s\n", g.ChunkIndex,
					transcript.FormatTimecode(g.Start), transcript.FormatTimecode(g.End), g.Reason)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the full record as JSON")
	return cmd
}

func newCacheInvalidateCommand(ctx *commandContext) *cobra.Command {
	var videoHash string
	cmd := &cobra.Command{
		Use:   "invalidate [key]",
		Short: "Remove a cached transcript by key, or every transcript for a video hash",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			videoHash = strings.ToLower(strings.TrimSpace(videoHash))
			if len(args) == 0 && videoHash == "" {
				return errors.New("a cache key or --video-hash is required")
			}
			c, closeFn, err := ctx.openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			out := cmd.OutOrStdout()
			if videoHash != "" {
				removed, err := c.InvalidateVideo(cmd.Context(), videoHash)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Removed %d cached transcript(s) for %s\n", removed, shortHash(videoHash))
				return nil
			}
			key := strings.TrimSpace(args[0])
			if err := c.Invalidate(cmd.Context(), key); err != nil {
				return err
			}
			fmt.Fprintf(out, "Removed %s\n", key)
			return nil
		},
	}
	cmd.Flags().StringVar(&videoHash, "video-hash", "", "Remove every transcript computed for this content hash")
	return cmd
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached transcript",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to clear the cache without --yes")
			}
			c, closeFn, err := ctx.openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			removed, err := c.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached transcript(s)\n", removed)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm removal")
	return cmd
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
