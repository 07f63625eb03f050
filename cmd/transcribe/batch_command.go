package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aminsmd/multimodal-transcription/internal/batch"
	"github.com/aminsmd/multimodal-transcription/internal/config"
	"github.com/aminsmd/multimodal-transcription/internal/pipeline"
	"github.com/aminsmd/multimodal-transcription/internal/preflight"
	"github.com/aminsmd/multimodal-transcription/internal/services"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var force bool
	var concurrency int
	var reportPath string
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "batch <manifest.xlsx|manifest.csv>",
		Short: "Transcribe every video listed in a manifest",
		Long: "The manifest's first row is a header with a path column and an optional\n" +
			"video_id column. Relative paths resolve against the manifest's directory.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			items, err := batch.LoadManifest(args[0])
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

			if concurrency <= 0 {
				concurrency = cfg.Batch.MaxConcurrentVideos
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Processing %d videos (%d at a time)\n", len(items), concurrency)
			summary := batch.Run(cmd.Context(), runner, items, batch.Options{
				MaxConcurrent: concurrency,
				Force:         force,
				Logger:        logger,
				OnSettled: func(res batch.Result) {
					status := "done"
					if res.Err != nil {
						status = "failed: " + services.Kind(res.Err)
					}
					fmt.Fprintf(out, "  row %d %s %s\n", res.Item.Row, res.VideoID, status)
				},
			})
			printBatchSummary(out, summary)

			if reportPath != "" {
				target, err := config.ExpandPath(reportPath)
				if err != nil {
					return err
				}
				if err := batch.WriteReport(target, summary); err != nil {
					return err
				}
				fmt.Fprintf(out, "Report written to %s\n", target)
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d videos failed", summary.Failed, len(items))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Recompute even when cached transcripts exist")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", 0, "Videos processed at once (defaults to batch.max_concurrent_videos)")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write an .xlsx summary to this path")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip ffmpeg and directory checks")
	return cmd
}

func printBatchSummary(w io.Writer, summary batch.Summary) {
	rows := make([][]string, 0, len(summary.Results))
	for _, res := range summary.Results {
		status := "ok"
		detail := res.OutputDir
		if res.Err != nil {
			status = services.Kind(res.Err)
			detail = res.Err.Error()
		}
		rows = append(rows, []string{
			strconv.Itoa(res.Item.Row),
			res.VideoID,
			status,
			yesNo(res.CacheHit),
			strconv.Itoa(res.Entries),
			strconv.Itoa(res.Gaps),
			fmt.Sprintf("%.1fs", res.Elapsed.Seconds()),
			detail,
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Row", "Video", "Status", "Cached", "Entries", "Gaps", "Elapsed", "Output / Error"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	))
	fmt.Fprintf(w, "Succeeded: %d  Failed: %d  Cache hits: %d  Elapsed: %.1fs\n",
		summary.Succeeded, summary.Failed, summary.CacheHits, summary.Elapsed.Seconds())
}
