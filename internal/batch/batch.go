package batch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aminsmd/multimodal-transcription/internal/logging"
	"github.com/aminsmd/multimodal-transcription/internal/pipeline"
	"github.com/aminsmd/multimodal-transcription/internal/services"
)

// Runner is the single-video capability batch drives.
type Runner interface {
	Run(ctx context.Context, in pipeline.Input) (*pipeline.Outcome, error)
}

// Result is the settled state of one manifest item.
type Result struct {
	Item      Item
	VideoID   string
	OutputDir string
	CacheHit  bool
	Entries   int
	Gaps      int
	Err       error
	Elapsed   time.Duration
}

// Succeeded reports whether the item produced a transcript.
func (r Result) Succeeded() bool { return r.Err == nil }

// Summary aggregates a batch.
type Summary struct {
	Results   []Result
	Succeeded int
	Failed    int
	CacheHits int
	Elapsed   time.Duration
}

// Options tune a batch run.
type Options struct {
	MaxConcurrent int
	Force         bool
	Logger        *slog.Logger
	// OnSettled, when set, is called after each item finishes.
	OnSettled func(Result)
}

// Run processes items with at most opts.MaxConcurrent videos in flight.
// Results keep manifest order. Cancelling ctx stops new videos from starting.
func Run(ctx context.Context, runner Runner, items []Item, opts Options) Summary {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "batch")
	limit := opts.MaxConcurrent
	if limit < 1 {
		limit = 1
	}

	started := time.Now()
	results := make([]Result, len(items))
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(limit)
	for i, item := range items {
		if groupCtx.Err() != nil {
			results[i] = Result{Item: item, VideoID: item.VideoID, Err: context.Cause(groupCtx)}
			continue
		}
		group.Go(func() error {
			res := runOne(groupCtx, runner, item, opts.Force)
			results[i] = res
			if res.Err != nil {
				logging.WarnWithContext(logger, "video failed", "batch_item_failed",
					logging.Int("row", item.Row),
					logging.String(logging.FieldVideoID, res.VideoID),
					logging.String("error_kind", services.Kind(res.Err)),
					logging.Error(res.Err),
					logging.String(logging.FieldErrorHint, "rerun the manifest; completed videos are served from cache"),
					logging.String(logging.FieldImpact, "no transcript for this video"),
				)
			} else {
				logger.Info("video complete",
					logging.String(logging.FieldEventType, "batch_item_completed"),
					logging.Int("row", item.Row),
					logging.String(logging.FieldVideoID, res.VideoID),
					logging.Bool("cache_hit", res.CacheHit),
				)
			}
			if opts.OnSettled != nil {
				mu.Lock()
				opts.OnSettled(res)
				mu.Unlock()
			}
			// Item failures are recorded, never propagated, so siblings keep running.
			return nil
		})
	}
	_ = group.Wait()

	summary := Summary{Results: results, Elapsed: time.Since(started)}
	for _, res := range results {
		switch {
		case res.Err != nil:
			summary.Failed++
		default:
			summary.Succeeded++
			if res.CacheHit {
				summary.CacheHits++
			}
		}
	}
	logger.Info("batch complete",
		logging.String(logging.FieldEventType, "batch_completed"),
		logging.Int("videos", len(items)),
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed),
		logging.Int("cache_hits", summary.CacheHits),
		logging.Duration("elapsed", summary.Elapsed),
	)
	return summary
}

func runOne(ctx context.Context, runner Runner, item Item, force bool) Result {
	began := time.Now()
	res := Result{Item: item, VideoID: item.VideoID}
	out, err := runner.Run(ctx, pipeline.Input{VideoID: item.VideoID, Path: item.Path, Force: force})
	res.Elapsed = time.Since(began)
	if err != nil {
		res.Err = err
		if res.VideoID == "" {
			res.VideoID = pipeline.DefaultVideoID(item.Path)
		}
		return res
	}
	res.VideoID = out.VideoID
	res.OutputDir = out.OutputDir
	res.CacheHit = out.CacheHit
	if out.Transcript != nil {
		res.Entries = len(out.Transcript.Entries)
		res.Gaps = len(out.Transcript.Gaps)
	}
	return res
}
