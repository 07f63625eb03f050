package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aminsmd/multimodal-transcription/internal/chunking"
	"github.com/aminsmd/multimodal-transcription/internal/dispatch"
	"github.com/aminsmd/multimodal-transcription/internal/logging"
	"github.com/aminsmd/multimodal-transcription/internal/services"
	"github.com/aminsmd/multimodal-transcription/internal/services/gemini"
	"github.com/aminsmd/multimodal-transcription/internal/transcript"
)

// compute extracts, analyses and combines every chunk. Chunk artifacts live
// in a per-run work directory that is removed on every exit path, and remote
// handles are released even when ctx is cancelled.
func (r *Runner) compute(ctx context.Context, logger *slog.Logger, runID string, src chunking.Source, specs []chunking.Spec) (*transcript.Transcript, error) {
	workDir := filepath.Join(r.cfg.Paths.WorkDir, runID)
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logging.WarnWithContext(logger, "failed to remove run work directory", "work_cleanup_failed",
				logging.String("path", workDir),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove it manually; stale directories are also pruned on the next run"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
		}
	}()

	handles := gemini.NewHandles()
	if r.cfg.Analysis.CleanupUploadedFiles {
		defer func() {
			deleted, failed := r.analyzer.Release(context.WithoutCancel(ctx), handles)
			if deleted > 0 || failed > 0 {
				logger.Info("remote files released",
					logging.String(logging.FieldEventType, "remote_cleanup"),
					logging.Int("deleted", deleted),
					logging.Int("failed", failed),
				)
			}
		}()
	}

	tolerance := time.Duration(r.cfg.Chunking.DurationToleranceSeconds * float64(time.Second))
	extractor := chunking.NewExtractor(r.decoder, workDir, tolerance, r.logger)
	req := gemini.Request{
		VideoDuration:  src.Duration,
		KnownSpeakers:  r.cfg.Analysis.KnownSpeakers,
		Handles:        handles,
		RawResponseDir: r.rawResponseDir(runID),
	}

	analyze := func(ctx context.Context, index int, spec chunking.Spec) ([]transcript.Entry, error) {
		ctx = services.WithChunkIndex(ctx, spec.Index)
		art, err := extractor.Extract(ctx, src, spec)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := art.Remove(); err != nil {
				logger.Debug("artifact removal failed", logging.Int(logging.FieldChunkIndex, spec.Index), logging.Error(err))
			}
		}()
		return r.analyzer.Analyze(ctx, art, req)
	}
	progress := dispatch.WithProgress(func(done, total, index int, err error) {
		attrs := []logging.Attr{
			logging.Int(logging.FieldChunkIndex, index),
			logging.Int("done", done),
			logging.Int("total", total),
		}
		if err != nil {
			attrs = append(attrs, logging.String("error_kind", services.Kind(err)))
		}
		logger.Info("chunk settled", logging.Args(attrs...)...)
	})

	settled := dispatch.Run(ctx, specs, r.cfg.Dispatch.MaxWorkers, analyze, progress)
	if ctx.Err() != nil {
		return nil, context.Cause(ctx)
	}

	results := make([]transcript.ChunkResult, len(settled))
	for i, res := range settled {
		results[i] = transcript.ChunkResult{Spec: specs[i], Entries: res.Value, Err: res.Err}
	}
	if err := runLevelError(results); err != nil {
		return nil, err
	}
	for i, res := range settled {
		if res.Err != nil {
			logging.WarnWithContext(logger, "chunk produced no content; recording gap", "chunk_gap",
				logging.Int(logging.FieldChunkIndex, specs[i].Index),
				logging.Duration("start", specs[i].Start),
				logging.Duration("end", specs[i].End),
				logging.String("error_kind", services.Kind(res.Err)),
				logging.Error(res.Err),
				logging.String(logging.FieldErrorHint, "rerun with --force once the cause is resolved"),
				logging.String(logging.FieldImpact, "transcript has a known gap for this span"),
			)
		}
	}
	if err := allFailed(results); err != nil {
		return nil, err
	}

	return transcript.Combine(results, r.combineOptions(src)), nil
}

func (r *Runner) combineOptions(src chunking.Source) transcript.Options {
	return transcript.Options{
		VideoID:     src.ID,
		ContentHash: src.ContentHash,
		Duration:    src.Duration,
		Speakers: transcript.SpeakerPolicy{
			MatchThreshold: r.cfg.Speakers.MatchThreshold,
			BoundaryScore:  r.cfg.Speakers.BoundaryScore,
			BoundaryWindow: seconds(r.cfg.Speakers.BoundaryWindowSeconds),
			KnownSpeakers:  r.cfg.Analysis.KnownSpeakers,
		},
		Dedupe: transcript.DedupePolicy{
			TextSimilarity: r.cfg.Dedupe.TextSimilarity,
			Tolerance:      seconds(r.cfg.Dedupe.BoundaryToleranceSeconds),
		},
	}
}

// rawResponseDir keeps model output for inspection when debug logging is on.
func (r *Runner) rawResponseDir(runID string) string {
	if !strings.EqualFold(r.cfg.Logging.Level, "debug") || r.cfg.Paths.LogDir == "" {
		return ""
	}
	return filepath.Join(r.cfg.Paths.LogDir, "responses", runID)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
