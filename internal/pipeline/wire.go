package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/aminsmd/multimodal-transcription/internal/cache"
	"github.com/aminsmd/multimodal-transcription/internal/config"
	"github.com/aminsmd/multimodal-transcription/internal/media/ffmpeg"
	"github.com/aminsmd/multimodal-transcription/internal/notifications"
	"github.com/aminsmd/multimodal-transcription/internal/retry"
	"github.com/aminsmd/multimodal-transcription/internal/services/gemini"
	"github.com/aminsmd/multimodal-transcription/internal/store"
)

// Open builds a Runner backed by the configured cache store, the ffmpeg
// decoder, and the Gemini analyzer. The returned closer releases the store.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, clientOpts ...gemini.Option) (*Runner, func() error, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if err := cfg.RequireAnalysisKey(); err != nil {
		return nil, nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, nil, err
	}
	st, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	ttl := time.Duration(cfg.Analysis.UploadCacheTTLHours) * time.Hour
	client := gemini.NewClient(gemini.ConfigFromAnalysis(cfg.Analysis), clientOpts...)
	analyzer := gemini.NewAnalyzer(client, gemini.AnalyzerOptions{
		PromptVersion: cfg.Analysis.PromptVersion,
		InlineLimit:   cfg.InlineLimitBytes(),
		Retry:         retry.FromConfig(cfg.Retry),
		SpanTolerance: time.Duration(cfg.Chunking.DurationToleranceSeconds * float64(time.Second)),
		Uploads:       gemini.NewUploadCache(st, ttl, logger),
		Logger:        logger,
	})
	decoder := ffmpeg.New(cfg.Chunking.FFmpegBinary, cfg.Chunking.FFprobeBinary, cfg.Chunking.Reencode)
	contentCache := cache.New(st, cache.OptionsFromConfig(cfg, logger))

	runner := New(cfg, decoder, analyzer, contentCache,
		WithLogger(logger),
		WithNotifier(notifications.NewService(cfg)),
	)
	return runner, st.Close, nil
}
