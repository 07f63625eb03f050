package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aminsmd/multimodal-transcription/internal/cache"
	"github.com/aminsmd/multimodal-transcription/internal/chunking"
	"github.com/aminsmd/multimodal-transcription/internal/config"
	"github.com/aminsmd/multimodal-transcription/internal/fileutil"
	"github.com/aminsmd/multimodal-transcription/internal/logging"
	"github.com/aminsmd/multimodal-transcription/internal/notifications"
	"github.com/aminsmd/multimodal-transcription/internal/services"
	"github.com/aminsmd/multimodal-transcription/internal/services/gemini"
	"github.com/aminsmd/multimodal-transcription/internal/staging"
	"github.com/aminsmd/multimodal-transcription/internal/textutil"
	"github.com/aminsmd/multimodal-transcription/internal/transcript"
	"github.com/aminsmd/multimodal-transcription/internal/validation"
)

// Analyzer is the per-chunk analysis capability.
type Analyzer interface {
	Analyze(ctx context.Context, art *chunking.Artifact, req gemini.Request) ([]transcript.Entry, error)
	Release(ctx context.Context, handles *gemini.Handles) (deleted int, failed int)
}

// Input names the video to transcribe.
type Input struct {
	// VideoID defaults to the sanitized file name without extension.
	VideoID string
	Path    string
	// Force skips the cache lookup; the fresh result still overwrites the record.
	Force bool
}

// Outcome summarises a finished run.
type Outcome struct {
	RunID       string
	VideoID     string
	Fingerprint cache.Fingerprint
	Transcript  *transcript.Transcript
	CacheHit    bool
	Shared      bool
	OutputDir   string
	Files       map[string]string
	Validation  *validation.Report
	Metadata    Metadata
	Elapsed     time.Duration
}

// Runner executes transcription runs. It is safe for concurrent use.
type Runner struct {
	cfg      *config.Config
	decoder  chunking.Decoder
	analyzer Analyzer
	cache    *cache.Cache
	notifier notifications.Service
	logger   *slog.Logger
	now      func() time.Time
	newRunID func() string
}

// Option customizes a Runner.
type Option func(*Runner)

// WithNotifier sets the completion notification sink.
func WithNotifier(svc notifications.Service) Option {
	return func(r *Runner) {
		if svc != nil {
			r.notifier = svc
		}
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the wall clock used for generation timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithRunIDs overrides run id generation.
func WithRunIDs(next func() string) Option {
	return func(r *Runner) {
		if next != nil {
			r.newRunID = next
		}
	}
}

// New assembles a Runner from its collaborators.
func New(cfg *config.Config, decoder chunking.Decoder, analyzer Analyzer, contentCache *cache.Cache, opts ...Option) *Runner {
	r := &Runner{
		cfg:      cfg,
		decoder:  decoder,
		analyzer: analyzer,
		cache:    contentCache,
		notifier: notifications.NewService(nil),
		logger:   logging.NewNop(),
		now:      time.Now,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.logger, "pipeline")
	return r
}

// Run transcribes in.Path.
func (r *Runner) Run(ctx context.Context, in Input) (*Outcome, error) {
	started := r.now()
	runID := r.newRunID()
	videoID := strings.TrimSpace(in.VideoID)
	if videoID == "" {
		videoID = DefaultVideoID(in.Path)
	}
	ctx = services.WithRunID(ctx, runID)
	ctx = services.WithVideoID(ctx, videoID)
	logger := logging.WithContext(ctx, r.logger)

	out, err := r.run(ctx, logger, in, runID, videoID, started)
	if err != nil {
		logger.Error("transcription failed",
			logging.String(logging.FieldEventType, "run_failed"),
			logging.String("error_kind", services.Kind(err)),
			logging.Error(err),
		)
		r.notify(ctx, logger, notifications.Result{ItemID: videoID, Status: notifications.StatusFailed, Error: err.Error()})
		return nil, err
	}
	r.notify(ctx, logger, notifications.Result{ItemID: videoID, Status: notifications.StatusSucceeded, OutputLocation: out.OutputDir})
	return out, nil
}

func (r *Runner) run(ctx context.Context, logger *slog.Logger, in Input, runID, videoID string, started time.Time) (*Outcome, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Path) == "" {
		return nil, services.Wrap(services.ErrInvalidConfiguration, "source", "path", "video path is required", nil)
	}

	retention := time.Duration(r.cfg.Paths.StagingRetentionHours) * time.Hour
	staging.CleanStale(ctx, r.cfg.Paths.WorkDir, retention, logger, runID)

	src, err := r.describeSource(ctx, videoID, in.Path)
	if err != nil {
		return nil, err
	}
	chunkDuration, specs, err := r.plan(src)
	if err != nil {
		return nil, err
	}
	fp := cache.NewFingerprint(src.ContentHash, chunkDuration, r.cfg)
	ctx = services.WithRequestID(ctx, fp.Key())
	logger = logger.With(logging.String(logging.FieldFingerprint, fp.Key()))
	logger.Info("transcription started",
		logging.String(logging.FieldEventType, "run_started"),
		logging.String("path", src.Path),
		logging.Duration("video_duration", src.Duration),
		logging.Int("chunk_count", len(specs)),
		logging.Duration("chunk_duration", chunkDuration),
		logging.Bool("force", in.Force),
	)

	result, err := r.cache.GetOrCompute(ctx, fp, in.Force, func(ctx context.Context) (*transcript.Transcript, error) {
		return r.compute(ctx, logger, runID, src, specs)
	})
	if err != nil {
		return nil, err
	}

	// Cached transcripts are keyed by content; present them under this run's id.
	t := *result.Record.Transcript
	t.VideoID = videoID

	out := &Outcome{
		RunID:       runID,
		VideoID:     videoID,
		Fingerprint: fp,
		Transcript:  &t,
		CacheHit:    result.Hit,
		Shared:      result.Shared,
	}
	if err := r.writeOutputs(ctx, out, src, result.Record, in.Force, started); err != nil {
		return nil, err
	}
	logger.Info("transcription complete",
		logging.String(logging.FieldEventType, "run_completed"),
		logging.Bool("cache_hit", out.CacheHit),
		logging.Bool("shared", out.Shared),
		logging.Int("entries", len(t.Entries)),
		logging.Int("gaps", len(t.Gaps)),
		logging.String("output_dir", out.OutputDir),
		logging.Duration("elapsed", out.Elapsed),
	)
	return out, nil
}

// describeSource hashes and probes the video. Both failures are whole-video
// failures.
func (r *Runner) describeSource(ctx context.Context, videoID, path string) (chunking.Source, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return chunking.Source{}, services.Wrap(services.ErrInvalidConfiguration, "source", "path", "resolve path", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return chunking.Source{}, services.Wrap(services.ErrExtraction, "source", "stat", "video source unreadable", err)
	}
	if info.IsDir() {
		return chunking.Source{}, services.Wrap(services.ErrInvalidConfiguration, "source", "stat", abs+" is a directory", nil)
	}
	hash, size, err := fileutil.HashFile(abs)
	if err != nil {
		return chunking.Source{}, services.Wrap(services.ErrExtraction, "source", "hash", "video source unreadable", err)
	}
	extractor := chunking.NewExtractor(r.decoder, "", 0, r.logger)
	duration, err := extractor.Probe(ctx, abs)
	if err != nil {
		return chunking.Source{}, err
	}
	return chunking.Source{ID: videoID, Path: abs, ContentHash: hash, Duration: duration, Size: size}, nil
}

func (r *Runner) plan(src chunking.Source) (time.Duration, []chunking.Spec, error) {
	chunkDuration := r.cfg.ChunkDuration()
	if limit := r.cfg.ChunkSizeBytes(); limit > 0 {
		derived, err := chunking.ChunkDurationForSize(src.Duration, src.Size, limit, chunkDuration)
		if err != nil {
			return 0, nil, err
		}
		chunkDuration = derived
	}
	specs, err := chunking.Plan(src.Duration, chunkDuration)
	if err != nil {
		return 0, nil, err
	}
	return chunkDuration, specs, nil
}

func (r *Runner) notify(ctx context.Context, logger *slog.Logger, result notifications.Result) {
	if err := r.notifier.NotifyCompletion(context.WithoutCancel(ctx), result); err != nil {
		logging.WarnWithContext(logger, "completion notification failed", "notification_failed",
			logging.String("status", string(result.Status)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.webhook_url or run 'transcribe test-notify'"),
			logging.String(logging.FieldImpact, "downstream consumers were not told about this run"),
		)
	}
}

// DefaultVideoID derives a video id from a file path.
func DefaultVideoID(path string) string {
	base := filepath.Base(strings.TrimSpace(path))
	return textutil.SanitizeToken(strings.TrimSuffix(base, filepath.Ext(base)))
}

// runLevelError returns the first chunk error that is not chunk-scoped, such
// as a rejected API key. Those would fail every other chunk the same way, so
// the run aborts instead of recording gaps.
func runLevelError(results []transcript.ChunkResult) error {
	for _, res := range results {
		if res.Err != nil && !services.IsChunkScoped(res.Err) {
			return res.Err
		}
	}
	return nil
}

func allFailed(results []transcript.ChunkResult) error {
	if len(results) == 0 {
		return nil
	}
	var last error
	for _, res := range results {
		if res.Err == nil {
			return nil
		}
		last = res.Err
	}
	return services.Wrap(services.ErrChunkAnalysisFailed, "combine", "chunks",
		fmt.Sprintf("every chunk failed (%d chunks)", len(results)), last)
}
