package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/aminsmd/multimodal-transcription/internal/chunking"
	"github.com/aminsmd/multimodal-transcription/internal/fileutil"
	"github.com/aminsmd/multimodal-transcription/internal/logging"
	"github.com/aminsmd/multimodal-transcription/internal/retry"
	"github.com/aminsmd/multimodal-transcription/internal/services"
	"github.com/aminsmd/multimodal-transcription/internal/store"
	"github.com/aminsmd/multimodal-transcription/internal/transcript"
)

// AnalyzerOptions configure an Analyzer.
type AnalyzerOptions struct {
	PromptVersion string
	// InlineLimit is the largest chunk sent inline; bigger chunks are uploaded.
	InlineLimit int64
	Retry       retry.Policy
	// SpanTolerance is how far past the chunk length an entry may start
	// before the response is treated as malformed.
	SpanTolerance time.Duration
	// Uploads persists upload identities. Nil keeps them in memory.
	Uploads *UploadCache
	Logger  *slog.Logger
	// RetryOptions are passed to every retry.Do call (tests inject sleepers).
	RetryOptions []retry.Option
}

// Request carries per-chunk context for Analyze.
type Request struct {
	VideoDuration time.Duration
	// KnownSpeakers are offered to the model as continuity hints.
	KnownSpeakers []string
	// Handles collects remote files for cleanup. Nil skips registration.
	Handles *Handles
	// RawResponseDir, when set, receives the raw model output per chunk.
	RawResponseDir string
}

// Analyzer turns extracted chunks into transcript entries.
type Analyzer struct {
	client  *Client
	opts    AnalyzerOptions
	uploads *UploadCache
	logger  *slog.Logger
}

// NewAnalyzer wires a client with retry, prompt and upload policies.
func NewAnalyzer(client *Client, opts AnalyzerOptions) *Analyzer {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	uploads := opts.Uploads
	if uploads == nil {
		uploads = NewUploadCache(store.NewMemory(), 0, logger)
	}
	return &Analyzer{
		client:  client,
		opts:    opts,
		uploads: uploads,
		logger:  logging.NewComponentLogger(logger, "analysis"),
	}
}

// Analyze uploads (or inlines) the artifact, asks the model for a transcript
// and parses it. Transient failures are retried under the retry policy and
// malformed responses get one immediate retry; both are demoted to
// services.ErrChunkAnalysisFailed when they persist.
func (a *Analyzer) Analyze(ctx context.Context, art *chunking.Artifact, req Request) ([]transcript.Entry, error) {
	if art == nil {
		return nil, errors.New("analyze: artifact is nil")
	}
	prompt, err := BuildPrompt(a.opts.PromptVersion, Segment{
		Index:         art.Spec.Index,
		Start:         art.Spec.Start,
		End:           art.Spec.End,
		VideoDuration: req.VideoDuration,
		KnownSpeakers: req.KnownSpeakers,
	})
	if err != nil {
		return nil, err
	}
	logger := logging.WithContext(ctx, a.logger).With(logging.Args(logging.Int(logging.FieldChunkIndex, art.Spec.Index))...)

	media, err := a.mediaFor(ctx, art, req.Handles)
	if err != nil {
		return nil, a.demote(art, err)
	}

	for attempt := 1; ; attempt++ {
		var gen Generation
		err := retry.Do(ctx, a.opts.Retry, func(ctx context.Context) error {
			var genErr error
			gen, genErr = a.client.GenerateJSON(ctx, media, prompt)
			return genErr
		}, a.retryOptions(logger, "generate")...)
		if err == nil {
			a.saveRaw(logger, req.RawResponseDir, art.Spec.Index, attempt, gen.Text)
			var entries []transcript.Entry
			entries, err = ParseTranscript(gen.Text, a.span(art))
			if err == nil {
				logger.Debug("chunk analyzed",
					logging.Int("entries", len(entries)),
					logging.Int("prompt_tokens", gen.Usage.PromptTokens),
					logging.Int("output_tokens", gen.Usage.CandidatesTokens),
					logging.Bool("inline", media.Inline()),
				)
				return entries, nil
			}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, services.ErrMalformedResponse) && attempt == 1 {
			logger.Info("malformed analysis response; retrying once", logging.Error(err))
			continue
		}
		return nil, a.demote(art, err)
	}
}

// span is the longest chunk-local offset an entry may start at.
func (a *Analyzer) span(art *chunking.Artifact) time.Duration {
	return max(art.Spec.Duration(), art.Duration) + a.opts.SpanTolerance
}

func (a *Analyzer) retryOptions(logger *slog.Logger, op string) []retry.Option {
	opts := []retry.Option{
		retry.WithNotify(func(err error, attempt int, delay time.Duration) {
			logger.Info("transient analysis failure; backing off",
				logging.String("operation", op),
				logging.Int("attempt", attempt),
				logging.Duration("delay", delay),
				logging.Error(err),
			)
		}),
	}
	return append(opts, a.opts.RetryOptions...)
}

// demote maps a persistent chunk failure onto the terminal taxonomy. Run-level
// errors (configuration, cancellation) pass through.
func (a *Analyzer) demote(art *chunking.Artifact, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, services.ErrInvalidConfiguration),
		errors.Is(err, services.ErrChunkAnalysisFailed),
		errors.Is(err, services.ErrExtraction):
		return err
	case services.IsRetryable(err):
		return services.Wrap(services.ErrChunkAnalysisFailed, "analysis", fmt.Sprintf("chunk %d", art.Spec.Index), "retries exhausted", err)
	case errors.Is(err, services.ErrMalformedResponse):
		return services.Wrap(services.ErrChunkAnalysisFailed, "analysis", fmt.Sprintf("chunk %d", art.Spec.Index), "malformed response after retry", err)
	default:
		return services.Wrap(services.ErrChunkAnalysisFailed, "analysis", fmt.Sprintf("chunk %d", art.Spec.Index), "", err)
	}
}

func (a *Analyzer) mediaFor(ctx context.Context, art *chunking.Artifact, handles *Handles) (MediaPart, error) {
	mime := art.MimeType
	if mime == "" {
		mime = chunking.MimeType(art.Path)
	}
	if a.opts.InlineLimit <= 0 || art.Size <= a.opts.InlineLimit {
		data, err := os.ReadFile(art.Path)
		if err != nil {
			return MediaPart{}, services.Wrap(services.ErrExtraction, "analysis", "inline", "read chunk", err)
		}
		return MediaPart{MimeType: mime, Data: data}, nil
	}

	hash := art.ContentHash
	unlock := a.uploads.Lock(hash)
	defer unlock()

	if cached, ok := a.uploads.Lookup(ctx, hash); ok {
		file, err := a.client.GetFile(ctx, cached.Name)
		if err == nil && file.State == StateActive {
			handles.add(file.Name, hash)
			return MediaPart{MimeType: mime, FileURI: file.URI}, nil
		}
		a.uploads.Forget(ctx, hash)
	}

	var file File
	logger := logging.WithContext(ctx, a.logger)
	err := retry.Do(ctx, a.opts.Retry, func(ctx context.Context) error {
		uploaded, err := a.client.UploadFile(ctx, art.Path, mime)
		if err != nil {
			return err
		}
		// Registered before the wait so a file stuck in PROCESSING is still cleaned up.
		handles.add(uploaded.Name, hash)
		file, err = a.client.WaitForActive(ctx, uploaded)
		return err
	}, a.retryOptions(logger, "upload")...)
	if err != nil {
		return MediaPart{}, err
	}
	a.uploads.Remember(ctx, hash, file)
	return MediaPart{MimeType: mime, FileURI: file.URI}, nil
}

func (a *Analyzer) saveRaw(logger *slog.Logger, dir string, index, attempt int, text string) {
	if dir == "" {
		return
	}
	path := filepath.Join(dir, fmt.Sprintf("chunk_%03d_attempt%d.json", index, attempt))
	if err := fileutil.WriteFileAtomic(path, []byte(text), 0o644); err != nil {
		logger.Debug("raw response not saved", logging.String("path", path), logging.Error(err))
	}
}

// Release deletes every registered remote file and evicts it from the upload
// cache. Failures are logged and counted, never fatal.
func (a *Analyzer) Release(ctx context.Context, handles *Handles) (deleted int, failed int) {
	if handles == nil {
		return 0, 0
	}
	logger := logging.WithContext(ctx, a.logger)
	for _, h := range handles.drain() {
		if err := a.client.DeleteFile(ctx, h.name); err != nil {
			failed++
			logging.WarnWithContext(logger, "remote file cleanup failed", "remote_cleanup_failed",
				logging.String("remote_file", h.name),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the file expires on its own after 48 hours"),
				logging.String(logging.FieldImpact, "remote storage quota stays in use until expiry"),
			)
			continue
		}
		a.uploads.Forget(ctx, h.hash)
		deleted++
	}
	return deleted, failed
}

// Handles tracks remote files created or reused during one run.
type Handles struct {
	mu    sync.Mutex
	names map[string]string
}

type handle struct {
	name string
	hash string
}

// NewHandles returns an empty registry.
func NewHandles() *Handles {
	return &Handles{names: make(map[string]string)}
}

func (h *Handles) add(name, hash string) {
	if h == nil || name == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.names[name] = hash
}

// Names lists registered remote file names in sorted order.
func (h *Handles) Names() []string {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.names))
	for name := range h.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (h *Handles) drain() []handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]handle, 0, len(h.names))
	for name, hash := range h.names {
		out = append(out, handle{name: name, hash: hash})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	h.names = make(map[string]string)
	return out
}
