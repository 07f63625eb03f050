package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/singleflight"

	"github.com/aminsmd/multimodal-transcription/internal/config"
	"github.com/aminsmd/multimodal-transcription/internal/logging"
	"github.com/aminsmd/multimodal-transcription/internal/services"
	"github.com/aminsmd/multimodal-transcription/internal/store"
	"github.com/aminsmd/multimodal-transcription/internal/transcript"
)

// Policy decides what a second request for an in-flight fingerprint does.
type Policy string

const (
	// PolicyWait joins the in-flight computation and shares its result.
	PolicyWait Policy = "wait"
	// PolicyReject fails fast with services.ErrComputationInProgress.
	PolicyReject Policy = "reject"
)

const lockRetryDelay = 250 * time.Millisecond

// Record is a stored transcript plus the moment it was produced.
type Record struct {
	Key         string                 `json:"key"`
	Fingerprint Fingerprint            `json:"fingerprint"`
	ProducedAt  time.Time              `json:"produced_at"`
	Transcript  *transcript.Transcript `json:"transcript"`
}

// Outcome describes how GetOrCompute produced its record.
type Outcome struct {
	Record *Record
	// Hit is true when the record came from storage without computing.
	Hit bool
	// Shared is true when the caller joined another caller's computation.
	Shared bool
}

// ComputeFunc runs the full pipeline for a fingerprint.
type ComputeFunc func(ctx context.Context) (*transcript.Transcript, error)

// Options tune a Cache.
type Options struct {
	Policy Policy
	// LockDir holds cross-process lock files. Empty disables file locking.
	LockDir     string
	LockTimeout time.Duration
	Logger      *slog.Logger
}

// OptionsFromConfig maps the cache configuration section onto Options.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	return Options{
		Policy:      Policy(cfg.Cache.InProgressPolicy),
		LockDir:     cfg.LockDir(),
		LockTimeout: time.Duration(cfg.Cache.LockTimeoutSeconds) * time.Second,
		Logger:      logger,
	}
}

// Cache is the content cache for combined transcripts.
type Cache struct {
	store  store.Store
	opts   Options
	logger *slog.Logger

	group    singleflight.Group
	mu       sync.Mutex
	inflight map[string]struct{}
	now      func() time.Time
}

// New wraps st. Options with an unknown policy fall back to PolicyWait.
func New(st store.Store, opts Options) *Cache {
	if opts.Policy != PolicyReject {
		opts.Policy = PolicyWait
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Cache{
		store:    st,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "cache"),
		inflight: make(map[string]struct{}),
		now:      time.Now,
	}
}

// Lookup returns the stored record for fp. A corrupt record is reported as a
// miss and logged.
func (c *Cache) Lookup(ctx context.Context, fp Fingerprint) (*Record, bool, error) {
	if err := fp.Validate(); err != nil {
		return nil, false, err
	}
	rec, err := c.load(ctx, fp.Key())
	if errors.Is(err, services.ErrNotFound) {
		return nil, false, nil
	}
	if errors.Is(err, services.ErrCacheCorruption) {
		logging.WarnWithContext(logging.WithContext(ctx, c.logger), "cache record unreadable; recomputing",
			"cache_corruption",
			logging.String(logging.FieldFingerprint, fp.Key()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the record will be overwritten by this run; run 'transcribe cache invalidate' to drop it now"),
			logging.String(logging.FieldImpact, "cached transcript ignored"),
		)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// Get loads a record by storage key. Corruption is returned as an error
// wrapping services.ErrCacheCorruption.
func (c *Cache) Get(ctx context.Context, key string) (*Record, error) {
	return c.load(ctx, key)
}

func (c *Cache) load(ctx context.Context, key string) (*Record, error) {
	raw, err := c.store.Get(ctx, store.NamespaceTranscripts, key)
	if err != nil {
		return nil, err
	}
	return decodeRecord(key, raw.Value)
}

func decodeRecord(key string, data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, services.Wrap(services.ErrCacheCorruption, "cache", "decode", key, err)
	}
	if rec.Transcript == nil {
		return nil, services.Wrap(services.ErrCacheCorruption, "cache", "decode", key+": transcript missing", nil)
	}
	if rec.Key != "" && rec.Key != key {
		return nil, services.Wrap(services.ErrCacheCorruption, "cache", "decode",
			fmt.Sprintf("%s: record carries key %s", key, rec.Key), nil)
	}
	rec.Key = key
	return &rec, nil
}

// Store writes t under fp, overwriting any previous record.
func (c *Cache) Store(ctx context.Context, fp Fingerprint, t *transcript.Transcript) (*Record, error) {
	if err := fp.Validate(); err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errors.New("cache store: transcript is nil")
	}
	rec := &Record{Key: fp.Key(), Fingerprint: fp, ProducedAt: c.now().UTC(), Transcript: t}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode cache record: %w", err)
	}
	if err := c.store.Put(ctx, store.NamespaceTranscripts, rec.Key, data, 0); err != nil {
		return nil, fmt.Errorf("store cache record: %w", err)
	}
	return rec, nil
}

// GetOrCompute returns the cached transcript for fp or runs compute exactly
// once. force skips the lookup but still stores the fresh result.
func (c *Cache) GetOrCompute(ctx context.Context, fp Fingerprint, force bool, compute ComputeFunc) (Outcome, error) {
	if err := fp.Validate(); err != nil {
		return Outcome{}, err
	}
	if !force {
		rec, ok, err := c.Lookup(ctx, fp)
		if err != nil {
			c.warnBackend(ctx, fp, "cache lookup failed; computing", err)
		} else if ok {
			return Outcome{Record: rec, Hit: true}, nil
		}
	}

	key := fp.Key()
	if c.opts.Policy == PolicyReject {
		if !c.claim(key) {
			return Outcome{}, inProgress(key, "another request in this process")
		}
		defer c.release(key)
		return c.computeLocked(ctx, fp, force, compute, false)
	}

	ch := c.group.DoChan(key, func() (any, error) {
		return c.computeLocked(ctx, fp, force, compute, true)
	})
	select {
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			// The caller that started the shared computation was cancelled;
			// a live caller starts over instead of inheriting that error.
			if res.Shared && ctx.Err() == nil && isContextError(res.Err) {
				return c.GetOrCompute(ctx, fp, force, compute)
			}
			return Outcome{}, res.Err
		}
		out := res.Val.(Outcome)
		out.Shared = res.Shared
		return out, nil
	}
}

func (c *Cache) computeLocked(ctx context.Context, fp Fingerprint, force bool, compute ComputeFunc, wait bool) (Outcome, error) {
	key := fp.Key()
	unlock, err := c.lock(ctx, key, wait)
	if err != nil {
		return Outcome{}, err
	}
	defer unlock()

	// Another process may have finished while this one waited for the lock.
	if !force {
		if rec, ok, err := c.Lookup(ctx, fp); err == nil && ok {
			return Outcome{Record: rec, Hit: true}, nil
		}
	}

	t, err := compute(ctx)
	if err != nil {
		return Outcome{}, err
	}
	rec, err := c.Store(ctx, fp, t)
	if err != nil {
		c.warnBackend(ctx, fp, "cache store failed; result not cached", err)
		rec = &Record{Key: key, Fingerprint: fp, ProducedAt: c.now().UTC(), Transcript: t}
	}
	return Outcome{Record: rec}, nil
}

func (c *Cache) lock(ctx context.Context, key string, wait bool) (func(), error) {
	if c.opts.LockDir == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(c.opts.LockDir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	fl := flock.New(filepath.Join(c.opts.LockDir, key+".lock"))

	var (
		locked bool
		err    error
	)
	if wait {
		lockCtx := ctx
		if c.opts.LockTimeout > 0 {
			var cancel context.CancelFunc
			lockCtx, cancel = context.WithTimeout(ctx, c.opts.LockTimeout)
			defer cancel()
		}
		locked, err = fl.TryLockContext(lockCtx, lockRetryDelay)
		if err != nil && lockCtx.Err() != nil && ctx.Err() == nil {
			return nil, inProgress(key, "lock wait timed out")
		}
	} else {
		locked, err = fl.TryLock()
	}
	if err != nil {
		return nil, fmt.Errorf("acquire fingerprint lock: %w", err)
	}
	if !locked {
		return nil, inProgress(key, "held by another process")
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			c.logger.Debug("release fingerprint lock failed", logging.String(logging.FieldFingerprint, key), logging.Error(err))
		}
	}, nil
}

func (c *Cache) claim(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[key]; busy {
		return false
	}
	c.inflight[key] = struct{}{}
	return true
}

func (c *Cache) release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, key)
}

func (c *Cache) warnBackend(ctx context.Context, fp Fingerprint, msg string, err error) {
	logging.WarnWithContext(logging.WithContext(ctx, c.logger), msg, "cache_backend_error",
		logging.String(logging.FieldFingerprint, fp.Key()),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the cache backend (sqlite path or redis address)"),
		logging.String(logging.FieldImpact, "the transcript is computed without cache reuse"),
	)
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func inProgress(key, detail string) error {
	return services.Wrap(services.ErrComputationInProgress, "cache", key, detail, nil)
}
