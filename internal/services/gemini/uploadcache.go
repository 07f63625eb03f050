package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aminsmd/multimodal-transcription/internal/logging"
	"github.com/aminsmd/multimodal-transcription/internal/services"
	"github.com/aminsmd/multimodal-transcription/internal/store"
)

// remoteFileLifetime is how long the files API keeps uploads.
const remoteFileLifetime = 48 * time.Hour

// UploadCache remembers which remote file holds a chunk's bytes, keyed by the
// chunk content hash. Writes are serialized per hash; distinct hashes never
// contend.
type UploadCache struct {
	store  store.Store
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*hashLock
}

type hashLock struct {
	mu   sync.Mutex
	refs int
}

type uploadRecord struct {
	File       File      `json:"file"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// NewUploadCache persists identities in st for ttl. A ttl of zero or more
// than the remote lifetime is capped just below it.
func NewUploadCache(st store.Store, ttl time.Duration, logger *slog.Logger) *UploadCache {
	if ttl <= 0 || ttl >= remoteFileLifetime {
		ttl = remoteFileLifetime - time.Hour
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &UploadCache{
		store:  st,
		ttl:    ttl,
		logger: logging.NewComponentLogger(logger, "upload-cache"),
		now:    time.Now,
		locks:  make(map[string]*hashLock),
	}
}

// Lock serializes work on one content hash. The returned func releases it.
func (u *UploadCache) Lock(hash string) func() {
	u.mu.Lock()
	l := u.locks[hash]
	if l == nil {
		l = &hashLock{}
		u.locks[hash] = l
	}
	l.refs++
	u.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		u.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(u.locks, hash)
		}
		u.mu.Unlock()
	}
}

// Lookup returns the remembered remote file for hash.
func (u *UploadCache) Lookup(ctx context.Context, hash string) (File, bool) {
	rec, err := u.store.Get(ctx, store.NamespaceUploads, hash)
	if err != nil {
		if !errors.Is(err, services.ErrNotFound) {
			u.logger.Debug("upload cache lookup failed", logging.String("content_hash", hash), logging.Error(err))
		}
		return File{}, false
	}
	var entry uploadRecord
	if err := json.Unmarshal(rec.Value, &entry); err != nil || entry.File.Name == "" {
		_, _ = u.store.Delete(ctx, store.NamespaceUploads, hash)
		return File{}, false
	}
	if !entry.File.ExpirationTime.IsZero() && !u.now().Before(entry.File.ExpirationTime) {
		_, _ = u.store.Delete(ctx, store.NamespaceUploads, hash)
		return File{}, false
	}
	return entry.File, true
}

// Remember records file as the remote copy of hash.
func (u *UploadCache) Remember(ctx context.Context, hash string, file File) {
	ttl := u.ttl
	if !file.ExpirationTime.IsZero() {
		if remaining := file.ExpirationTime.Sub(u.now()); remaining < ttl {
			ttl = remaining
		}
	}
	if ttl <= 0 {
		return
	}
	data, err := json.Marshal(uploadRecord{File: file, UploadedAt: u.now().UTC()})
	if err == nil {
		err = u.store.Put(ctx, store.NamespaceUploads, hash, data, ttl)
	}
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, u.logger), "upload cache write failed", "upload_cache_write_failed",
			logging.String("content_hash", hash),
			logging.String("remote_file", file.Name),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the cache backend"),
			logging.String(logging.FieldImpact, "identical chunks will be uploaded again"),
		)
	}
}

// Forget drops the identity for hash.
func (u *UploadCache) Forget(ctx context.Context, hash string) {
	_, _ = u.store.Delete(ctx, store.NamespaceUploads, hash)
}
