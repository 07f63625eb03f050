package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aminsmd/multimodal-transcription/internal/config"
	"github.com/aminsmd/multimodal-transcription/internal/services"
)

// Namespace partitions records by purpose.
type Namespace string

const (
	// NamespaceTranscripts holds combined transcripts keyed by content fingerprint.
	NamespaceTranscripts Namespace = "transcripts"
	// NamespaceUploads holds remote upload identities keyed by chunk hash.
	NamespaceUploads Namespace = "uploads"
)

// Record is a stored value plus bookkeeping timestamps. A zero ExpiresAt never expires.
type Record struct {
	Namespace Namespace
	Key       string
	Value     []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the record is past its expiry at now.
func (r Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// Store is the persistence contract shared by all backends.
type Store interface {
	// Get returns the record or an error wrapping services.ErrNotFound.
	Get(ctx context.Context, ns Namespace, key string) (Record, error)
	// Put inserts or replaces a record. ttl <= 0 stores it without expiry.
	Put(ctx context.Context, ns Namespace, key string, value []byte, ttl time.Duration) error
	// Delete removes a record and reports whether it existed.
	Delete(ctx context.Context, ns Namespace, key string) (bool, error)
	// List returns live records ordered by creation time.
	List(ctx context.Context, ns Namespace) ([]Record, error)
	// Clear removes every record in ns and returns how many were removed.
	Clear(ctx context.Context, ns Namespace) (int, error)
	Close() error
}

// Open builds the backend selected by cfg.Cache.Backend.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrInvalidConfiguration, "store", "open", "config is nil", nil)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Cache.Backend)) {
	case "memory":
		return NewMemory(), nil
	case "redis":
		return OpenRedis(ctx, RedisOptions{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
			Prefix:   cfg.Cache.RedisPrefix,
		})
	case "sqlite", "":
		return OpenSQLite(ctx, cfg.Cache.Path)
	default:
		return nil, services.Wrap(services.ErrInvalidConfiguration, "store", "open",
			fmt.Sprintf("unsupported cache backend %q", cfg.Cache.Backend), nil)
	}
}

func notFound(ns Namespace, key string) error {
	return fmt.Errorf("%w: %s/%s", services.ErrNotFound, ns, key)
}

func validKey(ns Namespace, key string) error {
	if strings.TrimSpace(string(ns)) == "" || strings.TrimSpace(key) == "" {
		return services.Wrap(services.ErrInvalidConfiguration, "store", "key", "namespace and key are required", nil)
	}
	return nil
}

func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
