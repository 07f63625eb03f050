package cache

import (
	"context"
	"errors"
	"time"

	"github.com/aminsmd/multimodal-transcription/internal/services"
	"github.com/aminsmd/multimodal-transcription/internal/store"
)

// Summary is a listing row for one cached transcript.
type Summary struct {
	Key         string
	Fingerprint Fingerprint
	VideoID     string
	ProducedAt  time.Time
	Duration    time.Duration
	Entries     int
	Gaps        int
	Corrupt     bool
}

// List summarizes every stored record, including corrupt ones so they can be
// invalidated.
func (c *Cache) List(ctx context.Context) ([]Summary, error) {
	records, err := c.store.List(ctx, store.NamespaceTranscripts)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(records))
	for _, raw := range records {
		rec, err := decodeRecord(raw.Key, raw.Value)
		if err != nil {
			out = append(out, Summary{Key: raw.Key, ProducedAt: raw.CreatedAt, Corrupt: true})
			continue
		}
		out = append(out, Summary{
			Key:         rec.Key,
			Fingerprint: rec.Fingerprint,
			VideoID:     rec.Transcript.VideoID,
			ProducedAt:  rec.ProducedAt,
			Duration:    rec.Transcript.Duration,
			Entries:     len(rec.Transcript.Entries),
			Gaps:        len(rec.Transcript.Gaps),
		})
	}
	return out, nil
}

// Invalidate removes the record stored under key.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	removed, err := c.store.Delete(ctx, store.NamespaceTranscripts, key)
	if err != nil {
		return err
	}
	if !removed {
		return services.Wrap(services.ErrNotFound, "cache", "invalidate", key, nil)
	}
	return nil
}

// InvalidateVideo removes every record computed for videoHash and returns the
// number removed.
func (c *Cache) InvalidateVideo(ctx context.Context, videoHash string) (int, error) {
	summaries, err := c.List(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, s := range summaries {
		if s.Fingerprint.VideoHash != videoHash {
			continue
		}
		if err := c.Invalidate(ctx, s.Key); err != nil && !errors.Is(err, services.ErrNotFound) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Clear drops every cached transcript.
func (c *Cache) Clear(ctx context.Context) (int, error) {
	return c.store.Clear(ctx, store.NamespaceTranscripts)
}
