package preflight

import (
	"context"
	"fmt"
	"time"

	"github.com/aminsmd/multimodal-transcription/internal/config"
	"github.com/aminsmd/multimodal-transcription/internal/store"
)

// CheckCacheBackend opens the configured cache backend and counts its records.
func CheckCacheBackend(ctx context.Context, cfg *config.Config) Result {
	name := "Cache backend"
	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	name = fmt.Sprintf("Cache backend (%s)", cfg.Cache.Backend)

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	st, err := store.Open(checkCtx, cfg)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer st.Close()

	records, err := st.List(checkCtx, store.NamespaceTranscripts)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("list failed: %v", err)}
	}
	uploads, err := st.List(checkCtx, store.NamespaceUploads)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("list failed: %v", err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d transcripts, %d upload handles)", location(cfg), len(records), len(uploads))}
}

// CheckWebhook reports whether completion notifications are configured. It
// never contacts the endpoint; "transcribe test-notify" does that.
func CheckWebhook(cfg *config.Config) Result {
	const name = "Notifications"
	if cfg == nil || cfg.Notifications.WebhookURL == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	return Result{Name: name, Passed: true, Detail: cfg.Notifications.WebhookURL}
}

func location(cfg *config.Config) string {
	switch cfg.Cache.Backend {
	case "redis":
		return cfg.Cache.RedisAddr
	case "sqlite":
		return cfg.Cache.Path
	}
	return "in-process"
}
