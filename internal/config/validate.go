package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/aminsmd/multimodal-transcription/internal/services"
)

// Validate ensures the configuration is usable. Every failure wraps
// services.ErrInvalidConfiguration.
func (c *Config) Validate() error {
	if err := c.validateChunking(); err != nil {
		return err
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateDispatch(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateHeuristics(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// RequireAnalysisKey reports a configuration error when no API key is available.
func (c *Config) RequireAnalysisKey() error {
	if strings.TrimSpace(c.Analysis.APIKey) != "" {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	return invalidf("analysis.api_key is required. Set GEMINI_API_KEY or edit %s (create with 'transcribe config init')", defaultPath)
}

func (c *Config) validateChunking() error {
	if c.Chunking.ChunkDurationSeconds <= 0 {
		return invalidf("chunking.chunk_duration_seconds must be positive")
	}
	if c.Chunking.ChunkDurationSeconds > MaxChunkDurationSeconds {
		return invalidf("chunking.chunk_duration_seconds must be at most %d", MaxChunkDurationSeconds)
	}
	if c.Chunking.ChunkSizeMB < 0 {
		return invalidf("chunking.chunk_size_mb must not be negative")
	}
	if c.Chunking.DurationToleranceSeconds < 0 {
		return invalidf("chunking.duration_tolerance_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	if _, err := url.ParseRequestURI(c.Analysis.BaseURL); err != nil {
		return invalidf("analysis.base_url is not a valid URL: %v", err)
	}
	if c.Analysis.Temperature < 0 || c.Analysis.Temperature > 2 {
		return invalidf("analysis.temperature must be between 0 and 2")
	}
	return ensurePositiveMap(map[string]int{
		"analysis.timeout_seconds":              c.Analysis.TimeoutSeconds,
		"analysis.inline_limit_mb":              c.Analysis.InlineLimitMB,
		"analysis.upload_poll_interval_seconds": c.Analysis.UploadPollIntervalSeconds,
		"analysis.upload_max_wait_seconds":      c.Analysis.UploadMaxWaitSeconds,
		"analysis.upload_cache_ttl_hours":       c.Analysis.UploadCacheTTLHours,
	})
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxAttempts < 1 {
		return invalidf("retry.max_attempts must be at least 1")
	}
	if c.Retry.BaseDelayMS < 0 {
		return invalidf("retry.base_delay_ms must not be negative")
	}
	if c.Retry.BackoffFactor < 1 {
		return invalidf("retry.backoff_factor must be at least 1")
	}
	if c.Retry.MaxDelaySeconds <= 0 {
		return invalidf("retry.max_delay_seconds must be positive")
	}
	return nil
}

func (c *Config) validateDispatch() error {
	if c.Dispatch.MaxWorkers < 1 || c.Dispatch.MaxWorkers > MaxWorkers {
		return invalidf("dispatch.max_workers must be between 1 and %d", MaxWorkers)
	}
	if c.Batch.MaxConcurrentVideos < 1 {
		return invalidf("batch.max_concurrent_videos must be at least 1")
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Backend {
	case "sqlite", "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return invalidf("cache.redis_addr must be set when cache.backend is redis")
		}
	default:
		return invalidf("cache.backend must be one of sqlite, redis, memory (got %q)", c.Cache.Backend)
	}
	switch c.Cache.InProgressPolicy {
	case "wait", "reject":
	default:
		return invalidf("cache.in_progress_policy must be wait or reject (got %q)", c.Cache.InProgressPolicy)
	}
	if c.Cache.LockTimeoutSeconds <= 0 {
		return invalidf("cache.lock_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateHeuristics() error {
	for key, value := range map[string]float64{
		"speakers.match_threshold": c.Speakers.MatchThreshold,
		"speakers.boundary_score":  c.Speakers.BoundaryScore,
		"dedupe.text_similarity":   c.Dedupe.TextSimilarity,
	} {
		if value < 0 || value > 1 {
			return invalidf("%s must be between 0 and 1", key)
		}
	}
	if c.Speakers.BoundaryWindowSeconds < 0 {
		return invalidf("speakers.boundary_window_seconds must not be negative")
	}
	if c.Dedupe.BoundaryToleranceSeconds < 0 {
		return invalidf("dedupe.boundary_tolerance_seconds must not be negative")
	}
	if c.Validation.GapThresholdSeconds <= 0 {
		return invalidf("validation.gap_threshold_seconds must be positive")
	}
	return nil
}

func (c *Config) validateOutput() error {
	if len(c.Output.Representations) == 0 {
		return invalidf("output.representations must not be empty")
	}
	for _, rep := range c.Output.Representations {
		if !slices.Contains(Representations, rep) {
			return invalidf("output.representations: unsupported value %q", rep)
		}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.WebhookURL != "" {
		if _, err := url.ParseRequestURI(c.Notifications.WebhookURL); err != nil {
			return invalidf("notifications.webhook_url is not a valid URL: %v", err)
		}
	}
	return ensurePositiveMap(map[string]int{
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return invalidf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return invalidf("%s must be positive", key)
		}
	}
	return nil
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", services.ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}
