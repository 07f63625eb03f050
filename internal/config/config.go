package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir               string `toml:"work_dir"`
	OutputDir             string `toml:"output_dir"`
	LogDir                string `toml:"log_dir"`
	CacheDir              string `toml:"cache_dir"`
	StagingRetentionHours int    `toml:"staging_retention_hours"`
}

// Chunking controls how a video is partitioned before analysis.
type Chunking struct {
	ChunkDurationSeconds     int     `toml:"chunk_duration_seconds"`
	ChunkSizeMB              int     `toml:"chunk_size_mb"`
	Reencode                 bool    `toml:"reencode"`
	DurationToleranceSeconds float64 `toml:"duration_tolerance_seconds"`
	FFmpegBinary             string  `toml:"ffmpeg_binary"`
	FFprobeBinary            string  `toml:"ffprobe_binary"`
}

// Analysis contains the multimodal analysis service settings.
type Analysis struct {
	APIKey                    string   `toml:"api_key"`
	BaseURL                   string   `toml:"base_url"`
	Model                     string   `toml:"model"`
	PromptVersion             string   `toml:"prompt_version"`
	Temperature               float64  `toml:"temperature"`
	TimeoutSeconds            int      `toml:"timeout_seconds"`
	InlineLimitMB             int      `toml:"inline_limit_mb"`
	UploadPollIntervalSeconds int      `toml:"upload_poll_interval_seconds"`
	UploadMaxWaitSeconds      int      `toml:"upload_max_wait_seconds"`
	CleanupUploadedFiles      bool     `toml:"cleanup_uploaded_files"`
	UploadCacheTTLHours       int      `toml:"upload_cache_ttl_hours"`
	KnownSpeakers             []string `toml:"known_speakers"`
}

// Retry is the backoff policy applied to transient analysis failures.
type Retry struct {
	MaxAttempts     int     `toml:"max_attempts"`
	BaseDelayMS     int     `toml:"base_delay_ms"`
	BackoffFactor   float64 `toml:"backoff_factor"`
	MaxDelaySeconds int     `toml:"max_delay_seconds"`
}

// Dispatch bounds chunk-level parallelism.
type Dispatch struct {
	MaxWorkers int `toml:"max_workers"`
}

// Cache selects and tunes the content cache backend.
type Cache struct {
	Backend            string `toml:"backend"`
	Path               string `toml:"path"`
	RedisAddr          string `toml:"redis_addr"`
	RedisPassword      string `toml:"redis_password"`
	RedisDB            int    `toml:"redis_db"`
	RedisPrefix        string `toml:"redis_prefix"`
	InProgressPolicy   string `toml:"in_progress_policy"`
	LockTimeoutSeconds int    `toml:"lock_timeout_seconds"`
}

// Speakers tunes cross-chunk speaker reconciliation.
type Speakers struct {
	MatchThreshold        float64 `toml:"match_threshold"`
	BoundaryScore         float64 `toml:"boundary_score"`
	BoundaryWindowSeconds float64 `toml:"boundary_window_seconds"`
}

// Dedupe tunes boundary duplicate detection.
type Dedupe struct {
	TextSimilarity           float64 `toml:"text_similarity"`
	BoundaryToleranceSeconds float64 `toml:"boundary_tolerance_seconds"`
}

// Output selects rendered representations.
type Output struct {
	Representations []string `toml:"representations"`
	GroupSpeakers   bool     `toml:"group_speakers"`
}

// Notifications contains the optional completion webhook.
type Notifications struct {
	WebhookURL     string `toml:"webhook_url"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Validation contains transcript quality checks.
type Validation struct {
	GapThresholdSeconds float64 `toml:"gap_threshold_seconds"`
}

// Batch controls manifest processing.
type Batch struct {
	MaxConcurrentVideos int `toml:"max_concurrent_videos"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the transcriber.
//
// Configuration sections by subsystem:
//   - Paths: work, output, log and cache directories
//   - Chunking: chunk duration or size and media tool binaries
//   - Analysis: multimodal analysis API, uploads and prompts
//   - Retry: backoff policy for transient analysis failures
//   - Dispatch: chunk worker pool size
//   - Cache: content cache backend and concurrency policy
//   - Speakers, Dedupe: transcript combination heuristics
//   - Output: rendered representations
//   - Notifications: completion webhook
//   - Validation: transcript quality thresholds
//   - Batch: manifest processing
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Chunking      Chunking      `toml:"chunking"`
	Analysis      Analysis      `toml:"analysis"`
	Retry         Retry         `toml:"retry"`
	Dispatch      Dispatch      `toml:"dispatch"`
	Cache         Cache         `toml:"cache"`
	Speakers      Speakers      `toml:"speakers"`
	Dedupe        Dedupe        `toml:"dedupe"`
	Output        Output        `toml:"output"`
	Notifications Notifications `toml:"notifications"`
	Validation    Validation    `toml:"validation"`
	Batch         Batch         `toml:"batch"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	LoadDotEnv(filepath.Dir(resolvedPath))

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the pipeline writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.OutputDir, c.Paths.LogDir, c.Paths.CacheDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CreateSample writes the embedded sample configuration to path.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

// ChunkDuration returns the configured chunk duration.
func (c *Config) ChunkDuration() time.Duration {
	return time.Duration(c.Chunking.ChunkDurationSeconds) * time.Second
}

// ChunkSizeBytes returns the size-based chunking target, or 0 when disabled.
func (c *Config) ChunkSizeBytes() int64 {
	return int64(c.Chunking.ChunkSizeMB) * 1024 * 1024
}

// InlineLimitBytes returns the payload size above which chunks are uploaded.
func (c *Config) InlineLimitBytes() int64 {
	return int64(c.Analysis.InlineLimitMB) * 1024 * 1024
}

// LockDir returns the directory used for cross-process fingerprint locks.
func (c *Config) LockDir() string {
	return filepath.Join(c.Paths.CacheDir, "locks")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
