package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"github.com/aminsmd/multimodal-transcription/internal/config"
	"github.com/aminsmd/multimodal-transcription/internal/services"
)

func TestLoadDefaultConfigExpandsPathsAndReadsEnv(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantWork := filepath.Join(tempHome, ".local", "share", "transcribe", "work")
	if cfg.Paths.WorkDir != wantWork {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, wantWork)
	}
	if cfg.Cache.Path != filepath.Join(tempHome, ".cache", "transcribe", "cache.db") {
		t.Fatalf("unexpected cache path: %q", cfg.Cache.Path)
	}
	if cfg.Analysis.APIKey != "env-key" {
		t.Fatalf("expected analysis key from env, got %q", cfg.Analysis.APIKey)
	}
	if cfg.Chunking.ChunkDurationSeconds != 300 {
		t.Fatalf("unexpected chunk duration: %d", cfg.Chunking.ChunkDurationSeconds)
	}
	if cfg.Dispatch.MaxWorkers != 4 {
		t.Fatalf("unexpected max workers: %d", cfg.Dispatch.MaxWorkers)
	}
	if !cfg.Analysis.CleanupUploadedFiles {
		t.Fatal("expected remote cleanup enabled by default")
	}
	if got := strings.Join(cfg.Output.Representations, ","); got != "full,clean,text" {
		t.Fatalf("unexpected representations: %s", got)
	}
}

func TestLoadCustomConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "transcribe.toml")

	type fileConfig struct {
		Chunking map[string]any `toml:"chunking"`
		Dispatch map[string]any `toml:"dispatch"`
		Cache    map[string]any `toml:"cache"`
		Output   map[string]any `toml:"output"`
		Paths    map[string]any `toml:"paths"`
	}
	payload := fileConfig{
		Chunking: map[string]any{"chunk_duration_seconds": 120},
		Dispatch: map[string]any{"max_workers": 8},
		Cache:    map[string]any{"backend": "MEMORY", "in_progress_policy": "reject"},
		Output:   map[string]any{"representations": []string{"Text", "full", "text"}},
		Paths:    map[string]any{"work_dir": filepath.Join(dir, "work")},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config %s to exist, got %s exists=%v", path, resolved, exists)
	}
	if cfg.ChunkDuration().Seconds() != 120 {
		t.Fatalf("unexpected chunk duration %s", cfg.ChunkDuration())
	}
	if cfg.Dispatch.MaxWorkers != 8 {
		t.Fatalf("unexpected workers %d", cfg.Dispatch.MaxWorkers)
	}
	if cfg.Cache.Backend != "memory" || cfg.Cache.InProgressPolicy != "reject" {
		t.Fatalf("unexpected cache settings %+v", cfg.Cache)
	}
	if got := strings.Join(cfg.Output.Representations, ","); got != "text,full" {
		t.Fatalf("expected normalized representations, got %s", got)
	}
	if cfg.Paths.WorkDir != filepath.Join(dir, "work") {
		t.Fatalf("unexpected work dir %q", cfg.Paths.WorkDir)
	}
}

func TestLoadReadsDotEnvNextToConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "transcribe.toml")
	if err := os.WriteFile(path, []byte("[dispatch]\nmax_workers = 2\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("GEMINI_API_KEY=dotenv-key\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	// t.Setenv restores the previous values once the test ends.
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	os.Unsetenv("GEMINI_API_KEY")
	os.Unsetenv("GOOGLE_API_KEY")

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Analysis.APIKey != "dotenv-key" {
		t.Fatalf("expected key from .env, got %q", cfg.Analysis.APIKey)
	}
}

func TestValidateRejectsOutOfRangeValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{name: "zero chunk", mutate: func(c *config.Config) { c.Chunking.ChunkDurationSeconds = 0 }, want: "chunk_duration_seconds"},
		{name: "huge chunk", mutate: func(c *config.Config) { c.Chunking.ChunkDurationSeconds = 3601 }, want: "chunk_duration_seconds"},
		{name: "too many workers", mutate: func(c *config.Config) { c.Dispatch.MaxWorkers = 17 }, want: "max_workers"},
		{name: "no workers", mutate: func(c *config.Config) { c.Dispatch.MaxWorkers = 0 }, want: "max_workers"},
		{name: "retry attempts", mutate: func(c *config.Config) { c.Retry.MaxAttempts = 0 }, want: "retry.max_attempts"},
		{name: "backoff factor", mutate: func(c *config.Config) { c.Retry.BackoffFactor = 0.5 }, want: "backoff_factor"},
		{name: "backend", mutate: func(c *config.Config) { c.Cache.Backend = "etcd" }, want: "cache.backend"},
		{name: "redis addr", mutate: func(c *config.Config) { c.Cache.Backend = "redis"; c.Cache.RedisAddr = "" }, want: "redis_addr"},
		{name: "policy", mutate: func(c *config.Config) { c.Cache.InProgressPolicy = "queue" }, want: "in_progress_policy"},
		{name: "threshold", mutate: func(c *config.Config) { c.Speakers.MatchThreshold = 1.5 }, want: "speakers.match_threshold"},
		{name: "representation", mutate: func(c *config.Config) { c.Output.Representations = []string{"srt"} }, want: "representations"},
		{name: "webhook", mutate: func(c *config.Config) { c.Notifications.WebhookURL = "::bad" }, want: "webhook_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, services.ErrInvalidConfiguration) {
				t.Fatalf("expected invalid configuration marker, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in %q", tt.want, err.Error())
			}
		})
	}
}

func TestRequireAnalysisKey(t *testing.T) {
	cfg := config.Default()
	cfg.Analysis.APIKey = ""
	if err := cfg.RequireAnalysisKey(); !errors.Is(err, services.ErrInvalidConfiguration) {
		t.Fatalf("expected invalid configuration, got %v", err)
	}
	cfg.Analysis.APIKey = "key"
	if err := cfg.RequireAnalysisKey(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("expected sample config to load, exists=%v err=%v", exists, err)
	}
}
