package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeChunking()
	c.normalizeAnalysis()
	if err := c.normalizeCache(); err != nil {
		return err
	}
	c.normalizeOutput()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WorkDir, err = expandPath(strings.TrimSpace(c.Paths.WorkDir)); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(strings.TrimSpace(c.Paths.OutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir
	}
	if c.Paths.CacheDir, err = expandPath(strings.TrimSpace(c.Paths.CacheDir)); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeChunking() {
	c.Chunking.FFmpegBinary = strings.TrimSpace(c.Chunking.FFmpegBinary)
	if c.Chunking.FFmpegBinary == "" {
		c.Chunking.FFmpegBinary = defaultFFmpegBinary
	}
	c.Chunking.FFprobeBinary = strings.TrimSpace(c.Chunking.FFprobeBinary)
	if c.Chunking.FFprobeBinary == "" {
		c.Chunking.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeAnalysis() {
	c.Analysis.APIKey = strings.TrimSpace(c.Analysis.APIKey)
	if c.Analysis.APIKey == "" {
		if value, ok := os.LookupEnv("GEMINI_API_KEY"); ok {
			c.Analysis.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("GOOGLE_API_KEY"); ok {
			c.Analysis.APIKey = strings.TrimSpace(value)
		}
	}
	c.Analysis.BaseURL = strings.TrimRight(strings.TrimSpace(c.Analysis.BaseURL), "/")
	if c.Analysis.BaseURL == "" {
		c.Analysis.BaseURL = defaultAnalysisBaseURL
	}
	c.Analysis.Model = strings.TrimSpace(c.Analysis.Model)
	if c.Analysis.Model == "" {
		c.Analysis.Model = defaultAnalysisModel
	}
	c.Analysis.PromptVersion = strings.TrimSpace(c.Analysis.PromptVersion)
	if c.Analysis.PromptVersion == "" {
		c.Analysis.PromptVersion = defaultPromptVersion
	}
	speakers := c.Analysis.KnownSpeakers[:0]
	for _, name := range c.Analysis.KnownSpeakers {
		if name = strings.TrimSpace(name); name != "" {
			speakers = append(speakers, name)
		}
	}
	c.Analysis.KnownSpeakers = speakers
}

func (c *Config) normalizeCache() error {
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	if c.Cache.Backend == "" {
		c.Cache.Backend = defaultCacheBackend
	}
	c.Cache.Path = strings.TrimSpace(c.Cache.Path)
	if c.Cache.Path == "" {
		c.Cache.Path = filepath.Join(c.Paths.CacheDir, defaultCacheFileName)
	}
	var err error
	if c.Cache.Path, err = expandPath(c.Cache.Path); err != nil {
		return fmt.Errorf("cache.path: %w", err)
	}
	c.Cache.RedisAddr = strings.TrimSpace(c.Cache.RedisAddr)
	if c.Cache.RedisAddr == "" {
		if value, ok := os.LookupEnv("REDIS_ADDR"); ok {
			c.Cache.RedisAddr = strings.TrimSpace(value)
		}
	}
	if c.Cache.RedisPassword == "" {
		if value, ok := os.LookupEnv("REDIS_PASSWORD"); ok {
			c.Cache.RedisPassword = value
		}
	}
	if strings.TrimSpace(c.Cache.RedisPrefix) == "" {
		c.Cache.RedisPrefix = defaultRedisPrefix
	}
	c.Cache.InProgressPolicy = strings.ToLower(strings.TrimSpace(c.Cache.InProgressPolicy))
	if c.Cache.InProgressPolicy == "" {
		c.Cache.InProgressPolicy = defaultInProgressPolicy
	}
	return nil
}

func (c *Config) normalizeOutput() {
	if len(c.Output.Representations) == 0 {
		c.Output.Representations = append([]string(nil), Representations...)
		return
	}
	seen := make(map[string]struct{}, len(c.Output.Representations))
	out := make([]string, 0, len(c.Output.Representations))
	for _, rep := range c.Output.Representations {
		rep = strings.ToLower(strings.TrimSpace(rep))
		if rep == "" {
			continue
		}
		if _, ok := seen[rep]; ok {
			continue
		}
		seen[rep] = struct{}{}
		out = append(out, rep)
	}
	c.Output.Representations = out
}

func (c *Config) normalizeNotifications() {
	c.Notifications.WebhookURL = strings.TrimSpace(c.Notifications.WebhookURL)
	if c.Notifications.WebhookURL == "" {
		if value, ok := os.LookupEnv("TRANSCRIBE_NOTIFY_URL"); ok {
			c.Notifications.WebhookURL = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
