package config

const (
	defaultConfigPath              = "~/.config/transcribe/config.toml"
	projectConfigName              = "transcribe.toml"
	defaultWorkDir                 = "~/.local/share/transcribe/work"
	defaultOutputDir               = "~/.local/share/transcribe/outputs"
	defaultLogDir                  = "~/.local/share/transcribe/logs"
	defaultCacheDir                = "~/.cache/transcribe"
	defaultStagingRetentionHours   = 24
	defaultChunkDurationSeconds    = 300
	defaultDurationToleranceSecs   = 1.0
	defaultFFmpegBinary            = "ffmpeg"
	defaultFFprobeBinary           = "ffprobe"
	defaultAnalysisBaseURL         = "https://generativelanguage.googleapis.com"
	defaultAnalysisModel           = "gemini-2.5-pro"
	defaultPromptVersion           = "v1"
	defaultAnalysisTimeoutSeconds  = 600
	defaultInlineLimitMB           = 20
	defaultUploadPollSeconds       = 2
	defaultUploadMaxWaitSeconds    = 300
	defaultUploadCacheTTLHours     = 47
	defaultRetryMaxAttempts        = 5
	defaultRetryBaseDelayMS        = 1000
	defaultRetryBackoffFactor      = 2.0
	defaultRetryMaxDelaySeconds    = 30
	defaultMaxWorkers              = 4
	defaultCacheBackend            = "sqlite"
	defaultCacheFileName           = "cache.db"
	defaultRedisPrefix             = "transcribe:"
	defaultInProgressPolicy        = "wait"
	defaultLockTimeoutSeconds      = 3600
	defaultSpeakerMatchThreshold   = 0.7
	defaultSpeakerBoundaryScore    = 0.75
	defaultSpeakerBoundaryWindow   = 2.0
	defaultDedupeTextSimilarity    = 0.8
	defaultDedupeBoundaryTolerance = 2.0
	defaultNotifyTimeoutSeconds    = 30
	defaultGapThresholdSeconds     = 10.0
	defaultBatchConcurrency        = 1
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"

	// MaxChunkDurationSeconds caps a single chunk at one hour.
	MaxChunkDurationSeconds = 3600
	// MaxWorkers caps concurrent chunk analyses.
	MaxWorkers = 16
)

// Representations lists every output representation the formatter supports.
var Representations = []string{"full", "clean", "text"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:               defaultWorkDir,
			OutputDir:             defaultOutputDir,
			LogDir:                defaultLogDir,
			CacheDir:              defaultCacheDir,
			StagingRetentionHours: defaultStagingRetentionHours,
		},
		Chunking: Chunking{
			ChunkDurationSeconds:     defaultChunkDurationSeconds,
			DurationToleranceSeconds: defaultDurationToleranceSecs,
			FFmpegBinary:             defaultFFmpegBinary,
			FFprobeBinary:            defaultFFprobeBinary,
		},
		Analysis: Analysis{
			BaseURL:                   defaultAnalysisBaseURL,
			Model:                     defaultAnalysisModel,
			PromptVersion:             defaultPromptVersion,
			TimeoutSeconds:            defaultAnalysisTimeoutSeconds,
			InlineLimitMB:             defaultInlineLimitMB,
			UploadPollIntervalSeconds: defaultUploadPollSeconds,
			UploadMaxWaitSeconds:      defaultUploadMaxWaitSeconds,
			CleanupUploadedFiles:      true,
			UploadCacheTTLHours:       defaultUploadCacheTTLHours,
		},
		Retry: Retry{
			MaxAttempts:     defaultRetryMaxAttempts,
			BaseDelayMS:     defaultRetryBaseDelayMS,
			BackoffFactor:   defaultRetryBackoffFactor,
			MaxDelaySeconds: defaultRetryMaxDelaySeconds,
		},
		Dispatch: Dispatch{
			MaxWorkers: defaultMaxWorkers,
		},
		Cache: Cache{
			Backend:            defaultCacheBackend,
			RedisPrefix:        defaultRedisPrefix,
			InProgressPolicy:   defaultInProgressPolicy,
			LockTimeoutSeconds: defaultLockTimeoutSeconds,
		},
		Speakers: Speakers{
			MatchThreshold:        defaultSpeakerMatchThreshold,
			BoundaryScore:         defaultSpeakerBoundaryScore,
			BoundaryWindowSeconds: defaultSpeakerBoundaryWindow,
		},
		Dedupe: Dedupe{
			TextSimilarity:           defaultDedupeTextSimilarity,
			BoundaryToleranceSeconds: defaultDedupeBoundaryTolerance,
		},
		Output: Output{
			Representations: append([]string(nil), Representations...),
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeoutSeconds,
		},
		Validation: Validation{
			GapThresholdSeconds: defaultGapThresholdSeconds,
		},
		Batch: Batch{
			MaxConcurrentVideos: defaultBatchConcurrency,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
