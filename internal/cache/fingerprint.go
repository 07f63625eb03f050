package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aminsmd/multimodal-transcription/internal/config"
	"github.com/aminsmd/multimodal-transcription/internal/services"
)

const fingerprintVersion = "v2"

// Fingerprint identifies a cacheable computation.
type Fingerprint struct {
	VideoHash     string        `json:"video_hash"`
	ChunkDuration time.Duration `json:"chunk_duration"`
	Model         string        `json:"model"`
	PromptVersion string        `json:"prompt_version"`
	// Settings digests the remaining configuration that changes transcript
	// content (see SettingsDigest).
	Settings string `json:"settings"`
}

// NewFingerprint builds a fingerprint from the effective run configuration.
// chunkDuration is the duration actually used by the planner, which differs
// from the configured value when size-based planning is enabled.
func NewFingerprint(videoHash string, chunkDuration time.Duration, cfg *config.Config) Fingerprint {
	return Fingerprint{
		VideoHash:     strings.ToLower(strings.TrimSpace(videoHash)),
		ChunkDuration: chunkDuration,
		Model:         strings.TrimSpace(cfg.Analysis.Model),
		PromptVersion: strings.TrimSpace(cfg.Analysis.PromptVersion),
		Settings:      SettingsDigest(cfg),
	}
}

// SettingsDigest hashes every setting besides model, prompt version and chunk
// duration that alters what a run produces: sampling temperature, known
// speakers (order matters, it seeds the speaker registry), extraction mode,
// span tolerance, and the speaker and dedupe policies used by Combine.
// Worker counts, paths, retry and output rendering settings are excluded.
func SettingsDigest(cfg *config.Config) string {
	speakers := make([]string, 0, len(cfg.Analysis.KnownSpeakers))
	for _, name := range cfg.Analysis.KnownSpeakers {
		if name = strings.TrimSpace(name); name != "" {
			speakers = append(speakers, name)
		}
	}
	fields := []string{
		"temperature=" + formatFloat(cfg.Analysis.Temperature),
		"known_speakers=" + strings.Join(speakers, "\x1f"),
		"reencode=" + strconv.FormatBool(cfg.Chunking.Reencode),
		"duration_tolerance=" + formatFloat(cfg.Chunking.DurationToleranceSeconds),
		"match_threshold=" + formatFloat(cfg.Speakers.MatchThreshold),
		"boundary_score=" + formatFloat(cfg.Speakers.BoundaryScore),
		"boundary_window=" + formatFloat(cfg.Speakers.BoundaryWindowSeconds),
		"text_similarity=" + formatFloat(cfg.Dedupe.TextSimilarity),
		"boundary_tolerance=" + formatFloat(cfg.Dedupe.BoundaryToleranceSeconds),
	}
	sum := sha256.Sum256([]byte(strings.Join(fields, "\n")))
	return hex.EncodeToString(sum[:8])
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Validate rejects fingerprints missing an identity component.
func (f Fingerprint) Validate() error {
	switch {
	case f.VideoHash == "":
		return services.Wrap(services.ErrInvalidConfiguration, "cache", "fingerprint", "video hash is required", nil)
	case f.ChunkDuration <= 0:
		return services.Wrap(services.ErrInvalidConfiguration, "cache", "fingerprint", "chunk duration must be positive", nil)
	case f.Model == "":
		return services.Wrap(services.ErrInvalidConfiguration, "cache", "fingerprint", "model is required", nil)
	}
	return nil
}

func (f Fingerprint) canonical() string {
	return strings.Join([]string{
		fingerprintVersion,
		f.VideoHash,
		fmt.Sprintf("%d", f.ChunkDuration.Milliseconds()),
		f.Model,
		f.PromptVersion,
		f.Settings,
	}, "|")
}

// Key returns the stable storage key for f.
func (f Fingerprint) Key() string {
	sum := sha256.Sum256([]byte(f.canonical()))
	return hex.EncodeToString(sum[:12])
}

func (f Fingerprint) String() string {
	hash := f.VideoHash
	if len(hash) > 12 {
		hash = hash[:12]
	}
	return fmt.Sprintf("%s/%s/%s/%s", hash, f.ChunkDuration, f.Model, f.PromptVersion)
}
