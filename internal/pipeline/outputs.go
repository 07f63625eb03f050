package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aminsmd/multimodal-transcription/internal/cache"
	"github.com/aminsmd/multimodal-transcription/internal/chunking"
	"github.com/aminsmd/multimodal-transcription/internal/fileutil"
	"github.com/aminsmd/multimodal-transcription/internal/format"
	"github.com/aminsmd/multimodal-transcription/internal/services"
	"github.com/aminsmd/multimodal-transcription/internal/textutil"
	"github.com/aminsmd/multimodal-transcription/internal/transcript"
	"github.com/aminsmd/multimodal-transcription/internal/validation"
)

const (
	metadataFile   = "metadata.json"
	validationFile = "validation.json"
)

// Metadata describes one run and is written next to its transcripts.
type Metadata struct {
	RunID           string            `json:"run_id"`
	VideoID         string            `json:"video_id"`
	SourcePath      string            `json:"source_path"`
	ContentHash     string            `json:"content_hash"`
	SourceSizeBytes int64             `json:"source_size_bytes"`
	Fingerprint     string            `json:"fingerprint"`
	FingerprintSpec cache.Fingerprint `json:"fingerprint_detail"`
	GeneratedAt     time.Time         `json:"generated_at"`
	ProducedAt      time.Time         `json:"produced_at"`
	CacheHit        bool              `json:"cache_hit"`
	SharedResult    bool              `json:"shared_result"`
	Forced          bool              `json:"force_reprocess"`
	DurationSeconds float64           `json:"duration_seconds"`
	ChunkCount      int               `json:"chunk_count"`
	EntryCount      int               `json:"entry_count"`
	Speakers        []string          `json:"speakers"`
	Complete        bool              `json:"complete"`
	KnownGaps       []transcript.Gap  `json:"known_gaps"`
	ValidationOK    bool              `json:"validation_passed"`
	Configuration   RunConfiguration  `json:"configuration"`
	Outputs         map[string]string `json:"outputs"`
	ElapsedSeconds  float64           `json:"elapsed_seconds"`
}

// RunConfiguration is the subset of settings that shaped the transcript.
type RunConfiguration struct {
	ChunkDurationSeconds float64  `json:"chunk_duration_seconds"`
	ChunkSizeMB          int      `json:"chunk_size_mb,omitempty"`
	Reencode             bool     `json:"reencode"`
	Model                string   `json:"model"`
	PromptVersion        string   `json:"prompt_version"`
	Temperature          float64  `json:"temperature"`
	InlineLimitMB        int      `json:"inline_limit_mb"`
	MaxWorkers           int      `json:"max_workers"`
	RetryMaxAttempts     int      `json:"retry_max_attempts"`
	KnownSpeakers        []string `json:"known_speakers,omitempty"`
	Representations      []string `json:"representations"`
	GroupSpeakers        bool     `json:"group_speakers"`
}

// OutputDir is where a run for videoID with fingerprint key writes its files.
func OutputDir(root, videoID, key string) string {
	return filepath.Join(root, textutil.SanitizeToken(videoID), key)
}

func (r *Runner) writeOutputs(ctx context.Context, out *Outcome, src chunking.Source, rec *cache.Record, forced bool, started time.Time) error {
	dir := OutputDir(r.cfg.Paths.OutputDir, out.VideoID, out.Fingerprint.Key())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrInvalidConfiguration, "output", "mkdir", "create output directory", err)
	}
	out.OutputDir = dir
	out.Files = make(map[string]string, len(r.cfg.Output.Representations)+2)

	generated := r.now().UTC()
	opts := format.Options{RunID: out.RunID, GeneratedAt: generated, GroupSpeakers: r.cfg.Output.GroupSpeakers}
	for _, name := range r.cfg.Output.Representations {
		rep, err := format.ParseRepresentation(name)
		if err != nil {
			return err
		}
		data, err := format.Render(out.Transcript, rep, opts)
		if err != nil {
			return fmt.Errorf("render %s: %w", rep, err)
		}
		path := filepath.Join(dir, rep.FileName())
		if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", rep, err)
		}
		out.Files[string(rep)] = path
	}

	checker := validation.Checker{
		GapThreshold: seconds(r.cfg.Validation.GapThresholdSeconds),
		Now:          func() time.Time { return generated },
	}
	out.Validation = checker.Check(out.Transcript)
	validationPath := filepath.Join(dir, validationFile)
	if err := fileutil.WriteJSON(validationPath, out.Validation); err != nil {
		return fmt.Errorf("write validation report: %w", err)
	}
	out.Files["validation"] = validationPath

	out.Elapsed = r.now().Sub(started)
	out.Metadata = r.metadata(out, src, rec, forced, generated)
	metadataPath := filepath.Join(dir, metadataFile)
	out.Files["metadata"] = metadataPath
	out.Metadata.Outputs = out.Files
	if err := fileutil.WriteJSON(metadataPath, out.Metadata); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return ctx.Err()
}

func (r *Runner) metadata(out *Outcome, src chunking.Source, rec *cache.Record, forced bool, generated time.Time) Metadata {
	t := out.Transcript
	gaps := t.Gaps
	if gaps == nil {
		gaps = []transcript.Gap{}
	}
	return Metadata{
		RunID:           out.RunID,
		VideoID:         out.VideoID,
		SourcePath:      src.Path,
		ContentHash:     src.ContentHash,
		SourceSizeBytes: src.Size,
		Fingerprint:     out.Fingerprint.Key(),
		FingerprintSpec: out.Fingerprint,
		GeneratedAt:     generated,
		ProducedAt:      rec.ProducedAt,
		CacheHit:        out.CacheHit,
		SharedResult:    out.Shared,
		Forced:          forced,
		DurationSeconds: transcript.Seconds(t.Duration),
		ChunkCount:      t.ChunkCount,
		EntryCount:      len(t.Entries),
		Speakers:        t.Speakers,
		Complete:        t.Complete(),
		KnownGaps:       gaps,
		ValidationOK:    out.Validation.Passed,
		Configuration: RunConfiguration{
			ChunkDurationSeconds: out.Fingerprint.ChunkDuration.Seconds(),
			ChunkSizeMB:          r.cfg.Chunking.ChunkSizeMB,
			Reencode:             r.cfg.Chunking.Reencode,
			Model:                out.Fingerprint.Model,
			PromptVersion:        out.Fingerprint.PromptVersion,
			Temperature:          r.cfg.Analysis.Temperature,
			InlineLimitMB:        r.cfg.Analysis.InlineLimitMB,
			MaxWorkers:           r.cfg.Dispatch.MaxWorkers,
			RetryMaxAttempts:     r.cfg.Retry.MaxAttempts,
			KnownSpeakers:        r.cfg.Analysis.KnownSpeakers,
			Representations:      r.cfg.Output.Representations,
			GroupSpeakers:        r.cfg.Output.GroupSpeakers,
		},
		ElapsedSeconds: out.Elapsed.Seconds(),
	}
}

// ReadMetadata loads the metadata written by a previous run.
func ReadMetadata(dir string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		return nil, err
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse %s: %w", metadataFile, err)
	}
	return &meta, nil
}
