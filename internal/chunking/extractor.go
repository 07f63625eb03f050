package chunking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aminsmd/multimodal-transcription/internal/fileutil"
	"github.com/aminsmd/multimodal-transcription/internal/logging"
	"github.com/aminsmd/multimodal-transcription/internal/services"
)

// ErrOffsetBeyondDuration reports a request for media past the decodable end
// of the source. Decoders return it distinctly from generic decode failures.
var ErrOffsetBeyondDuration = errors.New("offset beyond duration")

// Decoder is the media decode capability used for probing and extraction.
type Decoder interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
	Extract(ctx context.Context, src string, start, end time.Duration, dest string) error
}

// Source identifies the video being transcribed. It is immutable once built.
type Source struct {
	ID          string        `json:"video_id"`
	Path        string        `json:"path"`
	ContentHash string        `json:"content_hash"`
	Duration    time.Duration `json:"duration"`
	Size        int64         `json:"size_bytes"`
}

// Artifact is the extracted media for one Spec.
type Artifact struct {
	Spec        Spec
	Path        string
	Size        int64
	ContentHash string
	MimeType    string
	Duration    time.Duration
}

// Remove deletes the artifact payload. Missing files are not an error.
func (a *Artifact) Remove() error {
	if a == nil || a.Path == "" {
		return nil
	}
	if err := os.Remove(a.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Extractor materializes chunk specs as files inside a scoped directory.
type Extractor struct {
	decoder   Decoder
	dir       string
	tolerance time.Duration
	logger    *slog.Logger
}

// NewExtractor builds an extractor writing into dir. tolerance bounds how far
// an artifact's decoded duration may fall short of its spec.
func NewExtractor(decoder Decoder, dir string, tolerance time.Duration, logger *slog.Logger) *Extractor {
	return &Extractor{
		decoder:   decoder,
		dir:       dir,
		tolerance: tolerance,
		logger:    logging.NewComponentLogger(logger, "extractor"),
	}
}

// Probe returns the decoded duration of the source file.
func (e *Extractor) Probe(ctx context.Context, path string) (time.Duration, error) {
	d, err := e.decoder.Duration(ctx, path)
	if err != nil {
		return 0, services.Wrap(services.ErrExtraction, "probe", filepath.Base(path), "read duration", err)
	}
	if d <= 0 {
		return 0, services.Wrap(services.ErrExtraction, "probe", filepath.Base(path), "source reports no duration", nil)
	}
	return d, nil
}

// Extract produces the artifact for spec. Every failure carries
// services.ErrExtraction; the caller owns cleanup of a returned artifact.
func (e *Extractor) Extract(ctx context.Context, src Source, spec Spec) (*Artifact, error) {
	op := fmt.Sprintf("chunk %d", spec.Index)
	if spec.Start >= src.Duration || spec.End > src.Duration {
		return nil, services.Wrap(services.ErrExtraction, "extract", op,
			fmt.Sprintf("requested [%s, %s) exceeds source duration %s", spec.Start, spec.End, src.Duration),
			ErrOffsetBeyondDuration)
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrExtraction, "extract", op, "create work dir", err)
	}
	ext := strings.ToLower(filepath.Ext(src.Path))
	if ext == "" {
		ext = ".mp4"
	}
	dest := filepath.Join(e.dir, fmt.Sprintf("chunk_%03d%s", spec.Index, ext))

	if err := e.decoder.Extract(ctx, src.Path, spec.Start, spec.End, dest); err != nil {
		_ = os.Remove(dest)
		if errors.Is(err, ErrOffsetBeyondDuration) {
			return nil, services.Wrap(services.ErrExtraction, "extract", op, "decoder reached end of stream early", err)
		}
		return nil, services.Wrap(services.ErrExtraction, "extract", op, "decode failed", err)
	}

	actual, err := e.decoder.Duration(ctx, dest)
	if err != nil {
		_ = os.Remove(dest)
		return nil, services.Wrap(services.ErrExtraction, "extract", op, "probe artifact", err)
	}
	if expected := spec.Duration(); actual+e.tolerance < expected {
		_ = os.Remove(dest)
		return nil, services.Wrap(services.ErrExtraction, "extract", op,
			fmt.Sprintf("artifact decodes to %s, expected %s", actual, expected),
			ErrOffsetBeyondDuration)
	}

	hash, size, err := fileutil.HashFile(dest)
	if err != nil {
		_ = os.Remove(dest)
		return nil, services.Wrap(services.ErrExtraction, "extract", op, "hash artifact", err)
	}
	if size == 0 {
		_ = os.Remove(dest)
		return nil, services.Wrap(services.ErrExtraction, "extract", op, "artifact is empty", nil)
	}

	e.logger.Debug("chunk extracted",
		logging.Int(logging.FieldChunkIndex, spec.Index),
		logging.String("path", dest),
		logging.Int64("size_bytes", size),
		logging.Duration("decoded_duration", actual),
	)
	return &Artifact{
		Spec:        spec,
		Path:        dest,
		Size:        size,
		ContentHash: hash,
		MimeType:    MimeType(dest),
		Duration:    actual,
	}, nil
}

// MimeType guesses the media type from the file extension, defaulting to video/mp4.
func MimeType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	case ".avi":
		return "video/x-msvideo"
	case ".mpeg", ".mpg":
		return "video/mpeg"
	}
	if guess := mime.TypeByExtension(ext); guess != "" {
		return guess
	}
	return "video/mp4"
}
