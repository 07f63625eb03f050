package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aminsmd/multimodal-transcription/internal/config"
)

const userAgent = "transcribe/0.1.0"

// Status is the terminal state of a run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Result is the notification body.
type Result struct {
	ItemID         string `json:"item_id"`
	Status         Status `json:"status"`
	OutputLocation string `json:"output_location,omitempty"`
	Error          string `json:"error,omitempty"`
	// Test marks deliveries produced by TestNotification.
	Test bool `json:"test,omitempty"`
}

// Service defines the notification surface exposed to the pipeline.
type Service interface {
	NotifyCompletion(ctx context.Context, result Result) error
	TestNotification(ctx context.Context) error
}

// NewService builds a webhook-backed service, or a noop when no webhook is
// configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	endpoint := strings.TrimSpace(cfg.Notifications.WebhookURL)
	if endpoint == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &webhookService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether svc delivers anywhere.
func Enabled(svc Service) bool {
	_, noop := svc.(noopService)
	return svc != nil && !noop
}

type webhookService struct {
	endpoint string
	client   *http.Client
}

func (w *webhookService) NotifyCompletion(ctx context.Context, result Result) error {
	result.ItemID = strings.TrimSpace(result.ItemID)
	if result.ItemID == "" {
		return fmt.Errorf("notify completion: item id is required")
	}
	switch result.Status {
	case StatusSucceeded:
		result.Error = ""
	case StatusFailed:
		if strings.TrimSpace(result.Error) == "" {
			result.Error = "unknown error"
		}
	default:
		return fmt.Errorf("notify completion: unsupported status %q", result.Status)
	}
	return w.send(ctx, result)
}

func (w *webhookService) TestNotification(ctx context.Context) error {
	return w.send(ctx, Result{ItemID: "transcribe-test", Status: StatusSucceeded, Test: true})
}

func (w *webhookService) send(ctx context.Context, result Result) error {
	if w == nil || w.client == nil {
		return nil
	}
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyCompletion(context.Context, Result) error { return nil }
func (noopService) TestNotification(context.Context) error         { return nil }
