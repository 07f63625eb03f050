package notifications_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aminsmd/multimodal-transcription/internal/config"
	"github.com/aminsmd/multimodal-transcription/internal/notifications"
)

func TestNewServiceReturnsNoopWhenWebhookMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.WebhookURL = ""
	svc := notifications.NewService(&cfg)
	if notifications.Enabled(svc) {
		t.Fatal("expected noop service")
	}
	if err := svc.NotifyCompletion(context.Background(), notifications.Result{ItemID: "v", Status: notifications.StatusSucceeded}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestWebhookPostsResult(t *testing.T) {
	var got map[string]any
	var contentType, agent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		contentType = r.Header.Get("Content-Type")
		agent = r.Header.Get("User-Agent")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.WebhookURL = server.URL
	svc := notifications.NewService(&cfg)
	if !notifications.Enabled(svc) {
		t.Fatal("expected webhook service")
	}

	err := svc.NotifyCompletion(context.Background(), notifications.Result{
		ItemID:         "lesson-01",
		Status:         notifications.StatusSucceeded,
		OutputLocation: "/out/lesson-01/abc",
		Error:          "ignored on success",
	})
	if err != nil {
		t.Fatalf("NotifyCompletion: %v", err)
	}
	if contentType != "application/json" || !strings.HasPrefix(agent, "transcribe/") {
		t.Fatalf("unexpected headers %q %q", contentType, agent)
	}
	if got["item_id"] != "lesson-01" || got["status"] != "succeeded" || got["output_location"] != "/out/lesson-01/abc" {
		t.Fatalf("unexpected payload %v", got)
	}
	if _, ok := got["error"]; ok {
		t.Fatalf("expected no error field on success, got %v", got)
	}

	if err := svc.NotifyCompletion(context.Background(), notifications.Result{ItemID: "lesson-02", Status: notifications.StatusFailed}); err != nil {
		t.Fatalf("NotifyCompletion failed status: %v", err)
	}
	if got["status"] != "failed" || got["error"] != "unknown error" {
		t.Fatalf("unexpected failure payload %v", got)
	}
}

func TestWebhookReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.WebhookURL = server.URL
	err := notifications.NewService(&cfg).TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected 502 error, got %v", err)
	}
}

func TestWebhookRejectsInvalidResults(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.WebhookURL = "http://127.0.0.1:1/hook"
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyCompletion(context.Background(), notifications.Result{Status: notifications.StatusSucceeded}); err == nil {
		t.Fatal("expected missing item id error")
	}
	if err := svc.NotifyCompletion(context.Background(), notifications.Result{ItemID: "v", Status: "done"}); err == nil {
		t.Fatal("expected unsupported status error")
	}
}
