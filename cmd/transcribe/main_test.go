package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/aminsmd/multimodal-transcription/internal/cache"
	"github.com/aminsmd/multimodal-transcription/internal/config"
	"github.com/aminsmd/multimodal-transcription/internal/format"
	"github.com/aminsmd/multimodal-transcription/internal/preflight"
	"github.com/aminsmd/multimodal-transcription/internal/services"
	"github.com/aminsmd/multimodal-transcription/internal/store"
	"github.com/aminsmd/multimodal-transcription/internal/testsupport"
	"github.com/aminsmd/multimodal-transcription/internal/transcript"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, webhook string) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("TRANSCRIBE_NOTIFY_URL", "")

	cfg := testsupport.NewConfig(t, testsupport.WithSQLiteCache(), testsupport.WithStubbedBinaries())
	cfg.Notifications.WebhookURL = webhook

	configPath := filepath.Join(base, "transcribe.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
work_dir = %q
output_dir = %q
log_dir = %q
cache_dir = %q

[analysis]
api_key = %q

[cache]
backend = %q
path = %q

[notifications]
webhook_url = %q

[logging]
level = "error"
`,
		cfg.Paths.WorkDir,
		cfg.Paths.OutputDir,
		cfg.Paths.LogDir,
		cfg.Paths.CacheDir,
		cfg.Analysis.APIKey,
		cfg.Cache.Backend,
		cfg.Cache.Path,
		cfg.Notifications.WebhookURL,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func sampleTranscript() *transcript.Transcript {
	return &transcript.Transcript{
		VideoID:    "lecture",
		Duration:   20 * time.Second,
		ChunkCount: 1,
		Speakers:   []string{"Instructor"},
		Entries: []transcript.CombinedEntry{
			{Kind: transcript.KindUtterance, Start: 0, End: 8 * time.Second, Speaker: "Instructor", SpokenText: "Welcome to the course on distributed systems."},
			{Kind: transcript.KindEvent, Start: 8 * time.Second, End: 12 * time.Second, EventDescription: "Slide titled Consensus appears"},
			{Kind: transcript.KindUtterance, Start: 12 * time.Second, End: 20 * time.Second, Speaker: "Instructor", SpokenText: "Today we cover leader election."},
		},
	}
}

func writeFullTranscript(t *testing.T, dir string) string {
	t.Helper()
	data, err := format.Render(sampleTranscript(), format.Full, format.Options{RunID: "run-1"})
	if err != nil {
		t.Fatalf("render full: %v", err)
	}
	path := filepath.Join(dir, "full.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write full: %v", err)
	}
	return path
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t, "")

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "Cache backend: sqlite")

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting an existing file")
	}
}

func TestInvalidConfigMapsToExitCode(t *testing.T) {
	env := setupCLITestEnv(t, "")
	if err := os.WriteFile(env.configPath, []byte("[dispatch]\nmax_workers = 99\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if !errors.Is(err, services.ErrInvalidConfiguration) {
		t.Fatalf("expected invalid configuration, got %v", err)
	}
	if exitCode(err) != 2 {
		t.Fatalf("expected exit code 2, got %d", exitCode(err))
	}
}

func TestCacheCommands(t *testing.T) {
	env := setupCLITestEnv(t, "")
	ctx := context.Background()

	out, _, err := runCLI(t, []string{"cache", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("cache list: %v", err)
	}
	requireContains(t, out, "Cache is empty")

	st, err := store.OpenSQLite(ctx, env.cfg.Cache.Path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	c := cache.New(st, cache.Options{})
	fp := cache.NewFingerprint("abcdef0123456789abcdef", 300*time.Second, env.cfg)
	if _, err := c.Store(ctx, fp, sampleTranscript()); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close sqlite: %v", err)
	}

	out, _, err = runCLI(t, []string{"cache", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("cache list: %v", err)
	}
	requireContains(t, out, fp.Key())
	requireContains(t, out, "lecture")

	out, _, err = runCLI(t, []string{"cache", "show", fp.Key()}, env.configPath)
	if err != nil {
		t.Fatalf("cache show: %v", err)
	}
	requireContains(t, out, "Entries:        3 across 1 chunks")
	requireContains(t, out, "Speakers:       Instructor")

	out, _, err = runCLI(t, []string{"cache", "show", "--json", fp.Key()}, env.configPath)
	if err != nil {
		t.Fatalf("cache show --json: %v", err)
	}
	var rec cache.Record
	if err := json.Unmarshal([]byte(out), &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec.Key != fp.Key() || len(rec.Transcript.Entries) != 3 {
		t.Fatalf("unexpected record %+v", rec)
	}

	out, _, err = runCLI(t, []string{"cache", "invalidate", fp.Key()}, env.configPath)
	if err != nil {
		t.Fatalf("cache invalidate: %v", err)
	}
	requireContains(t, out, "Removed "+fp.Key())

	_, _, err = runCLI(t, []string{"cache", "invalidate", fp.Key()}, env.configPath)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found on second invalidate, got %v", err)
	}

	if _, _, err := runCLI(t, []string{"cache", "clear"}, env.configPath); err == nil {
		t.Fatal("expected clear without --yes to fail")
	}
	out, _, err = runCLI(t, []string{"cache", "clear", "--yes"}, env.configPath)
	if err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	requireContains(t, out, "Removed 0 cached transcript(s)")
}

func TestValidateAndRenderCommands(t *testing.T) {
	env := setupCLITestEnv(t, "")
	path := writeFullTranscript(t, env.baseDir)

	out, _, err := runCLI(t, []string{"validate", path}, env.configPath)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	requireContains(t, out, "TRANSCRIPT VALIDATION REPORT")
	requireContains(t, out, "Validation Passed: yes")

	out, _, err = runCLI(t, []string{"render", "--format", "text", path}, env.configPath)
	if err != nil {
		t.Fatalf("render text: %v", err)
	}
	requireContains(t, out, "FULL VIDEO TRANSCRIPT")
	requireContains(t, out, "Instructor: Welcome to the course on distributed systems.")
	requireContains(t, out, "(Event: Slide titled Consensus appears)")

	target := filepath.Join(env.baseDir, "rendered", "clean.json")
	if _, _, err := runCLI(t, []string{"render", "--format", "clean", "-o", target, path}, env.configPath); err != nil {
		t.Fatalf("render clean: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read rendered: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode clean: %v", err)
	}
	if entries, ok := doc["transcript"].([]any); !ok || len(entries) != 3 {
		t.Fatalf("unexpected clean document %v", doc)
	}

	if _, _, err := runCLI(t, []string{"render", "--format", "srt", path}, env.configPath); !errors.Is(err, services.ErrInvalidConfiguration) {
		t.Fatalf("expected invalid representation error, got %v", err)
	}
}

func TestValidateStrictFailsOnKnownGap(t *testing.T) {
	env := setupCLITestEnv(t, "")
	tr := sampleTranscript()
	tr.Duration = 40 * time.Second
	tr.ChunkCount = 2
	tr.Gaps = []transcript.Gap{{ChunkIndex: 1, Start: 20 * time.Second, End: 40 * time.Second, Reason: "transient_service_error"}}
	data, err := format.Render(tr, format.Full, format.Options{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	path := filepath.Join(env.baseDir, "gappy.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, _, err := runCLI(t, []string{"validate", path}, env.configPath); err != nil {
		t.Fatalf("non-strict validate should succeed: %v", err)
	}
	if _, _, err := runCLI(t, []string{"validate", "--strict", path}, env.configPath); err == nil {
		t.Fatal("expected strict validation to fail on a known gap")
	}
}

func TestTestNotifyCommand(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload["test"] != true {
			t.Errorf("expected test flag in %v", payload)
		}
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	env := setupCLITestEnv(t, server.URL)
	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	if hits.Load() != 1 {
		t.Fatalf("expected one webhook call, got %d", hits.Load())
	}

	disabled := setupCLITestEnv(t, "")
	out, _, err = runCLI(t, []string{"test-notify"}, disabled.configPath)
	if err != nil {
		t.Fatalf("test-notify disabled: %v", err)
	}
	requireContains(t, out, "Notifications are disabled")
}

func TestProcessMissingVideo(t *testing.T) {
	env := setupCLITestEnv(t, "")
	missing := filepath.Join(env.baseDir, "missing.mp4")
	_, _, err := runCLI(t, []string{"process", "--skip-preflight", missing}, env.configPath)
	if !errors.Is(err, services.ErrExtraction) {
		t.Fatalf("expected extraction error, got %v", err)
	}
}

func TestStatusOfflineRendersSections(t *testing.T) {
	env := setupCLITestEnv(t, "")
	out, _, _ := runCLI(t, []string{"status", "--offline"}, env.configPath)
	requireContains(t, out, "== Environment ==")
	requireContains(t, out, "== Services ==")
	requireContains(t, out, "Cache backend (sqlite)")
	requireContains(t, out, "[SKIP] Skipped (--offline)")
	requireContains(t, out, "Work directories")
}

func TestLogsCommandFilters(t *testing.T) {
	env := setupCLITestEnv(t, "")
	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir logs: %v", err)
	}
	content := strings.Join([]string{
		"2026-01-01T00:00:00Z INFO pipeline: transcription started run_id=r1",
		"2026-01-01T00:00:01Z INFO pipeline: transcription started run_id=r2",
		"2026-01-01T00:00:02Z WARN pipeline: chunk produced no content run_id=r1",
	}, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(env.cfg.Paths.LogDir, "transcribe.log"), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "--run", "r1"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Count(out, "\n") != 2 || strings.Contains(out, "r2") {
		t.Fatalf("unexpected filtered output %q", out)
	}

	out, _, err = runCLI(t, []string{"logs", "-n", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("logs -n 1: %v", err)
	}
	requireContains(t, out, "chunk produced no content")
}

func TestExportOutputsCopiesEveryFile(t *testing.T) {
	src := t.TempDir()
	files := map[string]string{}
	for name, body := range map[string]string{"full": "[]", "text": "hello\n"} {
		path := filepath.Join(src, name+".out")
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		files[name] = path
	}

	dst := filepath.Join(t.TempDir(), "export")
	copied, err := exportOutputs(dst, files)
	if err != nil {
		t.Fatalf("exportOutputs: %v", err)
	}
	if len(copied) != 2 || filepath.Base(copied[0]) != "full.out" {
		t.Fatalf("unexpected copies %v", copied)
	}
	data, err := os.ReadFile(filepath.Join(dst, "text.out"))
	if err != nil || string(data) != "hello\n" {
		t.Fatalf("unexpected exported text %q err=%v", data, err)
	}
}

func TestRenderSectionMarksCheckStates(t *testing.T) {
	lines := renderSection("Services", []preflight.Result{
		{Name: "Cache backend", Passed: true, Detail: "sqlite"},
		{Name: "Analysis API", Passed: true, Detail: "Skipped (--offline)"},
		{Name: "Webhook", Passed: false, Detail: "connection refused"},
	}, false)
	if len(lines) != 4 || lines[0] != "== Services ==" {
		t.Fatalf("unexpected section %q", lines)
	}
	for i, want := range []string{"[OK] sqlite", "[SKIP] Skipped", "[FAIL] connection refused"} {
		if !strings.Contains(lines[i+1], want) {
			t.Fatalf("line %d = %q, want %q", i+1, lines[i+1], want)
		}
	}
}

func TestWriteJSONKeepsTranscriptText(t *testing.T) {
	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	if err := writeJSON(cmd, map[string]string{"spoken_text": "x < y & z"}); err != nil {
		t.Fatalf("writeJSON: %v", err)
	}
	requireContains(t, buf.String(), `"spoken_text": "x < y & z"`)
}
