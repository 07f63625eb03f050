package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aminsmd/multimodal-transcription/internal/config"
	"github.com/aminsmd/multimodal-transcription/internal/services"
)

const (
	// DefaultBaseURL is the public generative language endpoint.
	DefaultBaseURL     = "https://generativelanguage.googleapis.com"
	apiVersion         = "v1beta"
	defaultHTTPTimeout = 10 * time.Minute
	defaultPollEvery   = 2 * time.Second
	defaultMaxWait     = 5 * time.Minute
	apiKeyHeader       = "x-goog-api-key"
)

// Config captures the runtime settings required to talk to the API.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Temperature    float64
	TimeoutSeconds int
	// PollInterval and MaxWait bound the wait for uploaded files to become ACTIVE.
	PollInterval time.Duration
	MaxWait      time.Duration
}

// ConfigFromAnalysis maps the [analysis] settings onto a client Config.
func ConfigFromAnalysis(cfg config.Analysis) Config {
	return Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		Temperature:    cfg.Temperature,
		TimeoutSeconds: cfg.TimeoutSeconds,
		PollInterval:   time.Duration(cfg.UploadPollIntervalSeconds) * time.Second,
		MaxWait:        time.Duration(cfg.UploadMaxWaitSeconds) * time.Second,
	}
}

// Client wraps the generateContent and files endpoints.
type Client struct {
	cfg        Config
	httpClient *http.Client
	sleeper    func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithSleeper overrides how poll waits are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.Model = strings.TrimPrefix(strings.TrimSpace(cfg.Model), "models/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollEvery
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = defaultMaxWait
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Model returns the configured model id.
func (c *Client) Model() string { return c.cfg.Model }

// HealthCheck verifies the API key by fetching the configured model.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return services.Wrap(services.ErrInvalidConfiguration, "analysis", "health", "api key required", nil)
	}
	var model struct {
		Name string `json:"name"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.endpoint("models", c.cfg.Model), nil, &model, "health"); err != nil {
		return err
	}
	if model.Name == "" {
		return services.Wrap(services.ErrMalformedResponse, "analysis", "health", "model lookup returned no name", nil)
	}
	return nil
}

func (c *Client) endpoint(parts ...string) string {
	return c.cfg.BaseURL + "/" + apiVersion + "/" + strings.Join(parts, "/")
}

// httpStatusError is a non-2xx response.
type httpStatusError struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, summarizePayloadSnippet(e.Body))
}

// RetryAfter exposes the server-requested delay to the retry helper.
func (e *httpStatusError) RetryAfter() time.Duration {
	return e.Delay
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, payload, target any, op string) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("%s: new request: %w", op, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	data, _, err := c.send(req, op)
	if err != nil {
		return err
	}
	if target == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return services.Wrap(services.ErrMalformedResponse, "analysis", op, "decode response", err)
	}
	return nil
}

// send executes req with authentication and classifies failures.
func (c *Client) send(req *http.Request, op string) ([]byte, http.Header, error) {
	req.Header.Set(apiKeyHeader, c.cfg.APIKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		return nil, nil, services.Wrap(services.ErrTransientService, "analysis", op,
			fmt.Sprintf("http error (timeout=%s)", c.httpClient.Timeout), err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrTransientService, "analysis", op, "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		delay, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		statusErr := &httpStatusError{StatusCode: resp.StatusCode, Body: string(data), Delay: delay}
		return nil, resp.Header, services.Wrap(classifyStatus(resp.StatusCode), "analysis", op, "", statusErr)
	}
	return data, resp.Header, nil
}

func classifyStatus(code int) error {
	switch {
	case code == http.StatusRequestTimeout,
		code == http.StatusTooManyRequests,
		code >= http.StatusInternalServerError:
		return services.ErrTransientService
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return services.ErrInvalidConfiguration
	case code == http.StatusNotFound:
		return services.ErrNotFound
	default:
		return services.ErrChunkAnalysisFailed
	}
}

func statusCode(err error) int {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
