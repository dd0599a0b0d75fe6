// Package client is the typed HTTP client for the orchestration server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/hanno79/Nexora-sub001/internal/apperr"
	"github.com/hanno79/Nexora-sub001/internal/catalog"
	"github.com/hanno79/Nexora-sub001/internal/guided"
	"github.com/hanno79/Nexora-sub001/internal/models"
)

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	// Timeout bounds every call that does not pass its own.
	Timeout time.Duration
	// ReadRetries is how often idempotent GETs are retried.
	ReadRetries int
	Logger      *slog.Logger
}

// Client calls the orchestration server. Generation calls are never retried;
// a timeout only means the client stopped waiting.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	writes  *http.Client
	reads   *http.Client
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	writes := &http.Client{}
	reads := writes
	if cfg.ReadRetries > 0 {
		rc := retryablehttp.NewClient()
		rc.HTTPClient = &http.Client{}
		rc.RetryMax = cfg.ReadRetries
		rc.RetryWaitMin = 200 * time.Millisecond
		rc.RetryWaitMax = 2 * time.Second
		rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
		rc.Logger = cfg.Logger
		reads = rc.StandardClient()
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		writes:  writes,
		reads:   reads,
	}
}

// GuidedStart opens a guided session.
func (c *Client) GuidedStart(ctx context.Context, req *models.GuidedStartRequest) (*models.GuidedStartResponse, error) {
	if _, err := guided.ValidateIdea(req.ProjectIdea); err != nil {
		return nil, err
	}
	var out models.GuidedStartResponse
	return result(&out, c.post(ctx, "/guided-start", req, &out, c.timeout))
}

// GuidedAnswer submits one round of answers.
func (c *Client) GuidedAnswer(ctx context.Context, req *models.GuidedAnswerRequest) (*models.GuidedAnswerResponse, error) {
	if req.SessionID == "" {
		return nil, apperr.Validation("sessionId", "is required")
	}
	if err := guided.ValidateAnswers(req.Answers); err != nil {
		return nil, err
	}
	if len(req.Questions) > 0 {
		if err := guided.CheckAnswers(req.Answers, req.Questions); err != nil {
			return nil, err
		}
	}
	var out models.GuidedAnswerResponse
	return result(&out, c.post(ctx, "/guided-answer", req, &out, c.timeout))
}

// GuidedFinalize produces the document for a session.
func (c *Client) GuidedFinalize(ctx context.Context, req *models.GuidedFinalizeRequest) (*models.FinalContentResponse, error) {
	if req.SessionID == "" {
		return nil, apperr.Validation("sessionId", "is required")
	}
	var out models.FinalContentResponse
	return result(&out, c.post(ctx, "/guided-finalize", req, &out, c.timeout))
}

// GuidedSkip produces a document straight from the idea.
func (c *Client) GuidedSkip(ctx context.Context, req *models.GuidedSkipRequest) (*models.FinalContentResponse, error) {
	if _, err := guided.ValidateIdea(req.ProjectIdea); err != nil {
		return nil, err
	}
	var out models.FinalContentResponse
	return result(&out, c.post(ctx, "/guided-skip", req, &out, c.timeout))
}

// GenerateDual runs one generate-then-review pass.
func (c *Client) GenerateDual(ctx context.Context, req *models.DualGenerateRequest) (*models.DualGenerateResponse, error) {
	if strings.TrimSpace(req.UserInput) == "" && strings.TrimSpace(req.ExistingContent) == "" {
		return nil, apperr.Validation("userInput", "is required when there is no existing content")
	}
	var out models.DualGenerateResponse
	return result(&out, c.post(ctx, "/generate-dual", req, &out, c.timeout))
}

// GenerateIterative runs an N-round refinement. timeout replaces the client
// default when positive.
func (c *Client) GenerateIterative(ctx context.Context, req *models.IterativeGenerateRequest, timeout time.Duration) (*models.IterativeGenerateResponse, error) {
	if req.IterationCount < models.MinIterationCount || req.IterationCount > models.MaxIterationCount {
		return nil, apperr.Validation("iterationCount", "must be between %d and %d",
			models.MinIterationCount, models.MaxIterationCount)
	}
	if strings.TrimSpace(req.AdditionalRequirements) == "" && strings.TrimSpace(req.ExistingContent) == "" {
		return nil, apperr.Validation("additionalRequirements", "is required when there is no existing content")
	}
	if timeout <= 0 {
		timeout = c.timeout
	}
	var out models.IterativeGenerateResponse
	return result(&out, c.post(ctx, "/generate-iterative", req, &out, timeout))
}

// Settings returns the saved AI settings.
func (c *Client) Settings(ctx context.Context) (*models.AISettings, error) {
	var out models.AISettings
	return result(&out, c.get(ctx, "/settings/ai", &out))
}

// UpdateSettings applies a partial settings change.
func (c *Client) UpdateSettings(ctx context.Context, req *models.UpdateSettingsRequest) (*models.AISettings, error) {
	var out models.AISettings
	return result(&out, c.send(ctx, c.writes, http.MethodPatch, "/settings/ai", req, &out, c.timeout))
}

// Usage returns aggregated usage since the given time; zero means all time.
func (c *Client) Usage(ctx context.Context, since time.Time) (*models.UsageSummary, error) {
	path := "/usage"
	if !since.IsZero() {
		path += "?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339))
	}
	var out models.UsageSummary
	return result(&out, c.get(ctx, path, &out))
}

// Catalog returns the server's model catalog.
func (c *Client) Catalog(ctx context.Context) (*catalog.Catalog, error) {
	var out catalog.Catalog
	return result(&out, c.get(ctx, "/models/catalog", &out))
}

// Health returns the server health report.
func (c *Client) Health(ctx context.Context) (*models.HealthResponse, error) {
	var out models.HealthResponse
	return result(&out, c.get(ctx, "/health", &out))
}

// RealtimeURL returns the websocket endpoint, with the API key as a query
// parameter when one is configured.
func (c *Client) RealtimeURL() string {
	u := c.baseURL + "/ws"
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	if c.apiKey != "" {
		u += "?token=" + url.QueryEscape(c.apiKey)
	}
	return u
}

// AuthHeader returns the header to present on realtime connections.
func (c *Client) AuthHeader() http.Header {
	h := http.Header{}
	if c.apiKey != "" {
		h.Set("Authorization", "Bearer "+c.apiKey)
	}
	return h
}

func result[T any](out *T, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.send(ctx, c.reads, http.MethodGet, path, nil, out, c.timeout)
}

func (c *Client) post(ctx context.Context, path string, body, out any, timeout time.Duration) error {
	return c.send(ctx, c.writes, http.MethodPost, path, body, out, timeout)
}

func (c *Client) send(ctx context.Context, hc *http.Client, method, path string, body, out any, timeout time.Duration) error {
	op := method + " " + strings.SplitN(path, "?", 2)[0]

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return &apperr.NetworkOrTimeoutError{
			Op:      op,
			Timeout: errors.Is(ctx.Err(), context.DeadlineExceeded),
			Err:     err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errBody apperr.Response
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &errBody) != nil || errBody.Error == "" {
			errBody.Error = strings.TrimSpace(string(data))
			if errBody.Error == "" {
				errBody.Error = http.StatusText(resp.StatusCode)
			}
		}
		return apperr.FromResponse(resp.StatusCode, errBody)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return &apperr.NetworkOrTimeoutError{Op: op, Timeout: errors.Is(ctx.Err(), context.DeadlineExceeded), Err: err}
		}
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}
