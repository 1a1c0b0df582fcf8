package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/garnizeh/skilltrials/internal/config"
)

var ErrCircuitOpen = errors.New("ollama circuit open")

// Client wraps the Ollama API client and adds retries, timeout, and circuit breaker.
type Client struct {
	api    *api.Client
	cfg    config.OllamaConfig
	client *http.Client

	failures  int32
	openUntil int64 // unix nano
	closed    int32
}

// GenerateResult is the concatenated text of a streamed model response.
type GenerateResult struct {
	Text  string         `json:"text"`
	Model string         `json:"model"`
	Meta  map[string]any `json:"meta,omitempty"`
}

// package-level logger for pkg/ollama; can be replaced by callers
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger sets the logger used by pkg/ollama. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// NewClient creates a new Ollama client wrapper. Zero settings in cfg fall
// back to config.DefaultOllamaConfig.
func NewClient(cfg config.OllamaConfig, httpClient *http.Client) (*Client, error) {
	def := config.DefaultOllamaConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.CircuitFailureThreshold <= 0 {
		cfg.CircuitFailureThreshold = def.CircuitFailureThreshold
	}
	if cfg.CircuitReset <= 0 {
		cfg.CircuitReset = def.CircuitReset
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}

	if httpClient == nil {
		httpClient = &http.Client{}
	}

	u, err := url.ParseRequestURI(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	c := &Client{
		api:    api.NewClient(u, httpClient),
		cfg:    cfg,
		client: httpClient,
	}
	logger.Debug("ollama client created", slog.String("base_url", cfg.BaseURL), slog.Duration("timeout", cfg.Timeout))

	return c, nil
}

func NewDefaultClient(cfg config.OllamaConfig) (*Client, error) {
	defaultClient := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 15 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	return NewClient(cfg, defaultClient)
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.failures) < int32(c.cfg.CircuitFailureThreshold) {
		return false
	}

	if time.Now().UnixNano() < atomic.LoadInt64(&c.openUntil) {
		return true
	}

	// half-open: let one request through
	atomic.StoreInt32(&c.failures, 0)
	return false
}

func (c *Client) recordFailure() {
	v := atomic.AddInt32(&c.failures, 1)
	if v >= int32(c.cfg.CircuitFailureThreshold) {
		atomic.StoreInt64(&c.openUntil, time.Now().Add(c.cfg.CircuitReset).UnixNano())
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt32(&c.failures, 0)
}

// Close closes idle connections on the underlying transport when supported.
// Close is idempotent.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	if c.client != nil && c.client.Transport != nil {
		if tr, ok := c.client.Transport.(interface{ CloseIdleConnections() }); ok {
			tr.CloseIdleConnections()
		}
	}
	return nil
}

// ModelInfo is a lightweight model descriptor returned by ListModels.
type ModelInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// ListModels returns the models installed on the Ollama instance.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	if c.isCircuitOpen() {
		return nil, ErrCircuitOpen
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.api.List(ctx)
	if err != nil {
		c.recordFailure()
		return nil, fmt.Errorf("list models: %w", err)
	}

	out := make([]ModelInfo, 0, len(resp.Models))
	for _, m := range resp.Models {
		out = append(out, ModelInfo{Name: m.Name, Size: m.Size})
	}
	c.recordSuccess()

	return out, nil
}

// Health reports an error unless Ollama answers with at least one model.
func (c *Client) Health(ctx context.Context) error {
	models, err := c.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if len(models) == 0 {
		return errors.New("health check failed: no models installed")
	}

	return nil
}

// Generate sends prompt to model and returns the streamed text.
func (c *Client) Generate(ctx context.Context, model string, prompt string) (GenerateResult, error) {
	return c.GenerateFormat(ctx, model, prompt, nil)
}

// GenerateFormat is Generate with an output format: `"json"` or a JSON schema
// the model must follow. Failed attempts are retried with linear backoff.
func (c *Client) GenerateFormat(ctx context.Context, model, prompt string, format json.RawMessage) (GenerateResult, error) {
	var lastErr error
	if c.isCircuitOpen() {
		return GenerateResult{}, ErrCircuitOpen
	}

	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, c.cfg.Backoff*time.Duration(attempt)); err != nil {
				return GenerateResult{}, err
			}
			if c.isCircuitOpen() {
				return GenerateResult{}, ErrCircuitOpen
			}
		}

		res, err := c.generateOnce(ctx, model, prompt, format)
		if err == nil {
			c.recordSuccess()
			return res, nil
		}

		lastErr = err
		c.recordFailure()
		logger.Warn("ollama generate attempt failed", slog.Int("attempt", attempt+1), slog.String("model", model), slog.Any("err", err))
		if ctx.Err() != nil {
			return GenerateResult{}, ctx.Err()
		}
	}

	return GenerateResult{}, fmt.Errorf("generate failed after retries: %w", lastErr)
}

func (c *Client) generateOnce(ctx context.Context, model, prompt string, format json.RawMessage) (GenerateResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req := &api.GenerateRequest{Model: model, Prompt: prompt, Format: format}
	var (
		sb   strings.Builder
		done bool
	)
	start := time.Now()
	err := c.api.Generate(ctx, req, func(r api.GenerateResponse) error {
		sb.WriteString(r.Response)
		done = r.Done
		return nil
	})
	if err != nil {
		return GenerateResult{}, err
	}

	meta := map[string]any{"latency_ms": time.Since(start).Milliseconds(), "done": done}
	return GenerateResult{Text: sb.String(), Model: model, Meta: meta}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
