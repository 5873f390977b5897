// Package openai talks to OpenAI-compatible chat-completion endpoints
// (Groq by default).
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/smartcrop/advisor/internal/ports/outbound"
)

// ErrRateLimited is returned when the local request budget is spent.
var ErrRateLimited = errors.New("provider request budget exhausted")

// StatusError is a non-2xx response from the provider.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.StatusCode, e.Body)
}

// Config configures the client.
type Config struct {
	APIKey             string
	BaseURL            string
	Model              string
	Timeout            time.Duration
	RequestsPerMinute  int
	BreakerFailures    uint32
	BreakerOpenTimeout time.Duration
	HalfOpenProbes     uint32
}

// StateObserver is told about circuit breaker transitions.
type StateObserver func(name, from, to string)

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithStateObserver registers a breaker transition callback.
func WithStateObserver(fn StateObserver) Option {
	return func(c *Client) { c.observer = fn }
}

// Client implements outbound.CompletionProvider.
type Client struct {
	cfg      Config
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker[string]
	limiter  *rate.Limiter
	observer StateObserver
	logger   *zap.Logger
}

var _ outbound.CompletionProvider = (*Client)(nil)

type chatCompletionRequest struct {
	Model       string                   `json:"model"`
	Messages    []outbound.PromptMessage `json:"messages"`
	Temperature float64                  `json:"temperature"`
	MaxTokens   int                      `json:"max_tokens"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message      outbound.PromptMessage `json:"message"`
		FinishReason string                 `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// NewClient creates a client. An empty APIKey yields a client whose
// Complete always returns outbound.ErrProviderNotConfigured.
func NewClient(cfg Config, logger *zap.Logger, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerOpenTimeout <= 0 {
		cfg.BreakerOpenTimeout = time.Minute
	}
	if cfg.HalfOpenProbes == 0 {
		cfg.HalfOpenProbes = 1
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger.Named("provider"),
	}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), cfg.RequestsPerMinute)
	}

	c.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "completion-provider",
		MaxRequests: cfg.HalfOpenProbes,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// A caller giving up is not a provider fault.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if c.observer != nil {
				c.observer(name, from.String(), to.String())
			}
		},
	})

	if cfg.APIKey == "" {
		c.logger.Warn("no provider API key configured, all recommendations will use fallbacks")
	} else {
		c.logger.Info("provider client initialized",
			zap.String("base_url", cfg.BaseURL),
			zap.String("model", cfg.Model),
		)
	}
	return c
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

// Complete sends one chat-completion request and returns the first
// choice's content. It does not retry.
func (c *Client) Complete(ctx context.Context, req outbound.CompletionRequest) (string, error) {
	if !c.Configured() {
		return "", outbound.ErrProviderNotConfigured
	}
	if c.limiter != nil && !c.limiter.Allow() {
		return "", ErrRateLimited
	}
	return c.breaker.Execute(func() (string, error) {
		return c.call(ctx, req)
	})
}

func (c *Client) call(ctx context.Context, req outbound.CompletionRequest) (string, error) {
	body, err := json.Marshal(chatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(raw)
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return "", &StatusError{StatusCode: resp.StatusCode, Body: snippet}
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("provider returned no choices")
	}

	c.logger.Debug("completion finished",
		zap.Duration("latency", time.Since(start)),
		zap.Int("prompt_tokens", parsed.Usage.PromptTokens),
		zap.Int("completion_tokens", parsed.Usage.CompletionTokens),
		zap.Int("total_tokens", parsed.Usage.TotalTokens),
		zap.String("finish_reason", parsed.Choices[0].FinishReason),
	)

	return parsed.Choices[0].Message.Content, nil
}
