// Package platform is the REST client for the agent orchestration
// backend: thread listings for the inbox views, workflow metadata, and
// the saved-insights collection. The stream session lives in
// pkg/session; everything request/response shaped goes through here.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/agentdeck/agentdeck/pkg/auth"
	"github.com/agentdeck/agentdeck/pkg/errors"
	"github.com/agentdeck/agentdeck/pkg/logging"
	"github.com/agentdeck/agentdeck/pkg/telemetry"
)

const (
	defaultTimeout = 30 * time.Second

	// Proactive client-side rate limit, kept well under the backend's
	// published quota so bursts from the inbox refresh never 429.
	defaultRateLimit = rate.Limit(5)
	defaultBurstSize = 10
)

// RetryConfig bounds the retry loop for idempotent requests.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultRetryConfig returns the retry policy used unless overridden.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Multiplier:      2.0,
	}
}

// Client talks to the orchestration backend over HTTPS.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	tokens      auth.TokenSource
	rateLimiter *rate.Limiter
	retryConfig RetryConfig
	logger      *logging.Logger
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Tokens  auth.TokenSource
	Logger  *logging.Logger

	// HTTPClient is optional; a client with the default timeout is used
	// when nil.
	HTTPClient *http.Client

	// RetryConfig is optional; DefaultRetryConfig applies when nil.
	RetryConfig *RetryConfig
}

// NewClient creates a platform client.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "platform base URL is required")
	}
	if opts.Tokens == nil {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "platform token source is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	retryConfig := DefaultRetryConfig()
	if opts.RetryConfig != nil {
		retryConfig = *opts.RetryConfig
	}

	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		httpClient:  httpClient,
		tokens:      opts.Tokens,
		rateLimiter: rate.NewLimiter(defaultRateLimit, defaultBurstSize),
		retryConfig: retryConfig,
		logger:      opts.Logger,
	}, nil
}

func isIdempotentMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

// calculateBackoff returns the delay before the next attempt,
// exponential with jitter so parallel clients do not retry in lockstep.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryConfig.InitialInterval)
	for i := 0; i < attempt; i++ {
		delay *= c.retryConfig.Multiplier
	}
	if delay > float64(c.retryConfig.MaxInterval) {
		delay = float64(c.retryConfig.MaxInterval)
	}
	jitter := rand.Float64() * delay * 0.5
	return time.Duration(delay*0.75 + jitter)
}

// do executes one API call: auth header, rate limiting, retries for
// idempotent methods, JSON decode into out (which may be nil).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	start := time.Now()
	operation := method + " " + routeLabel(path)

	err := c.doOnce(ctx, method, path, body, out)

	status := "ok"
	if err != nil {
		status = string(errors.GetCode(err))
	}
	telemetry.ObservePlatformRequest(operation, status, time.Since(start))

	if err != nil {
		c.logger.Error(logging.CategoryPlatform, "request_failed", err, map[string]any{
			"operation": operation,
			"component": "platform_client",
		})
	}
	return err
}

func (c *Client) doOnce(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInvalidInput, "encode request body")
		}
		payload = data
	}

	maxAttempts := 1
	if isIdempotentMethod(method) {
		maxAttempts = c.retryConfig.MaxRetries + 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), errors.ErrCodePlatformAPI, "request cancelled")
			case <-time.After(c.calculateBackoff(attempt - 1)):
			}
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return errors.Wrap(err, errors.ErrCodePlatformAPI, "rate limit wait")
		}

		lastErr = c.roundTrip(ctx, method, path, payload, out)
		if lastErr == nil {
			return nil
		}
		if !errors.IsRetryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodePlatformAPI, "create request")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodePlatformAPI, "request failed").
			WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.parseError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, errors.ErrCodePlatformAPI, "decode response")
	}
	return nil
}

// apiError is the backend's error envelope.
type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) parseError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	message := strings.TrimSpace(string(data))
	var envelope apiError
	if json.Unmarshal(data, &envelope) == nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
	}
	if message == "" {
		message = resp.Status
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errors.New(errors.ErrCodePlatformNotFound, message).
			WithContext("status", resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return errors.New(errors.ErrCodePlatformRateLimit, message).
			WithContext("status", resp.StatusCode).
			WithRetryable(true)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return errors.New(errors.ErrCodeAuthToken, message).
			WithContext("status", resp.StatusCode).
			WithUserMessage("Your credentials were rejected, sign in again")
	case resp.StatusCode >= 500:
		return errors.New(errors.ErrCodePlatformAPI, message).
			WithContext("status", resp.StatusCode).
			WithRetryable(true)
	default:
		return errors.New(errors.ErrCodePlatformAPI, message).
			WithContext("status", resp.StatusCode)
	}
}

// routeLabel collapses a concrete path to its route shape for metric
// labels, so thread IDs do not explode the label cardinality.
func routeLabel(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, p := range parts {
		if len(p) > 20 || strings.ContainsAny(p, "0123456789") && i > 0 {
			parts[i] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}
