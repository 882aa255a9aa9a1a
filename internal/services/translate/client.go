package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"dubber/internal/config"
	"dubber/internal/services"
	"dubber/internal/stage"
)

const stageName = "translate"

const (
	defaultTimeoutSeconds   = 120
	defaultRetryMaxAttempts = 5
	defaultRetryBaseDelay   = time.Second
	defaultRetryMaxDelay    = 10 * time.Second
	requestTemperature      = 0.3
)

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	cfg              config.Translation
	httpClient       *http.Client
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(ctx context.Context, d time.Duration) error
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithRetryMaxAttempts overrides how many attempts a request may take.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.retryMaxAttempts = attempts
		}
	}
}

// WithRetryBackoff overrides the base and maximum retry delays.
func WithRetryBackoff(base, max time.Duration) Option {
	return func(c *Client) {
		if base > 0 {
			c.retryBaseDelay = base
		}
		if max > 0 {
			c.retryMaxDelay = max
		}
	}
}

// WithSleeper overrides how retry waits are performed (for testing).
func WithSleeper(sleeper func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		if sleeper != nil {
			c.sleeper = sleeper
		}
	}
}

// NewClient builds a translation client from configuration.
func NewClient(cfg config.Translation, opts ...Option) *Client {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = defaultTimeoutSeconds
	}
	client := &Client{
		cfg:              cfg,
		httpClient:       &http.Client{Timeout: time.Duration(timeout) * time.Second},
		retryMaxAttempts: defaultRetryMaxAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	client.sleeper = client.sleepWithContext
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, body)
}

// Translate sends one chunk to the model and returns the translated text.
func (c *Client) Translate(ctx context.Context, req stage.TranslateRequest) (string, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return "", services.Wrap(services.ErrValidation, stageName, "request", "empty source text", nil)
	}

	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt(c.cfg.Style, c.cfg.Tone, c.cfg.TargetLanguage)},
			{Role: "user", Content: UserPrompt(req.Text, req.PrevContext)},
		},
		Temperature: requestTemperature,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, stageName, "request", "encode request", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.retryMaxAttempts; attempt++ {
		translated, err := c.completeOnce(ctx, body)
		if err == nil {
			return translated, nil
		}
		lastErr = err

		delay, retryable := c.retryDelay(err, attempt)
		if !retryable || attempt == c.retryMaxAttempts {
			break
		}
		if sleepErr := c.sleeper(ctx, delay); sleepErr != nil {
			return "", services.Wrap(services.ErrTimeout, stageName, "request", "wait for retry", sleepErr)
		}
	}

	return "", classify(lastErr)
}

func (c *Client) completeOnce(ctx context.Context, body []byte) (string, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if completion.Error != nil && completion.Error.Message != "" {
		return "", fmt.Errorf("model error: %s", completion.Error.Message)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("response contained no choices")
	}

	translated := strings.TrimSpace(completion.Choices[0].Message.Content)
	if translated == "" {
		return "", errors.New("response contained empty translation")
	}
	return translated, nil
}

// retryDelay reports whether the error is retryable and at what delay.
func (c *Client) retryDelay(err error, attempt int) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= 500:
			if statusErr.RetryAfter > 0 {
				return statusErr.RetryAfter, true
			}
			return c.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.backoffDelay(attempt), true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return c.backoffDelay(attempt), true
	}

	return 0, false
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := c.retryBaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.retryMaxDelay {
			return c.retryMaxDelay
		}
	}
	if delay > c.retryMaxDelay {
		return c.retryMaxDelay
	}
	return delay
}

func (c *Client) sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return 0
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden:
			return services.Wrap(services.ErrConfiguration, stageName, "request", "authentication rejected", err)
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= 500:
			return services.Wrap(services.ErrTransient, stageName, "request", "model endpoint unavailable", err)
		default:
			return services.Wrap(services.ErrValidation, stageName, "request", "model rejected request", err)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, stageName, "request", "translation timed out", err)
	}
	return services.Wrap(services.ErrTransient, stageName, "request", "translation request failed", err)
}

// HealthCheck verifies the endpoint configuration. Local endpoints such as
// Ollama do not require an API key.
func (c *Client) HealthCheck(ctx context.Context) stage.Health {
	if strings.TrimSpace(c.cfg.BaseURL) == "" {
		return stage.Unhealthy(stageName, "base_url is not configured")
	}
	if strings.TrimSpace(c.cfg.Model) == "" {
		return stage.Unhealthy(stageName, "model is not configured")
	}
	if c.cfg.APIKey == "" && !isLocalEndpoint(c.cfg.BaseURL) {
		return stage.Unhealthy(stageName, "api_key is required for remote endpoints")
	}
	return stage.Healthy(stageName)
}

func isLocalEndpoint(baseURL string) bool {
	return strings.Contains(baseURL, "localhost") || strings.Contains(baseURL, "127.0.0.1")
}
