// Package freshdesk provides a client for the Freshdesk solutions API and
// the adapter pushing the content tree to it.
package freshdesk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/fclairamb/docmap/internal/apperrors"
	"github.com/fclairamb/docmap/internal/version"
)

const (
	// httpTimeout bounds a single HTTP request.
	httpTimeout = 30 * time.Second

	// DefaultRateInterval spaces requests (~3 requests/second).
	DefaultRateInterval = 350 * time.Millisecond

	// apiPassword is the placeholder password Freshdesk expects with an API key.
	apiPassword = "X"

	maxRetries     = 5
	initialBackoff = time.Second

	httpStatusBadRequest = 400
)

// Client is a Freshdesk API client with rate limiting.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	rateLimiter *rate.Limiter
	backoff     time.Duration
	logger      *slog.Logger
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = l
	}
}

// WithRateInterval sets the minimum delay between two requests. Zero disables limiting.
func WithRateInterval(interval time.Duration) ClientOption {
	return func(client *Client) {
		if interval <= 0 {
			client.rateLimiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		client.rateLimiter = rate.NewLimiter(rate.Every(interval), 1)
	}
}

// WithBackoff sets the initial delay after a 429 response (useful for testing).
func WithBackoff(d time.Duration) ClientOption {
	return func(client *Client) {
		client.backoff = d
	}
}

// NewClient creates a client for the helpdesk at baseURL, e.g. https://acme.freshdesk.com.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	client := &Client{
		httpClient:  &http.Client{Timeout: httpTimeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		rateLimiter: rate.NewLimiter(rate.Every(DefaultRateInterval), 1),
		backoff:     initialBackoff,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// BaseURL returns the helpdesk URL the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Ping checks the credentials by listing the solution categories.
func (c *Client) Ping(ctx context.Context) (int, error) {
	var categories []categoryEnvelope
	if err := c.do(ctx, http.MethodGet, "/solution/categories.json", nil, &categories); err != nil {
		return 0, err
	}
	return len(categories), nil
}

// do performs an HTTP request with rate limiting, retrying on 429 with exponential backoff.
//
//nolint:funlen // HTTP client with retry logic and error handling
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
	}

	c.logger.DebugContext(ctx, "API request", "method", method, "path", path)
	startTime := time.Now()
	backoff := c.backoff

	for attempt := range maxRetries {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		// The body reader is consumed by each attempt.
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.SetBasicAuth(c.apiKey, apiPassword)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", version.UserAgent())

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("do request: %w", err)
		}

		respBody, err := io.ReadAll(resp.Body)
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.WarnContext(ctx, "failed to close response body", "error", closeErr)
		}
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			c.logger.WarnContext(ctx, "rate limited, backing off", "attempt", attempt+1, "backoff", backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
				continue
			}
		}

		if resp.StatusCode >= httpStatusBadRequest {
			c.logger.WarnContext(ctx, "API error",
				"method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(startTime))
			return newAPIError(resp.StatusCode, respBody)
		}

		if result != nil && len(bytes.TrimSpace(respBody)) > 0 {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
		}

		c.logger.DebugContext(ctx, "API response",
			"method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(startTime))

		return nil
	}

	return apperrors.ErrMaxRetriesExceeded
}
