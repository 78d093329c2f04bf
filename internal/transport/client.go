// Package transport performs the outbound vendor HTTP call for a translated
// request body and assembles per-call metrics. It is a collaborator of the
// translation core: the codecs produce bytes, this package moves them.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/llmwire/llmwire/internal/universal"
)

const (
	// DefaultTimeout for vendor API calls.
	DefaultTimeout = 60 * time.Second

	// maxResponseSize prevents OOM on unexpectedly large API responses (10MB).
	maxResponseSize = 10 * 1024 * 1024

	// maxErrorBodyLen limits error body in error messages to avoid log bloat.
	maxErrorBodyLen = 500

	// anthropicVersion is the Anthropic API version header value.
	anthropicVersion = "2023-06-01"
)

// CallMetrics describes one completed (or failed) vendor call.
type CallMetrics struct {
	Provider      universal.Provider `json:"provider"`
	Endpoint      string             `json:"endpoint"`
	Status        int                `json:"status"`
	Duration      time.Duration      `json:"duration"`
	RequestBytes  int                `json:"request_bytes"`
	ResponseBytes int                `json:"response_bytes"`
}

// Client sends translated request bodies to vendor endpoints.
type Client struct {
	http    *http.Client
	apiKeys map[universal.Provider]string
	headers map[string]string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client. Supply a client whose
// transport is a SigV4 signing RoundTripper for Bedrock-hosted endpoints.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithAPIKey sets the credential used for a provider.
func WithAPIKey(p universal.Provider, key string) Option {
	return func(c *Client) { c.apiKeys[p] = key }
}

// WithHeader adds a header to every outbound request.
func WithHeader(name, value string) Option {
	return func(c *Client) { c.headers[name] = value }
}

// NewClient creates a transport client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: DefaultTimeout},
		apiKeys: map[universal.Provider]string{},
		headers: map[string]string{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call posts a raw body to a vendor endpoint and returns the response body
// with call metrics. Non-2xx statuses return an error carrying a truncated
// response excerpt; metrics are populated either way.
func (c *Client) Call(ctx context.Context, provider universal.Provider, endpoint string, body []byte) ([]byte, CallMetrics, error) {
	metrics := CallMetrics{
		Provider:     provider,
		Endpoint:     endpoint,
		RequestBytes: len(body),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, metrics, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuthHeaders(req, provider)
	for name, value := range c.headers {
		req.Header.Set(name, value)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.Duration = time.Since(start)
	if err != nil {
		return nil, metrics, fmt.Errorf("%s call failed: %w", provider, err)
	}
	defer resp.Body.Close()

	metrics.Status = resp.StatusCode
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, metrics, fmt.Errorf("read %s response: %w", provider, err)
	}
	metrics.ResponseBytes = len(respBody)

	log.Debug().
		Str("provider", string(provider)).
		Int("status", resp.StatusCode).
		Dur("duration", metrics.Duration).
		Int("request_bytes", metrics.RequestBytes).
		Int("response_bytes", metrics.ResponseBytes).
		Msg("vendor call completed")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt := string(respBody)
		if len(excerpt) > maxErrorBodyLen {
			excerpt = excerpt[:maxErrorBodyLen] + "... (truncated)"
		}
		return respBody, metrics, fmt.Errorf("%s API returned status %d: %s", provider, resp.StatusCode, excerpt)
	}

	return respBody, metrics, nil
}

// setAuthHeaders applies the vendor's credential convention.
func (c *Client) setAuthHeaders(req *http.Request, provider universal.Provider) {
	key := c.apiKeys[provider]
	if key == "" && provider == universal.ProviderOpenAIResponses {
		key = c.apiKeys[universal.ProviderOpenAI]
	}

	switch provider {
	case universal.ProviderAnthropic:
		if key != "" {
			req.Header.Set("x-api-key", key)
		}
		req.Header.Set("anthropic-version", anthropicVersion)
	case universal.ProviderGemini:
		if key != "" {
			req.Header.Set("x-goog-api-key", key)
		}
	default: // both OpenAI shapes
		if key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}
	}
}
