package model

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/samanhappy/selectly/pkg/errors"
)

const (
	defaultTimeout = 5 * time.Minute

	// Smooth bursts without imposing retry semantics; provider-side rate
	// limits are still surfaced to the caller as RATE_LIMITED.
	defaultRateLimit = rate.Limit(2)
	defaultBurstSize = 10
)

// DefaultTransport returns an http.Transport with tuned connection pool settings.
func DefaultTransport() *http.Transport {
	return &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
}

// Client talks to one OpenAI-compatible chat-completions endpoint.
type Client struct {
	mu          sync.RWMutex
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	transport   *LoggingTransport
	rateLimiter *rate.Limiter
}

// ClientOptions tunes client construction.
type ClientOptions struct {
	NetworkLogsEnabled bool
	// Timeout overrides the default request timeout. Zero keeps the default.
	Timeout time.Duration
}

// NewClient creates a client for the given endpoint and credential.
func NewClient(apiKey, baseURL string) *Client {
	return NewClientWithOptions(apiKey, baseURL, ClientOptions{})
}

// NewClientWithOptions creates a client with explicit options.
func NewClientWithOptions(apiKey, baseURL string, opts ClientOptions) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")
	transport := NewLoggingTransport(DefaultTransport(), opts.NetworkLogsEnabled)

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		transport:   transport,
		rateLimiter: rate.NewLimiter(defaultRateLimit, defaultBurstSize),
	}
}

// SetAPIKey swaps the credential, used when the cloud access token rotates.
// Safe to call while requests are in flight.
func (c *Client) SetAPIKey(apiKey string) {
	c.mu.Lock()
	c.apiKey = apiKey
	c.mu.Unlock()
}

// BaseURL returns the endpoint this client is bound to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close releases the network log file if one is open.
func (c *Client) Close() error {
	if c.transport != nil {
		return c.transport.Close()
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	c.mu.RLock()
	apiKey := c.apiKey
	c.mu.RUnlock()
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
}

// ChatCompletion executes a single non-streamed completion request.
func (c *Client) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	req.Stream = false

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.doWithRateLimit(ctx, httpReq)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeNetworkError, "request failed").
			WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceError, "decoding response")
	}
	return &chatResp, nil
}

// ChatCompletionStream executes a streamed completion request, invoking
// onChunk for every received chunk in arrival order. It returns only after
// the stream is exhausted or fails.
func (c *Client) ChatCompletionStream(ctx context.Context, req ChatRequest, onChunk func(StreamChunk)) error {
	req.Stream = true

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.doWithRateLimit(ctx, httpReq)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeNetworkError, "stream request failed").
			WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseError(resp)
	}

	return c.parseSSEStream(ctx, resp.Body, onChunk)
}

func (c *Client) parseSSEStream(ctx context.Context, r io.Reader, onChunk func(StreamChunk)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return nil
		}

		var chunk StreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Tolerate provider keep-alives and partial frames.
			continue
		}
		onChunk(chunk)
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeNetworkError, "reading stream")
	}
	return nil
}

// ListModels fetches the models endpoint; used for connectivity testing.
func (c *Client) ListModels(ctx context.Context) (*ModelCatalog, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.doWithRateLimit(ctx, httpReq)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeNetworkError, "request failed").
			WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var catalog ModelCatalog
	if err := json.NewDecoder(resp.Body).Decode(&catalog); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceError, "decoding catalog")
	}
	return &catalog, nil
}

func (c *Client) doWithRateLimit(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.httpClient.Do(req)
}

// parseError maps a non-200 response onto the stable error taxonomy. The
// status-code mapping is deterministic: 401 invalid key, 429 rate limited,
// 5xx server error, anything else a generic service error.
func (c *Client) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	message := strings.TrimSpace(string(body))
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return errors.Newf(errors.ErrCodeInvalidAPIKey, "invalid API key: %s", message).
			WithUserMessage("The API key was rejected. Check the provider settings.")
	case resp.StatusCode == http.StatusTooManyRequests:
		return errors.Newf(errors.ErrCodeRateLimited, "rate limited: %s", message).
			WithRetryable(true).
			WithUserMessage("The provider is rate limiting requests. Try again shortly.")
	case resp.StatusCode >= 500:
		return errors.Newf(errors.ErrCodeServerError, "provider error (HTTP %d): %s", resp.StatusCode, message).
			WithRetryable(true).
			WithUserMessage("The provider reported a server error.")
	default:
		return errors.Newf(errors.ErrCodeServiceError, "HTTP %d: %s", resp.StatusCode, message).
			WithUserMessage("The request failed.")
	}
}
