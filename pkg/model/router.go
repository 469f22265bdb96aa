package model

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/samanhappy/selectly/pkg/config"
	"github.com/samanhappy/selectly/pkg/errors"
	"github.com/samanhappy/selectly/pkg/logging"
)

const (
	// Fixed sampling parameters for function invocations.
	chatTemperature = 0.7
	chatMaxTokens   = 2048

	testTimeout = 15 * time.Second
)

// TokenProvider supplies the externally managed cloud access token.
type TokenProvider interface {
	Token() string
}

// RouterOptions configures a Router.
type RouterOptions struct {
	CloudBaseURL       string
	Tokens             TokenProvider
	NetworkLogsEnabled bool
	Logger             *logging.Logger
}

// Router maintains one request client per enabled provider plus the
// implicit cloud client, and executes chat requests against the resolved
// provider/model pair. The client map is rebuilt wholesale by Configure and
// otherwise only read.
type Router struct {
	opts   RouterOptions
	logger *logging.Logger

	mu           sync.RWMutex
	clients      map[string]*Client
	defaultModel string
	hasEnabled   bool
}

// NewRouter creates an unconfigured router; call Configure before use.
func NewRouter(opts RouterOptions) *Router {
	if opts.CloudBaseURL == "" {
		opts.CloudBaseURL = config.DefaultCloudBaseURL
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Router{
		opts:    opts,
		logger:  logger,
		clients: make(map[string]*Client),
	}
}

// Configure rebuilds the client set from scratch: one client per provider
// that is enabled with a non-empty key, plus the cloud client refreshed
// with the latest access token. Full rebuild, not an incremental patch;
// provider sets are small and change rarely.
func (r *Router) Configure(llm config.LLMConfig) {
	clients := make(map[string]*Client)
	hasEnabled := false

	for id, p := range llm.Providers {
		if !p.Enabled {
			continue
		}
		hasEnabled = true
		if p.APIKey == "" {
			continue
		}
		clients[id] = NewClientWithOptions(p.APIKey, p.BaseURL, ClientOptions{
			NetworkLogsEnabled: r.opts.NetworkLogsEnabled,
		})
	}

	token := ""
	if r.opts.Tokens != nil {
		token = r.opts.Tokens.Token()
	}
	clients[config.CloudProviderID] = NewClientWithOptions(token, r.opts.CloudBaseURL, ClientOptions{
		NetworkLogsEnabled: r.opts.NetworkLogsEnabled,
	})

	r.mu.Lock()
	old := r.clients
	r.clients = clients
	r.defaultModel = llm.DefaultModel
	r.hasEnabled = hasEnabled
	r.mu.Unlock()

	for _, c := range old {
		_ = c.Close()
	}

	r.logger.Info(logging.CategoryModel, "configured", "client set rebuilt",
		map[string]any{"clients": len(clients), "defaultModel": llm.DefaultModel})
}

// RefreshCloudToken pushes the latest access token into the cloud client
// without rebuilding the provider set. Called when a pending sign-in
// resolves after Configure already ran.
func (r *Router) RefreshCloudToken() {
	token := ""
	if r.opts.Tokens != nil {
		token = r.opts.Tokens.Token()
	}

	r.mu.RLock()
	client := r.clients[config.CloudProviderID]
	r.mu.RUnlock()
	if client == nil {
		return
	}
	client.SetAPIKey(token)
	r.logger.Info(logging.CategoryModel, "cloud_token_refreshed", "cloud client credential updated", nil)
}

// resolve maps an optional explicit model selector to a provider client
// and a concrete model name.
func (r *Router) resolve(model string) (*Client, config.ModelRef, error) {
	r.mu.RLock()
	defaultModel := r.defaultModel
	r.mu.RUnlock()

	effective := model
	if effective == "" || effective == config.DefaultModelRef {
		effective = defaultModel
	}

	ref, err := config.ParseModel(effective)
	if err != nil {
		return nil, config.ModelRef{}, err
	}

	r.mu.RLock()
	client, ok := r.clients[ref.ProviderID]
	r.mu.RUnlock()
	if !ok {
		return nil, ref, errors.Newf(errors.ErrCodeProviderNotConfigured,
			"no client for provider %q (disabled or missing key)", ref.ProviderID).
			WithContext("provider", ref.ProviderID)
	}
	return client, ref, nil
}

// Chat issues a single non-streamed completion for prompt and returns the
// trimmed text content. An empty model selects the store default.
func (r *Router) Chat(ctx context.Context, prompt string, model string) (string, error) {
	return r.ChatMessages(ctx, []Message{{Role: "user", Content: prompt}}, model)
}

// ChatMessages is the ordered-message-list form of Chat.
func (r *Router) ChatMessages(ctx context.Context, messages []Message, model string) (string, error) {
	client, ref, err := r.resolve(model)
	if err != nil {
		return "", err
	}

	r.logger.Debug(logging.CategoryModel, "chat", "dispatching request", map[string]any{
		"provider": ref.ProviderID,
		"model":    ref.ModelName,
		"tokens":   CountTokensForMessages(messages),
	})

	resp, err := client.ChatCompletion(ctx, ChatRequest{
		Model:       ref.ModelName,
		Messages:    messages,
		Temperature: chatTemperature,
		MaxTokens:   chatMaxTokens,
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", errors.Newf(errors.ErrCodeEmptyResponse,
			"provider %q returned no content", ref.ProviderID)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// ChunkHandler receives one streamed text delta; model identifies the
// concrete model the chunk came from.
type ChunkHandler func(delta string, model string)

// ChatStream issues a streamed completion for an ordered message list and
// forwards every non-empty text delta to onChunk synchronously, in arrival
// order. It returns after the stream is exhausted. Cancelling ctx stops
// delivery.
func (r *Router) ChatStream(ctx context.Context, messages []Message, onChunk ChunkHandler, model string) error {
	client, ref, err := r.resolve(model)
	if err != nil {
		return err
	}

	r.logger.Debug(logging.CategoryModel, "chat_stream", "dispatching request", map[string]any{
		"provider": ref.ProviderID,
		"model":    ref.ModelName,
		"tokens":   CountTokensForMessages(messages),
	})

	return client.ChatCompletionStream(ctx, ChatRequest{
		Model:       ref.ModelName,
		Messages:    messages,
		Temperature: chatTemperature,
		MaxTokens:   chatMaxTokens,
	}, func(chunk StreamChunk) {
		if len(chunk.Choices) == 0 {
			return
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			return
		}
		onChunk(delta, chunk.Model)
	})
}

// ChatStreamPrompt is the single-prompt form of ChatStream: the prompt is
// wrapped as one user message.
func (r *Router) ChatStreamPrompt(ctx context.Context, prompt string, onChunk ChunkHandler, model string) error {
	return r.ChatStream(ctx, []Message{{Role: "user", Content: prompt}}, onChunk, model)
}

// IsConfigured reports whether at least one provider is enabled and a
// default model is set.
func (r *Router) IsConfigured() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hasEnabled && r.defaultModel != ""
}

// TestProvider builds a throwaway client from the given credentials and
// attempts to list available models. It reports success or failure and
// never returns an error; form-level validation wants a boolean.
func (r *Router) TestProvider(ctx context.Context, p config.Provider) bool {
	client := NewClientWithOptions(p.APIKey, p.BaseURL, ClientOptions{Timeout: testTimeout})
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, testTimeout)
	defer cancel()

	if _, err := client.ListModels(ctx); err != nil {
		r.logger.Info(logging.CategoryModel, "provider_test_failed", err.Error(),
			map[string]any{"provider": p.ID})
		return false
	}
	return true
}
