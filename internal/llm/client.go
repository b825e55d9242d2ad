// Package llm adapts remote chat-completion providers into a single
// streaming interface: a message list in, an incremental stream of
// (reasoning, content) text deltas out.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrMissingCredential distinguishes a missing/empty API key from other
// failures; callers must surface it before any streaming begins.
var ErrMissingCredential = errors.New("api key is required")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Provider string

const (
	ProviderOpenAI     Provider = "openai"
	ProviderAnthropic  Provider = "anthropic"
	providerAnthropics Provider = "anthropics"
)

func ParseProvider(raw string) (Provider, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "", string(ProviderOpenAI), "openrouter":
		return ProviderOpenAI, nil
	case string(ProviderAnthropic), string(providerAnthropics):
		return ProviderAnthropic, nil
	default:
		return "", fmt.Errorf("unsupported provider %q (supported: %q, %q)", raw, ProviderOpenAI, ProviderAnthropic)
	}
}

// StreamDelta is one increment from the upstream stream. Exactly one of the
// two fields is non-empty per delta.
type StreamDelta struct {
	Reasoning string
	Content   string
}

// StreamResult is the final accumulated text of a finished upstream stream.
type StreamResult struct {
	Content   string
	Reasoning string
}

// Options configure a Client. Referer and AppTitle become the attribution
// headers OpenRouter-style gateways require on every request.
type Options struct {
	Provider   Provider
	BaseURL    string
	APIKey     string
	Model      string
	MaxTokens  int
	Referer    string
	AppTitle   string
	HTTPClient *http.Client
}

type Client struct {
	provider   Provider
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	referer    string
	appTitle   string
	httpClient *http.Client

	openaiSDK    openaiHandle
	anthropicSDK anthropicHandle
}

const defaultRequestTimeout = 120 * time.Second

func NewClient(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ErrMissingCredential
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		return nil, errors.New("model is required")
	}
	provider := opts.Provider
	if provider == "" {
		provider = ProviderOpenAI
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &Client{
		provider:   provider,
		baseURL:    strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		apiKey:     apiKey,
		model:      model,
		maxTokens:  opts.MaxTokens,
		referer:    strings.TrimSpace(opts.Referer),
		appTitle:   strings.TrimSpace(opts.AppTitle),
		httpClient: httpClient,
	}, nil
}

// Model returns the configured target model identifier.
func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.model
}

// CheckCredential reports whether the client holds a usable credential.
// It never performs a network call.
func (c *Client) CheckCredential() error {
	if c == nil || strings.TrimSpace(c.apiKey) == "" {
		return ErrMissingCredential
	}
	return nil
}

// StreamChat opens a fresh streaming completion for messages and invokes
// onDelta for every increment until end-of-stream. Reasoning deltas come from
// the provider's structured reasoning channel when it has one; providers
// without one deliver everything as content. An onDelta error aborts the
// stream and is returned verbatim. Cancellation of ctx aborts the in-flight
// request.
func (c *Client) StreamChat(ctx context.Context, messages []Message, onDelta func(StreamDelta) error) (StreamResult, error) {
	if c == nil {
		return StreamResult{}, errors.New("nil client")
	}
	if err := c.CheckCredential(); err != nil {
		return StreamResult{}, err
	}
	if len(messages) == 0 {
		return StreamResult{}, errors.New("messages are required")
	}
	if onDelta == nil {
		onDelta = func(StreamDelta) error { return nil }
	}

	switch c.provider {
	case ProviderAnthropic:
		return c.streamAnthropic(ctx, messages, onDelta)
	default:
		return c.streamOpenAI(ctx, messages, onDelta)
	}
}
