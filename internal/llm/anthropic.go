package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultAnthropicBaseURL   = "https://api.anthropic.com"
	defaultAnthropicMaxTokens = 4096
)

type anthropicHandle struct {
	client anthropic.Client
	ready  bool
}

func (c *Client) ensureAnthropicSDK() error {
	if c == nil {
		return errors.New("nil client")
	}
	if c.anthropicSDK.ready {
		return nil
	}

	base := c.baseURL
	if base == "" {
		base = defaultAnthropicBaseURL
	}
	opts := []anthropicoption.RequestOption{
		anthropicoption.WithAPIKey(c.apiKey),
		anthropicoption.WithBaseURL(strings.TrimRight(base, "/") + "/"),
	}
	if c.httpClient != nil {
		opts = append(opts, anthropicoption.WithHTTPClient(c.httpClient))
	}
	c.anthropicSDK = anthropicHandle{client: anthropic.NewClient(opts...), ready: true}
	return nil
}

// streamAnthropic runs a streaming message call. Thinking deltas are the
// provider's structured reasoning channel and map directly onto
// StreamDelta.Reasoning.
func (c *Client) streamAnthropic(ctx context.Context, messages []Message, onDelta func(StreamDelta) error) (StreamResult, error) {
	if err := c.ensureAnthropicSDK(); err != nil {
		return StreamResult{}, err
	}

	maxTokens := c.maxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	system, converted := toAnthropicMessages(messages)
	params := anthropic.MessageNewParams{
		MaxTokens: int64(maxTokens),
		Model:     anthropic.Model(c.model),
		Messages:  converted,
	}
	if len(system) > 0 {
		params.System = system
	}

	stream := c.anthropicSDK.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	var content, reasoning strings.Builder
	for stream.Next() {
		event := stream.Current()
		deltaEvent, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		switch delta := deltaEvent.Delta.AsAny().(type) {
		case anthropic.TextDelta:
			if delta.Text == "" {
				continue
			}
			content.WriteString(delta.Text)
			if err := onDelta(StreamDelta{Content: delta.Text}); err != nil {
				return StreamResult{}, err
			}
		case anthropic.ThinkingDelta:
			if delta.Thinking == "" {
				continue
			}
			reasoning.WriteString(delta.Thinking)
			if err := onDelta(StreamDelta{Reasoning: delta.Thinking}); err != nil {
				return StreamResult{}, err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return StreamResult{}, err
	}
	return StreamResult{Content: content.String(), Reasoning: reasoning.String()}, nil
}

// toAnthropicMessages splits leading system messages into system blocks and
// maps the rest. Anthropic has no in-conversation system role; stray system
// messages keep their position as user messages.
func toAnthropicMessages(msgs []Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var (
		systemTexts []string
		cursor      int
	)
	for cursor < len(msgs) && strings.EqualFold(strings.TrimSpace(msgs[cursor].Role), "system") {
		if strings.TrimSpace(msgs[cursor].Content) != "" {
			systemTexts = append(systemTexts, msgs[cursor].Content)
		}
		cursor++
	}

	system := ([]anthropic.TextBlockParam)(nil)
	if len(systemTexts) > 0 {
		system = []anthropic.TextBlockParam{{Text: strings.Join(systemTexts, "\n\n")}}
	}

	out := make([]anthropic.MessageParam, 0, len(msgs)-cursor)
	for ; cursor < len(msgs); cursor++ {
		m := msgs[cursor]
		switch strings.ToLower(strings.TrimSpace(m.Role)) {
		case "assistant":
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return system, out
}
