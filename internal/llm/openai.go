package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

type openaiHandle struct {
	client openai.Client
	ready  bool
}

func (c *Client) ensureOpenAISDK() error {
	if c == nil {
		return errors.New("nil client")
	}
	if c.openaiSDK.ready {
		return nil
	}

	opts := []option.RequestOption{
		option.WithAPIKey(c.apiKey),
	}
	if c.baseURL != "" {
		opts = append(opts, option.WithBaseURL(c.baseURL))
	}
	// OpenRouter-style gateways require attribution headers alongside the
	// target model identifier.
	if c.referer != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", c.referer))
	}
	if c.appTitle != "" {
		opts = append(opts, option.WithHeader("X-Title", c.appTitle))
	}
	if c.httpClient != nil {
		opts = append(opts, option.WithHTTPClient(c.httpClient))
	}
	c.openaiSDK = openaiHandle{client: openai.NewClient(opts...), ready: true}
	return nil
}

func (c *Client) streamOpenAI(ctx context.Context, messages []Message, onDelta func(StreamDelta) error) (StreamResult, error) {
	if err := c.ensureOpenAISDK(); err != nil {
		return StreamResult{}, err
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: toOpenAIMessages(messages),
	}
	if c.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(c.maxTokens))
	}

	stream := c.openaiSDK.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	var content, reasoning strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		for _, choice := range chunk.Choices {
			if text := reasoningDelta(choice.Delta); text != "" {
				reasoning.WriteString(text)
				if err := onDelta(StreamDelta{Reasoning: text}); err != nil {
					return StreamResult{}, err
				}
			}
			if choice.Delta.Content != "" {
				content.WriteString(choice.Delta.Content)
				if err := onDelta(StreamDelta{Content: choice.Delta.Content}); err != nil {
					return StreamResult{}, err
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return StreamResult{}, err
	}
	return StreamResult{Content: content.String(), Reasoning: reasoning.String()}, nil
}

// reasoningDelta pulls the non-standard reasoning field some gateways attach
// to streaming deltas. The SDK keeps unrecognized fields as raw JSON.
func reasoningDelta(delta openai.ChatCompletionChunkChoiceDelta) string {
	field, ok := delta.JSON.ExtraFields["reasoning"]
	if !ok {
		return ""
	}
	raw := field.Raw()
	if raw == "" || raw == "null" {
		return ""
	}
	var text string
	if err := json.Unmarshal([]byte(raw), &text); err != nil {
		return ""
	}
	return text
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch strings.ToLower(strings.TrimSpace(m.Role)) {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
