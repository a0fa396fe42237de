package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"opioid-assistant/internal/prompt"
)

// OpenAIClient calls the Chat Completions API through the official SDK.
// The base URL may point at any compatible provider.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient derives the SDK base URL from a full chat-completions endpoint.
// SDK retries are disabled; a call is a single attempt.
func NewOpenAIClient(endpoint, apiKey string, timeout time.Duration) (*OpenAIClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("api key required")
	}
	if timeout <= 0 {
		timeout = defaultInferenceTimeout
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(timeout),
	}
	if base := BaseURL(endpoint); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	cli := openai.NewClient(opts...)
	return &OpenAIClient{client: &cli}, nil
}

// BaseURL strips the chat-completions path so the SDK can append its own.
func BaseURL(endpoint string) string {
	base := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	base = strings.TrimSuffix(base, "/chat/completions")
	if base == "" {
		return ""
	}
	return base + "/"
}

func (c *OpenAIClient) Complete(ctx context.Context, payload prompt.Payload) (string, error) {
	if c == nil || c.client == nil {
		return "", fmt.Errorf("nil openai client")
	}
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(payload.Model),
		Messages: toSDKMessages(payload.Messages),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNetworkFailure, err)
	}
	if len(resp.Choices) == 0 || !resp.Choices[0].Message.JSON.Content.Valid() {
		return NoResponse, nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func toSDKMessages(msgs []prompt.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case prompt.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
