package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"opioid-assistant/internal/prompt"
)

// NoResponse is returned when the answer is missing from an otherwise successful reply.
const NoResponse = "No response"

// ErrNetworkFailure marks connection errors, timeouts, non-success statuses and
// unreadable bodies. The wrapped error carries the detail.
var ErrNetworkFailure = errors.New("inference request failed")

// Client sends one payload to the remote model and returns its answer text.
type Client interface {
	Complete(ctx context.Context, payload prompt.Payload) (string, error)
}

// Each level of choices[0].message.content is decoded on its own so a level
// that is absent, null or of an unexpected type stops the walk.
type (
	chatResponse struct {
		Choices []json.RawMessage `json:"choices"`
	}
	chatChoice struct {
		Message json.RawMessage `json:"message"`
	}
	chatMessage struct {
		Content *string `json:"content"`
	}
)

// decodeAnswer walks choices[0].message.content, yielding NoResponse at the
// first missing or mistyped level. Only a body that is not JSON is an error.
func decodeAnswer(body []byte) (string, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) || !json.Valid(body) {
			return "", fmt.Errorf("%w: decoding response: %w", ErrNetworkFailure, err)
		}
		return NoResponse, nil
	}
	if len(resp.Choices) == 0 {
		return NoResponse, nil
	}
	var choice chatChoice
	if err := json.Unmarshal(resp.Choices[0], &choice); err != nil || len(choice.Message) == 0 {
		return NoResponse, nil
	}
	var msg chatMessage
	if err := json.Unmarshal(choice.Message, &msg); err != nil || msg.Content == nil {
		return NoResponse, nil
	}
	return strings.TrimSpace(*msg.Content), nil
}
