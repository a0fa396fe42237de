package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"resty.dev/v3"

	"opioid-assistant/internal/prompt"
)

const defaultInferenceTimeout = 10 * time.Second

// HTTPClient posts chat payloads to any chat-completions compatible endpoint.
type HTTPClient struct {
	httpClient *resty.Client
	endpoint   string
}

// NewHTTPClient builds a fail-fast client: one attempt, fixed timeout.
func NewHTTPClient(endpoint, apiKey string, timeout time.Duration) (*HTTPClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("api key required")
	}
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint required")
	}
	if timeout <= 0 {
		timeout = defaultInferenceTimeout
	}
	client := resty.New().
		SetTimeout(timeout).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(0)
	return &HTTPClient{httpClient: client, endpoint: endpoint}, nil
}

func (c *HTTPClient) Close() error {
	return c.httpClient.Close()
}

func (c *HTTPClient) Complete(ctx context.Context, payload prompt.Payload) (string, error) {
	response, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		Post(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNetworkFailure, err)
	}
	if !response.IsSuccess() {
		return "", fmt.Errorf("%w: response error %d: %s", ErrNetworkFailure, response.StatusCode(), response.String())
	}
	return decodeAnswer(response.Bytes())
}
