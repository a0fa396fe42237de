package llm

import (
	"context"

	"github.com/stretchr/testify/mock"

	"opioid-assistant/internal/prompt"
)

// MockClient is a mock implementation of Client using testify/mock.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Complete(ctx context.Context, payload prompt.Payload) (string, error) {
	args := m.Called(ctx, payload)
	return args.String(0), args.Error(1)
}
