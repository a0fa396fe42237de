package events

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockPublisher is a mock implementation of Publisher using testify/mock.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, ev Interaction) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}
