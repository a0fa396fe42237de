package voice

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockTranscriber is a mock implementation of Transcriber using testify/mock.
type MockTranscriber struct {
	mock.Mock
}

func (m *MockTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	args := m.Called(ctx, audio)
	return args.String(0), args.Error(1)
}

// MockSynthesizer is a mock implementation of Synthesizer using testify/mock.
type MockSynthesizer struct {
	mock.Mock
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, text string) (*Clip, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Clip), args.Error(1)
}
