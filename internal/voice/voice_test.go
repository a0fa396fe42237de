package voice

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRecognize(t *testing.T) {
	audio := []byte("RIFF....WAVE")

	tests := []struct {
		name   string
		audio  []byte
		setup  func(*MockTranscriber)
		want   string
		wantOK bool
	}{
		{
			name:  "transcription",
			audio: audio,
			setup: func(m *MockTranscriber) {
				m.On("Transcribe", mock.Anything, audio).Return("  what is naloxone ", nil).Once()
			},
			want:   "what is naloxone",
			wantOK: true,
		},
		{
			name:  "unrecognized",
			audio: audio,
			setup: func(m *MockTranscriber) {
				m.On("Transcribe", mock.Anything, audio).Return("", ErrUnrecognized).Once()
			},
			want: Unrecognized,
		},
		{
			name:  "blank transcription counts as unrecognized",
			audio: audio,
			setup: func(m *MockTranscriber) {
				m.On("Transcribe", mock.Anything, audio).Return("   ", nil).Once()
			},
			want: Unrecognized,
		},
		{
			name:  "service error",
			audio: audio,
			setup: func(m *MockTranscriber) {
				m.On("Transcribe", mock.Anything, audio).Return("", errors.New("dial tcp: refused")).Once()
			},
			want: Unavailable,
		},
		{
			name:  "empty audio never reaches the service",
			audio: nil,
			setup: func(m *MockTranscriber) {},
			want:  Unrecognized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockTranscriber)
			tt.setup(m)

			got, ok := Recognize(context.Background(), m, tt.audio)

			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
			m.AssertExpectations(t)
		})
	}
}

func TestNoopTranscriberIsUnavailable(t *testing.T) {
	got, ok := Recognize(context.Background(), NoopTranscriber{}, []byte("audio"))
	assert.False(t, ok)
	assert.Equal(t, Unavailable, got)
}

func TestClipLifecycle(t *testing.T) {
	clip, err := NewClip(strings.NewReader("ID3 audio"), "clip-test-*.mp3", "audio/mpeg")
	require.NoError(t, err)

	data, err := clip.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "ID3 audio", string(data))
	assert.Equal(t, "audio/mpeg", clip.ContentType)

	require.NoError(t, clip.Close())
	_, err = os.Stat(clip.Path)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, clip.Close())
}

func TestWithClipReleasesFile(t *testing.T) {
	tests := []struct {
		name    string
		fnErr   error
		wantErr bool
	}{
		{name: "after success"},
		{name: "after callback error", fnErr: errors.New("playback failed"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clip, err := NewClip(strings.NewReader("audio"), "clip-test-*.mp3", "audio/mpeg")
			require.NoError(t, err)

			s := new(MockSynthesizer)
			s.On("Synthesize", mock.Anything, "fentanyl is dangerous.").Return(clip, nil).Once()

			var seen string
			err = WithClip(context.Background(), s, "fentanyl is dangerous.", func(c *Clip) error {
				seen = c.Path
				_, statErr := os.Stat(c.Path)
				require.NoError(t, statErr)
				return tt.fnErr
			})

			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, clip.Path, seen)
			_, statErr := os.Stat(clip.Path)
			assert.True(t, os.IsNotExist(statErr))
			s.AssertExpectations(t)
		})
	}
}

func TestWithClipSynthesisError(t *testing.T) {
	s := new(MockSynthesizer)
	s.On("Synthesize", mock.Anything, "text").Return(nil, ErrServiceUnavailable).Once()

	called := false
	err := WithClip(context.Background(), s, "text", func(*Clip) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.False(t, called)
}
