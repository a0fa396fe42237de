// Package voice adapts speech recognition and synthesis services to the
// question/answer pipeline.
package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Terminal outcomes of a recognition attempt, shown to the user verbatim.
const (
	Unrecognized = "could not understand audio"
	Unavailable  = "service unavailable"
)

var (
	ErrUnrecognized       = errors.New("speech not recognized")
	ErrServiceUnavailable = errors.New("speech service unavailable")
)

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Synthesizer turns text into a temporary audio clip. Callers own the clip
// and must Close it.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*Clip, error)
}

// Recognize runs one transcription attempt. ok is false when text is one of
// the terminal failure strings.
func Recognize(ctx context.Context, t Transcriber, audio []byte) (text string, ok bool) {
	if len(audio) == 0 {
		return Unrecognized, false
	}
	text, err := t.Transcribe(ctx, audio)
	switch {
	case errors.Is(err, ErrUnrecognized):
		return Unrecognized, false
	case err != nil:
		return Unavailable, false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Unrecognized, false
	}
	return text, true
}

// NoopTranscriber is used when no speech provider is configured.
type NoopTranscriber struct{}

func (NoopTranscriber) Transcribe(context.Context, []byte) (string, error) {
	return "", fmt.Errorf("%w: set VOICE_PROVIDER to enable audio questions", ErrServiceUnavailable)
}

// Clip is synthesized audio backed by a temporary file.
type Clip struct {
	Path        string
	ContentType string

	once sync.Once
	err  error
}

// NewClip writes r to a fresh temp file.
func NewClip(r io.Reader, pattern, contentType string) (*Clip, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return nil, fmt.Errorf("creating temp audio: %w", err)
	}
	clip := &Clip{Path: f.Name(), ContentType: contentType}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		clip.Close()
		return nil, fmt.Errorf("writing temp audio: %w", err)
	}
	if err := f.Close(); err != nil {
		clip.Close()
		return nil, fmt.Errorf("closing temp audio: %w", err)
	}
	return clip, nil
}

// Bytes reads the whole clip.
func (c *Clip) Bytes() ([]byte, error) {
	return os.ReadFile(c.Path)
}

// Close removes the temp file. Safe to call more than once.
func (c *Clip) Close() error {
	c.once.Do(func() {
		if err := os.Remove(c.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.err = err
		}
	})
	return c.err
}

// WithClip synthesizes text, hands the clip to fn and always releases it.
func WithClip(ctx context.Context, s Synthesizer, text string, fn func(*Clip) error) error {
	clip, err := s.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	defer clip.Close()
	return fn(clip)
}
