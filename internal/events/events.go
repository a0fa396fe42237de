// Package events publishes one record per finished interaction.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"opioid-assistant/internal/retry"
)

// Interaction summarizes an interaction without its text.
type Interaction struct {
	ID            uuid.UUID `json:"id"`
	Source        string    `json:"source"` // "text" or "voice"
	Outcome       string    `json:"outcome"`
	Cached        bool      `json:"cached"`
	QuestionChars int       `json:"question_chars"`
	LatencyMS     int64     `json:"latency_ms"`
	At            time.Time `json:"at"`
}

// Publisher emits interaction records.
type Publisher interface {
	Publish(ctx context.Context, ev Interaction) error
	Close() error
}

// PublishWithRetry attempts to publish with retries and exponential backoff.
func PublishWithRetry(ctx context.Context, p Publisher, ev Interaction, attempts uint, base time.Duration) error {
	return retry.Do(ctx, attempts, base, time.Second, func() error {
		return p.Publish(ctx, ev)
	})
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, Interaction) error { return nil }
func (Noop) Close() error                               { return nil }
