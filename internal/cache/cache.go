package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"opioid-assistant/internal/prompt"
)

// Cache stores sanitized answers to on-topic questions.
type Cache interface {
	// GetAnswer retrieves a cached answer by key
	// Returns nil if not found
	GetAnswer(ctx context.Context, key string) (*Answer, error)

	// SetAnswer stores an answer with TTL
	SetAnswer(ctx context.Context, key string, answer *Answer, ttl time.Duration) error

	// Close closes the cache connection
	Close() error
}

// Answer represents a cached model reply
type Answer struct {
	Text      string    `json:"text"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}

// Key derives a cache key from everything that shapes an answer: the scope
// (provider and endpoint) and the full payload sent to it, so changing the
// model, the instructions or the endpoint never serves an older answer.
// Fields are length-prefixed so no two payloads share an encoding.
func Key(scope string, payload prompt.Payload) string {
	h := sha256.New()
	write := func(s string) { fmt.Fprintf(h, "%d:%s;", len(s), s) }
	write(scope)
	write(payload.Model)
	for _, m := range payload.Messages {
		write(string(m.Role))
		write(m.Content)
	}
	return hex.EncodeToString(h.Sum(nil))
}
