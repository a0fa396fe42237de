// Package prompt assembles the outgoing chat payload for a question.
package prompt

// Role is a chat message author.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is a single role/content pair.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Payload is the request body sent to the inference endpoint.
type Payload struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// Builder produces a fresh Payload per question.
type Builder struct {
	model              string
	instructions       string
	attachInstructions bool
}

// NewBuilder keeps the instruction header but only sends it when attach is true.
func NewBuilder(model, instructions string, attach bool) *Builder {
	return &Builder{model: model, instructions: instructions, attachInstructions: attach}
}

// Instructions returns the configured header text.
func (b *Builder) Instructions() string { return b.instructions }

// Build returns a payload whose final message is the raw question as a user turn.
func (b *Builder) Build(question string) Payload {
	msgs := make([]Message, 0, 2)
	if b.attachInstructions && b.instructions != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: b.instructions})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: question})
	return Payload{Model: b.model, Messages: msgs}
}
