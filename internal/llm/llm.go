// Package llm abstracts chat-completion backends.
package llm

import "context"

// Role of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a chat request.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatProvider sends a full message list and returns the assistant's reply.
type ChatProvider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	Name() string
}
