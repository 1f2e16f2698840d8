// Package ai talks to the text generation backends.
package ai

import "context"

type Message struct {
	Role    string
	Content string
}

// Provider is one chat-completion backend.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}
