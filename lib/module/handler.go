// Package module provides the Module Worker: a handler bound to a dedicated goroutine
// that consumes its inbox strictly one message at a time.
package module

import (
	"context"

	"github.com/snowmerak/pubsub.go/lib/message"
)

// Handler reacts to one inbound message and returns zero or more outbound messages.
// Outbound messages are discarded when err is non-nil.
type Handler interface {
	Handle(ctx context.Context, msg message.Message) ([]message.Message, error)
}

// HandlerFunc is a convenience type for converting functions to Handler
type HandlerFunc func(ctx context.Context, msg message.Message) ([]message.Message, error)

// Handle implements Handler interface
func (f HandlerFunc) Handle(ctx context.Context, msg message.Message) ([]message.Message, error) {
	return f(ctx, msg)
}

// Emit is a small helper for handlers that return a fixed list of messages.
func Emit(msgs ...message.Message) ([]message.Message, error) {
	return msgs, nil
}
