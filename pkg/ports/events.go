package ports

import (
	"context"
	"errors"
)

// EventHandler receives one external event. payload is the decoded event body
// (JSON-like: maps, slices, strings, numbers, bools) or nil.
type EventHandler func(ctx context.Context, payload any) error

// Unsubscribe removes a subscription. It is safe to call more than once.
type Unsubscribe func()

// EventSource is an external trigger source such as a webhook receiver or a
// chat-platform event bus.
type EventSource interface {
	// Subscribe routes events on topic to h. A topic has at most one handler.
	Subscribe(topic string, h EventHandler) (Unsubscribe, error)
}

// ErrTopicInUse is returned by Subscribe when topic already has a handler.
var ErrTopicInUse = errors.New("topic already has a handler")
