// Package store persists chat messages and analytics events.
package store

import (
	"context"
	"errors"

	"github.com/zhouzirui/z-chat/backend/internal/model/analytics"
	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store closed")

// MessageStore is the durable append-only record of chat messages.
type MessageStore interface {
	// Create validates and persists msg, assigning ID and CreatedAt when unset.
	Create(ctx context.Context, msg chat.Message) (chat.Message, error)
	Count(ctx context.Context, filter chat.Filter) (int, error)
	// Recent returns up to limit messages, most recent first.
	Recent(ctx context.Context, limit int) ([]chat.Message, error)
}

// EventStore records analytics events.
type EventStore interface {
	Track(ctx context.Context, event analytics.Event) (analytics.Event, error)
}

// Store is the full persistence surface used by the server.
type Store interface {
	MessageStore
	EventStore
	Close() error
}

// ErrInvalidEvent marks analytics events rejected by validation.
var ErrInvalidEvent = errors.New("invalid analytics event")
