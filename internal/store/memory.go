package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/z-chat/backend/internal/model/analytics"
	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

// Memory keeps everything in process memory. Suitable for tests and STORE_DRIVER=memory.
type Memory struct {
	mu       sync.RWMutex
	messages []chat.Message
	events   []analytics.Event
	closed   bool
	now      func() time.Time
}

// NewMemory bootstraps an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		messages: make([]chat.Message, 0, 64),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create appends a message after validation.
func (s *Memory) Create(_ context.Context, msg chat.Message) (chat.Message, error) {
	if err := msg.Normalize(); err != nil {
		return chat.Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return chat.Message{}, ErrClosed
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	if msg.ReplyTo != nil {
		reply := *msg.ReplyTo
		msg.ReplyTo = &reply
	}

	s.messages = append(s.messages, msg)
	return msg, nil
}

// Count returns how many messages match filter.
func (s *Memory) Count(_ context.Context, filter chat.Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrClosed
	}

	n := 0
	for _, msg := range s.messages {
		if !filter.Since.IsZero() && msg.CreatedAt.Before(filter.Since) {
			continue
		}
		if filter.UsernameContains != "" && !strings.Contains(msg.Username, filter.UsernameContains) {
			continue
		}
		n++
	}
	return n, nil
}

// Recent returns the newest messages first.
func (s *Memory) Recent(_ context.Context, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	out := make([]chat.Message, 0, min(limit, len(s.messages)))
	for i := len(s.messages) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.messages[i])
	}
	return out, nil
}

// Track stores an analytics event.
func (s *Memory) Track(_ context.Context, event analytics.Event) (analytics.Event, error) {
	if err := validateEvent(&event); err != nil {
		return analytics.Event{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return analytics.Event{}, ErrClosed
	}

	event.ID = uuid.NewString()
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	s.events = append(s.events, event)
	return event, nil
}

// Events returns a copy of the tracked events.
func (s *Memory) Events() []analytics.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]analytics.Event(nil), s.events...)
}

// Close marks the store closed.
func (s *Memory) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func validateEvent(event *analytics.Event) error {
	event.EventType = strings.TrimSpace(event.EventType)
	if event.EventType == "" {
		return fmt.Errorf("%w: eventType is required", ErrInvalidEvent)
	}
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	return nil
}
