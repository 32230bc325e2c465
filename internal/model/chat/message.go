package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxUsernameLength = 50
	MaxBodyLength     = 1000
)

// ErrInvalidMessage marks records rejected at the persistence boundary.
var ErrInvalidMessage = errors.New("invalid message")

// ReplyTo is a snapshot of the message being answered, copied at creation time.
type ReplyTo struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// Message is one persisted chat line, authored by a user or by the bot.
type Message struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Body      string    `json:"message"`
	CreatedAt time.Time `json:"timestamp"`
	ReplyTo   *ReplyTo  `json:"replyTo,omitempty"`
}

// Normalize trims the fields and enforces the length limits.
func (m *Message) Normalize() error {
	m.Username = strings.TrimSpace(m.Username)
	m.Body = strings.TrimSpace(m.Body)

	if m.Username == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidMessage)
	}
	if utf8.RuneCountInString(m.Username) > MaxUsernameLength {
		return fmt.Errorf("%w: username cannot exceed %d characters", ErrInvalidMessage, MaxUsernameLength)
	}
	if m.Body == "" {
		return fmt.Errorf("%w: message is required", ErrInvalidMessage)
	}
	if utf8.RuneCountInString(m.Body) > MaxBodyLength {
		return fmt.Errorf("%w: message cannot exceed %d characters", ErrInvalidMessage, MaxBodyLength)
	}

	if m.ReplyTo != nil {
		reply := ReplyTo{
			Username: strings.TrimSpace(m.ReplyTo.Username),
			Message:  strings.TrimSpace(m.ReplyTo.Message),
		}
		if reply.Username == "" && reply.Message == "" {
			m.ReplyTo = nil
		} else {
			m.ReplyTo = &reply
		}
	}
	return nil
}

// Filter narrows Count queries. Zero values match everything.
type Filter struct {
	Since            time.Time
	UsernameContains string
}
