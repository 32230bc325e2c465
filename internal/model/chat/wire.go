package chat

import "encoding/json"

// Socket event names.
const (
	EventMessage      = "message"
	EventFeedback     = "feedback"
	EventClientsTotal = "clients-total"
	EventChatMessage  = "chat-message"
	EventChatError    = "chat-error"
)

// Envelope frames every websocket message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// MessagePayload is the client's chat submission.
type MessagePayload struct {
	Name    string   `json:"name"`
	Message string   `json:"message"`
	ReplyTo *ReplyTo `json:"replyTo,omitempty"`
}

// ChatMessage is what the server broadcasts for every persisted message.
type ChatMessage struct {
	Name     string   `json:"name"`
	Message  string   `json:"message"`
	DateTime string   `json:"dateTime"`
	ReplyTo  *ReplyTo `json:"replyTo,omitempty"`
}

// FeedbackPayload carries typing indicators and the bot thinking status. Empty clears it.
type FeedbackPayload struct {
	Feedback string `json:"feedback"`
}

// ErrorAck tells a sender its message did not make it.
type ErrorAck struct {
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// ISOTime matches JavaScript's Date.toISOString output.
const ISOTime = "2006-01-02T15:04:05.000Z07:00"

// ToChatMessage renders a persisted record in wire form.
func (m Message) ToChatMessage() ChatMessage {
	return ChatMessage{
		Name:     m.Username,
		Message:  m.Body,
		DateTime: m.CreatedAt.UTC().Format(ISOTime),
		ReplyTo:  m.ReplyTo,
	}
}
