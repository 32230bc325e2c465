// Package socket serves the realtime chat websocket.
package socket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/z-chat/backend/internal/service/chat"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxFrameBytes  = 16 << 10
	sendBufferSize = 64
	inboxSize      = 16
)

// MessageHandler processes inbound client events.
type MessageHandler interface {
	HandleMessage(ctx context.Context, senderID string, in chat.MessagePayload) error
	HandleFeedback(senderID string, in chat.FeedbackPayload)
}

// Presence is told about every session that joins or leaves.
type Presence interface {
	Connect(id string) int
	Disconnect(id string) int
}

// Hub owns every live websocket session and fans events out to them.
type Hub struct {
	upgrader    websocket.Upgrader
	logger      *zap.Logger
	readTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	sessions map[string]*session
	handler  MessageHandler
	presence Presence
	closed   bool
}

// NewHub creates an unbound hub. Call Bind before serving.
func NewHub(logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:      logger.With(zap.String("component", "socket")),
		readTimeout: pongWait,
		ctx:         ctx,
		cancel:      cancel,
		sessions:    make(map[string]*session),
	}
}

// Bind attaches the message pipeline and presence tracker.
func (h *Hub) Bind(handler MessageHandler, presence Presence) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handler = handler
	h.presence = presence
}

// ServeHTTP upgrades the request and starts the session's goroutines.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	handler, presence, closed := h.handler, h.presence, h.closed
	h.mu.RUnlock()

	if handler == nil || presence == nil || closed {
		http.Error(w, "chat unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", zap.Error(err))
		return
	}

	s := newSession(uuid.NewString(), conn)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.sessions[s.id] = s
	h.wg.Add(3)
	h.mu.Unlock()

	go h.writePump(s)
	go h.work(s, handler)

	// the new session is already registered, so it receives its own count
	presence.Connect(s.id)

	go h.readPump(s, handler, presence)
}

// EmitAll sends an event to every session.
func (h *Hub) EmitAll(event string, payload any) {
	h.emit("", event, payload)
}

// EmitExcept sends an event to every session but exceptID.
func (h *Hub) EmitExcept(exceptID, event string, payload any) {
	h.emit(exceptID, event, payload)
}

// EmitTo sends an event to a single session when it is still connected.
func (h *Hub) EmitTo(id, event string, payload any) {
	data, err := encode(event, payload)
	if err != nil {
		h.logger.Error("encode event", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if s, ok := h.sessions[id]; ok {
		h.deliver(s, data)
	}
}

func (h *Hub) emit(exceptID, event string, payload any) {
	data, err := encode(event, payload)
	if err != nil {
		h.logger.Error("encode event", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, s := range h.sessions {
		if id == exceptID {
			continue
		}
		h.deliver(s, data)
	}
}

// deliver never blocks; a session that cannot keep up is disconnected.
func (h *Hub) deliver(s *session, data []byte) {
	select {
	case <-s.done:
	case s.send <- data:
	default:
		h.logger.Warn("send buffer full, dropping session", zap.String("session", s.id))
		s.close()
	}
}

// Count returns the number of sessions the hub is serving.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Close disconnects every session, cancels in-flight work and waits for the session goroutines.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	sessions := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	h.cancel()
	for _, s := range sessions {
		s.close()
	}
	h.wg.Wait()
}

func (h *Hub) readPump(s *session, handler MessageHandler, presence Presence) {
	defer h.wg.Done()
	defer h.unregister(s, presence)

	s.conn.SetReadLimit(maxFrameBytes)
	s.conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(h.readTimeout))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("read failed", zap.String("session", s.id), zap.Error(err))
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(h.readTimeout))

		var env chat.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			h.logger.Warn("malformed frame", zap.String("session", s.id), zap.Error(err))
			continue
		}

		switch env.Event {
		case chat.EventMessage:
			var in chat.MessagePayload
			if err := json.Unmarshal(env.Data, &in); err != nil {
				h.logger.Warn("malformed message payload", zap.String("session", s.id), zap.Error(err))
				continue
			}
			select {
			case s.inbox <- in:
				// pongs go unread while the inbox is full
				s.conn.SetReadDeadline(time.Now().Add(h.readTimeout))
			case <-h.ctx.Done():
				return
			}

		case chat.EventFeedback:
			var in chat.FeedbackPayload
			if err := json.Unmarshal(env.Data, &in); err != nil {
				h.logger.Warn("malformed feedback payload", zap.String("session", s.id), zap.Error(err))
				continue
			}
			handler.HandleFeedback(s.id, in)

		default:
			h.logger.Debug("ignoring event", zap.String("session", s.id), zap.String("event", env.Event))
		}
	}
}

// work processes a session's messages one at a time, in arrival order.
// It runs on the hub context so a sender leaving does not cancel the bot's reply.
func (h *Hub) work(s *session, handler MessageHandler) {
	defer h.wg.Done()

	for in := range s.inbox {
		err := handler.HandleMessage(h.ctx, s.id, in)
		if err == nil {
			continue
		}

		stage := "message"
		var stepErr *chatservice.StepError
		if errors.As(err, &stepErr) {
			stage = stepErr.Stage
		}
		h.logger.Error("message pipeline failed", zap.String("session", s.id), zap.String("stage", stage), zap.Error(err))
		h.EmitTo(s.id, chat.EventChatError, chat.ErrorAck{Stage: stage, Error: err.Error()})
	}
}

func (h *Hub) writePump(s *session) {
	defer h.wg.Done()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case data := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("write failed", zap.String("session", s.id), zap.Error(err))
				s.close()
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.close()
				return
			}
		}
	}
}

func (h *Hub) unregister(s *session, presence Presence) {
	h.mu.Lock()
	delete(h.sessions, s.id)
	h.mu.Unlock()

	presence.Disconnect(s.id)
	close(s.inbox)
	s.close()
}

func encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(chat.Envelope{Event: event, Data: data})
}
