package socket

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

// session is one websocket connection. Only writePump writes to conn.
type session struct {
	id    string
	conn  *websocket.Conn
	send  chan []byte
	inbox chan chat.MessagePayload

	done      chan struct{}
	closeOnce sync.Once
}

func newSession(id string, conn *websocket.Conn) *session {
	return &session{
		id:    id,
		conn:  conn,
		send:  make(chan []byte, sendBufferSize),
		inbox: make(chan chat.MessagePayload, inboxSize),
		done:  make(chan struct{}),
	}
}

// close is idempotent. send is never closed; writers select on done instead.
func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.conn != nil {
			s.conn.Close()
		}
	})
}
