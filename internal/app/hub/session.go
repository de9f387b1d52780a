package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 45 * time.Second
	maxMessageSize = 1024
	sendBuffer     = 256
)

// session is one connected observer. A participant may hold several sessions
// (multiple tabs); balance updates reach all of them.
type session struct {
	id            string
	participantID string
	conn          *websocket.Conn
	send          chan []byte
	// placeLimiter throttles placement bursts per connection.
	placeLimiter *rate.Limiter

	// mu guards closed. The session's own readPump keeps replying while the
	// hub may concurrently drop the session; enqueue after close must be a
	// silent no-op, never a send on a closed channel.
	mu     sync.Mutex
	closed bool
}

// enqueue hands a message to the write pump. A session whose buffer is full
// is considered stalled; the caller drops it. Enqueueing on a dropped session
// reports non-delivery.
func (s *session) enqueue(msg []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	select {
	case s.send <- msg:
		return true
	default:
		return false
	}
}

// closeSend closes the send channel exactly once.
func (s *session) closeSend() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

func (s *session) sendEvent(event string, payload interface{}) bool {
	return s.enqueue(mustEnvelope(event, payload))
}

func (s *session) sendError(event, message string) {
	s.sendEvent(event, errorPayload{Message: message})
}

// writePump drains the send channel onto the connection. One per session.
func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes client events until the connection drops.
func (s *session) readPump(h *Hub) {
	defer h.unregister(s)

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			s.sendError(EventError, "malformed message")
			continue
		}
		h.dispatch(s, env)
	}
}
