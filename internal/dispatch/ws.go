// Package dispatch pushes booking events to connected clients over
// websockets.
package dispatch

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shiva/ridepool/internal/model"
)

const writeTimeout = 5 * time.Second

// Event is a single push message to a client.
type Event struct {
	Type    string         `json:"type"`
	Booking *model.Booking `json:"booking,omitempty"`
	SentAt  time.Time      `json:"sent_at"`
}

// WSRegistry tracks one websocket session per user and fans booking events
// out to them. A user reconnecting replaces their previous session. Sends to
// absent users are dropped silently — push is best effort, the REST API is
// the source of truth.
type WSRegistry struct {
	mu       sync.Mutex
	sessions map[int64]*session
	upgrader websocket.Upgrader
}

type session struct {
	conn *websocket.Conn
	mu   sync.Mutex // serializes writes on the conn
}

// NewWSRegistry creates an empty registry.
func NewWSRegistry() *WSRegistry {
	return &WSRegistry{
		sessions: make(map[int64]*session),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Handle upgrades the request and registers the user's session, replacing
// any previous one. It blocks reading the conn until the client disconnects.
func (r *WSRegistry) Handle(w http.ResponseWriter, req *http.Request, userID int64) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Printf("[ws] upgrade for user %d failed: %v", userID, err)
		return
	}
	s := &session{conn: conn}

	r.mu.Lock()
	if old, ok := r.sessions[userID]; ok {
		old.conn.Close()
	}
	r.sessions[userID] = s
	r.mu.Unlock()
	log.Printf("[ws] user %d connected", userID)

	// Drain reads to detect disconnect; clients only listen.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	r.mu.Lock()
	if cur, ok := r.sessions[userID]; ok && cur == s {
		delete(r.sessions, userID)
	}
	r.mu.Unlock()
	conn.Close()
	log.Printf("[ws] user %d disconnected", userID)
}

// NotifyBooking implements service.Notifier.
func (r *WSRegistry) NotifyBooking(userID int64, event string, b *model.Booking) {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	r.mu.Unlock()
	if !ok {
		return
	}

	msg := Event{Type: event, Booking: b, SentAt: time.Now()}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteJSON(msg); err != nil {
		log.Printf("[ws] push to user %d failed: %v", userID, err)
	}
}

// Close drops every session. Called on shutdown.
func (r *WSRegistry) Close(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		s.conn.Close()
		delete(r.sessions, id)
	}
	return nil
}
