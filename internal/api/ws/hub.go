// Package ws streams live chat instructions to browsers over websockets.
package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/chatflow/internal/conversation"
	"github.com/gosuda/chatflow/internal/display"
	"github.com/gosuda/chatflow/internal/domain"
)

const writeTimeout = 10 * time.Second

// SessionFinder looks up live chat sessions.
type SessionFinder interface {
	Get(id uuid.UUID) (*conversation.Session, error)
}

// Hub manages websocket connections backed by pub/sub.
type Hub struct {
	pubsub         display.Broker
	sessions       SessionFinder
	originPatterns []string
}

// NewHub creates a new websocket hub. originPatterns are host patterns
// accepted in addition to same-origin requests.
func NewHub(pubsub display.Broker, sessions SessionFinder, originPatterns []string) *Hub {
	return &Hub{pubsub: pubsub, sessions: sessions, originPatterns: originPatterns}
}

// ServeSession handles websocket connections for one chat session.
// Subscribes to channel "chat:<sessionID>" and forwards every envelope
// published there until either side closes.
func (h *Hub) ServeSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}

	if _, err := h.sessions.Get(sessionID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		http.Error(w, "session lookup failed", http.StatusInternalServerError)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	// Nothing is read from the browser; CloseRead handles control frames and
	// cancels ctx once the peer goes away.
	ctx := conn.CloseRead(r.Context())
	channel := display.Channel(sessionID)

	messages, cleanup, err := h.pubsub.Subscribe(ctx, channel)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID.String()).Msg("websocket subscribe")
		_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer cleanup()

	log.Debug().Str("session_id", sessionID.String()).Msg("websocket subscribed")

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case msg, msgOK := <-messages:
			if !msgOK {
				_ = conn.Close(websocket.StatusNormalClosure, "channel closed")
				return
			}
			if writeErr := h.write(ctx, conn, msg); writeErr != nil {
				log.Debug().Err(writeErr).Str("session_id", sessionID.String()).Msg("websocket write")
				return
			}
		}
	}
}

func (h *Hub) write(ctx context.Context, conn *websocket.Conn, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, msg)
}
