// Package display publishes render instructions to live subscribers.
package display

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/chatflow/internal/conversation"
)

// EnvelopeType values.
const (
	TypeInstruction = "instruction"
)

// Publisher abstracts the pub/sub publish operation.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Subscriber abstracts the pub/sub subscribe operation. The returned channel
// is closed when ctx ends or cleanup is called.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)
}

// Broker is a pub/sub backend.
type Broker interface {
	Publisher
	Subscriber
	Ping(ctx context.Context) error
	Close() error
}

// Channel returns the pub/sub channel name for a chat session.
func Channel(sessionID uuid.UUID) string {
	return "chat:" + sessionID.String()
}

// Envelope is the message published for every instruction.
type Envelope struct {
	Type        string                   `json:"type"`
	SessionID   uuid.UUID                `json:"session_id"`
	Instruction conversation.Instruction `json:"instruction"`
	Timestamp   time.Time                `json:"timestamp"`
}

// Formatter post-processes an instruction before it is published.
type Formatter func(conversation.Instruction) conversation.Instruction

// PubSubDisplay is a conversation.Display bound to one session's channel.
type PubSubDisplay struct {
	pub       Publisher
	sessionID uuid.UUID
	channel   string
	format    Formatter
}

var _ conversation.Display = (*PubSubDisplay)(nil)

func NewPubSubDisplay(pub Publisher, sessionID uuid.UUID, format Formatter) *PubSubDisplay {
	return &PubSubDisplay{
		pub:       pub,
		sessionID: sessionID,
		channel:   Channel(sessionID),
		format:    format,
	}
}

// Show publishes in. Failures are logged; the agent turn carries on.
func (d *PubSubDisplay) Show(ctx context.Context, in conversation.Instruction) {
	if d.format != nil {
		in = d.format(in)
	}

	payload, err := json.Marshal(Envelope{
		Type:        TypeInstruction,
		SessionID:   d.sessionID,
		Instruction: in,
		Timestamp:   time.Now().UTC(),
	})
	if err != nil {
		log.Error().Err(err).Str("session_id", d.sessionID.String()).Msg("display: marshal envelope")
		return
	}

	if err := d.pub.Publish(ctx, d.channel, payload); err != nil {
		log.Warn().Err(err).
			Str("session_id", d.sessionID.String()).
			Str("kind", string(in.Kind)).
			Msg("display: publish failed")
	}
}

// Factory returns a DisplayFactory that binds a PubSubDisplay to each session.
func Factory(pub Publisher, format Formatter) conversation.DisplayFactory {
	return func(sessionID uuid.UUID) conversation.Display {
		return NewPubSubDisplay(pub, sessionID, format)
	}
}
