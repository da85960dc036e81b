// Package memory implements an in-process pub/sub broker, used when no
// Redis server is configured.
package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"
)

const defaultBuffer = 64

// ErrClosed is returned after Close.
var ErrClosed = errors.New("memory: pubsub closed") //nolint:gochecknoglobals // sentinel error

type subscriber struct {
	ch   chan []byte
	once sync.Once
}

func (s *subscriber) close() { s.once.Do(func() { close(s.ch) }) }

// PubSub fans messages out to every subscriber of a channel. A subscriber
// whose buffer is full misses the message rather than blocking publishers.
type PubSub struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscriber]struct{}
	buffer int
	closed bool
}

func New(buffer int) *PubSub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &PubSub{
		subs:   make(map[string]map[*subscriber]struct{}),
		buffer: buffer,
	}
}

func (ps *PubSub) Publish(_ context.Context, channel string, payload []byte) error {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	if ps.closed {
		return fmt.Errorf("memory.PubSub.Publish: %w", ErrClosed)
	}

	for sub := range ps.subs[channel] {
		select {
		case sub.ch <- slices.Clone(payload):
		default:
			log.Warn().Str("channel", channel).Msg("memory pubsub: subscriber buffer full, message dropped")
		}
	}
	return nil
}

func (ps *PubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	ps.mu.Lock()
	if ps.closed {
		ps.mu.Unlock()
		return nil, nil, fmt.Errorf("memory.PubSub.Subscribe: %w", ErrClosed)
	}
	sub := &subscriber{ch: make(chan []byte, ps.buffer)}
	if ps.subs[channel] == nil {
		ps.subs[channel] = make(map[*subscriber]struct{})
	}
	ps.subs[channel][sub] = struct{}{}
	ps.mu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			close(done)
			ps.mu.Lock()
			delete(ps.subs[channel], sub)
			if len(ps.subs[channel]) == 0 {
				delete(ps.subs, channel)
			}
			ps.mu.Unlock()
			sub.close()
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cleanup()
		case <-done:
		}
	}()

	return sub.ch, cleanup, nil
}

// Subscribers reports the number of live subscriptions on channel.
func (ps *PubSub) Subscribers(channel string) int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.subs[channel])
}

func (ps *PubSub) Ping(context.Context) error {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	if ps.closed {
		return fmt.Errorf("memory.PubSub.Ping: %w", ErrClosed)
	}
	return nil
}

// Close ends every subscription.
func (ps *PubSub) Close() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.closed {
		return nil
	}
	ps.closed = true
	for _, subs := range ps.subs {
		for sub := range subs {
			sub.close()
		}
	}
	ps.subs = nil
	return nil
}
