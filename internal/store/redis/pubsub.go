// Package redis implements the live-event broker on Redis pub/sub, for
// deployments running more than one chatflow replica.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultBuffer = 64

// Options configures the connection.
type Options struct {
	Addr     string
	Password string //nolint:gosec // G117: connection credential
	DB       int
	Buffer   int // per-subscription channel size
}

type PubSub struct {
	client *redis.Client
	buffer int
}

func New(ctx context.Context, opts Options) (*PubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis.New: ping %s: %w", opts.Addr, err)
	}

	return NewFromClient(client, opts.Buffer), nil
}

// NewFromClient wraps an existing client without pinging it.
func NewFromClient(client *redis.Client, buffer int) *PubSub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &PubSub{client: client, buffer: buffer}
}

func (ps *PubSub) Ping(ctx context.Context) error {
	if err := ps.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis.PubSub.Ping: %w", err)
	}
	return nil
}

func (ps *PubSub) Close() error {
	if err := ps.client.Close(); err != nil {
		return fmt.Errorf("redis.PubSub.Close: %w", err)
	}
	return nil
}

func (ps *PubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ps.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis.PubSub.Publish(%s): %w", channel, err)
	}
	return nil
}

// Subscribe listens on channel until ctx ends or cleanup is called. The
// subscription is confirmed before Subscribe returns, so nothing published
// afterwards is missed.
func (ps *PubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	sub := ps.client.Subscribe(ctx, channel)

	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("redis.PubSub.Subscribe(%s): receive confirmation: %w", channel, err)
	}

	out := make(chan []byte, ps.buffer)
	redisCh := sub.Channel()

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-redisCh:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	cleanup := func() {
		_ = sub.Close()
	}

	return out, cleanup, nil
}
