package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBus implements Bus over Redis pub/sub so events reach every running
// instance. Delivery follows Redis semantics: at-most-once, no replay for
// instances that were down when a message was published.
type RedisBus struct {
	client     redis.UniversalClient
	log        *slog.Logger
	bufferSize int

	mu     sync.Mutex
	closed bool
	subs   map[*redisSubscriber]struct{}
	wg     sync.WaitGroup
}

// RedisBusOption configures a RedisBus.
type RedisBusOption func(*RedisBus)

// WithLogger sets the logger for subscription read errors.
// Defaults to slog.Default().
func WithLogger(log *slog.Logger) RedisBusOption {
	return func(b *RedisBus) {
		if log != nil {
			b.log = log
		}
	}
}

// WithBufferSize sets the per-subscriber channel buffer. Defaults to 64.
func WithBufferSize(n int) RedisBusOption {
	return func(b *RedisBus) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

// NewRedisBus creates a Redis-backed bus on an established client.
// The caller owns the client lifecycle; Close does not close it.
func NewRedisBus(client redis.UniversalClient, opts ...RedisBusOption) *RedisBus {
	b := &RedisBus{
		client:     client,
		log:        slog.Default(),
		bufferSize: 64,
		subs:       make(map[*redisSubscriber]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *RedisBus) Publish(ctx context.Context, topic string, msg Message) error {
	if topic == "" {
		return ErrEmptyTopic
	}

	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrBusClosed
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Join(ErrPublishFailed, err)
	}

	if err := b.client.Publish(ctx, topic, data).Err(); err != nil {
		return errors.Join(ErrPublishFailed, err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, topics ...string) (Subscriber, error) {
	if len(topics) == 0 {
		return nil, ErrNoTopics
	}

	var channels, patterns []string
	for _, t := range topics {
		if t == "" {
			return nil, ErrEmptyTopic
		}
		if strings.ContainsAny(t, "*?[") {
			patterns = append(patterns, t)
		} else {
			channels = append(channels, t)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}

	// PSubscribe handles both plain channels and glob patterns; a plain
	// channel name is a valid pattern matching only itself.
	pubsub := b.client.PSubscribe(ctx, append(channels, patterns...)...)

	sub := &redisSubscriber{
		pubsub: pubsub,
		ch:     make(chan Message, b.bufferSize),
		bus:    b,
	}
	b.subs[sub] = struct{}{}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		sub.readLoop(ctx, b.log)
	}()

	return sub, nil
}

// Close shuts down all subscribers and waits for their read loops to exit.
// The underlying Redis client stays open.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true

	subs := make([]*redisSubscriber, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	clear(b.subs)
	b.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	b.wg.Wait()

	return errors.Join(errs...)
}

func (b *RedisBus) unsubscribe(sub *redisSubscriber) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}

type redisSubscriber struct {
	pubsub    *redis.PubSub
	ch        chan Message
	bus       *RedisBus
	closeOnce sync.Once
}

func (s *redisSubscriber) Messages() <-chan Message {
	return s.ch
}

func (s *redisSubscriber) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.bus.unsubscribe(s)
		// Closing the pubsub terminates the read loop, which closes s.ch.
		err = s.pubsub.Close()
	})
	return err
}

func (s *redisSubscriber) readLoop(ctx context.Context, log *slog.Logger) {
	defer close(s.ch)

	in := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			_ = s.Close()
			// Drain until the pubsub channel closes so Close can finish.
			for range in {
			}
			return
		case m, ok := <-in:
			if !ok {
				return
			}

			var msg Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				log.WarnContext(ctx, "Dropping undecodable fanout message",
					slog.String("topic", m.Channel),
					slog.Any("error", errors.Join(ErrDecodeFailed, err)))
				continue
			}

			select {
			case s.ch <- msg:
			default:
				// Slow local consumer: drop rather than stall the read loop.
				log.WarnContext(ctx, "Dropping fanout message for slow subscriber",
					slog.String("topic", m.Channel),
					slog.String("type", msg.Type))
			}
		}
	}
}
