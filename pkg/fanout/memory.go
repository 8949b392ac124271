package fanout

import (
	"context"
	"path"
	"strings"
	"sync"
)

// MemoryBus is an in-process Bus for single-instance deployments and tests.
// Messages are sent non-blocking; subscribers with a full buffer miss the
// message rather than slowing the publisher. All methods are safe for
// concurrent use.
type MemoryBus struct {
	subscribers map[*memorySubscriber]struct{}
	bufferSize  int
	closed      bool
	mu          sync.RWMutex
	cleanupWg   sync.WaitGroup
}

// NewMemoryBus creates an in-memory bus. The bufferSize parameter sets the
// per-subscriber channel buffer; a minimum of 1 is enforced so sends stay
// non-blocking.
func NewMemoryBus(bufferSize int) *MemoryBus {
	return &MemoryBus{
		subscribers: make(map[*memorySubscriber]struct{}),
		bufferSize:  max(bufferSize, 1),
	}
}

type memorySubscriber struct {
	topics []string
	ch     chan Message
	closed bool
	mu     sync.RWMutex
	bus    *MemoryBus
}

func (b *MemoryBus) Subscribe(ctx context.Context, topics ...string) (Subscriber, error) {
	if len(topics) == 0 {
		return nil, ErrNoTopics
	}
	for _, t := range topics {
		if t == "" {
			return nil, ErrEmptyTopic
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	sub := &memorySubscriber{
		topics: topics,
		ch:     make(chan Message, b.bufferSize),
		bus:    b,
	}
	b.subscribers[sub] = struct{}{}

	// Auto-cleanup on context cancellation
	if ctx.Done() != nil {
		b.cleanupWg.Add(1)
		go func() {
			defer b.cleanupWg.Done()
			<-ctx.Done()
			b.unsubscribe(sub)
		}()
	}

	return sub, nil
}

func (b *MemoryBus) Publish(ctx context.Context, topic string, msg Message) error {
	if topic == "" {
		return ErrEmptyTopic
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}

	for sub := range b.subscribers {
		if sub.matches(topic) {
			sub.send(msg)
		}
	}

	return nil
}

// Close shuts down the bus and closes all subscribers. Idempotent.
func (b *MemoryBus) Close() error {
	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true

	for sub := range b.subscribers {
		_ = sub.Close()
	}
	clear(b.subscribers)
	b.mu.Unlock()

	b.cleanupWg.Wait()

	return nil
}

func (b *MemoryBus) unsubscribe(sub *memorySubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	_ = sub.Close()
}

func (s *memorySubscriber) Messages() <-chan Message {
	return s.ch
}

func (s *memorySubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		close(s.ch)
		s.closed = true
	}
	return nil
}

// matches reports whether the subscriber listens on the given topic,
// supporting glob patterns with the same semantics as Redis PSUBSCRIBE.
func (s *memorySubscriber) matches(topic string) bool {
	for _, t := range s.topics {
		if t == topic {
			return true
		}
		if strings.ContainsAny(t, "*?[") {
			if ok, err := path.Match(t, topic); err == nil && ok {
				return true
			}
		}
	}
	return false
}

func (s *memorySubscriber) send(msg Message) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}
