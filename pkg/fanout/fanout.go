package fanout

import (
	"context"
	"encoding/json"
	"time"
)

// Well-known event types carried by Message.Type.
const (
	EventNotificationCreated = "notification.created"
	EventNotificationRead    = "notification.read"
	EventUnreadInvalidated   = "unread.invalidated"
	EventDeliveryUpdated     = "delivery.updated"
)

// Topic names. Every instance subscribes to TopicCreated, TopicBroadcast and
// the user pattern; routing a user event to the right local session happens in
// Registry, so per-instance topic filtering is not attempted.
const (
	TopicCreated     = "notifications:created"
	TopicBroadcast   = "notifications:broadcast"
	topicUserPrefix  = "notifications:user:"
	TopicUserPattern = topicUserPrefix + "*"
)

// UserTopic returns the topic carrying events scoped to a single user.
func UserTopic(userID string) string {
	return topicUserPrefix + userID
}

// Message is the envelope published across instances. Payload stays raw so
// the bus never needs to know about domain types.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	UserID    string          `json:"user_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Subscriber receives messages for the topics it was created with.
// Implementations must be safe for concurrent use.
type Subscriber interface {
	// Messages returns the channel delivering received messages.
	// The channel is closed when the subscriber or its bus is closed.
	Messages() <-chan Message

	// Close unsubscribes and releases resources. Idempotent.
	Close() error
}

// Bus fans messages out across service instances. The in-memory
// implementation covers single-instance deployments and tests; the Redis
// implementation covers multi-instance deployments.
type Bus interface {
	// Publish sends a message on a topic. Delivery is at-most-once:
	// subscribers that cannot keep up may miss messages.
	Publish(ctx context.Context, topic string, msg Message) error

	// Subscribe creates a subscriber for one or more topics. Patterns
	// (e.g. TopicUserPattern) are supported by both implementations.
	Subscribe(ctx context.Context, topics ...string) (Subscriber, error)

	// Close shuts down the bus and closes all subscribers.
	Close() error
}
