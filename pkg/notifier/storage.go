package notifier

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NotificationFilter narrows ListNotifications results. Nil pointer fields
// are ignored.
type NotificationFilter struct {
	Category   *Category
	Status     *Status
	UnreadOnly bool
	Limit      int
	Offset     int
}

// NotificationStorage persists notifications. Implementations return
// ErrNotFound for absent records.
type NotificationStorage interface {
	CreateNotification(ctx context.Context, n *Notification) error
	GetNotification(ctx context.Context, id uuid.UUID) (*Notification, error)
	UpdateNotification(ctx context.Context, n *Notification) error
	// DeleteNotification removes the notification and cascades to its
	// delivery attempts.
	DeleteNotification(ctx context.Context, id uuid.UUID) error
	// ListNotifications returns one page of a user's notifications, newest
	// first, plus the total count matching the filter.
	ListNotifications(ctx context.Context, userID string, f NotificationFilter) ([]Notification, int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	// MarkAllRead flips every unread notification of the user to READ and
	// returns how many were affected.
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error)
	// ListDue returns PENDING notifications whose scheduled time has passed,
	// oldest first, capped at limit.
	ListDue(ctx context.Context, now time.Time, limit int) ([]Notification, error)
}

// DeliveryStorage persists delivery attempts.
type DeliveryStorage interface {
	CreateDelivery(ctx context.Context, d *Delivery) error
	GetDelivery(ctx context.Context, id uuid.UUID) (*Delivery, error)
	UpdateDelivery(ctx context.Context, d *Delivery) error
	ListDeliveries(ctx context.Context, notificationID uuid.UUID) ([]Delivery, error)
}

// PreferenceStorage persists per-user preference sets. GetPreferences
// returns ErrNotFound when the user has no stored row yet; the service layer
// creates defaults lazily.
type PreferenceStorage interface {
	GetPreferences(ctx context.Context, userID string) (*Preferences, error)
	SavePreferences(ctx context.Context, p *Preferences) error
}

// CounterField names one analytics counter column.
type CounterField string

const (
	CounterSent      CounterField = "sent"
	CounterDelivered CounterField = "delivered"
	CounterOpened    CounterField = "opened"
	CounterClicked   CounterField = "clicked"
	CounterFailed    CounterField = "failed"
	CounterBounced   CounterField = "bounced"
)

// CounterKey identifies one daily analytics bucket. Day is truncated to a
// UTC date.
type CounterKey struct {
	Day      time.Time
	Category Category
	Channel  Channel
}

// Counter is one daily (category, channel) analytics bucket.
type Counter struct {
	CounterKey
	Sent      int64
	Delivered int64
	Opened    int64
	Clicked   int64
	Failed    int64
	Bounced   int64
}

// AnalyticsStorage persists daily counters. IncrementCounter must be atomic
// at the store layer; concurrent increments on the same bucket must not lose
// updates.
type AnalyticsStorage interface {
	IncrementCounter(ctx context.Context, key CounterKey, field CounterField) error
	// ListCounters returns all buckets with from <= Day <= to.
	ListCounters(ctx context.Context, from, to time.Time) ([]Counter, error)
}

// Storage aggregates every persistence concern of the orchestrator.
// NewMemoryStorage serves tests and single-node setups; NewPgStorage is the
// durable implementation.
type Storage interface {
	NotificationStorage
	DeliveryStorage
	PreferenceStorage
	AnalyticsStorage
}
