package notifier

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus is the per-attempt lifecycle state. The happy path is
// QUEUED → SENT → DELIVERED → OPENED → CLICKED; FAILED and BOUNCED are
// reachable from QUEUED and SENT. A retry moves FAILED back to QUEUED, but
// only through the retry handler, never through an inbound status update.
type DeliveryStatus string

const (
	DeliveryQueued    DeliveryStatus = "QUEUED"
	DeliverySent      DeliveryStatus = "SENT"
	DeliveryDelivered DeliveryStatus = "DELIVERED"
	DeliveryOpened    DeliveryStatus = "OPENED"
	DeliveryClicked   DeliveryStatus = "CLICKED"
	DeliveryFailed    DeliveryStatus = "FAILED"
	DeliveryBounced   DeliveryStatus = "BOUNCED"
)

// Valid reports whether the status is one of the known values.
func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryQueued, DeliverySent, DeliveryDelivered,
		DeliveryOpened, DeliveryClicked, DeliveryFailed, DeliveryBounced:
		return true
	}
	return false
}

// progressRank orders the happy-path states so forward-reachability can be
// checked without enumerating every pair.
var progressRank = map[DeliveryStatus]int{
	DeliveryQueued:    0,
	DeliverySent:      1,
	DeliveryDelivered: 2,
	DeliveryOpened:    3,
	DeliveryClicked:   4,
}

// CanTransitionTo reports whether moving to next is a legal forward
// transition for an inbound status update. Backward moves and transitions
// out of FAILED and BOUNCED are rejected; providers may legally skip
// intermediate states (e.g. QUEUED straight to DELIVERED).
func (s DeliveryStatus) CanTransitionTo(next DeliveryStatus) bool {
	if !s.Valid() || !next.Valid() || s == next {
		return false
	}

	if next == DeliveryFailed || next == DeliveryBounced {
		return s == DeliveryQueued || s == DeliverySent
	}

	cur, okCur := progressRank[s]
	nxt, okNext := progressRank[next]
	return okCur && okNext && nxt > cur
}

// Delivery is one channel-specific send of a notification, independently
// retryable. Recipient is a snapshot of the address or device token at send
// time so later preference changes do not rewrite history.
type Delivery struct {
	ID                uuid.UUID      `json:"id"`
	NotificationID    uuid.UUID      `json:"notification_id"`
	UserID            string         `json:"user_id"`
	Channel           Channel        `json:"channel"`
	Status            DeliveryStatus `json:"status"`
	Recipient         string         `json:"recipient,omitempty"`
	ProviderMessageID string         `json:"provider_message_id,omitempty"`
	AttemptCount      int            `json:"attempt_count"`
	LastAttemptAt     *time.Time     `json:"last_attempt_at,omitempty"`
	NextRetryAt       *time.Time     `json:"next_retry_at,omitempty"`
	ErrorMessage      string         `json:"error_message,omitempty"`
	SentAt            *time.Time     `json:"sent_at,omitempty"`
	DeliveredAt       *time.Time     `json:"delivered_at,omitempty"`
	OpenedAt          *time.Time     `json:"opened_at,omitempty"`
	ClickedAt         *time.Time     `json:"clicked_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// markStatus applies a new status and stamps the matching timestamp.
func (d *Delivery) markStatus(status DeliveryStatus, at time.Time) {
	d.Status = status
	d.UpdatedAt = at

	switch status {
	case DeliverySent:
		d.SentAt = &at
	case DeliveryDelivered:
		d.DeliveredAt = &at
	case DeliveryOpened:
		d.OpenedAt = &at
	case DeliveryClicked:
		d.ClickedAt = &at
	}
}
