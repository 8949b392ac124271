package notifier

import (
	"time"

	"github.com/google/uuid"
)

// Channel is one delivery medium.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
	ChannelInApp Channel = "in_app"
	ChannelSMS   Channel = "sms"
)

// Channels lists every supported channel.
func Channels() []Channel {
	return []Channel{ChannelEmail, ChannelPush, ChannelInApp, ChannelSMS}
}

// Valid reports whether the channel is one of the supported media.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelPush, ChannelInApp, ChannelSMS:
		return true
	}
	return false
}

// Category classifies a notification and selects the per-category
// channel preferences.
type Category string

const (
	CategoryEventReminder Category = "event-reminder"
	CategoryTicketSale    Category = "ticket-sale"
	CategoryReview        Category = "review"
	CategorySystemAlert   Category = "system-alert"
	CategoryMarketing     Category = "marketing"
	CategoryInvitation    Category = "invitation"
	CategoryComment       Category = "comment"
	CategoryFollower      Category = "follower"
)

// Categories lists every known category.
func Categories() []Category {
	return []Category{
		CategoryEventReminder,
		CategoryTicketSale,
		CategoryReview,
		CategorySystemAlert,
		CategoryMarketing,
		CategoryInvitation,
		CategoryComment,
		CategoryFollower,
	}
}

// Valid reports whether the category is one of the known values.
func (c Category) Valid() bool {
	switch c {
	case CategoryEventReminder, CategoryTicketSale, CategoryReview,
		CategorySystemAlert, CategoryMarketing, CategoryInvitation,
		CategoryComment, CategoryFollower:
		return true
	}
	return false
}

// Status is the notification-level lifecycle state.
// PENDING is the creation state; it moves to SENT once dispatch produced at
// least one delivery attempt, or to FAILED when preference resolution rules
// out every channel. SENT moves to READ when the user reads the notification.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
	StatusRead    Status = "READ"
)

// Notification is one logical event to be delivered across zero or more
// channels. Immutable after creation except for status, read and retry
// bookkeeping fields.
type Notification struct {
	ID            uuid.UUID      `json:"id"`
	UserID        string         `json:"user_id"`
	Category      Category       `json:"category"`
	Title         string         `json:"title"`
	Message       string         `json:"message"`
	Data          map[string]any `json:"data,omitempty"`
	TemplateID    string         `json:"template_id,omitempty"`
	ScheduledFor  *time.Time     `json:"scheduled_for,omitempty"`
	Status        Status         `json:"status"`
	Read          bool           `json:"read"`
	ReadAt        *time.Time     `json:"read_at,omitempty"`
	RetryCount    int            `json:"retry_count"`
	FailureReason string         `json:"failure_reason,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
