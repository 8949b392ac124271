package notifier

import (
	"slices"
	"time"
)

// ChannelSet is a fixed-schema record of per-channel booleans.
type ChannelSet struct {
	Email bool `json:"email"`
	Push  bool `json:"push"`
	InApp bool `json:"in_app"`
	SMS   bool `json:"sms"`
}

// Channels returns the enabled channels in a stable order.
func (s ChannelSet) Channels() []Channel {
	var out []Channel
	if s.Email {
		out = append(out, ChannelEmail)
	}
	if s.Push {
		out = append(out, ChannelPush)
	}
	if s.InApp {
		out = append(out, ChannelInApp)
	}
	if s.SMS {
		out = append(out, ChannelSMS)
	}
	return out
}

// IsEmpty reports whether no channel is enabled.
func (s ChannelSet) IsEmpty() bool {
	return !s.Email && !s.Push && !s.InApp && !s.SMS
}

// CategoryPreferences holds one ChannelSet per known category. The schema is
// fixed: unknown category keys cannot exist, they are rejected at the
// boundary by Category.Valid.
type CategoryPreferences struct {
	EventReminder ChannelSet `json:"event_reminder"`
	TicketSale    ChannelSet `json:"ticket_sale"`
	Review        ChannelSet `json:"review"`
	SystemAlert   ChannelSet `json:"system_alert"`
	Marketing     ChannelSet `json:"marketing"`
	Invitation    ChannelSet `json:"invitation"`
	Comment       ChannelSet `json:"comment"`
	Follower      ChannelSet `json:"follower"`
}

// Get returns the channel set for a category. The second return value is
// false when the category is not part of the fixed schema.
func (p CategoryPreferences) Get(c Category) (ChannelSet, bool) {
	switch c {
	case CategoryEventReminder:
		return p.EventReminder, true
	case CategoryTicketSale:
		return p.TicketSale, true
	case CategoryReview:
		return p.Review, true
	case CategorySystemAlert:
		return p.SystemAlert, true
	case CategoryMarketing:
		return p.Marketing, true
	case CategoryInvitation:
		return p.Invitation, true
	case CategoryComment:
		return p.Comment, true
	case CategoryFollower:
		return p.Follower, true
	}
	return ChannelSet{}, false
}

// Set stores the channel set for a category and reports whether the category
// is part of the fixed schema.
func (p *CategoryPreferences) Set(c Category, s ChannelSet) bool {
	switch c {
	case CategoryEventReminder:
		p.EventReminder = s
	case CategoryTicketSale:
		p.TicketSale = s
	case CategoryReview:
		p.Review = s
	case CategorySystemAlert:
		p.SystemAlert = s
	case CategoryMarketing:
		p.Marketing = s
	case CategoryInvitation:
		p.Invitation = s
	case CategoryComment:
		p.Comment = s
	case CategoryFollower:
		p.Follower = s
	default:
		return false
	}
	return true
}

// QuietHours is a user-configured local time window during which dispatch is
// deferred. Start and End are "HH:MM" in the given IANA timezone; windows may
// cross midnight (Start > End).
type QuietHours struct {
	Enabled  bool   `json:"enabled"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Timezone string `json:"timezone"`
}

// Preferences is the per-user notification configuration, created lazily with
// defaults on first access.
type Preferences struct {
	UserID                 string              `json:"user_id"`
	Enabled                bool                `json:"enabled"`
	UnsubscribedFromAll    bool                `json:"unsubscribed_from_all"`
	DefaultChannels        ChannelSet          `json:"default_channels"`
	Categories             CategoryPreferences `json:"categories"`
	UnsubscribedCategories []Category          `json:"unsubscribed_categories,omitempty"`
	QuietHours             QuietHours          `json:"quiet_hours"`
	Email                  string              `json:"email,omitempty"`
	EmailVerified          bool                `json:"email_verified"`
	Phone                  string              `json:"phone,omitempty"`
	PhoneVerified          bool                `json:"phone_verified"`
	DeviceTokens           []string            `json:"device_tokens,omitempty"`
	UpdatedAt              time.Time           `json:"updated_at"`
}

// IsUnsubscribed reports whether the user opted out of the category.
func (p Preferences) IsUnsubscribed(c Category) bool {
	return slices.Contains(p.UnsubscribedCategories, c)
}

// DefaultPreferences returns the default preference set for a user.
// Marketing stays off the louder channels; system alerts reach every channel
// including SMS.
func DefaultPreferences(userID string) Preferences {
	return Preferences{
		UserID:          userID,
		Enabled:         true,
		DefaultChannels: ChannelSet{Email: true, Push: true, InApp: true},
		Categories: CategoryPreferences{
			EventReminder: ChannelSet{Email: true, Push: true, InApp: true},
			TicketSale:    ChannelSet{Email: true, Push: true, InApp: true},
			Review:        ChannelSet{Email: true, InApp: true},
			SystemAlert:   ChannelSet{Email: true, Push: true, InApp: true, SMS: true},
			Marketing:     ChannelSet{InApp: true},
			Invitation:    ChannelSet{Email: true, Push: true, InApp: true},
			Comment:       ChannelSet{Push: true, InApp: true},
			Follower:      ChannelSet{InApp: true},
		},
		QuietHours: QuietHours{Timezone: "UTC"},
	}
}

// PreferencesPatch is a partial preference update; nil fields are left
// unchanged. Contact addresses are updated through VerifyEmail/VerifyPhone,
// not through a patch, so unverified addresses cannot sneak in.
type PreferencesPatch struct {
	Enabled                *bool                `json:"enabled,omitempty"`
	UnsubscribedFromAll    *bool                `json:"unsubscribed_from_all,omitempty"`
	DefaultChannels        *ChannelSet          `json:"default_channels,omitempty"`
	Categories             *CategoryPreferences `json:"categories,omitempty"`
	UnsubscribedCategories *[]Category          `json:"unsubscribed_categories,omitempty"`
	QuietHours             *QuietHours          `json:"quiet_hours,omitempty"`
	DeviceTokens           *[]string            `json:"device_tokens,omitempty"`
}

func (p *Preferences) apply(patch PreferencesPatch) {
	if patch.Enabled != nil {
		p.Enabled = *patch.Enabled
	}
	if patch.UnsubscribedFromAll != nil {
		p.UnsubscribedFromAll = *patch.UnsubscribedFromAll
	}
	if patch.DefaultChannels != nil {
		p.DefaultChannels = *patch.DefaultChannels
	}
	if patch.Categories != nil {
		p.Categories = *patch.Categories
	}
	if patch.UnsubscribedCategories != nil {
		p.UnsubscribedCategories = *patch.UnsubscribedCategories
	}
	if patch.QuietHours != nil {
		p.QuietHours = *patch.QuietHours
	}
	if patch.DeviceTokens != nil {
		p.DeviceTokens = *patch.DeviceTokens
	}
}
