package notifier

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Resolver computes the effective channel set for a (preferences, category)
// pair and evaluates quiet-hours windows.
type Resolver struct {
	fallback Category
}

// NewResolver creates a resolver. The fallback category's channel settings
// apply when a notification carries a category the preference schema does not
// cover; an invalid fallback falls back to event-reminder.
func NewResolver(fallback Category) *Resolver {
	if !fallback.Valid() {
		fallback = CategoryEventReminder
	}
	return &Resolver{fallback: fallback}
}

// ResolveChannels returns the channels a notification of the given category
// should go out on. An empty result means the notification must not be
// dispatched at all (global opt-out, notifications disabled, or category
// unsubscription); the caller marks it FAILED. A category whose channel set
// is all-off resolves to in-app so an enabled user never silently loses a
// notification.
func (r *Resolver) ResolveChannels(prefs Preferences, category Category) []Channel {
	if prefs.UnsubscribedFromAll || !prefs.Enabled {
		return nil
	}
	if prefs.IsUnsubscribed(category) {
		return nil
	}

	set, ok := prefs.Categories.Get(category)
	if !ok {
		set, _ = prefs.Categories.Get(r.fallback)
	}

	channels := set.Channels()
	if len(channels) == 0 {
		channels = []Channel{ChannelInApp}
	}
	return channels
}

// IsQuietHours reports whether now falls inside the user's quiet-hours
// window. The comparison is minute-granular in the user's local timezone and
// supports windows crossing midnight (start > end). A malformed window is
// treated as disabled rather than blocking delivery forever.
func (r *Resolver) IsQuietHours(qh QuietHours, now time.Time) bool {
	if !qh.Enabled {
		return false
	}

	start, end, loc, err := parseQuietWindow(qh)
	if err != nil {
		return false
	}

	local := now.In(loc)
	minute := local.Hour()*60 + local.Minute()

	if start == end {
		return false
	}
	if start < end {
		return minute >= start && minute < end
	}
	// Window crosses midnight, e.g. 22:00-08:00.
	return minute >= start || minute < end
}

// QuietHoursEnd returns the next moment the quiet window closes, i.e. the
// earliest time dispatch may resume. Only meaningful while IsQuietHours is
// true.
func (r *Resolver) QuietHoursEnd(qh QuietHours, now time.Time) (time.Time, error) {
	_, end, loc, err := parseQuietWindow(qh)
	if err != nil {
		return time.Time{}, err
	}

	local := now.In(loc)
	endToday := time.Date(local.Year(), local.Month(), local.Day(), end/60, end%60, 0, 0, loc)
	if !endToday.After(local) {
		endToday = endToday.AddDate(0, 0, 1)
	}
	return endToday, nil
}

// Validate checks the window's time format and timezone. Disabled windows
// are always valid.
func (qh QuietHours) Validate() error {
	if !qh.Enabled {
		return nil
	}
	if _, _, _, err := parseQuietWindow(qh); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

func parseQuietWindow(qh QuietHours) (start, end int, loc *time.Location, err error) {
	start, err = parseClock(qh.Start)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("quiet hours start: %v", err)
	}
	end, err = parseClock(qh.End)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("quiet hours end: %v", err)
	}

	tz := qh.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err = time.LoadLocation(tz)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("quiet hours timezone: %v", err)
	}
	return start, end, loc, nil
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}
