package notifier

import (
	"context"
	"time"
)

// Summary aggregates counters over a date range with derived percentage
// rates. Rates are guarded against division by zero: with no sends every
// rate is 0.
type Summary struct {
	Sent      int64   `json:"sent"`
	Delivered int64   `json:"delivered"`
	Opened    int64   `json:"opened"`
	Clicked   int64   `json:"clicked"`
	Failed    int64   `json:"failed"`
	Bounced   int64   `json:"bounced"`
	// Rates are percentages of Sent.
	DeliveryRate float64 `json:"delivery_rate"`
	OpenRate     float64 `json:"open_rate"`
	ClickRate    float64 `json:"click_rate"`
	FailureRate  float64 `json:"failure_rate"`
}

// CategorySummary is a Summary scoped to one category.
type CategorySummary struct {
	Category Category `json:"category"`
	Summary
}

// Analytics maintains the daily (date, category, channel) counters and
// computes range aggregates. Increment atomicity is the storage layer's
// responsibility; Analytics itself holds no state.
type Analytics struct {
	storage AnalyticsStorage
	now     func() time.Time
}

// AnalyticsOption configures Analytics.
type AnalyticsOption func(*Analytics)

// WithAnalyticsClock overrides the time source, used in tests.
func WithAnalyticsClock(now func() time.Time) AnalyticsOption {
	return func(a *Analytics) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAnalytics creates the aggregator on the given counter store.
func NewAnalytics(storage AnalyticsStorage, opts ...AnalyticsOption) (*Analytics, error) {
	if storage == nil {
		return nil, ErrNilStorage
	}

	a := &Analytics{
		storage: storage,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Record increments today's bucket for the (category, channel) pair.
func (a *Analytics) Record(ctx context.Context, category Category, channel Channel, field CounterField) error {
	key := CounterKey{
		Day:      Day(a.now()),
		Category: category,
		Channel:  channel,
	}
	return a.storage.IncrementCounter(ctx, key, field)
}

// Summary aggregates every bucket in [from, to] into one summary.
func (a *Analytics) Summary(ctx context.Context, from, to time.Time) (Summary, error) {
	counters, err := a.storage.ListCounters(ctx, Day(from), Day(to))
	if err != nil {
		return Summary{}, err
	}
	return summarize(counters), nil
}

// CategoryBreakdown aggregates the range per category, ordered by the
// canonical category list. Categories with no activity are omitted.
func (a *Analytics) CategoryBreakdown(ctx context.Context, from, to time.Time) ([]CategorySummary, error) {
	counters, err := a.storage.ListCounters(ctx, Day(from), Day(to))
	if err != nil {
		return nil, err
	}

	byCategory := make(map[Category][]Counter)
	for _, c := range counters {
		byCategory[c.Category] = append(byCategory[c.Category], c)
	}

	out := make([]CategorySummary, 0, len(byCategory))
	for _, cat := range Categories() {
		group, ok := byCategory[cat]
		if !ok {
			continue
		}
		out = append(out, CategorySummary{Category: cat, Summary: summarize(group)})
	}
	return out, nil
}

// Day truncates a timestamp to its UTC date, the bucket granularity of all
// analytics counters.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func summarize(counters []Counter) Summary {
	var s Summary
	for _, c := range counters {
		s.Sent += c.Sent
		s.Delivered += c.Delivered
		s.Opened += c.Opened
		s.Clicked += c.Clicked
		s.Failed += c.Failed
		s.Bounced += c.Bounced
	}

	if s.Sent > 0 {
		s.DeliveryRate = float64(s.Delivered) / float64(s.Sent) * 100
		s.OpenRate = float64(s.Opened) / float64(s.Sent) * 100
		s.ClickRate = float64(s.Clicked) / float64(s.Sent) * 100
		s.FailureRate = float64(s.Failed) / float64(s.Sent) * 100
	}
	return s
}
