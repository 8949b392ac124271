package notifier_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/notifier"
)

func TestAnalytics_SummaryRates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notifier.NewMemoryStorage()
	day := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	analytics, err := notifier.NewAnalytics(store,
		notifier.WithAnalyticsClock(func() time.Time { return day }))
	require.NoError(t, err)

	// 4 sent, 3 delivered, 2 opened, 1 clicked, 1 failed.
	for range 4 {
		require.NoError(t, analytics.Record(ctx, notifier.CategoryReview, notifier.ChannelEmail, notifier.CounterSent))
	}
	for range 3 {
		require.NoError(t, analytics.Record(ctx, notifier.CategoryReview, notifier.ChannelEmail, notifier.CounterDelivered))
	}
	for range 2 {
		require.NoError(t, analytics.Record(ctx, notifier.CategoryReview, notifier.ChannelEmail, notifier.CounterOpened))
	}
	require.NoError(t, analytics.Record(ctx, notifier.CategoryReview, notifier.ChannelEmail, notifier.CounterClicked))
	require.NoError(t, analytics.Record(ctx, notifier.CategoryReview, notifier.ChannelEmail, notifier.CounterFailed))

	summary, err := analytics.Summary(ctx, day, day)
	require.NoError(t, err)

	assert.Equal(t, int64(4), summary.Sent)
	assert.Equal(t, int64(3), summary.Delivered)
	assert.InDelta(t, 75.0, summary.DeliveryRate, 0.001)
	assert.InDelta(t, 50.0, summary.OpenRate, 0.001)
	assert.InDelta(t, 25.0, summary.ClickRate, 0.001)
	assert.InDelta(t, 25.0, summary.FailureRate, 0.001)
}

func TestAnalytics_ZeroSendsZeroRates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notifier.NewMemoryStorage()
	day := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	analytics, err := notifier.NewAnalytics(store,
		notifier.WithAnalyticsClock(func() time.Time { return day }))
	require.NoError(t, err)

	// An opened callback with no recorded sends must not divide by zero.
	require.NoError(t, analytics.Record(ctx, notifier.CategoryReview, notifier.ChannelEmail, notifier.CounterOpened))

	summary, err := analytics.Summary(ctx, day, day)
	require.NoError(t, err)

	assert.Equal(t, int64(0), summary.Sent)
	assert.Equal(t, int64(1), summary.Opened)
	assert.Zero(t, summary.OpenRate)
	assert.Zero(t, summary.DeliveryRate)
}

func TestAnalytics_CategoryBreakdown(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notifier.NewMemoryStorage()
	day := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	analytics, err := notifier.NewAnalytics(store,
		notifier.WithAnalyticsClock(func() time.Time { return day }))
	require.NoError(t, err)

	require.NoError(t, analytics.Record(ctx, notifier.CategoryReview, notifier.ChannelEmail, notifier.CounterSent))
	require.NoError(t, analytics.Record(ctx, notifier.CategoryReview, notifier.ChannelInApp, notifier.CounterSent))
	require.NoError(t, analytics.Record(ctx, notifier.CategoryTicketSale, notifier.ChannelPush, notifier.CounterSent))

	breakdown, err := analytics.CategoryBreakdown(ctx, day, day)
	require.NoError(t, err)
	require.Len(t, breakdown, 2)

	// Canonical category order: ticket-sale before review.
	assert.Equal(t, notifier.CategoryTicketSale, breakdown[0].Category)
	assert.Equal(t, int64(1), breakdown[0].Sent)
	assert.Equal(t, notifier.CategoryReview, breakdown[1].Category)
	assert.Equal(t, int64(2), breakdown[1].Sent)
}

func TestAnalytics_RangeFilter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notifier.NewMemoryStorage()

	day1 := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)

	current := day1
	analytics, err := notifier.NewAnalytics(store,
		notifier.WithAnalyticsClock(func() time.Time { return current }))
	require.NoError(t, err)

	require.NoError(t, analytics.Record(ctx, notifier.CategoryReview, notifier.ChannelEmail, notifier.CounterSent))
	current = day2
	require.NoError(t, analytics.Record(ctx, notifier.CategoryReview, notifier.ChannelEmail, notifier.CounterSent))

	summary, err := analytics.Summary(ctx, day1, day1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Sent)

	summary, err = analytics.Summary(ctx, day1, day2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Sent)
}
