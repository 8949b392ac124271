// Package notifier is the notification delivery orchestrator: it turns one
// logical notification intent into tracked, channel-specific delivery
// attempts across email, push, in-app and SMS.
//
// The Service composes the moving parts behind a small set of operations
// (CreateAndSend, SendBulk, MarkAsRead, UpdateDeliveryStatus, preference
// management, analytics queries):
//
//   - admission through a per-user rate limiter (pkg/ratelimit)
//   - per-category channel resolution with global opt-out, category
//     unsubscription and quiet-hours deferral (Resolver)
//   - parallel per-channel dispatch with partial-failure isolation
//     (Dispatcher); a channel failure is captured on its delivery record and
//     never fails the call
//   - forward-only delivery state machine fed by provider callbacks
//     (UpdateDeliveryStatus) with capped manual retries (RetryDelivery)
//   - deferred release of scheduled and quiet-hours notifications
//     (Scheduler)
//   - daily analytics counters with derived rates (Analytics)
//   - cross-instance fan-out of created/read/unread events (pkg/fanout)
//
// Storage is an interface; NewMemoryStorage backs tests and single-node
// setups, NewPgStorage is the durable Postgres implementation.
//
// Minimal wiring:
//
//	store := notifier.NewMemoryStorage()
//	limiter, _ := ratelimit.NewFixedWindow(ratelimit.NewMemoryStore(), ratelimit.Config{Budget: 100, Window: time.Hour})
//	analytics, _ := notifier.NewAnalytics(store)
//	dispatcher, _ := notifier.NewDispatcher(store, analytics, notifier.Senders{Email: mailer})
//	svc, _ := notifier.NewService(store, limiter, dispatcher, analytics, bus, notifier.Config{})
//
//	n, err := svc.CreateAndSend(ctx, notifier.CreateParams{
//		UserID:   "user-1",
//		Category: notifier.CategoryReview,
//		Title:    "New review",
//		Message:  "Someone reviewed your event.",
//	})
package notifier
