// Package ratelimit provides a fixed-window admission limiter keyed by user.
//
// The limiter guards notification creation against storms: every CreateAndSend
// call consumes one admission from the caller's window, and calls beyond the
// budget are denied until the window expires. Fixed-window counting is
// deliberate - the contract is storm prevention, not billing-grade precision.
//
// Two Store backends ship with the package: MemoryStore for single-process
// deployments and tests, and RedisStore for horizontally scaled deployments
// where the budget must hold across replicas. Both make the increment-then-
// check sequence atomic so concurrent callers cannot jointly exceed the
// budget.
//
//	limiter, err := ratelimit.NewFixedWindow(ratelimit.NewMemoryStore(), ratelimit.Config{
//		Budget: 100,
//		Window: time.Hour,
//	})
//	res, err := limiter.Allow(ctx, userID)
//	if err == nil && !res.Allowed {
//		// deny admission
//	}
package ratelimit
