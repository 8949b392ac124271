// Package logger provides a thin factory around log/slog plus typed attribute
// helpers for the notification domain.
//
// The factory produces production-safe JSON loggers by default and supports
// context extractors so request-scoped values (request IDs, user IDs) are
// injected into every record without threading loggers through call sites.
//
// Attribute helpers (UserID, NotificationID, DeliveryID, Channel, Category)
// keep log keys consistent across packages:
//
//	log := logger.New(logger.WithProduction("notifier"))
//	log.LogAttrs(ctx, slog.LevelInfo, "notification dispatched",
//		logger.NotificationID(n.ID),
//		logger.UserID(n.UserID),
//		logger.Channel("email"),
//	)
package logger
