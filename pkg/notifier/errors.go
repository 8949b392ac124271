package notifier

import "errors"

var (
	// ErrValidation marks malformed input, rejected before any state change.
	ErrValidation = errors.New("notifier: validation failed")
	// ErrRateLimitExceeded means admission was denied; no notification was created.
	ErrRateLimitExceeded = errors.New("notifier: rate limit exceeded")
	// ErrNotFound means the notification, delivery or preference set is absent.
	ErrNotFound = errors.New("notifier: not found")
	// ErrChannelUnavailable means no address or token is on file for a channel.
	// It is recorded on the delivery attempt, never returned to the caller of
	// CreateAndSend.
	ErrChannelUnavailable = errors.New("notifier: channel unavailable")
	// ErrProviderFailure marks a transport or provider rejection; the attempt
	// stays eligible for retry.
	ErrProviderFailure = errors.New("notifier: provider failure")
	// ErrInvalidTransition marks a delivery status update that is not
	// forward-reachable in the state machine.
	ErrInvalidTransition = errors.New("notifier: invalid status transition")
	// ErrMaxAttemptsReached means the delivery has exhausted its retry budget
	// and stays FAILED permanently.
	ErrMaxAttemptsReached = errors.New("notifier: max delivery attempts reached")

	ErrNilStorage    = errors.New("notifier: storage is required")
	ErrNilService    = errors.New("notifier: service is required")
	ErrNilLimiter    = errors.New("notifier: rate limiter is required")
	ErrNilDispatcher = errors.New("notifier: dispatcher is required")
	ErrNilBus        = errors.New("notifier: fan-out bus is required")
)
