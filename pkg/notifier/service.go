package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/cache"
	"github.com/dmitrymomot/notifykit/pkg/fanout"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/ratelimit"
)

// Service is the notification delivery orchestrator. It composes admission
// control, preference resolution, dispatch, deferral, retry, analytics and
// cross-instance fan-out behind the public operations consumed by an API
// layer.
type Service struct {
	storage    Storage
	limiter    ratelimit.Limiter
	dispatcher *Dispatcher
	analytics  *Analytics
	resolver   *Resolver
	bus        fanout.Bus
	cfg        Config

	unread     *cache.TTLCache[string, int]
	prefsCache *cache.TTLCache[string, Preferences]

	log          *slog.Logger
	now          func() time.Time
	healthchecks []func(context.Context) error
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source, used in tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithHealthcheck registers a dependency probe consulted by Healthcheck.
// Typical probes are the broker ping and the email adapter.
func WithHealthcheck(fn func(context.Context) error) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.healthchecks = append(s.healthchecks, fn)
		}
	}
}

// NewService wires the orchestrator. Storage, limiter, dispatcher and bus
// are required; analytics may be nil to disable counters.
func NewService(storage Storage, limiter ratelimit.Limiter, dispatcher *Dispatcher, analytics *Analytics, bus fanout.Bus, cfg Config, opts ...ServiceOption) (*Service, error) {
	if storage == nil {
		return nil, ErrNilStorage
	}
	if limiter == nil {
		return nil, ErrNilLimiter
	}
	if dispatcher == nil {
		return nil, ErrNilDispatcher
	}
	if bus == nil {
		return nil, ErrNilBus
	}

	if cfg.FallbackCategory == "" {
		cfg.FallbackCategory = string(CategoryEventReminder)
	}
	if cfg.MaxDeliveryAttempts <= 0 {
		cfg.MaxDeliveryAttempts = 3
	}
	if cfg.UnreadCountTTL <= 0 {
		cfg.UnreadCountTTL = time.Minute
	}
	if cfg.UnreadCacheSize <= 0 {
		cfg.UnreadCacheSize = 10000
	}
	if cfg.SchedulerInterval <= 0 {
		cfg.SchedulerInterval = 30 * time.Second
	}
	if cfg.SchedulerBatchSize <= 0 {
		cfg.SchedulerBatchSize = 100
	}

	s := &Service{
		storage:    storage,
		limiter:    limiter,
		dispatcher: dispatcher,
		analytics:  analytics,
		resolver:   NewResolver(Category(cfg.FallbackCategory)),
		bus:        bus,
		cfg:        cfg,
		unread:     cache.NewTTLCache[string, int](cfg.UnreadCacheSize, cfg.UnreadCountTTL),
		prefsCache: cache.NewTTLCache[string, Preferences](cfg.UnreadCacheSize, 5*time.Minute),
		log:        slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateParams describes one logical notification to create and send.
type CreateParams struct {
	UserID          string         `json:"user_id"`
	Category        Category       `json:"category"`
	Title           string         `json:"title"`
	Message         string         `json:"message"`
	TemplateID      string         `json:"template_id,omitempty"`
	Data            map[string]any `json:"data,omitempty"`
	ScheduledFor    *time.Time     `json:"scheduled_for,omitempty"`
	SendImmediately bool           `json:"send_immediately,omitempty"`
}

// Validate rejects malformed params before any state change.
func (p CreateParams) Validate() error {
	if p.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if !p.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrValidation, p.Category)
	}
	if p.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if p.Message == "" {
		return fmt.Errorf("%w: message is required", ErrValidation)
	}
	return nil
}

// CreateAndSend admits, persists and dispatches one notification.
//
// Admission failures (validation, rate limit) fail the whole call and leave
// no record behind. Channel-level failures never do: the caller always gets
// the notification back and must inspect its delivery attempts for the true
// outcome. Deferred notifications (future ScheduledFor or quiet hours) are
// persisted PENDING and released later by the Scheduler.
func (s *Service) CreateAndSend(ctx context.Context, params CreateParams) (*Notification, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	// Admission is counted even when the notification is later deferred or
	// resolves to no channels.
	res, err := s.limiter.Allow(ctx, params.UserID)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	if !res.Allowed {
		return nil, fmt.Errorf("%w: budget resets at %s", ErrRateLimitExceeded, res.ResetAt.UTC().Format(time.RFC3339))
	}

	prefs, err := s.loadPreferences(ctx, params.UserID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	n := &Notification{
		ID:           uuid.New(),
		UserID:       params.UserID,
		Category:     params.Category,
		Title:        params.Title,
		Message:      params.Message,
		Data:         params.Data,
		TemplateID:   params.TemplateID,
		ScheduledFor: params.ScheduledFor,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	channels := s.resolver.ResolveChannels(*prefs, params.Category)
	if len(channels) == 0 {
		n.Status = StatusFailed
		n.FailureReason = "user disabled notifications"
		if err := s.storage.CreateNotification(ctx, n); err != nil {
			return nil, err
		}
		s.log.InfoContext(ctx, "Notification suppressed by preferences",
			logger.NotificationID(n.ID),
			logger.UserID(n.UserID),
			logger.Category(string(n.Category)))
		return n, nil
	}

	if err := s.storage.CreateNotification(ctx, n); err != nil {
		return nil, err
	}

	if !params.SendImmediately {
		if n.ScheduledFor != nil && n.ScheduledFor.After(now) {
			s.log.InfoContext(ctx, "Notification scheduled for later delivery",
				logger.NotificationID(n.ID),
				slog.Time("scheduled_for", *n.ScheduledFor))
			return n, nil
		}

		if s.resolver.IsQuietHours(prefs.QuietHours, now) {
			if end, qerr := s.resolver.QuietHoursEnd(prefs.QuietHours, now); qerr == nil {
				endUTC := end.UTC()
				n.ScheduledFor = &endUTC
				n.UpdatedAt = now
				if err := s.storage.UpdateNotification(ctx, n); err != nil {
					return nil, err
				}
			}
			s.log.InfoContext(ctx, "Notification deferred by quiet hours",
				logger.NotificationID(n.ID),
				logger.UserID(n.UserID))
			return n, nil
		}
	}

	return s.deliver(ctx, n, *prefs, channels)
}

// SendBulk creates one notification per user. Per-user admission failures
// (e.g. a rate-limited recipient) are logged and skipped, never failing the
// batch.
func (s *Service) SendBulk(ctx context.Context, userIDs []string, params CreateParams) ([]*Notification, error) {
	if len(userIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one user id is required", ErrValidation)
	}

	out := make([]*Notification, 0, len(userIDs))
	for _, userID := range userIDs {
		p := params
		p.UserID = userID
		n, err := s.CreateAndSend(ctx, p)
		if err != nil {
			s.log.WarnContext(ctx, "Bulk send skipped user",
				logger.UserID(userID),
				logger.Category(string(params.Category)),
				logger.Error(err))
			continue
		}
		out = append(out, n)
	}

	s.log.InfoContext(ctx, "Bulk send completed",
		logger.Category(string(params.Category)),
		slog.Int("requested", len(userIDs)),
		slog.Int("created", len(out)))
	return out, nil
}

// NotificationList is one page of a user's notifications plus the total
// matching the filter.
type NotificationList struct {
	Items []Notification `json:"items"`
	Total int            `json:"total"`
}

// GetNotifications lists a user's notifications, newest first.
func (s *Service) GetNotifications(ctx context.Context, userID string, f NotificationFilter) (*NotificationList, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	items, total, err := s.storage.ListNotifications(ctx, userID, f)
	if err != nil {
		return nil, err
	}
	return &NotificationList{Items: items, Total: total}, nil
}

// UnreadCount returns the user's unread notification count. The value is
// cached with a short TTL; fan-out invalidation keeps replicas consistent
// between expirations.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	if count, ok := s.unread.Get(userID); ok {
		return count, nil
	}

	count, err := s.storage.CountUnread(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.unread.Set(userID, count)
	return count, nil
}

// MarkAsRead marks one notification read. Idempotent: marking an already
// read notification returns it unchanged.
func (s *Service) MarkAsRead(ctx context.Context, userID string, id uuid.UUID) (*Notification, error) {
	n, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if n.Read {
		return n, nil
	}

	now := s.now().UTC()
	n.Read = true
	n.ReadAt = &now
	n.UpdatedAt = now
	if n.Status == StatusSent {
		n.Status = StatusRead
	}
	if err := s.storage.UpdateNotification(ctx, n); err != nil {
		return nil, err
	}

	s.invalidateUnread(ctx, userID)
	s.publish(ctx, fanout.UserTopic(userID), fanout.EventNotificationRead, userID, n)
	return n, nil
}

// MarkAllAsRead marks every unread notification of the user read and returns
// the affected count. Idempotent: a second call returns 0.
func (s *Service) MarkAllAsRead(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, fmt.Errorf("%w: user id is required", ErrValidation)
	}

	count, err := s.storage.MarkAllRead(ctx, userID, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.invalidateUnread(ctx, userID)
	}
	return count, nil
}

// DeleteNotification removes the notification and its delivery attempts.
// Deleting a deferred notification before its due time cancels it.
func (s *Service) DeleteNotification(ctx context.Context, userID string, id uuid.UUID) error {
	n, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.storage.DeleteNotification(ctx, n.ID); err != nil {
		return err
	}
	if !n.Read {
		s.invalidateUnread(ctx, userID)
	}
	return nil
}

// ProviderUpdate carries the optional provider fields of an inbound delivery
// status callback.
type ProviderUpdate struct {
	ProviderMessageID string `json:"provider_message_id,omitempty"`
	ErrorMessage      string `json:"error_message,omitempty"`
}

// UpdateDeliveryStatus applies an inbound provider callback to a delivery
// attempt. Only forward transitions are accepted; anything else fails with
// ErrInvalidTransition and changes nothing.
func (s *Service) UpdateDeliveryStatus(ctx context.Context, deliveryID uuid.UUID, status DeliveryStatus, update ProviderUpdate) (*Delivery, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown delivery status %q", ErrValidation, status)
	}

	del, err := s.storage.GetDelivery(ctx, deliveryID)
	if err != nil {
		return nil, err
	}

	if !del.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, del.Status, status)
	}

	del.markStatus(status, s.now().UTC())
	if update.ProviderMessageID != "" {
		del.ProviderMessageID = update.ProviderMessageID
	}
	if update.ErrorMessage != "" {
		del.ErrorMessage = update.ErrorMessage
	}
	if err := s.storage.UpdateDelivery(ctx, del); err != nil {
		return nil, err
	}

	s.recordStatus(ctx, del, status)
	s.publish(ctx, fanout.UserTopic(del.UserID), fanout.EventDeliveryUpdated, del.UserID, del)
	return del, nil
}

// RetryDelivery re-queues a failed delivery and re-invokes its channel
// adapter. Once the attempt budget is exhausted the call is a no-op that
// leaves the record FAILED and reports ErrMaxAttemptsReached.
func (s *Service) RetryDelivery(ctx context.Context, deliveryID uuid.UUID) (*Delivery, error) {
	del, err := s.storage.GetDelivery(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if del.Status != DeliveryFailed {
		return nil, fmt.Errorf("%w: only failed deliveries can be retried, status is %s", ErrValidation, del.Status)
	}
	if del.AttemptCount >= s.cfg.MaxDeliveryAttempts {
		return del, fmt.Errorf("%w: %d attempts used", ErrMaxAttemptsReached, del.AttemptCount)
	}

	n, err := s.storage.GetNotification(ctx, del.NotificationID)
	if err != nil {
		return nil, err
	}
	prefs, err := s.loadPreferences(ctx, del.UserID)
	if err != nil {
		return nil, err
	}

	del.Status = DeliveryQueued
	del.UpdatedAt = s.now().UTC()
	if err := s.storage.UpdateDelivery(ctx, del); err != nil {
		return nil, err
	}

	n.RetryCount++
	n.UpdatedAt = s.now().UTC()
	if err := s.storage.UpdateNotification(ctx, n); err != nil {
		return nil, err
	}

	s.dispatcher.attempt(ctx, n, *prefs, del, s.dispatcher.buildContent(ctx, n))
	return del, nil
}

// DeliveryStats summarizes the delivery attempts of one notification.
type DeliveryStats struct {
	Total     int                    `json:"total"`
	ByStatus  map[DeliveryStatus]int `json:"by_status"`
	ByChannel map[Channel]int        `json:"by_channel"`
}

// GetDeliveryStats aggregates the per-channel outcomes of a notification.
func (s *Service) GetDeliveryStats(ctx context.Context, notificationID uuid.UUID) (*DeliveryStats, error) {
	deliveries, err := s.storage.ListDeliveries(ctx, notificationID)
	if err != nil {
		return nil, err
	}

	stats := &DeliveryStats{
		Total:     len(deliveries),
		ByStatus:  make(map[DeliveryStatus]int),
		ByChannel: make(map[Channel]int),
	}
	for _, d := range deliveries {
		stats.ByStatus[d.Status]++
		stats.ByChannel[d.Channel]++
	}
	return stats, nil
}

// GetDeliveries lists the delivery attempts of one notification.
func (s *Service) GetDeliveries(ctx context.Context, notificationID uuid.UUID) ([]Delivery, error) {
	return s.storage.ListDeliveries(ctx, notificationID)
}

// AnalyticsSummary aggregates counters over a date range.
func (s *Service) AnalyticsSummary(ctx context.Context, from, to time.Time) (Summary, error) {
	if s.analytics == nil {
		return Summary{}, nil
	}
	return s.analytics.Summary(ctx, from, to)
}

// CategoryBreakdown aggregates the range per category.
func (s *Service) CategoryBreakdown(ctx context.Context, from, to time.Time) ([]CategorySummary, error) {
	if s.analytics == nil {
		return nil, nil
	}
	return s.analytics.CategoryBreakdown(ctx, from, to)
}

// Healthcheck probes every registered dependency (broker, email adapter).
func (s *Service) Healthcheck(ctx context.Context) error {
	var errs []error
	for _, check := range s.healthchecks {
		if err := check(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReleaseDue dispatches deferred notifications whose time has come,
// re-resolving preferences at release time. Called by the Scheduler on every
// tick; exposed for manual draining in tests and operational tooling.
func (s *Service) ReleaseDue(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = s.cfg.SchedulerBatchSize
	}

	now := s.now().UTC()
	due, err := s.storage.ListDue(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	released := 0
	for i := range due {
		n := &due[i]
		if err := s.releaseOne(ctx, n, now); err != nil {
			s.log.ErrorContext(ctx, "Failed to release deferred notification",
				logger.NotificationID(n.ID),
				logger.Error(err))
			continue
		}
		released++
	}
	return released, nil
}

func (s *Service) releaseOne(ctx context.Context, n *Notification, now time.Time) error {
	prefs, err := s.loadPreferences(ctx, n.UserID)
	if err != nil {
		return err
	}

	// Preferences may have changed since the deferral.
	channels := s.resolver.ResolveChannels(*prefs, n.Category)
	if len(channels) == 0 {
		n.Status = StatusFailed
		n.FailureReason = "user disabled notifications"
		n.UpdatedAt = now
		return s.storage.UpdateNotification(ctx, n)
	}

	if s.resolver.IsQuietHours(prefs.QuietHours, now) {
		end, qerr := s.resolver.QuietHoursEnd(prefs.QuietHours, now)
		if qerr != nil {
			return qerr
		}
		endUTC := end.UTC()
		n.ScheduledFor = &endUTC
		n.UpdatedAt = now
		return s.storage.UpdateNotification(ctx, n)
	}

	_, err = s.deliver(ctx, n, *prefs, channels)
	return err
}

// deliver dispatches the channel set and finalizes the notification status.
func (s *Service) deliver(ctx context.Context, n *Notification, prefs Preferences, channels []Channel) (*Notification, error) {
	deliveries, dispatchErr := s.dispatcher.Dispatch(ctx, n, prefs, channels)

	now := s.now().UTC()
	if len(deliveries) == 0 {
		n.Status = StatusFailed
		n.FailureReason = "failed to create delivery attempts"
		n.UpdatedAt = now
		if err := s.storage.UpdateNotification(ctx, n); err != nil {
			return nil, errors.Join(dispatchErr, err)
		}
		return n, dispatchErr
	}

	// At least one attempt record exists, so the notification is SENT even
	// if individual channels failed.
	n.Status = StatusSent
	n.UpdatedAt = now
	if err := s.storage.UpdateNotification(ctx, n); err != nil {
		return nil, err
	}

	if slices.Contains(channels, ChannelInApp) {
		s.publish(ctx, fanout.UserTopic(n.UserID), fanout.EventNotificationCreated, n.UserID, n)
		s.publish(ctx, fanout.TopicCreated, fanout.EventNotificationCreated, n.UserID, n)
	}
	s.invalidateUnread(ctx, n.UserID)

	return n, nil
}

// owned fetches a notification and enforces ownership; a foreign
// notification is indistinguishable from an absent one.
func (s *Service) owned(ctx context.Context, userID string, id uuid.UUID) (*Notification, error) {
	n, err := s.storage.GetNotification(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.UserID != userID {
		return nil, ErrNotFound
	}
	return n, nil
}

func (s *Service) recordStatus(ctx context.Context, del *Delivery, status DeliveryStatus) {
	if s.analytics == nil {
		return
	}

	var field CounterField
	switch status {
	case DeliveryDelivered:
		field = CounterDelivered
	case DeliveryOpened:
		field = CounterOpened
	case DeliveryClicked:
		field = CounterClicked
	case DeliveryFailed:
		field = CounterFailed
	case DeliveryBounced:
		field = CounterBounced
	default:
		return
	}

	n, err := s.storage.GetNotification(ctx, del.NotificationID)
	if err != nil {
		s.log.WarnContext(ctx, "Skipping analytics for orphaned delivery",
			logger.DeliveryID(del.ID),
			logger.Error(err))
		return
	}
	if err := s.analytics.Record(ctx, n.Category, del.Channel, field); err != nil {
		s.log.WarnContext(ctx, "Failed to record analytics counter",
			logger.DeliveryID(del.ID),
			logger.Error(err))
	}
}

// publish sends a fan-out event; fan-out is best-effort and never fails the
// calling operation.
func (s *Service) publish(ctx context.Context, topic, eventType, userID string, payload any) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			s.log.WarnContext(ctx, "Failed to encode fan-out payload",
				logger.Topic(topic),
				logger.Error(err))
			return
		}
		raw = data
	}

	msg := fanout.Message{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		Payload:   raw,
		Timestamp: s.now().UTC(),
	}
	if err := s.bus.Publish(ctx, topic, msg); err != nil {
		s.log.WarnContext(ctx, "Fan-out publish failed",
			logger.Topic(topic),
			logger.Error(err))
	}
}

func (s *Service) invalidateUnread(ctx context.Context, userID string) {
	s.unread.Delete(userID)
	s.publish(ctx, fanout.UserTopic(userID), fanout.EventUnreadInvalidated, userID, nil)
}
