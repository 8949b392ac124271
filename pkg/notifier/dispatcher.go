package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/email"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/templates"
)

// Dispatcher fans one notification out to its resolved channel set, one
// delivery attempt per channel. Channels are dispatched in parallel and fail
// independently: a channel-level error is captured on its delivery record
// and never aborts sibling channels.
type Dispatcher struct {
	deliveries DeliveryStorage
	analytics  *Analytics
	senders    Senders
	source     TemplateSource
	log        *slog.Logger
	now        func() time.Time
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the logger. Defaults to slog.Default().
func WithDispatcherLogger(log *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

// WithTemplateSource enables template rendering for notifications carrying a
// template ID. Without a source, the raw title and message are used.
func WithTemplateSource(src TemplateSource) DispatcherOption {
	return func(d *Dispatcher) {
		d.source = src
	}
}

// WithDispatcherClock overrides the time source, used in tests.
func WithDispatcherClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDispatcher creates a dispatcher writing delivery attempts to storage and
// feeding the analytics aggregator. Channel adapters are injected explicitly;
// there is no ambient provider state.
func NewDispatcher(deliveries DeliveryStorage, analytics *Analytics, senders Senders, opts ...DispatcherOption) (*Dispatcher, error) {
	if deliveries == nil {
		return nil, ErrNilStorage
	}

	d := &Dispatcher{
		deliveries: deliveries,
		analytics:  analytics,
		senders:    senders,
		log:        slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// content is the per-channel message text for one dispatch, already rendered.
type content struct {
	emailSubject string
	emailBody    string
	pushTitle    string
	pushMessage  string
	smsMessage   string
}

// Dispatch creates and executes one delivery attempt per channel. It returns
// every created delivery record; inspecting their statuses is the only way
// to learn per-channel outcomes. The returned error covers only failures to
// create the attempt records themselves.
func (d *Dispatcher) Dispatch(ctx context.Context, n *Notification, prefs Preferences, channels []Channel) ([]*Delivery, error) {
	c := d.buildContent(ctx, n)

	now := d.now().UTC()
	deliveries := make([]*Delivery, 0, len(channels))
	var createErrs []error
	for _, ch := range channels {
		del := &Delivery{
			ID:             uuid.New(),
			NotificationID: n.ID,
			UserID:         n.UserID,
			Channel:        ch,
			Status:         DeliveryQueued,
			Recipient:      recipientSnapshot(prefs, ch),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := d.deliveries.CreateDelivery(ctx, del); err != nil {
			createErrs = append(createErrs, fmt.Errorf("create %s delivery: %w", ch, err))
			continue
		}
		deliveries = append(deliveries, del)
	}

	var wg sync.WaitGroup
	for _, del := range deliveries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.attempt(ctx, n, prefs, del, c)
		}()
	}
	wg.Wait()

	return deliveries, errors.Join(createErrs...)
}

// attempt executes a single send on an already-persisted delivery record and
// updates it in place. Used by Dispatch for fresh attempts and by the retry
// handler for re-queued ones.
func (d *Dispatcher) attempt(ctx context.Context, n *Notification, prefs Preferences, del *Delivery, c content) {
	now := d.now().UTC()
	del.AttemptCount++
	del.LastAttemptAt = &now

	providerID, err := d.send(ctx, n, prefs, del, c)
	switch {
	case err == nil:
		// In-app deliveries land directly in the store the user reads from,
		// so they are DELIVERED, not merely SENT.
		if del.Channel == ChannelInApp {
			del.markStatus(DeliverySent, now)
			del.markStatus(DeliveryDelivered, now)
		} else {
			del.markStatus(DeliverySent, now)
		}
		del.ProviderMessageID = providerID
		del.ErrorMessage = ""
		d.record(ctx, n.Category, del.Channel, CounterSent)
	default:
		del.Status = DeliveryFailed
		del.UpdatedAt = now
		del.ErrorMessage = err.Error()
		d.record(ctx, n.Category, del.Channel, CounterFailed)
		d.log.WarnContext(ctx, "Delivery attempt failed",
			logger.NotificationID(n.ID),
			logger.DeliveryID(del.ID),
			logger.Channel(string(del.Channel)),
			logger.Error(err))
	}

	if err := d.deliveries.UpdateDelivery(ctx, del); err != nil {
		d.log.ErrorContext(ctx, "Failed to persist delivery outcome",
			logger.DeliveryID(del.ID),
			logger.Error(err))
	}
}

// send invokes the channel adapter and returns the provider correlation ID.
func (d *Dispatcher) send(ctx context.Context, n *Notification, prefs Preferences, del *Delivery, c content) (string, error) {
	switch del.Channel {
	case ChannelInApp:
		// The notification record itself is the in-app delivery.
		return "", nil

	case ChannelEmail:
		if d.senders.Email == nil {
			return "", fmt.Errorf("%w: no email adapter configured", ErrChannelUnavailable)
		}
		if prefs.Email == "" || !prefs.EmailVerified {
			return "", fmt.Errorf("%w: no verified email address on file", ErrChannelUnavailable)
		}
		id, err := d.senders.Email.SendEmail(ctx, email.SendEmailParams{
			SendTo:   prefs.Email,
			Subject:  c.emailSubject,
			BodyHTML: c.emailBody,
			Tag:      string(n.Category),
		})
		if err != nil {
			return "", errors.Join(ErrProviderFailure, err)
		}
		return id, nil

	case ChannelPush:
		if d.senders.Push == nil {
			return "", fmt.Errorf("%w: no push adapter configured", ErrChannelUnavailable)
		}
		if len(prefs.DeviceTokens) == 0 {
			return "", fmt.Errorf("%w: no device tokens on file", ErrChannelUnavailable)
		}
		id, err := d.senders.Push.SendPush(ctx, prefs.DeviceTokens, c.pushTitle, c.pushMessage, nil)
		if err != nil {
			return "", errors.Join(ErrProviderFailure, err)
		}
		return id, nil

	case ChannelSMS:
		if d.senders.SMS == nil {
			return "", fmt.Errorf("%w: no sms adapter configured", ErrChannelUnavailable)
		}
		if prefs.Phone == "" || !prefs.PhoneVerified {
			return "", fmt.Errorf("%w: no verified phone number on file", ErrChannelUnavailable)
		}
		id, err := d.senders.SMS.SendSMS(ctx, prefs.Phone, c.smsMessage)
		if err != nil {
			return "", errors.Join(ErrProviderFailure, err)
		}
		return id, nil
	}

	return "", fmt.Errorf("%w: unknown channel %q", ErrChannelUnavailable, del.Channel)
}

// buildContent renders the notification's template when one is set and a
// source is configured, falling back to the raw title and message per field.
func (d *Dispatcher) buildContent(ctx context.Context, n *Notification) content {
	c := content{
		emailSubject: n.Title,
		emailBody:    n.Message,
		pushTitle:    n.Title,
		pushMessage:  n.Message,
		smsMessage:   n.Message,
	}

	if n.TemplateID == "" || d.source == nil {
		return c
	}

	tmpl, err := d.source.Template(ctx, n.TemplateID)
	if err != nil {
		d.log.WarnContext(ctx, "Template lookup failed, using raw content",
			logger.NotificationID(n.ID),
			slog.String("template_id", n.TemplateID),
			logger.Error(err))
		return c
	}

	rendered := templates.Render(tmpl, n.Data)
	if rendered.EmailSubject != "" {
		c.emailSubject = rendered.EmailSubject
	}
	if rendered.EmailBody != "" {
		c.emailBody = rendered.EmailBody
	}
	if rendered.PushTitle != "" {
		c.pushTitle = rendered.PushTitle
	}
	if rendered.PushMessage != "" {
		c.pushMessage = rendered.PushMessage
	}
	if rendered.SMSMessage != "" {
		c.smsMessage = rendered.SMSMessage
	}
	return c
}

func (d *Dispatcher) record(ctx context.Context, category Category, ch Channel, field CounterField) {
	if d.analytics == nil {
		return
	}
	if err := d.analytics.Record(ctx, category, ch, field); err != nil {
		d.log.WarnContext(ctx, "Failed to record analytics counter",
			logger.Category(string(category)),
			logger.Channel(string(ch)),
			logger.Error(err))
	}
}

// recipientSnapshot captures the address the attempt will target so later
// preference edits do not rewrite delivery history.
func recipientSnapshot(prefs Preferences, ch Channel) string {
	switch ch {
	case ChannelEmail:
		return prefs.Email
	case ChannelSMS:
		return prefs.Phone
	case ChannelPush:
		if len(prefs.DeviceTokens) > 0 {
			return prefs.DeviceTokens[0]
		}
	}
	return ""
}
