package notifier

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/email"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/templates"
)

// PushSender delivers push notifications to a set of device tokens and
// returns a provider correlation ID.
type PushSender interface {
	SendPush(ctx context.Context, tokens []string, title, message string, data map[string]any) (string, error)
}

// SMSSender delivers a text message to a verified phone number and returns a
// provider correlation ID.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) (string, error)
}

// TemplateSource resolves a template ID to its per-channel content.
type TemplateSource interface {
	Template(ctx context.Context, id string) (templates.Template, error)
}

// Senders bundles the channel adapters injected into the Dispatcher at
// construction. A nil adapter makes its channel unavailable: attempts on it
// are recorded as FAILED with ErrChannelUnavailable. The in-app channel
// needs no adapter.
type Senders struct {
	Email email.EmailSender
	Push  PushSender
	SMS   SMSSender
}

// LogPushSender is a development PushSender that logs instead of sending.
type LogPushSender struct {
	Log *slog.Logger
}

func (s LogPushSender) SendPush(ctx context.Context, tokens []string, title, message string, data map[string]any) (string, error) {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	log.InfoContext(ctx, "Push notification (dev mode, not sent)",
		slog.Int("tokens", len(tokens)),
		slog.String("title", title))
	return uuid.NewString(), nil
}

// LogSMSSender is a development SMSSender that logs instead of sending.
type LogSMSSender struct {
	Log *slog.Logger
}

func (s LogSMSSender) SendSMS(ctx context.Context, phone, message string) (string, error) {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	log.InfoContext(ctx, "SMS (dev mode, not sent)",
		logger.Channel(string(ChannelSMS)),
		slog.Int("length", len(message)))
	return uuid.NewString(), nil
}
