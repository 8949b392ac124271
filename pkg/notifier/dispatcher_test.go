package notifier_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/email"
	"github.com/dmitrymomot/notifykit/pkg/notifier"
	"github.com/dmitrymomot/notifykit/pkg/templates"
)

// stubEmailSender records sends and returns a fixed outcome.
type stubEmailSender struct {
	mu   sync.Mutex
	sent []email.SendEmailParams
	id   string
	err  error
}

// fail sets the error returned by subsequent sends; nil restores success.
func (s *stubEmailSender) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *stubEmailSender) SendEmail(ctx context.Context, params email.SendEmailParams) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.sent = append(s.sent, params)
	return s.id, nil
}

type stubPushSender struct {
	mu   sync.Mutex
	sent int
	id   string
	err  error
}

func (s *stubPushSender) SendPush(ctx context.Context, tokens []string, title, message string, data map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.sent++
	return s.id, nil
}

type stubSMSSender struct {
	id  string
	err error
}

func (s *stubSMSSender) SendSMS(ctx context.Context, phone, message string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.id, nil
}

func verifiedPrefs(userID string) notifier.Preferences {
	prefs := notifier.DefaultPreferences(userID)
	prefs.Email = "user@example.com"
	prefs.EmailVerified = true
	prefs.Phone = "+358401234567"
	prefs.PhoneVerified = true
	prefs.DeviceTokens = []string{"device-token-1"}
	return prefs
}

func testNotification(userID string) *notifier.Notification {
	now := time.Now().UTC()
	return &notifier.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Category:  notifier.CategoryReview,
		Title:     "New review",
		Message:   "Someone reviewed your event.",
		Status:    notifier.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestDispatcher_OneDeliveryPerChannel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notifier.NewMemoryStorage()
	emailSender := &stubEmailSender{id: "pm-1"}
	pushSender := &stubPushSender{id: "fcm-1"}

	dispatcher, err := notifier.NewDispatcher(store, nil, notifier.Senders{
		Email: emailSender,
		Push:  pushSender,
		SMS:   &stubSMSSender{id: "sms-1"},
	})
	require.NoError(t, err)

	n := testNotification("user-1")
	channels := []notifier.Channel{
		notifier.ChannelEmail, notifier.ChannelPush, notifier.ChannelInApp, notifier.ChannelSMS,
	}

	deliveries, err := dispatcher.Dispatch(ctx, n, verifiedPrefs("user-1"), channels)
	require.NoError(t, err)
	require.Len(t, deliveries, len(channels))

	byChannel := make(map[notifier.Channel]*notifier.Delivery)
	for _, d := range deliveries {
		byChannel[d.Channel] = d
	}

	assert.Equal(t, notifier.DeliverySent, byChannel[notifier.ChannelEmail].Status)
	assert.Equal(t, "pm-1", byChannel[notifier.ChannelEmail].ProviderMessageID)
	assert.Equal(t, notifier.DeliverySent, byChannel[notifier.ChannelPush].Status)
	assert.Equal(t, notifier.DeliverySent, byChannel[notifier.ChannelSMS].Status)
	// In-app lands directly in the user's store.
	assert.Equal(t, notifier.DeliveryDelivered, byChannel[notifier.ChannelInApp].Status)
	assert.Equal(t, 1, byChannel[notifier.ChannelInApp].AttemptCount)
}

func TestDispatcher_PartialFailureIsolation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notifier.NewMemoryStorage()
	emailSender := &stubEmailSender{err: errors.New("relay rejected")}

	dispatcher, err := notifier.NewDispatcher(store, nil, notifier.Senders{
		Email: emailSender,
		Push:  &stubPushSender{id: "fcm-1"},
	})
	require.NoError(t, err)

	n := testNotification("user-1")
	channels := []notifier.Channel{notifier.ChannelEmail, notifier.ChannelPush, notifier.ChannelInApp}

	deliveries, err := dispatcher.Dispatch(ctx, n, verifiedPrefs("user-1"), channels)
	require.NoError(t, err)
	require.Len(t, deliveries, 3, "a failing channel must not suppress sibling attempts")

	byChannel := make(map[notifier.Channel]*notifier.Delivery)
	for _, d := range deliveries {
		byChannel[d.Channel] = d
	}

	assert.Equal(t, notifier.DeliveryFailed, byChannel[notifier.ChannelEmail].Status)
	assert.Contains(t, byChannel[notifier.ChannelEmail].ErrorMessage, "relay rejected")
	assert.Equal(t, notifier.DeliverySent, byChannel[notifier.ChannelPush].Status)
	assert.Equal(t, notifier.DeliveryDelivered, byChannel[notifier.ChannelInApp].Status)
}

func TestDispatcher_ChannelUnavailable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notifier.NewMemoryStorage()

	dispatcher, err := notifier.NewDispatcher(store, nil, notifier.Senders{
		Email: &stubEmailSender{id: "pm-1"},
		Push:  &stubPushSender{id: "fcm-1"},
	})
	require.NoError(t, err)

	// No verified email, no device tokens.
	prefs := notifier.DefaultPreferences("user-1")
	n := testNotification("user-1")

	deliveries, err := dispatcher.Dispatch(ctx, n, prefs,
		[]notifier.Channel{notifier.ChannelEmail, notifier.ChannelPush})
	require.NoError(t, err)
	require.Len(t, deliveries, 2)

	for _, d := range deliveries {
		assert.Equal(t, notifier.DeliveryFailed, d.Status, "channel %s", d.Channel)
		assert.NotEmpty(t, d.ErrorMessage)
	}
}

func TestDispatcher_RecipientSnapshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notifier.NewMemoryStorage()

	dispatcher, err := notifier.NewDispatcher(store, nil, notifier.Senders{
		Email: &stubEmailSender{id: "pm-1"},
	})
	require.NoError(t, err)

	n := testNotification("user-1")
	deliveries, err := dispatcher.Dispatch(ctx, n, verifiedPrefs("user-1"),
		[]notifier.Channel{notifier.ChannelEmail})
	require.NoError(t, err)
	require.Len(t, deliveries, 1)

	assert.Equal(t, "user@example.com", deliveries[0].Recipient)
}

func TestDispatcher_TemplateRendering(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notifier.NewMemoryStorage()
	emailSender := &stubEmailSender{id: "pm-1"}

	registry := templates.NewRegistry(templates.Template{
		ID:           "review-created",
		EmailSubject: "New review for {{event}}",
		EmailBody:    "<p>{{reviewer}} left a review.</p>",
	})

	dispatcher, err := notifier.NewDispatcher(store, nil,
		notifier.Senders{Email: emailSender},
		notifier.WithTemplateSource(registry))
	require.NoError(t, err)

	n := testNotification("user-1")
	n.TemplateID = "review-created"
	n.Data = map[string]any{"event": "GopherConf", "reviewer": "Alex"}

	_, err = dispatcher.Dispatch(ctx, n, verifiedPrefs("user-1"),
		[]notifier.Channel{notifier.ChannelEmail})
	require.NoError(t, err)

	require.Len(t, emailSender.sent, 1)
	assert.Equal(t, "New review for GopherConf", emailSender.sent[0].Subject)
	assert.Equal(t, "<p>Alex left a review.</p>", emailSender.sent[0].BodyHTML)
}

func TestDispatcher_MissingTemplateFallsBackToRawContent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notifier.NewMemoryStorage()
	emailSender := &stubEmailSender{id: "pm-1"}

	dispatcher, err := notifier.NewDispatcher(store, nil,
		notifier.Senders{Email: emailSender},
		notifier.WithTemplateSource(templates.NewRegistry()))
	require.NoError(t, err)

	n := testNotification("user-1")
	n.TemplateID = "never-registered"

	_, err = dispatcher.Dispatch(ctx, n, verifiedPrefs("user-1"),
		[]notifier.Channel{notifier.ChannelEmail})
	require.NoError(t, err)

	require.Len(t, emailSender.sent, 1)
	assert.Equal(t, n.Title, emailSender.sent[0].Subject)
	assert.Equal(t, n.Message, emailSender.sent[0].BodyHTML)
}
