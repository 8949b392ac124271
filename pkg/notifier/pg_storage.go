package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStorage is the durable Storage implementation over a pgx pool. Schema is
// managed by the goose migrations in the migrations directory (pg.Migrate).
type PgStorage struct {
	pool *pgxpool.Pool
}

// NewPgStorage wraps an established connection pool. The caller owns the
// pool lifecycle.
func NewPgStorage(pool *pgxpool.Pool) (*PgStorage, error) {
	if pool == nil {
		return nil, ErrNilStorage
	}
	return &PgStorage{pool: pool}, nil
}

const notificationColumns = `id, user_id, category, title, message, data, template_id,
	scheduled_for, status, read, read_at, retry_count, failure_reason, created_at, updated_at`

func (s *PgStorage) CreateNotification(ctx context.Context, n *Notification) error {
	data, err := marshalJSON(n.Data)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		n.ID, n.UserID, n.Category, n.Title, n.Message, data, n.TemplateID,
		n.ScheduledFor, n.Status, n.Read, n.ReadAt, n.RetryCount, n.FailureReason, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (s *PgStorage) GetNotification(ctx context.Context, id uuid.UUID) (*Notification, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	return scanNotification(row)
}

func (s *PgStorage) UpdateNotification(ctx context.Context, n *Notification) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET status = $2, read = $3, read_at = $4, scheduled_for = $5,
			retry_count = $6, failure_reason = $7, updated_at = $8
		WHERE id = $1`,
		n.ID, n.Status, n.Read, n.ReadAt, n.ScheduledFor, n.RetryCount, n.FailureReason, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStorage) DeleteNotification(ctx context.Context, id uuid.UUID) error {
	// Delivery attempts cascade via the foreign key.
	tag, err := s.pool.Exec(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStorage) ListNotifications(ctx context.Context, userID string, f NotificationFilter) ([]Notification, int, error) {
	where := `WHERE user_id = $1`
	args := []any{userID}
	if f.Category != nil {
		args = append(args, *f.Category)
		where += fmt.Sprintf(` AND category = $%d`, len(args))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if f.UnreadOnly {
		where += ` AND NOT read`
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM notifications `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT `+notificationColumns+` FROM notifications %s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *n)
	}
	return out, total, rows.Err()
}

func (s *PgStorage) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM notifications
		WHERE user_id = $1 AND NOT read AND status <> $2`, userID, StatusFailed).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

func (s *PgStorage) MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET read = TRUE, read_at = $2, updated_at = $2,
			status = CASE WHEN status = $3 THEN $4 ELSE status END
		WHERE user_id = $1 AND NOT read`,
		userID, at, StatusSent, StatusRead)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PgStorage) ListDue(ctx context.Context, now time.Time, limit int) ([]Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE status = $1 AND scheduled_for IS NOT NULL AND scheduled_for <= $2
		ORDER BY scheduled_for ASC LIMIT $3`, StatusPending, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

const deliveryColumns = `id, notification_id, user_id, channel, status, recipient,
	provider_message_id, attempt_count, last_attempt_at, next_retry_at, error_message,
	sent_at, delivered_at, opened_at, clicked_at, created_at, updated_at`

func (s *PgStorage) CreateDelivery(ctx context.Context, d *Delivery) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notification_deliveries (`+deliveryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		d.ID, d.NotificationID, d.UserID, d.Channel, d.Status, d.Recipient,
		d.ProviderMessageID, d.AttemptCount, d.LastAttemptAt, d.NextRetryAt, d.ErrorMessage,
		d.SentAt, d.DeliveredAt, d.OpenedAt, d.ClickedAt, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create delivery: %w", err)
	}
	return nil
}

func (s *PgStorage) GetDelivery(ctx context.Context, id uuid.UUID) (*Delivery, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+deliveryColumns+` FROM notification_deliveries WHERE id = $1`, id)
	return scanDelivery(row)
}

func (s *PgStorage) UpdateDelivery(ctx context.Context, d *Delivery) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notification_deliveries
		SET status = $2, provider_message_id = $3, attempt_count = $4,
			last_attempt_at = $5, next_retry_at = $6, error_message = $7,
			sent_at = $8, delivered_at = $9, opened_at = $10, clicked_at = $11,
			updated_at = $12
		WHERE id = $1`,
		d.ID, d.Status, d.ProviderMessageID, d.AttemptCount,
		d.LastAttemptAt, d.NextRetryAt, d.ErrorMessage,
		d.SentAt, d.DeliveredAt, d.OpenedAt, d.ClickedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update delivery: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStorage) ListDeliveries(ctx context.Context, notificationID uuid.UUID) ([]Delivery, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+deliveryColumns+` FROM notification_deliveries
		WHERE notification_id = $1 ORDER BY created_at ASC`, notificationID)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var out []Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *PgStorage) GetPreferences(ctx context.Context, userID string) (*Preferences, error) {
	var (
		p                                                        Preferences
		defaultChannels, categories, unsubscribed, quiet, tokens []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, enabled, unsubscribed_from_all, default_channels, categories,
			unsubscribed_categories, quiet_hours, email, email_verified,
			phone, phone_verified, device_tokens, updated_at
		FROM notification_preferences WHERE user_id = $1`, userID).Scan(
		&p.UserID, &p.Enabled, &p.UnsubscribedFromAll, &defaultChannels, &categories,
		&unsubscribed, &quiet, &p.Email, &p.EmailVerified,
		&p.Phone, &p.PhoneVerified, &tokens, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get preferences: %w", err)
	}

	if err := errors.Join(
		json.Unmarshal(defaultChannels, &p.DefaultChannels),
		json.Unmarshal(categories, &p.Categories),
		json.Unmarshal(unsubscribed, &p.UnsubscribedCategories),
		json.Unmarshal(quiet, &p.QuietHours),
		json.Unmarshal(tokens, &p.DeviceTokens),
	); err != nil {
		return nil, fmt.Errorf("decode preferences: %w", err)
	}
	return &p, nil
}

func (s *PgStorage) SavePreferences(ctx context.Context, p *Preferences) error {
	defaultChannels, err := marshalJSON(p.DefaultChannels)
	if err != nil {
		return err
	}
	categories, err := marshalJSON(p.Categories)
	if err != nil {
		return err
	}
	unsubscribed, err := marshalJSON(orEmptySlice(p.UnsubscribedCategories))
	if err != nil {
		return err
	}
	quiet, err := marshalJSON(p.QuietHours)
	if err != nil {
		return err
	}
	tokens, err := marshalJSON(orEmptySlice(p.DeviceTokens))
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO notification_preferences (user_id, enabled, unsubscribed_from_all,
			default_channels, categories, unsubscribed_categories, quiet_hours,
			email, email_verified, phone, phone_verified, device_tokens, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			unsubscribed_from_all = EXCLUDED.unsubscribed_from_all,
			default_channels = EXCLUDED.default_channels,
			categories = EXCLUDED.categories,
			unsubscribed_categories = EXCLUDED.unsubscribed_categories,
			quiet_hours = EXCLUDED.quiet_hours,
			email = EXCLUDED.email,
			email_verified = EXCLUDED.email_verified,
			phone = EXCLUDED.phone,
			phone_verified = EXCLUDED.phone_verified,
			device_tokens = EXCLUDED.device_tokens,
			updated_at = EXCLUDED.updated_at`,
		p.UserID, p.Enabled, p.UnsubscribedFromAll,
		defaultChannels, categories, unsubscribed, quiet,
		p.Email, p.EmailVerified, p.Phone, p.PhoneVerified, tokens, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

// IncrementCounter uses an upsert so concurrent increments on the same
// bucket serialize in the database instead of losing updates.
func (s *PgStorage) IncrementCounter(ctx context.Context, key CounterKey, field CounterField) error {
	column, ok := counterColumn(field)
	if !ok {
		return fmt.Errorf("%w: unknown counter field %q", ErrValidation, field)
	}

	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO notification_analytics (day, category, channel, %[1]s)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (day, category, channel)
		DO UPDATE SET %[1]s = notification_analytics.%[1]s + 1`, column),
		key.Day, key.Category, key.Channel)
	if err != nil {
		return fmt.Errorf("increment counter: %w", err)
	}
	return nil
}

func (s *PgStorage) ListCounters(ctx context.Context, from, to time.Time) ([]Counter, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT day, category, channel, sent, delivered, opened, clicked, failed, bounced
		FROM notification_analytics
		WHERE day BETWEEN $1 AND $2
		ORDER BY day ASC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list counters: %w", err)
	}
	defer rows.Close()

	var out []Counter
	for rows.Next() {
		var c Counter
		if err := rows.Scan(&c.Day, &c.Category, &c.Channel,
			&c.Sent, &c.Delivered, &c.Opened, &c.Clicked, &c.Failed, &c.Bounced); err != nil {
			return nil, fmt.Errorf("scan counter: %w", err)
		}
		c.Day = Day(c.Day)
		out = append(out, c)
	}
	return out, rows.Err()
}

// counterColumn whitelists the column for a counter field; field values are
// internal constants but the name still never reaches SQL unchecked.
func counterColumn(field CounterField) (string, bool) {
	switch field {
	case CounterSent, CounterDelivered, CounterOpened, CounterClicked, CounterFailed, CounterBounced:
		return string(field), true
	}
	return "", false
}

func scanNotification(row pgx.Row) (*Notification, error) {
	var (
		n    Notification
		data []byte
	)
	err := row.Scan(&n.ID, &n.UserID, &n.Category, &n.Title, &n.Message, &data,
		&n.TemplateID, &n.ScheduledFor, &n.Status, &n.Read, &n.ReadAt,
		&n.RetryCount, &n.FailureReason, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan notification: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &n.Data); err != nil {
			return nil, fmt.Errorf("decode notification data: %w", err)
		}
	}
	return &n, nil
}

func scanDelivery(row pgx.Row) (*Delivery, error) {
	var d Delivery
	err := row.Scan(&d.ID, &d.NotificationID, &d.UserID, &d.Channel, &d.Status,
		&d.Recipient, &d.ProviderMessageID, &d.AttemptCount, &d.LastAttemptAt,
		&d.NextRetryAt, &d.ErrorMessage, &d.SentAt, &d.DeliveredAt, &d.OpenedAt,
		&d.ClickedAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan delivery: %w", err)
	}
	return &d, nil
}

func marshalJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return data, nil
}

// orEmptySlice keeps nil slices from landing as SQL NULL in jsonb columns.
func orEmptySlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
