package notifier

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage is a mutex-guarded in-memory Storage for tests and
// single-node setups. All returned records are copies; mutating them does
// not affect the store until an explicit update.
type MemoryStorage struct {
	mu            sync.RWMutex
	notifications map[uuid.UUID]Notification
	deliveries    map[uuid.UUID]Delivery
	preferences   map[string]Preferences
	counters      map[CounterKey]Counter
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		notifications: make(map[uuid.UUID]Notification),
		deliveries:    make(map[uuid.UUID]Delivery),
		preferences:   make(map[string]Preferences),
		counters:      make(map[CounterKey]Counter),
	}
}

func (m *MemoryStorage) CreateNotification(ctx context.Context, n *Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.notifications[n.ID] = *n
	return nil
}

func (m *MemoryStorage) GetNotification(ctx context.Context, id uuid.UUID) (*Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.notifications[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &n, nil
}

func (m *MemoryStorage) UpdateNotification(ctx context.Context, n *Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.notifications[n.ID]; !ok {
		return ErrNotFound
	}
	m.notifications[n.ID] = *n
	return nil
}

func (m *MemoryStorage) DeleteNotification(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.notifications[id]; !ok {
		return ErrNotFound
	}
	delete(m.notifications, id)

	// Cascade to delivery attempts.
	for did, d := range m.deliveries {
		if d.NotificationID == id {
			delete(m.deliveries, did)
		}
	}
	return nil
}

func (m *MemoryStorage) ListNotifications(ctx context.Context, userID string, f NotificationFilter) ([]Notification, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []Notification
	for _, n := range m.notifications {
		if n.UserID != userID {
			continue
		}
		if f.Category != nil && n.Category != *f.Category {
			continue
		}
		if f.Status != nil && n.Status != *f.Status {
			continue
		}
		if f.UnreadOnly && n.Read {
			continue
		}
		matched = append(matched, n)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if f.Offset >= total {
		return nil, total, nil
	}
	matched = matched[f.Offset:]
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return slices.Clone(matched), total, nil
}

func (m *MemoryStorage) CountUnread(ctx context.Context, userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, n := range m.notifications {
		if n.UserID == userID && !n.Read && n.Status != StatusFailed {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStorage) MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for id, n := range m.notifications {
		if n.UserID != userID || n.Read {
			continue
		}
		n.Read = true
		n.ReadAt = &at
		n.UpdatedAt = at
		if n.Status == StatusSent {
			n.Status = StatusRead
		}
		m.notifications[id] = n
		count++
	}
	return count, nil
}

func (m *MemoryStorage) ListDue(ctx context.Context, now time.Time, limit int) ([]Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var due []Notification
	for _, n := range m.notifications {
		if n.Status != StatusPending || n.ScheduledFor == nil {
			continue
		}
		if n.ScheduledFor.After(now) {
			continue
		}
		due = append(due, n)
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledFor.Before(*due[j].ScheduledFor)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *MemoryStorage) CreateDelivery(ctx context.Context, d *Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deliveries[d.ID] = *d
	return nil
}

func (m *MemoryStorage) GetDelivery(ctx context.Context, id uuid.UUID) (*Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.deliveries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (m *MemoryStorage) UpdateDelivery(ctx context.Context, d *Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.deliveries[d.ID]; !ok {
		return ErrNotFound
	}
	m.deliveries[d.ID] = *d
	return nil
}

func (m *MemoryStorage) ListDeliveries(ctx context.Context, notificationID uuid.UUID) ([]Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Delivery
	for _, d := range m.deliveries {
		if d.NotificationID == notificationID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStorage) GetPreferences(ctx context.Context, userID string) (*Preferences, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.preferences[userID]
	if !ok {
		return nil, ErrNotFound
	}
	p.UnsubscribedCategories = slices.Clone(p.UnsubscribedCategories)
	p.DeviceTokens = slices.Clone(p.DeviceTokens)
	return &p, nil
}

func (m *MemoryStorage) SavePreferences(ctx context.Context, p *Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *p
	stored.UnsubscribedCategories = slices.Clone(p.UnsubscribedCategories)
	stored.DeviceTokens = slices.Clone(p.DeviceTokens)
	m.preferences[p.UserID] = stored
	return nil
}

// IncrementCounter is atomic under the storage mutex, so concurrent
// increments on the same bucket never lose updates.
func (m *MemoryStorage) IncrementCounter(ctx context.Context, key CounterKey, field CounterField) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.counters[key]
	c.CounterKey = key
	switch field {
	case CounterSent:
		c.Sent++
	case CounterDelivered:
		c.Delivered++
	case CounterOpened:
		c.Opened++
	case CounterClicked:
		c.Clicked++
	case CounterFailed:
		c.Failed++
	case CounterBounced:
		c.Bounced++
	}
	m.counters[key] = c
	return nil
}

func (m *MemoryStorage) ListCounters(ctx context.Context, from, to time.Time) ([]Counter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Counter
	for _, c := range m.counters {
		if c.Day.Before(from) || c.Day.After(to) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Day.Before(out[j].Day)
	})
	return out, nil
}
