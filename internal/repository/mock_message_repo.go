package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/notifyhub/deadman-switch/internal/domain"
)

// MockMessageRepository is a hand-written, in-memory implementation of
// MessageRepository used in unit tests. No mock-generation library needed.
type MockMessageRepository struct {
	mu         sync.RWMutex
	messages   map[string]*domain.Message
	deliveries map[string]*domain.Delivery

	// Optional error overrides, set in tests to simulate failure paths.
	CreateErr       error
	GetDeliveryErr  error
	GetMessageErr   error
	UpdateStatusErr error
	FindRetriesErr  error
}

func NewMockMessageRepository() *MockMessageRepository {
	return &MockMessageRepository{
		messages:   make(map[string]*domain.Message),
		deliveries: make(map[string]*domain.Delivery),
	}
}

func (m *MockMessageRepository) CreateMessage(_ context.Context, msg *domain.Message, deliveries []*domain.Delivery) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.IdempotencyKey != nil {
		for _, existing := range m.messages {
			if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *msg.IdempotencyKey {
				return domain.ErrConflict
			}
		}
	}
	clone := *msg
	m.messages[msg.ID] = &clone
	for _, d := range deliveries {
		dc := *d
		if dc.UpdatedAt.IsZero() {
			dc.UpdatedAt = time.Now().UTC()
		}
		m.deliveries[d.ID] = &dc
	}
	return nil
}

func (m *MockMessageRepository) GetMessage(_ context.Context, id string) (*domain.Message, []*domain.Delivery, error) {
	if m.GetMessageErr != nil {
		return nil, nil, m.GetMessageErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	var deliveries []*domain.Delivery
	for _, d := range m.deliveries {
		if d.MessageID == id {
			clone := *d
			deliveries = append(deliveries, &clone)
		}
	}
	clone := *msg
	return &clone, deliveries, nil
}

func (m *MockMessageRepository) GetMessageByIdempotencyKey(_ context.Context, key string) (*domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, msg := range m.messages {
		if msg.IdempotencyKey != nil && *msg.IdempotencyKey == key {
			clone := *msg
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockMessageRepository) GetDelivery(_ context.Context, id string) (*domain.Delivery, error) {
	if m.GetDeliveryErr != nil {
		return nil, m.GetDeliveryErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.deliveries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *d
	return &clone, nil
}

func (m *MockMessageRepository) ListDeliveries(_ context.Context, f domain.DeliveryFilter) ([]*domain.Delivery, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Delivery, 0, len(m.deliveries))
	for _, d := range m.deliveries {
		if f.Status != nil && d.Status != *f.Status {
			continue
		}
		if f.MessageID != nil && d.MessageID != *f.MessageID {
			continue
		}
		clone := *d
		result = append(result, &clone)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, len(result), nil
}

func (m *MockMessageRepository) UpdateStatus(_ context.Context, id string, status domain.DeliveryStatus) error {
	if m.UpdateStatusErr != nil {
		return m.UpdateStatusErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.deliveries[id]; ok {
		d.Status = status
		d.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (m *MockMessageRepository) MarkDelivered(_ context.Context, id string, responseCode int, deliveredAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.deliveries[id]; ok {
		d.Status = domain.DeliveryDelivered
		d.ResponseCode = &responseCode
		d.DeliveredAt = &deliveredAt
		d.NextRetryAt = nil
		d.ErrorMessage = nil
	}
	return nil
}

func (m *MockMessageRepository) MarkFailed(_ context.Context, id, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.deliveries[id]; ok {
		d.Status = domain.DeliveryFailed
		d.ErrorMessage = &errMsg
		d.NextRetryAt = nil
	}
	return nil
}

func (m *MockMessageRepository) ScheduleRetry(_ context.Context, id string, retryCount int, nextRetry time.Time, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.deliveries[id]; ok {
		d.Status = domain.DeliveryRetrying
		d.RetryCount = retryCount
		d.NextRetryAt = &nextRetry
		d.ErrorMessage = &errMsg
	}
	return nil
}

func (m *MockMessageRepository) FindDueRetries(_ context.Context) ([]*domain.Delivery, error) {
	if m.FindRetriesErr != nil {
		return nil, m.FindRetriesErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now()
	var result []*domain.Delivery
	for _, d := range m.deliveries {
		if d.Status == domain.DeliveryRetrying && d.NextRetryAt != nil && !d.NextRetryAt.After(now) {
			clone := *d
			result = append(result, &clone)
		}
	}
	return result, nil
}

func (m *MockMessageRepository) FindStalePending(_ context.Context, pendingBefore, stuckBefore time.Time) ([]*domain.Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Delivery
	for _, d := range m.deliveries {
		stale := d.Status == domain.DeliveryPending && d.CreatedAt.Before(pendingBefore)
		stuck := (d.Status == domain.DeliveryQueued || d.Status == domain.DeliveryInFlight) &&
			d.UpdatedAt.Before(stuckBefore)
		if stale || stuck {
			clone := *d
			result = append(result, &clone)
		}
	}
	return result, nil
}

func (m *MockMessageRepository) ResetOrphaned(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, d := range m.deliveries {
		if d.Status == domain.DeliveryQueued || d.Status == domain.DeliveryInFlight {
			d.Status = domain.DeliveryPending
			n++
		}
	}
	return n, nil
}
