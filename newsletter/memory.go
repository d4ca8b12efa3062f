package newsletter

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps subscribers in process memory. One mutex covers the
// check-then-append in Insert.
type MemoryStore struct {
	mu   sync.Mutex
	subs []Subscriber
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Insert(_ context.Context, s Subscriber) (Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.subs {
		existing := &m.subs[i]
		if existing.Email != s.Email {
			continue
		}
		if existing.Subscribed {
			return Subscriber{}, ErrDuplicate
		}
		existing.Subscribed = true
		existing.Name = s.Name
		existing.SubscribedAt = s.SubscribedAt
		return *existing, nil
	}
	m.subs = append(m.subs, s)
	return s, nil
}

func (m *MemoryStore) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.subs {
		if s.Subscribed {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Deactivate(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.subs {
		if m.subs[i].ID == id {
			m.subs[i].Subscribed = false
			return nil
		}
	}
	return ErrNotFound
}
