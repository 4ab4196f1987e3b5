package treasury

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	pool    Pool
	entries []*Entry
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) GetPool(ctx context.Context) (*Pool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := m.pool
	return &cp, nil
}

func (m *MemoryStore) Credit(ctx context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pool.Balance += e.Amount
	switch e.Kind {
	case EntryFund:
		m.pool.Funded += e.Amount
	case EntryRefund:
		m.pool.Paid -= e.Amount
	}
	m.pool.UpdatedAt = time.Now()

	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *MemoryStore) Debit(ctx context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.Amount > m.pool.Balance {
		return ErrInsufficientFunds
	}
	m.pool.Balance -= e.Amount
	m.pool.Paid += e.Amount
	m.pool.UpdatedAt = time.Now()

	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *MemoryStore) ListEntries(ctx context.Context, limit int) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Entry, 0, limit)
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *m.entries[i]
		out = append(out, &cp)
	}
	return out, nil
}
