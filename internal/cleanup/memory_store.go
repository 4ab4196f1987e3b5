package cleanup

import (
	"context"
	"sync"
	"time"
)

// Compile-time assertion.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory Store implementation for demo/testing.
type MemoryStore struct {
	accounts  map[string]*AccountRecord
	marks     map[string]*Mark
	markCount int64
	mu        sync.RWMutex
}

// NewMemoryStore creates a new in-memory cleanup store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*AccountRecord),
		marks:    make(map[string]*Mark),
	}
}

func (m *MemoryStore) GetAccount(_ context.Context, address string) (*AccountRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.accounts[address]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryStore) UpsertAccount(_ context.Context, address, payload string) (*AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	rec, ok := m.accounts[address]
	if !ok {
		rec = &AccountRecord{
			Address:   address,
			CreatedAt: now,
		}
		m.accounts[address] = rec
	}
	rec.Payload = payload
	rec.LastModified = now
	cp := *rec
	return &cp, nil
}

func (m *MemoryStore) GetMark(_ context.Context, account string) (*Mark, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mk, ok := m.marks[account]
	if !ok {
		return nil, ErrNotMarked
	}
	cp := *mk
	return &cp, nil
}

func (m *MemoryStore) CreateMark(_ context.Context, mk *Mark) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.marks[mk.Account]; ok {
		return ErrAlreadyMarked
	}
	cp := *mk
	m.marks[mk.Account] = &cp
	m.markCount++
	return nil
}

func (m *MemoryStore) DeleteMark(_ context.Context, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.marks[account]; !ok {
		return ErrNotMarked
	}
	delete(m.marks, account)
	m.markCount--
	return nil
}

func (m *MemoryStore) PurgeAccount(_ context.Context, account string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[account]; !ok {
		return false, ErrAccountNotFound
	}
	delete(m.accounts, account)
	_, hadMark := m.marks[account]
	if hadMark {
		delete(m.marks, account)
		m.markCount--
	}
	return hadMark, nil
}

func (m *MemoryStore) ActiveMarkCount(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.markCount, nil
}
