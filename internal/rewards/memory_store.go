package rewards

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	stats    map[string]*UserStats
	sessions map[string][]*Session // append-only per reporter; index+1 == session id
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		stats:    make(map[string]*UserStats),
		sessions: make(map[string][]*Session),
	}
}

func (m *MemoryStore) GetStats(ctx context.Context, identity string) (*UserStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.stats[identity]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *st
	return &cp, nil
}

func (m *MemoryStore) GetSession(ctx context.Context, reporter string, id int64) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.sessions[reporter]
	if id < 1 || id > int64(len(list)) {
		return nil, ErrSessionNotFound
	}
	cp := *list[id-1]
	return &cp, nil
}

func (m *MemoryStore) ListSessions(ctx context.Context, reporter string) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.sessions[reporter]
	out := make([]*Session, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		cp := *list[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStore) RecordReport(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.ID = int64(len(m.sessions[s.Reporter])) + 1
	cp := *s
	m.sessions[s.Reporter] = append(m.sessions[s.Reporter], &cp)

	st, ok := m.stats[s.Reporter]
	if !ok {
		st = &UserStats{Identity: s.Reporter}
		m.stats[s.Reporter] = st
	}
	st.AccountsCleaned += s.Accounts
	st.Sessions++
	st.Pending += s.Total
	st.LastActive = time.Now()
	return nil
}

func (m *MemoryStore) SettlePending(ctx context.Context, identity string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.stats[identity]
	if !ok {
		return ErrUserNotFound
	}
	if amount > st.Pending {
		amount = st.Pending
	}
	st.Pending -= amount
	st.RewardsEarned += amount
	return nil
}

func (m *MemoryStore) SettleSession(ctx context.Context, reporter string, id int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.sessions[reporter]
	if id < 1 || id > int64(len(list)) {
		return 0, ErrSessionNotFound
	}
	sess := list[id-1]
	if sess.Settled {
		return 0, ErrAlreadySettled
	}
	sess.Settled = true

	st := m.stats[reporter]
	deduct := sess.Total
	if deduct > st.Pending {
		deduct = st.Pending
	}
	st.Pending -= deduct
	st.RewardsEarned += sess.Total
	return sess.Total, nil
}
