package cleanup

import (
	"context"
	"strings"
	"time"

	"github.com/mbd888/reclaim/internal/auth"
	"github.com/mbd888/reclaim/internal/metrics"
	"github.com/mbd888/reclaim/internal/syncutil"
	"github.com/mbd888/reclaim/internal/traces"
)

// Service implements the cleanup state machine.
type Service struct {
	store      Store
	guard      *auth.Guard
	maxPayload int
	locks      syncutil.ShardedMutex // per-account locks
}

// NewService creates a new cleanup service. maxPayload bounds the
// account data payload size in bytes.
func NewService(store Store, guard *auth.Guard, maxPayload int) *Service {
	return &Service{
		store:      store,
		guard:      guard,
		maxPayload: maxPayload,
	}
}

// WriteAccountData upserts the caller's account record. CreatedAt is set
// on first insert only; LastModified is always updated.
func (s *Service) WriteAccountData(ctx context.Context, caller, payload string) (*AccountRecord, error) {
	if len(payload) > s.maxPayload {
		return nil, ErrPayloadTooLarge
	}

	caller = strings.ToLower(caller)
	unlock := s.locks.Lock(caller)
	defer unlock()

	return s.store.UpsertAccount(ctx, caller, payload)
}

// Mark declares intent to clean up an account, gated by a confirmation
// code chosen by the caller. Only the account itself or the deployment
// owner may mark.
func (s *Service) Mark(ctx context.Context, caller, account, code string) (*Mark, error) {
	caller = strings.ToLower(caller)
	account = strings.ToLower(account)

	unlock := s.locks.Lock(account)
	defer unlock()

	if _, err := s.store.GetMark(ctx, account); err == nil {
		return nil, ErrAlreadyMarked
	}
	if _, err := s.store.GetAccount(ctx, account); err != nil {
		return nil, err
	}
	if err := s.guard.RequireAnyOf(caller, account, s.guard.Owner()); err != nil {
		return nil, ErrUnauthorized
	}

	m := &Mark{
		Account:          account,
		MarkedBy:         caller,
		ConfirmationCode: code,
		MarkedAt:         time.Now(),
	}
	if err := s.store.CreateMark(ctx, m); err != nil {
		return nil, err
	}

	metrics.CleanupsTotal.WithLabelValues("marked").Inc()
	s.refreshMarkGauge(ctx)
	return m, nil
}

// Cancel removes an active mark, returning the account to the unmarked
// state. The account, the marker, or the owner may cancel.
func (s *Service) Cancel(ctx context.Context, caller, account string) error {
	caller = strings.ToLower(caller)
	account = strings.ToLower(account)

	unlock := s.locks.Lock(account)
	defer unlock()

	m, err := s.store.GetMark(ctx, account)
	if err != nil {
		return err
	}
	if err := s.guard.RequireAnyOf(caller, account, m.MarkedBy, s.guard.Owner()); err != nil {
		return ErrUnauthorized
	}

	if err := s.store.DeleteMark(ctx, account); err != nil {
		return err
	}

	metrics.CleanupsTotal.WithLabelValues("cancelled").Inc()
	s.refreshMarkGauge(ctx)
	return nil
}

// Confirm executes a marked cleanup. The supplied code must exactly
// match the stored confirmation code; on success the account record and
// mark are both removed. This is the only intentional path that
// destroys account data.
func (s *Service) Confirm(ctx context.Context, caller, account, code string) error {
	ctx, span := traces.StartSpan(ctx, "cleanup.Confirm",
		traces.Caller(caller), traces.Account(account))
	defer span.End()

	caller = strings.ToLower(caller)
	account = strings.ToLower(account)

	unlock := s.locks.Lock(account)
	defer unlock()

	m, err := s.store.GetMark(ctx, account)
	if err != nil {
		return err
	}
	if err := s.guard.RequireAnyOf(caller, account, m.MarkedBy, s.guard.Owner()); err != nil {
		return ErrUnauthorized
	}
	if m.ConfirmationCode != code {
		return ErrConfirmationMismatch
	}

	if _, err := s.store.PurgeAccount(ctx, account); err != nil {
		return err
	}

	metrics.CleanupsTotal.WithLabelValues("confirmed").Inc()
	s.refreshMarkGauge(ctx)
	return nil
}

// AdminForce removes an account record unconditionally, bypassing the
// confirmation code. Owner only. Succeeds whether or not a mark exists.
func (s *Service) AdminForce(ctx context.Context, caller, account string) error {
	ctx, span := traces.StartSpan(ctx, "cleanup.AdminForce",
		traces.Caller(caller), traces.Account(account))
	defer span.End()

	caller = strings.ToLower(caller)
	account = strings.ToLower(account)

	if err := s.guard.RequireOwner(caller); err != nil {
		return ErrUnauthorized
	}

	unlock := s.locks.Lock(account)
	defer unlock()

	if _, err := s.store.GetAccount(ctx, account); err != nil {
		return err
	}

	if _, err := s.store.PurgeAccount(ctx, account); err != nil {
		return err
	}

	metrics.CleanupsTotal.WithLabelValues("forced").Inc()
	s.refreshMarkGauge(ctx)
	return nil
}

// GetAccount returns the account record for an address.
func (s *Service) GetAccount(ctx context.Context, address string) (*AccountRecord, error) {
	return s.store.GetAccount(ctx, strings.ToLower(address))
}

// GetMark returns the active mark for an account.
func (s *Service) GetMark(ctx context.Context, account string) (*Mark, error) {
	return s.store.GetMark(ctx, strings.ToLower(account))
}

// IsMarked reports whether an account has an active mark.
func (s *Service) IsMarked(ctx context.Context, account string) (bool, error) {
	_, err := s.store.GetMark(ctx, strings.ToLower(account))
	if err == ErrNotMarked {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ActiveMarkCount returns the number of accounts currently marked.
func (s *Service) ActiveMarkCount(ctx context.Context) (int64, error) {
	return s.store.ActiveMarkCount(ctx)
}

// CanView reports whether caller may see the mark's confirmation code.
func (s *Service) CanView(caller string, m *Mark) bool {
	return s.guard.RequireAnyOf(caller, m.Account, m.MarkedBy, s.guard.Owner()) == nil
}

func (s *Service) refreshMarkGauge(ctx context.Context) {
	if n, err := s.store.ActiveMarkCount(ctx); err == nil {
		metrics.ActiveMarks.Set(float64(n))
	}
}
