package treasury

import (
	"context"
	"fmt"
	"time"

	"github.com/mbd888/reclaim/internal/auth"
	"github.com/mbd888/reclaim/internal/idgen"
	"github.com/mbd888/reclaim/internal/metrics"
)

// Service implements the treasury business logic.
type Service struct {
	store           Store
	guard           *auth.Guard
	restrictFunding bool
}

// NewService creates a treasury service. When restrictFunding is set
// only the owner may fund the pool.
func NewService(store Store, guard *auth.Guard, restrictFunding bool) *Service {
	return &Service{
		store:           store,
		guard:           guard,
		restrictFunding: restrictFunding,
	}
}

// Fund credits the pool.
func (s *Service) Fund(ctx context.Context, caller string, amount int64) (*Pool, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	if s.restrictFunding {
		if err := s.guard.RequireOwner(caller); err != nil {
			return nil, err
		}
	}

	e := &Entry{
		ID:        idgen.WithPrefix("te_"),
		Kind:      EntryFund,
		Party:     caller,
		Amount:    amount,
		CreatedAt: time.Now(),
	}
	if err := s.store.Credit(ctx, e); err != nil {
		return nil, fmt.Errorf("funding pool: %w", err)
	}
	return s.refreshPool(ctx)
}

// Debit removes amount from the pool for a payout to target. Not
// routed; the claims engine is the only caller.
func (s *Service) Debit(ctx context.Context, target string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	e := &Entry{
		ID:        idgen.WithPrefix("te_"),
		Kind:      EntryPayout,
		Party:     target,
		Amount:    amount,
		CreatedAt: time.Now(),
	}
	if err := s.store.Debit(ctx, e); err != nil {
		return err
	}
	s.refreshPool(ctx)
	return nil
}

// Credit returns amount to the pool after a failed settlement.
func (s *Service) Credit(ctx context.Context, target string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	e := &Entry{
		ID:        idgen.WithPrefix("te_"),
		Kind:      EntryRefund,
		Party:     target,
		Amount:    amount,
		CreatedAt: time.Now(),
	}
	if err := s.store.Credit(ctx, e); err != nil {
		return fmt.Errorf("refunding pool: %w", err)
	}
	s.refreshPool(ctx)
	return nil
}

// EmergencyWithdraw drains amount from the pool to the owner.
func (s *Service) EmergencyWithdraw(ctx context.Context, caller string, amount int64) (*Pool, error) {
	if err := s.guard.RequireOwner(caller); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}

	e := &Entry{
		ID:        idgen.WithPrefix("te_"),
		Kind:      EntryWithdraw,
		Party:     s.guard.Owner(),
		Amount:    amount,
		CreatedAt: time.Now(),
	}
	if err := s.store.Debit(ctx, e); err != nil {
		return nil, err
	}
	return s.refreshPool(ctx)
}

// Pool returns the current pool state.
func (s *Service) Pool(ctx context.Context) (*Pool, error) {
	return s.store.GetPool(ctx)
}

// Entries returns the newest entries first.
func (s *Service) Entries(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.store.ListEntries(ctx, limit)
}

func (s *Service) refreshPool(ctx context.Context) (*Pool, error) {
	pool, err := s.store.GetPool(ctx)
	if err != nil {
		return nil, err
	}
	metrics.TreasuryBalance.Set(float64(pool.Balance))
	return pool, nil
}
