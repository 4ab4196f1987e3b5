package rewards

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mbd888/reclaim/internal/auth"
	"github.com/mbd888/reclaim/internal/metrics"
	"github.com/mbd888/reclaim/internal/syncutil"
	"github.com/mbd888/reclaim/internal/traces"
	"go.opentelemetry.io/otel/codes"
)

// Service implements the reward ledger business logic.
type Service struct {
	store Store
	guard *auth.Guard

	paramsMu sync.RWMutex
	params   Params

	locks *syncutil.ContextShardedMutex // per-reporter locks
}

// NewService creates a reward service with the given initial pricing.
func NewService(store Store, guard *auth.Guard, params Params) *Service {
	if params.BonusMode == "" {
		params.BonusMode = ModeCumulative
	}
	return &Service{
		store:  store,
		guard:  guard,
		params: params,
		locks:  syncutil.NewContextShardedMutex(),
	}
}

// Params returns the current pricing.
func (s *Service) Params() Params {
	s.paramsMu.RLock()
	defer s.paramsMu.RUnlock()
	return s.params
}

// Report records a batch of cleaned accounts for the caller and returns
// the priced session.
func (s *Service) Report(ctx context.Context, reporter string, accounts int64) (*Session, error) {
	ctx, span := traces.StartSpan(ctx, "rewards.Report",
		traces.Caller(reporter),
		traces.Count(accounts),
	)
	defer span.End()

	unlock, err := s.locks.LockContext(ctx, reporter)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer unlock()

	var prior int64
	stats, err := s.store.GetStats(ctx, reporter)
	switch {
	case err == nil:
		prior = stats.AccountsCleaned
	case errors.Is(err, ErrUserNotFound):
		// first report
	default:
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("loading stats: %w", err)
	}

	b, err := Compute(accounts, prior, s.Params())
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	session := &Session{
		Reporter:     reporter,
		Accounts:     accounts,
		Base:         b.Base,
		Bonus:        b.Bonus,
		Total:        b.Total,
		BonusApplied: b.BonusApplied,
		ReportedAt:   time.Now(),
	}
	if err := s.store.RecordReport(ctx, session); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("recording report: %w", err)
	}

	metrics.SessionsReportedTotal.Inc()
	span.SetAttributes(traces.SessionID(session.ID), traces.Amount(session.Total))
	return session, nil
}

// Preview prices a hypothetical batch for an identity without recording
// anything. Unknown identities price as first-time reporters.
func (s *Service) Preview(ctx context.Context, identity string, accounts int64) (Breakdown, error) {
	var prior int64
	if identity != "" {
		stats, err := s.store.GetStats(ctx, identity)
		switch {
		case err == nil:
			prior = stats.AccountsCleaned
		case errors.Is(err, ErrUserNotFound):
		default:
			return Breakdown{}, fmt.Errorf("loading stats: %w", err)
		}
	}
	return Compute(accounts, prior, s.Params())
}

// UpdateRate changes the per-account rate. Owner only.
func (s *Service) UpdateRate(ctx context.Context, caller string, rate int64) error {
	if err := s.guard.RequireOwner(caller); err != nil {
		return err
	}
	if rate <= 0 {
		return fmt.Errorf("%w: rate must be positive", ErrInvalidAmount)
	}
	s.paramsMu.Lock()
	defer s.paramsMu.Unlock()
	s.params.RatePerAccount = rate
	return nil
}

// UpdateBonus changes the bonus tier. Owner only.
func (s *Service) UpdateBonus(ctx context.Context, caller string, multiplier, threshold int64) error {
	if err := s.guard.RequireOwner(caller); err != nil {
		return err
	}
	if multiplier < 100 {
		return fmt.Errorf("%w: multiplier must be at least 100", ErrInvalidAmount)
	}
	if threshold <= 0 {
		return fmt.Errorf("%w: threshold must be positive", ErrInvalidAmount)
	}
	s.paramsMu.Lock()
	defer s.paramsMu.Unlock()
	s.params.BonusMultiplier = multiplier
	s.params.BonusThreshold = threshold
	return nil
}

// Stats returns the cumulative ledger view for an identity.
func (s *Service) Stats(ctx context.Context, identity string) (*UserStats, error) {
	return s.store.GetStats(ctx, identity)
}

// Session returns one of a reporter's sessions.
func (s *Service) Session(ctx context.Context, reporter string, id int64) (*Session, error) {
	return s.store.GetSession(ctx, reporter, id)
}

// Sessions lists a reporter's sessions, newest first.
func (s *Service) Sessions(ctx context.Context, reporter string) ([]*Session, error) {
	return s.store.ListSessions(ctx, reporter)
}

// Pending returns an identity's unsettled balance. Unknown identities
// have zero pending.
func (s *Service) Pending(ctx context.Context, identity string) (int64, error) {
	stats, err := s.store.GetStats(ctx, identity)
	if errors.Is(err, ErrUserNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return stats.Pending, nil
}

// LockIdentity serializes claim work for one identity and returns the
// unlock function. Used by the claims engine so reports and settlements
// for the same identity never race; the lock respects context
// cancellation since claims hold it across treasury calls.
func (s *Service) LockIdentity(ctx context.Context, identity string) (func(), error) {
	return s.locks.LockContext(ctx, identity)
}

// SettlePending moves amount from an identity's pending balance to its
// earned total. Callers hold the identity lock.
func (s *Service) SettlePending(ctx context.Context, identity string, amount int64) error {
	return s.store.SettlePending(ctx, identity, amount)
}

// SettleSession marks a session paid and credits its total. Callers
// hold the identity lock.
func (s *Service) SettleSession(ctx context.Context, reporter string, id int64) (int64, error) {
	return s.store.SettleSession(ctx, reporter, id)
}
