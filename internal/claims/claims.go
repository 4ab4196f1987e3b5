// Package claims settles earned rewards against the treasury.
//
// Two claim paths share one ledger: an aggregate claim that drains a
// cleaner's whole pending balance, and per-session settlement (self
// claim or owner distribution) that pays out a single session. Both
// debit the treasury first and compensate with a refund if the ledger
// update fails, so funds are never paid twice and never lost.
package claims

import (
	"context"
	"errors"
	"fmt"

	"github.com/mbd888/reclaim/internal/auth"
	"github.com/mbd888/reclaim/internal/metrics"
	"github.com/mbd888/reclaim/internal/rewards"
	"github.com/mbd888/reclaim/internal/traces"
	"github.com/mbd888/reclaim/internal/treasury"
	"go.opentelemetry.io/otel/codes"
)

// ErrInsufficientBalance is returned when an aggregate claim has
// nothing to pay or the treasury cannot cover it.
var ErrInsufficientBalance = errors.New("insufficient claimable balance")

// Ledger is the reward-side surface the engine settles against.
// Implemented by *rewards.Service.
type Ledger interface {
	LockIdentity(ctx context.Context, identity string) (func(), error)
	Pending(ctx context.Context, identity string) (int64, error)
	SettlePending(ctx context.Context, identity string, amount int64) error
	Session(ctx context.Context, reporter string, id int64) (*rewards.Session, error)
	SettleSession(ctx context.Context, reporter string, id int64) (int64, error)
}

// Pool is the treasury-side surface the engine draws from.
// Implemented by *treasury.Service.
type Pool interface {
	Debit(ctx context.Context, target string, amount int64) error
	Credit(ctx context.Context, target string, amount int64) error
}

// Engine reconciles the reward ledger with the treasury.
type Engine struct {
	ledger Ledger
	pool   Pool
	guard  *auth.Guard
}

// NewEngine creates a claims engine.
func NewEngine(ledger Ledger, pool Pool, guard *auth.Guard) *Engine {
	return &Engine{
		ledger: ledger,
		pool:   pool,
		guard:  guard,
	}
}

// ClaimRewards pays out the caller's entire pending balance. Individual
// session flags are left alone; per-session settlement reconciles
// against the drained balance when it runs later.
func (e *Engine) ClaimRewards(ctx context.Context, caller string) (int64, error) {
	ctx, span := traces.StartSpan(ctx, "claims.ClaimRewards", traces.Caller(caller))
	defer span.End()

	unlock, err := e.ledger.LockIdentity(ctx, caller)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	defer unlock()

	pending, err := e.ledger.Pending(ctx, caller)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("reading pending balance: %w", err)
	}
	if pending <= 0 {
		return 0, fmt.Errorf("%w: nothing pending", ErrInsufficientBalance)
	}

	if err := e.pool.Debit(ctx, caller, pending); err != nil {
		if errors.Is(err, treasury.ErrInsufficientFunds) {
			return 0, fmt.Errorf("%w: treasury cannot cover %d", ErrInsufficientBalance, pending)
		}
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("debiting treasury: %w", err)
	}

	if err := e.ledger.SettlePending(ctx, caller, pending); err != nil {
		// Funds left the pool but never reached the ledger; put them back.
		if cerr := e.pool.Credit(ctx, caller, pending); cerr != nil {
			span.SetStatus(codes.Error, cerr.Error())
			return 0, fmt.Errorf("settling pending (refund also failed: %v): %w", cerr, err)
		}
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("settling pending: %w", err)
	}

	metrics.RewardsPaidTotal.WithLabelValues("aggregate").Inc()
	span.SetAttributes(traces.Amount(pending))
	return pending, nil
}

// ClaimSession pays out one of the caller's own sessions.
func (e *Engine) ClaimSession(ctx context.Context, caller string, sessionID int64) (int64, error) {
	return e.settle(ctx, caller, sessionID, "session")
}

// Distribute pays out one of target's sessions. Owner only.
func (e *Engine) Distribute(ctx context.Context, caller, target string, sessionID int64) (int64, error) {
	if err := e.guard.RequireOwner(caller); err != nil {
		return 0, err
	}
	return e.settle(ctx, target, sessionID, "distribute")
}

func (e *Engine) settle(ctx context.Context, target string, sessionID int64, path string) (int64, error) {
	ctx, span := traces.StartSpan(ctx, "claims.settle",
		traces.Account(target),
		traces.SessionID(sessionID),
	)
	defer span.End()

	unlock, err := e.ledger.LockIdentity(ctx, target)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	defer unlock()

	sess, err := e.ledger.Session(ctx, target, sessionID)
	if err != nil {
		return 0, err
	}
	if sess.Settled {
		return 0, rewards.ErrAlreadySettled
	}

	if err := e.pool.Debit(ctx, target, sess.Total); err != nil {
		return 0, err
	}

	paid, err := e.ledger.SettleSession(ctx, target, sessionID)
	if err != nil {
		if cerr := e.pool.Credit(ctx, target, sess.Total); cerr != nil {
			span.SetStatus(codes.Error, cerr.Error())
			return 0, fmt.Errorf("settling session (refund also failed: %v): %w", cerr, err)
		}
		return 0, err
	}

	metrics.RewardsPaidTotal.WithLabelValues(path).Inc()
	span.SetAttributes(traces.Amount(paid))
	return paid, nil
}
