// Package rewards tracks cleanup work and the payouts it earns.
//
// Flow:
//  1. A cleaner reports a batch of accounts cleaned → a session is recorded
//  2. The calculator prices the batch (flat rate, tier bonus past a threshold)
//  3. The session total accrues to the cleaner's pending balance
//  4. The claims engine later settles pending balances against the treasury
package rewards

import (
	"context"
	"errors"
	"time"
)

// Errors
var (
	ErrInvalidMetric   = errors.New("invalid cleanup metric")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrSessionNotFound = errors.New("session not found")
	ErrUserNotFound    = errors.New("user not found")
)

// Bonus eligibility models.
const (
	ModeCumulative = "cumulative"
	ModePerEvent   = "per-event"
)

// Params are the pricing knobs for reward computation.
type Params struct {
	RatePerAccount  int64  `json:"ratePerAccount"`  // cents per account cleaned
	BonusMultiplier int64  `json:"bonusMultiplier"` // percent, 100 = no bonus
	BonusThreshold  int64  `json:"bonusThreshold"`  // accounts needed for the bonus tier
	BonusMode       string `json:"bonusMode"`
}

// Session is one reported batch of cleanup work. Sessions are immutable
// once recorded except for the Settled flag, which flips false→true
// exactly once when the session is paid out.
type Session struct {
	Reporter     string    `json:"reporter"`
	ID           int64     `json:"id"` // per-reporter, monotonic from 1
	Accounts     int64     `json:"accounts"`
	Base         int64     `json:"base"`
	Bonus        int64     `json:"bonus"`
	Total        int64     `json:"total"`
	BonusApplied bool      `json:"bonusApplied"`
	Settled      bool      `json:"settled"`
	ReportedAt   time.Time `json:"reportedAt"`
}

// UserStats is the cumulative ledger view for one identity. All counters
// are monotonic; Pending moves down only through settlement.
type UserStats struct {
	Identity        string    `json:"identity"`
	AccountsCleaned int64     `json:"accountsCleaned"`
	RewardsEarned   int64     `json:"rewardsEarned"`
	Sessions        int64     `json:"sessions"`
	Pending         int64     `json:"pending"`
	LastActive      time.Time `json:"lastActive"`
}

// Store persists sessions and per-identity stats.
type Store interface {
	// GetStats returns the stats for an identity, or ErrUserNotFound.
	GetStats(ctx context.Context, identity string) (*UserStats, error)

	// GetSession returns one session, or ErrSessionNotFound.
	GetSession(ctx context.Context, reporter string, id int64) (*Session, error)

	// ListSessions returns a reporter's sessions, newest first.
	ListSessions(ctx context.Context, reporter string) ([]*Session, error)

	// RecordReport assigns the next session id for s.Reporter, persists
	// the session, and folds it into the reporter's stats and pending
	// balance in one atomic step.
	RecordReport(ctx context.Context, s *Session) error

	// SettlePending moves amount from pending to earned. Pending never
	// goes below zero.
	SettlePending(ctx context.Context, identity string, amount int64) error

	// SettleSession marks a session settled and credits its total to the
	// reporter's earned balance, decrementing pending by at most the
	// session total. Returns the credited amount, ErrSessionNotFound, or
	// ErrAlreadySettled.
	SettleSession(ctx context.Context, reporter string, id int64) (int64, error)
}

// ErrAlreadySettled is returned when a session has already been paid out.
var ErrAlreadySettled = errors.New("session already settled")

// ReportRequest is the body for reporting cleanup work.
type ReportRequest struct {
	Accounts int64 `json:"accounts" binding:"required"`
}

// UpdateParamsRequest is the owner-only body for changing pricing.
type UpdateParamsRequest struct {
	Rate            string `json:"rate"`
	BonusMultiplier int64  `json:"bonusMultiplier"`
	BonusThreshold  int64  `json:"bonusThreshold"`
}
