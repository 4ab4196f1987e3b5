// Package treasury holds the reward pool the cleanup program pays from.
//
// A single pool balance backs every payout. Lifetime funded and paid
// totals are tracked alongside it so the books always reconcile:
// balance == funded - paid, and the balance never goes negative.
package treasury

import (
	"context"
	"errors"
	"time"
)

// Errors
var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient treasury funds")
)

// Entry kinds.
const (
	EntryFund     = "fund"
	EntryPayout   = "payout"
	EntryWithdraw = "withdraw"
	EntryRefund   = "refund"
)

// Pool is the treasury balance with its lifetime totals.
type Pool struct {
	Balance   int64     `json:"balance"`
	Funded    int64     `json:"funded"`
	Paid      int64     `json:"paid"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Entry is one movement of funds through the pool.
type Entry struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Party     string    `json:"party"` // funder or payout target
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists the pool and its entry log. Credit and Debit apply the
// entry and adjust the pool in one atomic step.
type Store interface {
	GetPool(ctx context.Context) (*Pool, error)

	// Credit adds e.Amount to the balance. EntryFund entries grow the
	// funded total; EntryRefund entries reverse a prior payout.
	Credit(ctx context.Context, e *Entry) error

	// Debit removes e.Amount from the balance and grows the paid total,
	// or returns ErrInsufficientFunds. The balance never goes negative.
	Debit(ctx context.Context, e *Entry) error

	// ListEntries returns the newest entries first, up to limit.
	ListEntries(ctx context.Context, limit int) ([]*Entry, error)
}

// FundRequest is the body for funding the pool.
type FundRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// WithdrawRequest is the owner-only body for draining the pool.
type WithdrawRequest struct {
	Amount string `json:"amount" binding:"required"`
}
