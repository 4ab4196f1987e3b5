//go:build integration

package treasury

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mbd888/reclaim/internal/idgen"
	"github.com/mbd888/reclaim/internal/testutil"
)

func entry(kind string, amount int64) *Entry {
	return &Entry{
		ID:        idgen.WithPrefix("te_"),
		Kind:      kind,
		Party:     "0xaaaa000000000000000000000000000000000001",
		Amount:    amount,
		CreatedAt: time.Now(),
	}
}

func TestPostgres_FundDebitRefund(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	if err := store.Credit(ctx, entry(EntryFund, 1000)); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	if err := store.Debit(ctx, entry(EntryPayout, 400)); err != nil {
		t.Fatalf("Debit failed: %v", err)
	}

	pool, err := store.GetPool(ctx)
	if err != nil {
		t.Fatalf("GetPool failed: %v", err)
	}
	if pool.Balance != 600 || pool.Funded != 1000 || pool.Paid != 400 {
		t.Errorf("pool = %+v", pool)
	}

	// Overdraw refused
	if err := store.Debit(ctx, entry(EntryPayout, 601)); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("Expected ErrInsufficientFunds, got: %v", err)
	}

	// Refund reverses the payout
	if err := store.Credit(ctx, entry(EntryRefund, 400)); err != nil {
		t.Fatalf("refund Credit failed: %v", err)
	}
	pool, _ = store.GetPool(ctx)
	if pool.Balance != 1000 || pool.Paid != 0 {
		t.Errorf("pool after refund = %+v", pool)
	}
	if pool.Balance != pool.Funded-pool.Paid {
		t.Errorf("conservation broken: %+v", pool)
	}

	entries, err := store.ListEntries(ctx, 10)
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("len(entries) = %d, want 3", len(entries))
	}
}
