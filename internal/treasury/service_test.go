package treasury

import (
	"context"
	"errors"
	"testing"

	"github.com/mbd888/reclaim/internal/auth"
)

const (
	ownerAddr  = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	funderAddr = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func newTestService(restrict bool) *Service {
	return NewService(NewMemoryStore(), auth.NewGuard(ownerAddr), restrict)
}

func checkConservation(t *testing.T, s *Service) {
	t.Helper()
	pool, err := s.Pool(context.Background())
	if err != nil {
		t.Fatalf("Pool failed: %v", err)
	}
	if pool.Balance != pool.Funded-pool.Paid {
		t.Errorf("conservation broken: balance %d != funded %d - paid %d",
			pool.Balance, pool.Funded, pool.Paid)
	}
	if pool.Balance < 0 {
		t.Errorf("balance went negative: %d", pool.Balance)
	}
}

func TestFund(t *testing.T) {
	s := newTestService(false)
	ctx := context.Background()

	pool, err := s.Fund(ctx, funderAddr, 2500)
	if err != nil {
		t.Fatalf("Fund failed: %v", err)
	}
	if pool.Balance != 2500 || pool.Funded != 2500 {
		t.Errorf("pool = %+v, want balance 2500 funded 2500", pool)
	}
	checkConservation(t, s)

	if _, err := s.Fund(ctx, funderAddr, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("Expected ErrInvalidAmount, got: %v", err)
	}
	if _, err := s.Fund(ctx, funderAddr, -5); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("Expected ErrInvalidAmount, got: %v", err)
	}
}

func TestFund_Restricted(t *testing.T) {
	s := newTestService(true)
	ctx := context.Background()

	if _, err := s.Fund(ctx, funderAddr, 100); !errors.Is(err, auth.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized for non-owner, got: %v", err)
	}
	if _, err := s.Fund(ctx, ownerAddr, 100); err != nil {
		t.Errorf("owner Fund failed: %v", err)
	}
}

func TestDebitAndCredit(t *testing.T) {
	s := newTestService(false)
	ctx := context.Background()

	if _, err := s.Fund(ctx, funderAddr, 1000); err != nil {
		t.Fatalf("Fund failed: %v", err)
	}

	if err := s.Debit(ctx, funderAddr, 400); err != nil {
		t.Fatalf("Debit failed: %v", err)
	}
	pool, _ := s.Pool(ctx)
	if pool.Balance != 600 || pool.Paid != 400 {
		t.Errorf("pool = %+v, want balance 600 paid 400", pool)
	}
	checkConservation(t, s)

	// Overdraw refused, state untouched
	if err := s.Debit(ctx, funderAddr, 601); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("Expected ErrInsufficientFunds, got: %v", err)
	}
	pool, _ = s.Pool(ctx)
	if pool.Balance != 600 {
		t.Errorf("balance = %d after failed debit, want 600", pool.Balance)
	}

	// Refund reverses the payout
	if err := s.Credit(ctx, funderAddr, 400); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	pool, _ = s.Pool(ctx)
	if pool.Balance != 1000 || pool.Paid != 0 {
		t.Errorf("pool = %+v after refund, want balance 1000 paid 0", pool)
	}
	checkConservation(t, s)
}

func TestEmergencyWithdraw(t *testing.T) {
	s := newTestService(false)
	ctx := context.Background()

	if _, err := s.Fund(ctx, funderAddr, 1000); err != nil {
		t.Fatalf("Fund failed: %v", err)
	}

	if _, err := s.EmergencyWithdraw(ctx, funderAddr, 100); !errors.Is(err, auth.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized for non-owner, got: %v", err)
	}
	if _, err := s.EmergencyWithdraw(ctx, ownerAddr, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("Expected ErrInvalidAmount, got: %v", err)
	}
	if _, err := s.EmergencyWithdraw(ctx, ownerAddr, 2000); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("Expected ErrInsufficientFunds, got: %v", err)
	}

	pool, err := s.EmergencyWithdraw(ctx, ownerAddr, 600)
	if err != nil {
		t.Fatalf("EmergencyWithdraw failed: %v", err)
	}
	if pool.Balance != 400 || pool.Paid != 600 {
		t.Errorf("pool = %+v, want balance 400 paid 600", pool)
	}
	checkConservation(t, s)
}

func TestEntries_NewestFirst(t *testing.T) {
	s := newTestService(false)
	ctx := context.Background()

	if _, err := s.Fund(ctx, funderAddr, 100); err != nil {
		t.Fatalf("Fund failed: %v", err)
	}
	if _, err := s.Fund(ctx, funderAddr, 200); err != nil {
		t.Fatalf("Fund failed: %v", err)
	}
	if err := s.Debit(ctx, funderAddr, 50); err != nil {
		t.Fatalf("Debit failed: %v", err)
	}

	entries, err := s.Entries(ctx, 10)
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	if entries[0].Kind != EntryPayout {
		t.Errorf("entries[0].Kind = %s, want payout", entries[0].Kind)
	}
	if entries[2].Amount != 100 {
		t.Errorf("entries[2].Amount = %d, want 100", entries[2].Amount)
	}
}
