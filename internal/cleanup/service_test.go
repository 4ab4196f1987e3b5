package cleanup

import (
	"context"
	"errors"
	"testing"

	"github.com/mbd888/reclaim/internal/auth"
)

const (
	ownerAddr   = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	accountAddr = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	otherAddr   = "0xcccccccccccccccccccccccccccccccccccccccc"
)

func newTestService() *Service {
	return NewService(NewMemoryStore(), auth.NewGuard(ownerAddr), 1024)
}

func seedAccount(t *testing.T, s *Service, addr string) {
	t.Helper()
	if _, err := s.WriteAccountData(context.Background(), addr, "data"); err != nil {
		t.Fatalf("WriteAccountData failed: %v", err)
	}
}

func mustCount(t *testing.T, s *Service) int64 {
	t.Helper()
	n, err := s.ActiveMarkCount(context.Background())
	if err != nil {
		t.Fatalf("ActiveMarkCount failed: %v", err)
	}
	return n
}

func TestWriteAccountData_CreatesAndUpdates(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	rec, err := s.WriteAccountData(ctx, accountAddr, "first")
	if err != nil {
		t.Fatalf("WriteAccountData failed: %v", err)
	}
	created := rec.CreatedAt

	rec2, err := s.WriteAccountData(ctx, accountAddr, "second")
	if err != nil {
		t.Fatalf("second WriteAccountData failed: %v", err)
	}
	if rec2.Payload != "second" {
		t.Errorf("expected payload updated, got %q", rec2.Payload)
	}
	if !rec2.CreatedAt.Equal(created) {
		t.Error("CreatedAt must not change on update")
	}
	if rec2.LastModified.Before(rec.LastModified) {
		t.Error("LastModified must advance on update")
	}
}

func TestWriteAccountData_PayloadTooLarge(t *testing.T) {
	s := NewService(NewMemoryStore(), auth.NewGuard(ownerAddr), 4)
	_, err := s.WriteAccountData(context.Background(), accountAddr, "too long")
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("Expected ErrPayloadTooLarge, got: %v", err)
	}
}

func TestMark_Succeeds(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	seedAccount(t, s, accountAddr)

	m, err := s.Mark(ctx, accountAddr, accountAddr, "code1")
	if err != nil {
		t.Fatalf("Mark failed: %v", err)
	}
	if m.MarkedBy != accountAddr {
		t.Errorf("MarkedBy = %s, want %s", m.MarkedBy, accountAddr)
	}
	if n := mustCount(t, s); n != 1 {
		t.Errorf("ActiveMarkCount = %d, want 1", n)
	}

	marked, err := s.IsMarked(ctx, accountAddr)
	if err != nil || !marked {
		t.Errorf("IsMarked = (%v, %v), want (true, nil)", marked, err)
	}
}

func TestMark_OwnerMayMarkOthersAccount(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	seedAccount(t, s, accountAddr)

	if _, err := s.Mark(ctx, ownerAddr, accountAddr, "code1"); err != nil {
		t.Errorf("owner Mark failed: %v", err)
	}
}

func TestMark_Failures(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	seedAccount(t, s, accountAddr)

	// Unknown account
	if _, err := s.Mark(ctx, otherAddr, otherAddr, "c"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("Expected ErrAccountNotFound, got: %v", err)
	}

	// Third party may not mark
	if _, err := s.Mark(ctx, otherAddr, accountAddr, "c"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized, got: %v", err)
	}

	// Double mark
	if _, err := s.Mark(ctx, accountAddr, accountAddr, "c"); err != nil {
		t.Fatalf("first Mark failed: %v", err)
	}
	if _, err := s.Mark(ctx, accountAddr, accountAddr, "c"); !errors.Is(err, ErrAlreadyMarked) {
		t.Errorf("Expected ErrAlreadyMarked, got: %v", err)
	}
	if n := mustCount(t, s); n != 1 {
		t.Errorf("ActiveMarkCount = %d, want 1 after failed double mark", n)
	}
}

func TestCancel(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	seedAccount(t, s, accountAddr)

	// Cancel without a mark
	if err := s.Cancel(ctx, accountAddr, accountAddr); !errors.Is(err, ErrNotMarked) {
		t.Errorf("Expected ErrNotMarked, got: %v", err)
	}

	if _, err := s.Mark(ctx, accountAddr, accountAddr, "c"); err != nil {
		t.Fatalf("Mark failed: %v", err)
	}

	// Third party may not cancel
	if err := s.Cancel(ctx, otherAddr, accountAddr); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized, got: %v", err)
	}

	if err := s.Cancel(ctx, accountAddr, accountAddr); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if n := mustCount(t, s); n != 0 {
		t.Errorf("ActiveMarkCount = %d, want 0 after cancel", n)
	}

	// Record survives a cancel
	if _, err := s.GetAccount(ctx, accountAddr); err != nil {
		t.Errorf("account should survive cancel, got: %v", err)
	}
}

func TestCancel_ByMarker(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	seedAccount(t, s, accountAddr)

	// Owner marks, owner cancels as marker
	if _, err := s.Mark(ctx, ownerAddr, accountAddr, "c"); err != nil {
		t.Fatalf("Mark failed: %v", err)
	}
	if err := s.Cancel(ctx, ownerAddr, accountAddr); err != nil {
		t.Errorf("marker Cancel failed: %v", err)
	}
}

func TestConfirm_RoundTrip(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	seedAccount(t, s, accountAddr)

	if _, err := s.Mark(ctx, accountAddr, accountAddr, "code1"); err != nil {
		t.Fatalf("Mark failed: %v", err)
	}

	if err := s.Confirm(ctx, accountAddr, accountAddr, "code1"); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	// Record and mark both removed
	if _, err := s.GetAccount(ctx, accountAddr); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("Expected ErrAccountNotFound after confirm, got: %v", err)
	}
	marked, _ := s.IsMarked(ctx, accountAddr)
	if marked {
		t.Error("mark should be removed after confirm")
	}
	if n := mustCount(t, s); n != 0 {
		t.Errorf("ActiveMarkCount = %d, want 0 after confirm", n)
	}
}

func TestConfirm_WrongCode_LeavesStateUnchanged(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	seedAccount(t, s, accountAddr)

	if _, err := s.Mark(ctx, accountAddr, accountAddr, "code1"); err != nil {
		t.Fatalf("Mark failed: %v", err)
	}

	if err := s.Confirm(ctx, accountAddr, accountAddr, "wrong"); !errors.Is(err, ErrConfirmationMismatch) {
		t.Fatalf("Expected ErrConfirmationMismatch, got: %v", err)
	}

	// No normalization: case differs, still a mismatch
	if err := s.Confirm(ctx, accountAddr, accountAddr, "CODE1"); !errors.Is(err, ErrConfirmationMismatch) {
		t.Fatalf("Expected ErrConfirmationMismatch for case difference, got: %v", err)
	}

	// Everything still in place
	if _, err := s.GetAccount(ctx, accountAddr); err != nil {
		t.Errorf("account should survive failed confirm, got: %v", err)
	}
	if n := mustCount(t, s); n != 1 {
		t.Errorf("ActiveMarkCount = %d, want 1 after failed confirm", n)
	}
}

func TestConfirm_Failures(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	seedAccount(t, s, accountAddr)

	if err := s.Confirm(ctx, accountAddr, accountAddr, "c"); !errors.Is(err, ErrNotMarked) {
		t.Errorf("Expected ErrNotMarked, got: %v", err)
	}

	if _, err := s.Mark(ctx, accountAddr, accountAddr, "c"); err != nil {
		t.Fatalf("Mark failed: %v", err)
	}
	if err := s.Confirm(ctx, otherAddr, accountAddr, "c"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized, got: %v", err)
	}
}

func TestAdminForce_WithMark(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	seedAccount(t, s, accountAddr)

	if _, err := s.Mark(ctx, accountAddr, accountAddr, "c"); err != nil {
		t.Fatalf("Mark failed: %v", err)
	}

	if err := s.AdminForce(ctx, ownerAddr, accountAddr); err != nil {
		t.Fatalf("AdminForce failed: %v", err)
	}
	if _, err := s.GetAccount(ctx, accountAddr); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("Expected ErrAccountNotFound after force, got: %v", err)
	}
	if n := mustCount(t, s); n != 0 {
		t.Errorf("ActiveMarkCount = %d, want 0 after force", n)
	}
}

func TestAdminForce_WithoutMark(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	seedAccount(t, s, accountAddr)
	seedAccount(t, s, otherAddr)

	if _, err := s.Mark(ctx, otherAddr, otherAddr, "c"); err != nil {
		t.Fatalf("Mark failed: %v", err)
	}
	before := mustCount(t, s)

	// Force an unmarked account: succeeds, counter untouched
	if err := s.AdminForce(ctx, ownerAddr, accountAddr); err != nil {
		t.Fatalf("AdminForce failed: %v", err)
	}
	if n := mustCount(t, s); n != before {
		t.Errorf("ActiveMarkCount = %d, want %d (unchanged)", n, before)
	}
}

func TestAdminForce_Failures(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	seedAccount(t, s, accountAddr)

	if err := s.AdminForce(ctx, accountAddr, accountAddr); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized for non-owner, got: %v", err)
	}
	if err := s.AdminForce(ctx, ownerAddr, otherAddr); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("Expected ErrAccountNotFound, got: %v", err)
	}
}

func TestCounterMatchesMarks_AfterSequences(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	addrs := []string{
		"0x1111111111111111111111111111111111111111",
		"0x2222222222222222222222222222222222222222",
		"0x3333333333333333333333333333333333333333",
	}
	for _, a := range addrs {
		seedAccount(t, s, a)
		if _, err := s.Mark(ctx, a, a, "c"); err != nil {
			t.Fatalf("Mark %s failed: %v", a, err)
		}
	}
	if n := mustCount(t, s); n != 3 {
		t.Fatalf("ActiveMarkCount = %d, want 3", n)
	}

	if err := s.Cancel(ctx, addrs[0], addrs[0]); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if err := s.Confirm(ctx, addrs[1], addrs[1], "c"); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if err := s.AdminForce(ctx, ownerAddr, addrs[2]); err != nil {
		t.Fatalf("AdminForce failed: %v", err)
	}

	if n := mustCount(t, s); n != 0 {
		t.Errorf("ActiveMarkCount = %d, want 0 after drain", n)
	}
}

func TestRemark_AfterCancel(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	seedAccount(t, s, accountAddr)

	if _, err := s.Mark(ctx, accountAddr, accountAddr, "one"); err != nil {
		t.Fatalf("Mark failed: %v", err)
	}
	if err := s.Cancel(ctx, accountAddr, accountAddr); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if _, err := s.Mark(ctx, accountAddr, accountAddr, "two"); err != nil {
		t.Fatalf("re-Mark failed: %v", err)
	}

	m, err := s.GetMark(ctx, accountAddr)
	if err != nil {
		t.Fatalf("GetMark failed: %v", err)
	}
	if m.ConfirmationCode != "two" {
		t.Errorf("ConfirmationCode = %q, want %q", m.ConfirmationCode, "two")
	}
}
