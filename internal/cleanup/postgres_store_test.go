//go:build integration

package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mbd888/reclaim/internal/testutil"
)

func TestPostgres_MarkLifecycle(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()
	addr := "0xaaaa000000000000000000000000000000000001"

	if _, err := store.UpsertAccount(ctx, addr, "data"); err != nil {
		t.Fatalf("UpsertAccount failed: %v", err)
	}

	m := &Mark{Account: addr, MarkedBy: addr, ConfirmationCode: "code", MarkedAt: time.Now()}
	if err := store.CreateMark(ctx, m); err != nil {
		t.Fatalf("CreateMark failed: %v", err)
	}
	if err := store.CreateMark(ctx, m); !errors.Is(err, ErrAlreadyMarked) {
		t.Errorf("Expected ErrAlreadyMarked, got: %v", err)
	}

	n, err := store.ActiveMarkCount(ctx)
	if err != nil {
		t.Fatalf("ActiveMarkCount failed: %v", err)
	}
	if n != 1 {
		t.Errorf("ActiveMarkCount = %d, want 1", n)
	}

	got, err := store.GetMark(ctx, addr)
	if err != nil {
		t.Fatalf("GetMark failed: %v", err)
	}
	if got.ConfirmationCode != "code" {
		t.Errorf("ConfirmationCode = %q", got.ConfirmationCode)
	}

	removed, err := store.PurgeAccount(ctx, addr)
	if err != nil {
		t.Fatalf("PurgeAccount failed: %v", err)
	}
	if !removed {
		t.Error("PurgeAccount should report the mark removed")
	}
	if _, err := store.GetAccount(ctx, addr); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("Expected ErrAccountNotFound, got: %v", err)
	}
	n, _ = store.ActiveMarkCount(ctx)
	if n != 0 {
		t.Errorf("ActiveMarkCount = %d after purge, want 0", n)
	}
}
