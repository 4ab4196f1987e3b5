package treasury

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore is a Store backed by PostgreSQL. The pool is a single
// row guarded by a CHECK (balance >= 0) constraint; debits are
// conditional updates so two concurrent payouts can never overdraw.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a Postgres-backed store. The schema is
// managed by the goose migrations under migrations/.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) GetPool(ctx context.Context) (*Pool, error) {
	var pool Pool
	err := p.db.QueryRowContext(ctx, `
		SELECT balance, funded, paid, updated_at FROM treasury_pool WHERE id = 1`).
		Scan(&pool.Balance, &pool.Funded, &pool.Paid, &pool.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("querying pool: %w", err)
	}
	return &pool, nil
}

func (p *PostgresStore) Credit(ctx context.Context, e *Entry) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("beginning tx: %w", err)
	}
	defer tx.Rollback()

	switch e.Kind {
	case EntryFund:
		_, err = tx.ExecContext(ctx, `
			UPDATE treasury_pool SET balance = balance + $1, funded = funded + $1, updated_at = NOW()
			WHERE id = 1`, e.Amount)
	case EntryRefund:
		_, err = tx.ExecContext(ctx, `
			UPDATE treasury_pool SET balance = balance + $1, paid = paid - $1, updated_at = NOW()
			WHERE id = 1`, e.Amount)
	default:
		_, err = tx.ExecContext(ctx, `
			UPDATE treasury_pool SET balance = balance + $1, updated_at = NOW()
			WHERE id = 1`, e.Amount)
	}
	if err != nil {
		return fmt.Errorf("crediting pool: %w", err)
	}

	if err := insertEntry(ctx, tx, e); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) Debit(ctx context.Context, e *Entry) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("beginning tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE treasury_pool SET balance = balance - $1, paid = paid + $1, updated_at = NOW()
		WHERE id = 1 AND balance >= $1`, e.Amount)
	if err != nil {
		return fmt.Errorf("debiting pool: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking debit result: %w", err)
	}
	if n == 0 {
		return ErrInsufficientFunds
	}

	if err := insertEntry(ctx, tx, e); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) ListEntries(ctx context.Context, limit int) ([]*Entry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, kind, party, amount, created_at FROM treasury_entries
		ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Kind, &e.Party, &e.Amount, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func insertEntry(ctx context.Context, tx *sql.Tx, e *Entry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO treasury_entries (id, kind, party, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.Kind, e.Party, e.Amount, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting entry: %w", err)
	}
	return nil
}
