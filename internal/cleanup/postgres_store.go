package cleanup

import (
	"context"
	"database/sql"
)

// Compile-time assertion.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store with PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed cleanup store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) GetAccount(ctx context.Context, address string) (*AccountRecord, error) {
	rec := &AccountRecord{}
	err := p.db.QueryRowContext(ctx, `
		SELECT address, payload, created_at, last_modified
		FROM cleanup_accounts WHERE address = $1
	`, address).Scan(&rec.Address, &rec.Payload, &rec.CreatedAt, &rec.LastModified)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (p *PostgresStore) UpsertAccount(ctx context.Context, address, payload string) (*AccountRecord, error) {
	rec := &AccountRecord{}
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO cleanup_accounts (address, payload, created_at, last_modified)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (address) DO UPDATE
			SET payload = EXCLUDED.payload, last_modified = NOW()
		RETURNING address, payload, created_at, last_modified
	`, address, payload).Scan(&rec.Address, &rec.Payload, &rec.CreatedAt, &rec.LastModified)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (p *PostgresStore) GetMark(ctx context.Context, account string) (*Mark, error) {
	m := &Mark{}
	err := p.db.QueryRowContext(ctx, `
		SELECT account, marked_by, confirmation_code, marked_at
		FROM cleanup_marks WHERE account = $1
	`, account).Scan(&m.Account, &m.MarkedBy, &m.ConfirmationCode, &m.MarkedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotMarked
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (p *PostgresStore) CreateMark(ctx context.Context, m *Mark) error {
	res, err := p.db.ExecContext(ctx, `
		INSERT INTO cleanup_marks (account, marked_by, confirmation_code, marked_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account) DO NOTHING
	`, m.Account, m.MarkedBy, m.ConfirmationCode, m.MarkedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyMarked
	}
	return nil
}

func (p *PostgresStore) DeleteMark(ctx context.Context, account string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM cleanup_marks WHERE account = $1`, account)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotMarked
	}
	return nil
}

func (p *PostgresStore) PurgeAccount(ctx context.Context, account string) (bool, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM cleanup_accounts WHERE address = $1`, account)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, ErrAccountNotFound
	}

	res, err = tx.ExecContext(ctx, `DELETE FROM cleanup_marks WHERE account = $1`, account)
	if err != nil {
		return false, err
	}
	marks, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return marks > 0, nil
}

func (p *PostgresStore) ActiveMarkCount(ctx context.Context) (int64, error) {
	var n int64
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cleanup_marks`).Scan(&n)
	return n, err
}
