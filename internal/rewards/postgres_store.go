package rewards

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresStore is a Store backed by PostgreSQL. Report recording and
// session settlement run in serializable transactions so session ids
// stay monotonic and balances stay consistent under concurrent writers.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a Postgres-backed store. The schema is
// managed by the goose migrations under migrations/.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) GetStats(ctx context.Context, identity string) (*UserStats, error) {
	var st UserStats
	err := p.db.QueryRowContext(ctx, `
		SELECT identity, accounts_cleaned, rewards_earned, sessions, pending, last_active
		FROM reward_stats WHERE identity = $1`, identity).
		Scan(&st.Identity, &st.AccountsCleaned, &st.RewardsEarned, &st.Sessions, &st.Pending, &st.LastActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying stats: %w", err)
	}
	return &st, nil
}

func (p *PostgresStore) GetSession(ctx context.Context, reporter string, id int64) (*Session, error) {
	var s Session
	err := p.db.QueryRowContext(ctx, `
		SELECT reporter, id, accounts, base, bonus, total, bonus_applied, settled, reported_at
		FROM reward_sessions WHERE reporter = $1 AND id = $2`, reporter, id).
		Scan(&s.Reporter, &s.ID, &s.Accounts, &s.Base, &s.Bonus, &s.Total, &s.BonusApplied, &s.Settled, &s.ReportedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return &s, nil
}

func (p *PostgresStore) ListSessions(ctx context.Context, reporter string) ([]*Session, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT reporter, id, accounts, base, bonus, total, bonus_applied, settled, reported_at
		FROM reward_sessions WHERE reporter = $1 ORDER BY id DESC`, reporter)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.Reporter, &s.ID, &s.Accounts, &s.Base, &s.Bonus, &s.Total, &s.BonusApplied, &s.Settled, &s.ReportedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (p *PostgresStore) RecordReport(ctx context.Context, s *Session) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("beginning tx: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(id), 0) + 1 FROM reward_sessions WHERE reporter = $1`,
		s.Reporter).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("allocating session id: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reward_sessions (reporter, id, accounts, base, bonus, total, bonus_applied, settled, reported_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8)`,
		s.Reporter, s.ID, s.Accounts, s.Base, s.Bonus, s.Total, s.BonusApplied, s.ReportedAt)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reward_stats (identity, accounts_cleaned, rewards_earned, sessions, pending, last_active)
		VALUES ($1, $2, 0, 1, $3, $4)
		ON CONFLICT (identity) DO UPDATE SET
			accounts_cleaned = reward_stats.accounts_cleaned + $2,
			sessions = reward_stats.sessions + 1,
			pending = reward_stats.pending + $3,
			last_active = $4`,
		s.Reporter, s.Accounts, s.Total, s.ReportedAt)
	if err != nil {
		return fmt.Errorf("updating stats: %w", err)
	}

	return tx.Commit()
}

func (p *PostgresStore) SettlePending(ctx context.Context, identity string, amount int64) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE reward_stats SET
			rewards_earned = rewards_earned + LEAST(pending, $2),
			pending = pending - LEAST(pending, $2)
		WHERE identity = $1`, identity, amount)
	if err != nil {
		return fmt.Errorf("settling pending: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking settle result: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (p *PostgresStore) SettleSession(ctx context.Context, reporter string, id int64) (int64, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return 0, fmt.Errorf("beginning tx: %w", err)
	}
	defer tx.Rollback()

	var total int64
	var settled bool
	err = tx.QueryRowContext(ctx, `
		SELECT total, settled FROM reward_sessions
		WHERE reporter = $1 AND id = $2 FOR UPDATE`, reporter, id).
		Scan(&total, &settled)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrSessionNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("locking session: %w", err)
	}
	if settled {
		return 0, ErrAlreadySettled
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE reward_sessions SET settled = true WHERE reporter = $1 AND id = $2`,
		reporter, id)
	if err != nil {
		return 0, fmt.Errorf("marking settled: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE reward_stats SET
			rewards_earned = rewards_earned + $2,
			pending = pending - LEAST(pending, $2)
		WHERE identity = $1`, reporter, total)
	if err != nil {
		return 0, fmt.Errorf("crediting reporter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing settlement: %w", err)
	}
	return total, nil
}
