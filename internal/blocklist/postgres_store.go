package blocklist

import (
	"context"
	"database/sql"
)

// PostgresStore persists blocklist entries in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed blocklist store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Put(ctx context.Context, u *BlockedUser) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO blocked_users (wallet_addr, reason, blocked_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (wallet_addr) DO UPDATE SET
			reason = EXCLUDED.reason,
			blocked_by = EXCLUDED.blocked_by,
			updated_at = EXCLUDED.updated_at`,
		u.WalletAddress, nullString(u.Reason), nullString(u.BlockedBy), u.CreatedAt, u.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) Delete(ctx context.Context, wallet string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM blocked_users WHERE wallet_addr = $1`, wallet)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotBlocked
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, wallet string) (*BlockedUser, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT wallet_addr, reason, blocked_by, created_at, updated_at
		FROM blocked_users WHERE wallet_addr = $1`, wallet)

	u, err := scanBlockedUser(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotBlocked
	}
	return u, err
}

func (p *PostgresStore) List(ctx context.Context, limit, offset int) ([]*BlockedUser, int, error) {
	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blocked_users`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT wallet_addr, reason, blocked_by, created_at, updated_at
		FROM blocked_users
		ORDER BY created_at DESC, wallet_addr
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()

	var result []*BlockedUser
	for rows.Next() {
		u, err := scanBlockedUser(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, u)
	}
	return result, total, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanBlockedUser(s scanner) (*BlockedUser, error) {
	u := &BlockedUser{}
	var reason, blockedBy sql.NullString

	if err := s.Scan(&u.WalletAddress, &reason, &blockedBy, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Reason = reason.String
	u.BlockedBy = blockedBy.String
	return u, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// Compile-time assertion that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
