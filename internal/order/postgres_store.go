package order

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore persists orders in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed order store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, o *EscrowOrder) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO orders (
			id, seller_addr, buyer_addr, amount, escrow_addr, app_id,
			status, tx_id, release_tx_id, product_name, product_description, image_url,
			buyer_name, buyer_email, buyer_shipping, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17
		)`,
		o.ID, o.Seller, nullString(o.Buyer), o.Amount, o.EscrowAddress, int64(o.AppID),
		string(o.Status), nullString(o.TxID), nullString(o.ReleaseTxID), o.ProductName, o.ProductDescription, nullString(o.ImageURL),
		nullString(o.BuyerName), nullString(o.BuyerEmail), nullString(o.BuyerShipping),
		o.CreatedAt, o.UpdatedAt,
	)
	return err
}

const orderColumns = `id, seller_addr, buyer_addr, amount, escrow_addr, app_id,
		       status, tx_id, release_tx_id, product_name, product_description, image_url,
		       buyer_name, buyer_email, buyer_shipping, created_at, updated_at`

func (p *PostgresStore) Get(ctx context.Context, id string) (*EscrowOrder, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)

	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return o, err
}

func (p *PostgresStore) Update(ctx context.Context, o *EscrowOrder) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE orders SET
			buyer_addr = $1, status = $2, tx_id = $3, release_tx_id = $4,
			buyer_name = $5, buyer_email = $6, buyer_shipping = $7,
			escrow_addr = $8, updated_at = $9
		WHERE id = $10`,
		nullString(o.Buyer), string(o.Status), nullString(o.TxID), nullString(o.ReleaseTxID),
		nullString(o.BuyerName), nullString(o.BuyerEmail), nullString(o.BuyerShipping),
		o.EscrowAddress, o.UpdatedAt,
		o.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*EscrowOrder, error) {
	where, args := filterClause(filter)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT `+orderColumns+`
		FROM orders
		%s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanOrders(rows)
}

func (p *PostgresStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	where, args := filterClause(filter)
	var n int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders `+where, args...).Scan(&n)
	return n, err
}

// filterClause builds the WHERE clause and args for a ListFilter.
func filterClause(filter ListFilter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Wallet != "" {
		args = append(args, filter.Wallet)
		conds = append(conds, fmt.Sprintf("(buyer_addr = $%d OR seller_addr = $%d)", len(args), len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	where := "WHERE " + conds[0]
	for _, c := range conds[1:] {
		where += " AND " + c
	}
	return where, args
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(s scanner) (*EscrowOrder, error) {
	o := &EscrowOrder{}
	var (
		buyer         sql.NullString
		txID          sql.NullString
		releaseTxID   sql.NullString
		imageURL      sql.NullString
		buyerName     sql.NullString
		buyerEmail    sql.NullString
		buyerShipping sql.NullString
		status        string
		appID         int64
	)

	err := s.Scan(
		&o.ID, &o.Seller, &buyer, &o.Amount, &o.EscrowAddress, &appID,
		&status, &txID, &releaseTxID, &o.ProductName, &o.ProductDescription, &imageURL,
		&buyerName, &buyerEmail, &buyerShipping, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Status = Status(status)
	o.AppID = uint64(appID)
	o.Buyer = buyer.String
	o.TxID = txID.String
	o.ReleaseTxID = releaseTxID.String
	o.ImageURL = imageURL.String
	o.BuyerName = buyerName.String
	o.BuyerEmail = buyerEmail.String
	o.BuyerShipping = buyerShipping.String

	return o, nil
}

func scanOrders(rows *sql.Rows) ([]*EscrowOrder, error) {
	var result []*EscrowOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

// nullString converts an empty Go string to sql.NullString.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// Compile-time assertion that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
