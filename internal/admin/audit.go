package admin

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// AuditEntry is one append-only record of a privileged operation.
type AuditEntry struct {
	ID        int64     `json:"id"`
	Actor     string    `json:"actor"`
	Operation string    `json:"operation"`
	OrderID   string    `json:"orderId,omitempty"`
	Wallet    string    `json:"wallet,omitempty"`
	Prior     string    `json:"prior,omitempty"`
	Result    string    `json:"result,omitempty"`
	Note      string    `json:"note,omitempty"`
	RequestID string    `json:"requestId,omitempty"`
	IPAddress string    `json:"ipAddress,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// AuditLogger persists audit entries. Append only, no updates.
type AuditLogger interface {
	Append(ctx context.Context, entry *AuditEntry) error
	Query(ctx context.Context, orderID string, limit int) ([]*AuditEntry, error)
}

// MemoryAuditLog is an in-memory audit log for demo/development mode.
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []*AuditEntry
	nextID  int64
}

// NewMemoryAuditLog creates a new in-memory audit log.
func NewMemoryAuditLog() *MemoryAuditLog {
	return &MemoryAuditLog{nextID: 1}
}

func (m *MemoryAuditLog) Append(ctx context.Context, entry *AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *entry
	cp.ID = m.nextID
	m.nextID++
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	m.entries = append(m.entries, &cp)
	entry.ID = cp.ID
	return nil
}

func (m *MemoryAuditLog) Query(ctx context.Context, orderID string, limit int) ([]*AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*AuditEntry
	// Newest first.
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if orderID != "" && e.OrderID != orderID {
			continue
		}
		cp := *e
		result = append(result, &cp)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

var _ AuditLogger = (*MemoryAuditLog)(nil)

// PostgresAuditLog persists audit entries in PostgreSQL.
type PostgresAuditLog struct {
	db *sql.DB
}

// NewPostgresAuditLog creates a new PostgreSQL-backed audit log.
func NewPostgresAuditLog(db *sql.DB) *PostgresAuditLog {
	return &PostgresAuditLog{db: db}
}

func (p *PostgresAuditLog) Append(ctx context.Context, entry *AuditEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return p.db.QueryRowContext(ctx, `
		INSERT INTO admin_audit_log (
			actor, operation, order_id, wallet_addr, prior_status, result,
			note, request_id, ip_address, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		entry.Actor, entry.Operation, nullString(entry.OrderID), nullString(entry.Wallet),
		nullString(entry.Prior), nullString(entry.Result),
		nullString(entry.Note), nullString(entry.RequestID), nullString(entry.IPAddress),
		entry.CreatedAt,
	).Scan(&entry.ID)
}

func (p *PostgresAuditLog) Query(ctx context.Context, orderID string, limit int) ([]*AuditEntry, error) {
	query := `
		SELECT id, actor, operation, order_id, wallet_addr, prior_status, result,
		       note, request_id, ip_address, created_at
		FROM admin_audit_log`
	args := []interface{}{}
	if orderID != "" {
		query += ` WHERE order_id = $1`
		args = append(args, orderID)
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY id DESC LIMIT $%d`, len(args))

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*AuditEntry
	for rows.Next() {
		e := &AuditEntry{}
		var oid, wallet, prior, res, note, reqID, ip sql.NullString
		if err := rows.Scan(&e.ID, &e.Actor, &e.Operation, &oid, &wallet, &prior, &res,
			&note, &reqID, &ip, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.OrderID = oid.String
		e.Wallet = wallet.String
		e.Prior = prior.String
		e.Result = res.String
		e.Note = note.String
		e.RequestID = reqID.String
		e.IPAddress = ip.String
		result = append(result, e)
	}
	return result, rows.Err()
}

var _ AuditLogger = (*PostgresAuditLog)(nil)

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
