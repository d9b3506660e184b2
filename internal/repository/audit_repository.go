package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/seat-locker-kiosk/internal/model"
)

// Listing bounds for the log viewer.
const (
	DefaultEventLimit = 50
	MaxEventLimit     = 200
)

// AuditRepo appends to and reads from the audit_events table. Rows are never
// updated; ids are ULIDs so lexical order matches insertion order.
type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

// AppendTx writes one event inside the caller's transaction.
func (r *AuditRepo) AppendTx(ctx context.Context, tx *sql.Tx, e *model.AuditEvent) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO audit_events (id, type, payload, actor_role, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Type, e.Payload, e.ActorRole, e.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// List returns the newest events first. Search matches a substring of the
// event type or the raw payload.
func (r *AuditRepo) List(ctx context.Context, f model.EventFilter) ([]model.AuditEvent, error) {
	limit := ClampEventLimit(f.Limit)
	query := `SELECT id, type, payload, actor_role, created_at FROM audit_events`
	var args []any
	if f.Search != "" {
		like := "%" + f.Search + "%"
		query += ` WHERE type LIKE ? OR payload LIKE ?`
		args = append(args, like, like)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()
	var out []model.AuditEvent
	for rows.Next() {
		var e model.AuditEvent
		if err := rows.Scan(&e.ID, &e.Type, &e.Payload, &e.ActorRole, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ClampEventLimit applies the default and maximum page size.
func ClampEventLimit(n int) int {
	if n <= 0 {
		return DefaultEventLimit
	}
	if n > MaxEventLimit {
		return MaxEventLimit
	}
	return n
}
