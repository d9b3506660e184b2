package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/seat-locker-kiosk/internal/model"
)

// SessionRepo provides data access to the sessions table. Sessions are
// created and updated only inside the lifecycle transactions; the plain
// *sql.DB is used for the expiration sweep's listing.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo returns a new SessionRepo bound to the provided database.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

var sessionFields = []string{
	"id", "resource_kind", "resource_id", "user_tag", "product_id",
	"start_at", "end_at", "status", "ended_reason", "created_at", "updated_at",
}

func sessionColumnsAs(alias string) string {
	cols := make([]string, len(sessionFields))
	for i, f := range sessionFields {
		cols[i] = alias + "." + f
	}
	return strings.Join(cols, ", ")
}

// nullableSession scans a LEFT JOINed session where every column may be NULL.
type nullableSession struct {
	id, kind, resourceID, userTag, productID sql.NullString
	status, endedReason                      sql.NullString
	startAt, endAt, createdAt, updatedAt     sql.NullTime
}

func (n *nullableSession) dest() []any {
	return []any{&n.id, &n.kind, &n.resourceID, &n.userTag, &n.productID,
		&n.startAt, &n.endAt, &n.status, &n.endedReason, &n.createdAt, &n.updatedAt}
}

func (n *nullableSession) session() *model.Session {
	if !n.id.Valid {
		return nil
	}
	s := &model.Session{
		ID:           n.id.String,
		ResourceKind: model.ResourceKind(n.kind.String),
		ResourceID:   n.resourceID.String,
		UserTag:      n.userTag.String,
		ProductID:    nullStringPtr(n.productID),
		StartAt:      n.startAt.Time,
		Status:       model.SessionStatus(n.status.String),
		CreatedAt:    n.createdAt.Time,
		UpdatedAt:    n.updatedAt.Time,
	}
	if n.endAt.Valid {
		t := n.endAt.Time
		s.EndAt = &t
	}
	if n.endedReason.Valid {
		r := model.EndedReason(n.endedReason.String)
		s.EndedReason = &r
	}
	return s
}

func scanSession(sc rowScanner) (*model.Session, error) {
	var ns nullableSession
	if err := sc.Scan(ns.dest()...); err != nil {
		return nil, err
	}
	return ns.session(), nil
}

// CreateTx inserts a new session row. CreatedAt/UpdatedAt are filled from
// StartAt when zero.
func (r *SessionRepo) CreateTx(ctx context.Context, tx *sql.Tx, s *model.Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = s.StartAt
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = s.CreatedAt
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (`+strings.Join(sessionFields, ", ")+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.ResourceKind, s.ResourceID, s.UserTag, s.ProductID,
		s.StartAt.UTC(), utcPtr(s.EndAt), s.Status, s.EndedReason, s.CreatedAt.UTC(), s.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// UpdateTx applies the non-nil fields of upd to the session.
func (r *SessionRepo) UpdateTx(ctx context.Context, tx *sql.Tx, id string, upd model.SessionUpdate) error {
	sets := []string{"updated_at = UTC_TIMESTAMP(3)"}
	var args []any
	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *upd.Status)
	}
	if upd.EndAt != nil {
		sets = append(sets, "end_at = ?")
		args = append(args, upd.EndAt.UTC())
	}
	if upd.EndedReason != nil {
		sets = append(sets, "ended_reason = ?")
		args = append(args, *upd.EndedReason)
	}
	args = append(args, id)
	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update session %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update session %s: %w", id, model.ErrSessionNotFound)
	}
	return nil
}

// GetTx loads a session by id; a missing row yields (nil, nil).
func (r *SessionRepo) GetTx(ctx context.Context, tx *sql.Tx, id string) (*model.Session, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+sessionColumnsAs("s")+` FROM sessions s WHERE s.id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return s, nil
}

// ListActive returns all ACTIVE sessions, newest first.
func (r *SessionRepo) ListActive(ctx context.Context) ([]model.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumnsAs("s")+` FROM sessions s
		  WHERE s.status = ? ORDER BY s.start_at DESC`, model.SessionActive)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	defer rows.Close()
	var out []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func utcPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
