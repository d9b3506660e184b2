package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/seat-locker-kiosk/internal/model"
)

// ResourceRepo provides access to the resources table, which stores both
// seats and lockers keyed by (kind, id). The version column is the only
// concurrency token: every status change goes through CompareAndSwapTx.
type ResourceRepo struct {
	db *sql.DB
}

// NewResourceRepo constructs a ResourceRepo given a DB handle.
func NewResourceRepo(db *sql.DB) *ResourceRepo { return &ResourceRepo{db: db} }

const resourceColumns = `r.kind, r.id, r.name, r.status, r.row_label, r.col_number,
	r.linked_seat_id, r.current_session_id, r.version, r.created_at, r.updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanResource(sc rowScanner, extra ...any) (*model.Resource, error) {
	var (
		r       model.Resource
		row     sql.NullString
		col     sql.NullInt64
		linked  sql.NullString
		current sql.NullString
	)
	dest := []any{&r.Kind, &r.ID, &r.Name, &r.Status, &row, &col, &linked, &current, &r.Version, &r.CreatedAt, &r.UpdatedAt}
	if err := sc.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	r.Row = row.String
	r.Col = int(col.Int64)
	r.LinkedSeatID = nullStringPtr(linked)
	r.CurrentSessionID = nullStringPtr(current)
	return &r, nil
}

// GetTx loads a resource inside tx. A missing resource yields (nil, nil).
func (r *ResourceRepo) GetTx(ctx context.Context, tx *sql.Tx, kind model.ResourceKind, id string) (*model.Resource, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+resourceColumns+` FROM resources r WHERE r.kind = ? AND r.id = ?`,
		kind, id,
	)
	res, err := scanResource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get resource %s/%s: %w", kind, id, err)
	}
	return res, nil
}

// CompareAndSwapTx applies upd only while version and status are unchanged
// since the caller read them. The UPDATE always bumps version, so the
// affected row count is 1 on success and 0 when a concurrent writer won.
func (r *ResourceRepo) CompareAndSwapTx(ctx context.Context, tx *sql.Tx, kind model.ResourceKind, id string, expectedVersion uint32, expectedStatus model.ResourceStatus, upd model.ResourceUpdate) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE resources
		    SET status = ?, current_session_id = ?, linked_seat_id = ?,
		        version = version + 1, updated_at = UTC_TIMESTAMP(3)
		  WHERE kind = ? AND id = ? AND version = ? AND status = ?`,
		upd.Status, upd.CurrentSessionID, upd.LinkedSeatID,
		kind, id, expectedVersion, expectedStatus,
	)
	if err != nil {
		return 0, fmt.Errorf("cas resource %s/%s: %w", kind, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cas resource %s/%s rows affected: %w", kind, id, err)
	}
	return n, nil
}

// List returns every resource of a kind with its current session joined in.
// Seats come back in row/column order and lockers by id.
func (r *ResourceRepo) List(ctx context.Context, kind model.ResourceKind) ([]model.ResourceView, error) {
	order := `r.id`
	if kind == model.KindSeat {
		order = `r.row_label, r.col_number`
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+resourceColumns+`, `+sessionColumnsAs("s")+`
		   FROM resources r
		   LEFT JOIN sessions s ON s.id = r.current_session_id
		  WHERE r.kind = ?
		  ORDER BY `+order,
		kind,
	)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	var out []model.ResourceView
	for rows.Next() {
		var ns nullableSession
		res, err := scanResource(rows, ns.dest()...)
		if err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		out = append(out, model.ResourceView{Resource: *res, CurrentSession: ns.session()})
	}
	return out, rows.Err()
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
