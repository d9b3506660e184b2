package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/seat-locker-kiosk/internal/model"
)

// SQLStore is the MySQL-backed Store. It composes the per-table repos and
// hands them a shared *sql.Tx inside WithinTx.
type SQLStore struct {
	db        *sql.DB
	Resources *ResourceRepo
	Sessions  *SessionRepo
	Audit     *AuditRepo
	Products  *ProductRepo
	Settings  *SettingsRepo
}

// NewSQLStore wires every repo to db.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		db:        db,
		Resources: NewResourceRepo(db),
		Sessions:  NewSessionRepo(db),
		Audit:     NewAuditRepo(db),
		Products:  NewProductRepo(db),
		Settings:  NewSettingsRepo(db),
	}
}

func (s *SQLStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(ctx, &sqlTx{s: s, tx: tx}); err != nil {
		return storeErr("tx", err)
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit", err)
	}
	committed = true
	return nil
}

func (s *SQLStore) ListResources(ctx context.Context, kind model.ResourceKind) ([]model.ResourceView, error) {
	out, err := s.Resources.List(ctx, kind)
	return out, storeErr("ListResources", err)
}

func (s *SQLStore) ListActiveSessions(ctx context.Context) ([]model.Session, error) {
	out, err := s.Sessions.ListActive(ctx)
	return out, storeErr("ListActiveSessions", err)
}

func (s *SQLStore) ListProducts(ctx context.Context, activeOnly bool) ([]model.Product, error) {
	out, err := s.Products.List(ctx, activeOnly)
	return out, storeErr("ListProducts", err)
}

func (s *SQLStore) ListEvents(ctx context.Context, f model.EventFilter) ([]model.AuditEvent, error) {
	out, err := s.Audit.List(ctx, f)
	return out, storeErr("ListEvents", err)
}

func (s *SQLStore) GetSettings(ctx context.Context) (map[string]string, error) {
	out, err := s.Settings.GetAll(ctx)
	return out, storeErr("GetSettings", err)
}

func (s *SQLStore) PutSettings(ctx context.Context, kv map[string]string) error {
	return storeErr("PutSettings", s.Settings.PutAll(ctx, kv))
}

// storeErr tags driver and SQL failures as model.ErrInternal. Errors that
// already carry a taxonomy kind pass through unchanged.
func storeErr(op string, err error) error {
	if err == nil || errors.Is(err, model.ErrInternal) || model.KindOf(err) != "INTERNAL" {
		return err
	}
	return fmt.Errorf("%w: %s: %w", model.ErrInternal, op, err)
}

// sqlTx adapts the repos' ...Tx methods to the Tx interface.
type sqlTx struct {
	s  *SQLStore
	tx *sql.Tx
}

func (t *sqlTx) GetResourceWithSession(ctx context.Context, kind model.ResourceKind, id string) (*model.Resource, *model.Session, error) {
	res, err := t.s.Resources.GetTx(ctx, t.tx, kind, id)
	if err != nil || res == nil || res.CurrentSessionID == nil {
		return res, nil, err
	}
	sess, err := t.s.Sessions.GetTx(ctx, t.tx, *res.CurrentSessionID)
	if err != nil {
		return nil, nil, err
	}
	return res, sess, nil
}

func (t *sqlTx) CompareAndSwapResource(ctx context.Context, kind model.ResourceKind, id string, expectedVersion uint32, expectedStatus model.ResourceStatus, upd model.ResourceUpdate) (int64, error) {
	return t.s.Resources.CompareAndSwapTx(ctx, t.tx, kind, id, expectedVersion, expectedStatus, upd)
}

func (t *sqlTx) CreateSession(ctx context.Context, sess *model.Session) error {
	return t.s.Sessions.CreateTx(ctx, t.tx, sess)
}

func (t *sqlTx) UpdateSession(ctx context.Context, id string, upd model.SessionUpdate) error {
	return t.s.Sessions.UpdateTx(ctx, t.tx, id, upd)
}

func (t *sqlTx) GetSession(ctx context.Context, id string) (*model.Session, error) {
	return t.s.Sessions.GetTx(ctx, t.tx, id)
}

func (t *sqlTx) AppendAuditEvent(ctx context.Context, e *model.AuditEvent) error {
	return t.s.Audit.AppendTx(ctx, t.tx, e)
}

func (t *sqlTx) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	return t.s.Products.GetTx(ctx, t.tx, id)
}

var _ Store = (*SQLStore)(nil)
