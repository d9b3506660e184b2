// Package repository holds the persistence contracts for resources, sessions,
// the audit log, the product catalog and settings, plus the MySQL
// implementation of those contracts.
package repository

import (
	"context"

	"github.com/iliyamo/seat-locker-kiosk/internal/model"
)

// Tx is the set of reads and writes that must commit atomically. Lookups
// return nil (and no error) when the row does not exist.
type Tx interface {
	// GetResourceWithSession returns a snapshot of the resource and the
	// session its CurrentSessionID points at.
	GetResourceWithSession(ctx context.Context, kind model.ResourceKind, id string) (*model.Resource, *model.Session, error)
	// CompareAndSwapResource writes upd only if the stored version and status
	// still equal the expected values, bumping the version. It returns the
	// number of rows changed; zero means another writer got there first.
	CompareAndSwapResource(ctx context.Context, kind model.ResourceKind, id string, expectedVersion uint32, expectedStatus model.ResourceStatus, upd model.ResourceUpdate) (int64, error)
	CreateSession(ctx context.Context, s *model.Session) error
	UpdateSession(ctx context.Context, id string, upd model.SessionUpdate) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	AppendAuditEvent(ctx context.Context, e *model.AuditEvent) error
	GetProduct(ctx context.Context, id string) (*model.Product, error)
}

// Store runs transactions and serves the non-transactional reads used by
// snapshots, the expiration sweep and the admin console.
type Store interface {
	// WithinTx runs fn in a transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	ListResources(ctx context.Context, kind model.ResourceKind) ([]model.ResourceView, error)
	ListActiveSessions(ctx context.Context) ([]model.Session, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]model.Product, error)
	ListEvents(ctx context.Context, f model.EventFilter) ([]model.AuditEvent, error)
	GetSettings(ctx context.Context) (map[string]string, error)
	PutSettings(ctx context.Context, kv map[string]string) error
}
