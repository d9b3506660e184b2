// Package memstore is an in-process repository.Store used by tests and by
// the server's memory driver.
//
// Each call takes the store mutex only for its own duration, so concurrent
// transactions interleave the way they would against a database. Writes are
// applied immediately and recorded in an undo log that is replayed in
// reverse when the transaction function fails. That is enough to reproduce
// lost compare-and-swap races without modelling isolation levels.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/seat-locker-kiosk/internal/model"
	"github.com/iliyamo/seat-locker-kiosk/internal/repository"
)

type resourceKey struct {
	kind model.ResourceKind
	id   string
}

// Store keeps every table in maps guarded by one mutex.
type Store struct {
	mu        sync.Mutex
	resources map[resourceKey]*model.Resource
	sessions  map[string]*model.Session
	revisions map[string]uint64 // bumped on every session write
	products  map[string]model.Product
	events    []model.AuditEvent
	settings  map[string]string
	now       func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		resources: map[resourceKey]*model.Resource{},
		sessions:  map[string]*model.Session{},
		revisions: map[string]uint64{},
		products:  map[string]model.Product{},
		settings:  map[string]string{},
		now:       time.Now,
	}
}

// AddResource inserts or replaces a resource. Version defaults to 1.
func (s *Store) AddResource(r model.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.Version == 0 {
		r.Version = 1
	}
	if r.Status == "" {
		r.Status = model.StatusAvailable
	}
	now := s.now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	s.resources[resourceKey{r.Kind, r.ID}] = &r
}

// AddProduct inserts or replaces a catalog entry.
func (s *Store) AddProduct(p model.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

// Resource returns a copy of the stored resource, for assertions.
func (s *Store) Resource(kind model.ResourceKind, id string) (model.Resource, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.resources[resourceKey{kind, id}]
	if !ok {
		return model.Resource{}, false
	}
	return copyResource(r), true
}

// Session returns a copy of the stored session, for assertions.
func (s *Store) Session(id string) (model.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ss, ok := s.sessions[id]
	if !ok {
		return model.Session{}, false
	}
	return copySession(ss), true
}

// Events returns every audit event in insertion order.
func (s *Store) Events() []model.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.AuditEvent, len(s.events))
	copy(out, s.events)
	return out
}

// SessionsFor returns all sessions ever created for a resource.
func (s *Store) SessionsFor(kind model.ResourceKind, id string) []model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Session
	for _, ss := range s.sessions {
		if ss.ResourceKind == kind && ss.ResourceID == id {
			out = append(out, copySession(ss))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := &memTx{s: s}
	if err := fn(ctx, t); err != nil {
		t.rollback()
		return err
	}
	return nil
}

func (s *Store) ListResources(_ context.Context, kind model.ResourceKind) ([]model.ResourceView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ResourceView
	for _, r := range s.resources {
		if r.Kind != kind {
			continue
		}
		v := model.ResourceView{Resource: copyResource(r)}
		if r.CurrentSessionID != nil {
			if ss, ok := s.sessions[*r.CurrentSessionID]; ok {
				c := copySession(ss)
				v.CurrentSession = &c
			}
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Resource, out[j].Resource
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		if a.Col != b.Col {
			return a.Col < b.Col
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (s *Store) ListActiveSessions(_ context.Context) ([]model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Session
	for _, ss := range s.sessions {
		if ss.Status == model.SessionActive {
			out = append(out, copySession(ss))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.After(out[j].StartAt) })
	return out, nil
}

func (s *Store) ListProducts(_ context.Context, activeOnly bool) ([]model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Product
	for _, p := range s.products {
		if activeOnly && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) ListEvents(_ context.Context, f model.EventFilter) ([]model.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	limit := repository.ClampEventLimit(f.Limit)
	var out []model.AuditEvent
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.events[i]
		if f.Search != "" && !strings.Contains(string(e.Type), f.Search) && !strings.Contains(e.Payload, f.Search) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) GetSettings(_ context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.settings))
	for k, v := range s.settings {
		out[k] = v
	}
	return out, nil
}

func (s *Store) PutSettings(_ context.Context, kv map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range kv {
		s.settings[k] = v
	}
	return nil
}

// memTx records an undo entry for every write it applies.
type memTx struct {
	s    *Store
	undo []func()
}

func (t *memTx) rollback() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memTx) GetResourceWithSession(ctx context.Context, kind model.ResourceKind, id string) (*model.Resource, *model.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	r, ok := t.s.resources[resourceKey{kind, id}]
	if !ok {
		return nil, nil, nil
	}
	res := copyResource(r)
	if r.CurrentSessionID == nil {
		return &res, nil, nil
	}
	ss, ok := t.s.sessions[*r.CurrentSessionID]
	if !ok {
		return &res, nil, nil
	}
	sess := copySession(ss)
	return &res, &sess, nil
}

func (t *memTx) CompareAndSwapResource(ctx context.Context, kind model.ResourceKind, id string, expectedVersion uint32, expectedStatus model.ResourceStatus, upd model.ResourceUpdate) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	key := resourceKey{kind, id}
	r, ok := t.s.resources[key]
	if !ok || r.Version != expectedVersion || r.Status != expectedStatus {
		return 0, nil
	}
	prev := copyResource(r)
	r.Status = upd.Status
	r.CurrentSessionID = cloneString(upd.CurrentSessionID)
	r.LinkedSeatID = cloneString(upd.LinkedSeatID)
	r.Version++
	r.UpdatedAt = t.s.now().UTC()
	t.undo = append(t.undo, func() {
		// Only restore if nobody has written on top of this change.
		if cur, ok := t.s.resources[key]; ok && cur.Version == prev.Version+1 {
			t.s.resources[key] = &prev
		}
	})
	return 1, nil
}

func (t *memTx) CreateSession(ctx context.Context, sess *model.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	c := copySession(sess)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = c.StartAt
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	t.s.sessions[c.ID] = &c
	id := c.ID
	t.s.revisions[id]++
	rev := t.s.revisions[id]
	t.undo = append(t.undo, func() {
		if t.s.revisions[id] == rev {
			delete(t.s.sessions, id)
			delete(t.s.revisions, id)
		}
	})
	return nil
}

func (t *memTx) UpdateSession(ctx context.Context, id string, upd model.SessionUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	ss, ok := t.s.sessions[id]
	if !ok {
		return model.ErrSessionNotFound
	}
	prev := copySession(ss)
	if upd.Status != nil {
		ss.Status = *upd.Status
	}
	if upd.EndAt != nil {
		e := *upd.EndAt
		ss.EndAt = &e
	}
	if upd.EndedReason != nil {
		r := *upd.EndedReason
		ss.EndedReason = &r
	}
	ss.UpdatedAt = t.s.now().UTC()
	t.s.revisions[id]++
	rev := t.s.revisions[id]
	t.undo = append(t.undo, func() {
		// A later write by another transaction wins over this rollback.
		if t.s.revisions[id] == rev {
			t.s.sessions[id] = &prev
			t.s.revisions[id] = rev - 1
		}
	})
	return nil
}

func (t *memTx) GetSession(ctx context.Context, id string) (*model.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	ss, ok := t.s.sessions[id]
	if !ok {
		return nil, nil
	}
	c := copySession(ss)
	return &c, nil
}

func (t *memTx) AppendAuditEvent(ctx context.Context, e *model.AuditEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.events = append(t.s.events, *e)
	id := e.ID
	t.undo = append(t.undo, func() {
		for i := len(t.s.events) - 1; i >= 0; i-- {
			if t.s.events[i].ID == id {
				t.s.events = append(t.s.events[:i], t.s.events[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (t *memTx) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	p, ok := t.s.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func copyResource(r *model.Resource) model.Resource {
	c := *r
	c.CurrentSessionID = cloneString(r.CurrentSessionID)
	c.LinkedSeatID = cloneString(r.LinkedSeatID)
	return c
}

func copySession(s *model.Session) model.Session {
	c := *s
	c.ProductID = cloneString(s.ProductID)
	if s.EndAt != nil {
		e := *s.EndAt
		c.EndAt = &e
	}
	if s.EndedReason != nil {
		r := *s.EndedReason
		c.EndedReason = &r
	}
	return c
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

var _ repository.Store = (*Store)(nil)
