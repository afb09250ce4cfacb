// Package snapshot keeps introspected databases: an in-process cache per
// schema, one durable XML snapshot on disk, and the listeners told when a
// fresh database becomes available.
package snapshot

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/satishbabariya/dbre/internal/debug"
	"github.com/satishbabariya/dbre/model"
)

// Source performs live introspection.
type Source interface {
	Introspect(ctx context.Context, schema model.Schema) (*model.Database, error)
	Schemas(ctx context.Context) ([]model.Schema, error)
}

// SchemaResolver is implemented by sources that can name, without a
// connection, the schema a request is read from. ok is false when only the
// database can tell.
type SchemaResolver interface {
	ResolveSchema(schema model.Schema) (resolved model.Schema, ok bool)
}

// Defaults are applied to databases read from a live source.
type Defaults struct {
	Namespace string
	Options   model.Options
}

// ReadMode controls how Get obtains and publishes a database.
type ReadMode struct {
	// ForceRefresh skips the cache and the durable snapshot.
	ForceRefresh bool
	// SafeMode reads without side effects: nothing is cached, saved or
	// announced. A schema must be given. A cached database is returned as
	// a copy, so the caller may modify it.
	SafeMode bool
}

// Listener is told about every database published by the service.
type Listener interface {
	DatabaseChanged(db *model.Database) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(db *model.Database) error

func (f ListenerFunc) DatabaseChanged(db *model.Database) error { return f(db) }

type registration struct {
	l Listener
}

// Service is the schema cache. It is safe for concurrent use; listeners
// are always called without the lock held.
type Service struct {
	source   Source
	store    *Store
	defaults Defaults

	mu        sync.Mutex
	cache     map[string]*model.Database
	listeners []*registration
	last      *model.Schema
	started   bool
}

// NewService returns a service reading from source. store may be nil, in
// which case nothing is persisted.
func NewService(source Source, store *Store, defaults Defaults) *Service {
	return &Service{
		source:   source,
		store:    store,
		defaults: defaults,
		cache:    make(map[string]*model.Database),
	}
}

// Get returns the database for schema. A nil schema means the last schema
// read, or that of the durable snapshot.
func (s *Service) Get(ctx context.Context, schema *model.Schema, mode ReadMode) (*model.Database, error) {
	db, fresh, err := s.read(ctx, schema, mode)
	if err != nil {
		return nil, err
	}
	if fresh && !mode.SafeMode {
		s.notify(db, s.registered())
	}
	return db, nil
}

// Start announces the initial database to every listener. Only the first
// successful call has any effect.
func (s *Service) Start(ctx context.Context, schema *model.Schema) error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		return nil
	}

	db, _, err := s.read(ctx, schema, ReadMode{})
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	debug.Info("schema available", "schema", db.Schema.Name, "listeners", len(listeners))
	s.notify(db, listeners)
	return nil
}

// AddListener registers l and returns a function that removes it. Once the
// service has started, l is immediately sent the last known database.
func (s *Service) AddListener(ctx context.Context, l Listener) (remove func()) {
	reg := &registration{l: l}

	s.mu.Lock()
	s.listeners = append(s.listeners, reg)
	started := s.started
	var last *model.Schema
	if s.last != nil {
		schema := *s.last
		last = &schema
	}
	s.mu.Unlock()

	if started && last != nil {
		db, err := s.Get(ctx, last, ReadMode{SafeMode: true})
		if err != nil {
			debug.Warn("no baseline for new listener", "schema", last.Name, "error", err)
		} else {
			s.notify(db, []*registration{reg})
		}
	}

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.listeners = slices.DeleteFunc(s.listeners, func(r *registration) bool { return r == reg })
	}
}

// Schemas lists the schemas known to the source.
func (s *Service) Schemas(ctx context.Context) ([]model.Schema, error) {
	return s.source.Schemas(ctx)
}

// LastSchema returns the schema of the most recent published read.
func (s *Service) LastSchema() (model.Schema, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return model.Schema{}, false
	}
	return *s.last, true
}

// read resolves a database and, outside safe mode, records it. fresh
// reports whether the database did not come from the cache.
func (s *Service) read(ctx context.Context, schema *model.Schema, mode ReadMode) (*model.Database, bool, error) {
	target, err := s.resolve(schema, mode)
	if err != nil {
		return nil, false, err
	}
	key := s.canonical(target)

	if !mode.ForceRefresh {
		s.mu.Lock()
		db, ok := s.cache[key.Name]
		if ok && !mode.SafeMode {
			s.last = &key
		}
		s.mu.Unlock()
		if ok {
			if mode.SafeMode {
				return s.copyOf(db), false, nil
			}
			return db, false, nil
		}

		if db := s.loadDurable(target, key); db != nil {
			if !mode.SafeMode {
				s.remember(target, db)
			}
			return db, true, nil
		}
	}

	db, err := s.source.Introspect(ctx, target)
	if err != nil {
		return nil, false, fmt.Errorf("introspect %s: %w", target, err)
	}
	if db.Namespace == "" {
		db.Namespace = s.defaults.Namespace
	}
	db.SetOptions(s.defaults.Options)

	if !mode.SafeMode {
		s.remember(target, db)
		if s.store != nil {
			if err := s.store.Save(db); err != nil {
				debug.Warn("saving snapshot", "path", s.store.Path, "error", err)
			}
		}
	}
	return db, true, nil
}

// canonical returns the schema a request is read from when the source can
// tell without a connection, and the request itself otherwise.
func (s *Service) canonical(schema model.Schema) model.Schema {
	if r, ok := s.source.(SchemaResolver); ok {
		if resolved, ok := r.ResolveSchema(schema); ok {
			return resolved
		}
	}
	return schema
}

// copyOf returns a detached copy of a cached database.
func (s *Service) copyOf(db *model.Database) *model.Database {
	dup, err := Clone(db)
	if err != nil {
		debug.Warn("copying cached database", "schema", db.Schema.Name, "error", err)
		return db
	}
	return dup
}

func (s *Service) resolve(schema *model.Schema, mode ReadMode) (model.Schema, error) {
	if schema != nil {
		return *schema, nil
	}
	if mode.SafeMode {
		return model.Schema{}, ErrSchemaRequired
	}
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()
	if last != nil {
		return *last, nil
	}
	if s.store != nil {
		if db, err := s.store.Load(); err == nil {
			return db.Schema, nil
		}
	}
	return model.Schema{}, ErrSchemaRequired
}

// loadDurable returns the stored snapshot when it describes the requested
// schema or the schema it resolves to.
func (s *Service) loadDurable(requested, resolved model.Schema) *model.Database {
	if s.store == nil {
		return nil
	}
	db, err := s.store.Load()
	switch {
	case err == nil:
	case IsMiss(err):
		debug.Debug("snapshot miss", "path", s.store.Path, "reason", err)
		return nil
	default:
		debug.Warn("reading snapshot", "path", s.store.Path, "error", err)
		return nil
	}
	if db.Schema.Name != requested.Name && db.Schema.Name != resolved.Name {
		debug.Debug("snapshot is for another schema", "want", resolved.Name, "have", db.Schema.Name)
		return nil
	}
	return db
}

// remember caches db under the schema it was read from and, when the
// source resolved the request to another name, under the request too.
func (s *Service) remember(requested model.Schema, db *model.Database) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[db.Schema.Name] = db
	if requested.Name != db.Schema.Name {
		s.cache[requested.Name] = db
	}
	actual := db.Schema
	s.last = &actual
}

func (s *Service) registered() []*registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.listeners)
}

func (s *Service) notify(db *model.Database, listeners []*registration) {
	for _, r := range listeners {
		deliver(r.l, db)
	}
}

func deliver(l Listener, db *model.Database) {
	defer func() {
		if p := recover(); p != nil {
			debug.Error("listener panicked", "schema", db.Schema.Name, "panic", p)
		}
	}()
	if err := l.DatabaseChanged(db); err != nil {
		debug.Warn("listener failed", "schema", db.Schema.Name, "error", err)
	}
}
