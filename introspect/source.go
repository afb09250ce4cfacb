package introspect

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/satishbabariya/dbre/internal/debug"
	"github.com/satishbabariya/dbre/model"
)

// Source binds a connection provider to a dialect introspector. Every call
// acquires its own connection and releases it before returning.
type Source struct {
	Provider     Provider
	Introspector Introspector
	Filter       Filter
}

// NewSource returns a source for an already configured SQLProvider,
// choosing the introspector from its driver.
func NewSource(p *SQLProvider, filter Filter) (*Source, error) {
	in, err := New(p.Driver())
	if err != nil {
		return nil, err
	}
	return &Source{Provider: p, Introspector: in, Filter: filter}, nil
}

// Introspect reads one schema through a fresh connection.
func (s *Source) Introspect(ctx context.Context, schema model.Schema) (*model.Database, error) {
	var database *model.Database
	err := s.withConnection(ctx, func(db *sql.DB) error {
		var err error
		database, err = s.Introspector.Introspect(ctx, db, Request{Schema: schema, Filter: s.Filter})
		return err
	})
	if err != nil {
		return nil, err
	}
	return database, nil
}

// ResolveSchema reports the schema a request is read from when the
// introspector can tell without a connection.
func (s *Source) ResolveSchema(schema model.Schema) (model.Schema, bool) {
	if r, ok := s.Introspector.(Resolver); ok {
		return r.ResolveSchema(schema)
	}
	return schema, false
}

// Schemas lists the available schemas. A connection failure yields an
// empty list rather than an error.
func (s *Source) Schemas(ctx context.Context) ([]model.Schema, error) {
	var schemas []model.Schema
	err := s.withConnection(ctx, func(db *sql.DB) error {
		var err error
		schemas, err = s.Introspector.Schemas(ctx, db)
		return err
	})
	if IsConnectionError(err) {
		debug.Warn("listing schemas without a connection", "error", err)
		return nil, nil
	}
	return schemas, err
}

func (s *Source) withConnection(ctx context.Context, fn func(*sql.DB) error) (err error) {
	if s.Provider == nil {
		return &ConnectionError{Op: "open", Err: ErrNoConnection}
	}
	db, err := s.Provider.Connection(ctx)
	if err != nil {
		if !IsConnectionError(err) {
			err = &ConnectionError{Op: "open", Err: err}
		}
		return err
	}
	defer func() {
		if cerr := s.Provider.Close(db); cerr != nil {
			debug.Warn("closing connection", "error", cerr)
			if err == nil {
				err = fmt.Errorf("release connection: %w", cerr)
			}
		}
	}()
	return fn(db)
}
