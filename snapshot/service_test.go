package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/dbre/model"
)

type fakeSource struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeSource) Introspect(_ context.Context, schema model.Schema) (*model.Database, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.calls++
	db := model.NewDatabase(fmt.Sprintf("rev%d", f.calls), schema)
	table := model.NewTable(schema, "customer")
	if err := table.AddColumn(model.NewColumn("id", model.TypeInteger)); err != nil {
		return nil, err
	}
	if err := db.AddTable(table); err != nil {
		return nil, err
	}
	db.Link()
	return db, nil
}

func (f *fakeSource) Schemas(context.Context) ([]model.Schema, error) {
	return []model.Schema{model.NewSchema("public"), model.NewSchema("sales")}, nil
}

func (f *fakeSource) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recorder collects the database names it is told about.
type recorder struct {
	mu    sync.Mutex
	names []string
}

func (r *recorder) DatabaseChanged(db *model.Database) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, db.Name)
	return nil
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

func schema(name string) *model.Schema {
	s := model.NewSchema(name)
	return &s
}

func newService(t *testing.T) (*Service, *fakeSource, *Store) {
	t.Helper()
	src := &fakeSource{}
	store := NewStore(afero.NewMemMapFs(), "")
	return NewService(src, store, Defaults{}), src, store
}

func TestService_CachesReads(t *testing.T) {
	ctx := context.Background()
	svc, src, store := newService(t)

	first, err := svc.Get(ctx, schema("public"), ReadMode{})
	require.NoError(t, err)
	second, err := svc.Get(ctx, schema("public"), ReadMode{})
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, src.count())

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "rev1", saved.Name)

	refreshed, err := svc.Get(ctx, schema("public"), ReadMode{ForceRefresh: true})
	require.NoError(t, err)
	assert.Equal(t, "rev2", refreshed.Name)
	again, err := svc.Get(ctx, nil, ReadMode{})
	require.NoError(t, err)
	assert.Same(t, refreshed, again, "nil schema means the last one read")
}

func TestService_DurableSnapshot(t *testing.T) {
	ctx := context.Background()
	_, _, store := newService(t)
	stored := model.NewDatabase("stored", model.NewSchema("public"))
	require.NoError(t, store.Save(stored))

	src := &fakeSource{}
	svc := NewService(src, store, Defaults{})

	db, err := svc.Get(ctx, nil, ReadMode{})
	require.NoError(t, err)
	assert.Equal(t, "stored", db.Name, "nil schema falls back to the snapshot's")
	assert.Zero(t, src.count())

	db, err = svc.Get(ctx, schema("sales"), ReadMode{})
	require.NoError(t, err)
	assert.Equal(t, "rev1", db.Name, "a snapshot of another schema is not used")

	require.NoError(t, afero.WriteFile(store.Fs, store.Path, []byte("garbage"), 0o644))
	svc = NewService(src, store, Defaults{})
	db, err = svc.Get(ctx, schema("public"), ReadMode{})
	require.NoError(t, err)
	assert.Equal(t, "rev2", db.Name, "a corrupt snapshot is a miss")
}

func TestService_SafeModeHasNoSideEffects(t *testing.T) {
	ctx := context.Background()
	svc, src, store := newService(t)
	rec := &recorder{}
	svc.AddListener(ctx, rec)

	_, err := svc.Get(ctx, nil, ReadMode{SafeMode: true})
	assert.ErrorIs(t, err, ErrSchemaRequired)

	safe, err := svc.Get(ctx, schema("public"), ReadMode{SafeMode: true})
	require.NoError(t, err)
	assert.Equal(t, "rev1", safe.Name)
	_, err = store.Load()
	assert.ErrorIs(t, err, ErrNoSnapshot, "safe reads never write the snapshot")
	_, ok := svc.LastSchema()
	assert.False(t, ok)

	cached, err := svc.Get(ctx, schema("public"), ReadMode{})
	require.NoError(t, err)
	assert.Equal(t, "rev2", cached.Name)

	_, err = svc.Get(ctx, schema("public"), ReadMode{SafeMode: true, ForceRefresh: true})
	require.NoError(t, err)
	after, err := svc.Get(ctx, schema("public"), ReadMode{})
	require.NoError(t, err)
	assert.Same(t, cached, after)
	assert.Equal(t, 3, src.count())

	assert.Equal(t, []string{"rev2"}, rec.seen(), "only the non-safe read is announced")
}

func TestService_NoSchema(t *testing.T) {
	svc := NewService(&fakeSource{}, nil, Defaults{})
	_, err := svc.Get(context.Background(), nil, ReadMode{})
	assert.ErrorIs(t, err, ErrSchemaRequired)
}

func TestService_AppliesDefaults(t *testing.T) {
	svc := NewService(&fakeSource{}, nil, Defaults{
		Namespace: "example.com/shop",
		Options:   model.Options{Repository: true, DisableVersionFields: true},
	})
	db, err := svc.Get(context.Background(), schema("public"), ReadMode{})
	require.NoError(t, err)
	assert.Equal(t, "example.com/shop", db.Namespace)
	assert.True(t, db.Options.Repository)
	assert.True(t, db.Tables[0].DisableVersionFields)
}

func TestService_IntrospectionFailure(t *testing.T) {
	boom := errors.New("boom")
	svc := NewService(&fakeSource{err: boom}, nil, Defaults{})
	_, err := svc.Get(context.Background(), schema("public"), ReadMode{})
	assert.ErrorIs(t, err, boom)
}

func TestService_ListenerFailuresAreIsolated(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	var calls []string
	svc.AddListener(ctx, ListenerFunc(func(*model.Database) error {
		calls = append(calls, "panics")
		panic("listener bug")
	}))
	svc.AddListener(ctx, ListenerFunc(func(*model.Database) error {
		calls = append(calls, "fails")
		return errors.New("listener failed")
	}))
	rec := &recorder{}
	remove := svc.AddListener(ctx, rec)

	_, err := svc.Get(ctx, schema("public"), ReadMode{})
	require.NoError(t, err)
	assert.Equal(t, []string{"panics", "fails"}, calls)
	assert.Equal(t, []string{"rev1"}, rec.seen())

	remove()
	remove()
	_, err = svc.Get(ctx, schema("public"), ReadMode{ForceRefresh: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"rev1"}, rec.seen())
	assert.Len(t, calls, 4)
}

func TestService_StartsOnce(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{err: errors.New("offline")}
	svc := NewService(src, nil, Defaults{})
	rec := &recorder{}
	svc.AddListener(ctx, rec)

	assert.Error(t, svc.Start(ctx, schema("public")))
	assert.Empty(t, rec.seen())

	src.mu.Lock()
	src.err = nil
	src.mu.Unlock()
	require.NoError(t, svc.Start(ctx, schema("public")))
	require.NoError(t, svc.Start(ctx, schema("public")))
	assert.Equal(t, []string{"rev1"}, rec.seen())
}

func TestService_LateListenerGetsBaseline(t *testing.T) {
	ctx := context.Background()
	svc, src, _ := newService(t)
	early := &recorder{}
	svc.AddListener(ctx, early)

	late := &recorder{}
	svc.AddListener(ctx, late)
	assert.Empty(t, late.seen(), "nothing to deliver before startup")

	require.NoError(t, svc.Start(ctx, schema("public")))
	latest := &recorder{}
	svc.AddListener(ctx, latest)

	assert.Equal(t, []string{"rev1"}, latest.seen())
	assert.Equal(t, []string{"rev1"}, early.seen(), "the baseline goes to the new listener only")
	assert.Equal(t, 1, src.count(), "the baseline is served from the cache")
}

func TestService_Schemas(t *testing.T) {
	svc, _, _ := newService(t)
	schemas, err := svc.Schemas(context.Background())
	require.NoError(t, err)
	assert.Len(t, schemas, 2)
}

// schemalessSource reads every request from model.NoSchema, the way an
// SQLite source does.
type schemalessSource struct {
	fakeSource
}

func (f *schemalessSource) Introspect(ctx context.Context, _ model.Schema) (*model.Database, error) {
	return f.fakeSource.Introspect(ctx, model.NoSchema)
}

func (f *schemalessSource) ResolveSchema(model.Schema) (model.Schema, bool) {
	return model.NoSchema, true
}

func TestService_ResolvedSchemaSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	src := &schemalessSource{}
	store := NewStore(afero.NewMemMapFs(), "")

	db, err := NewService(src, store, Defaults{}).Get(ctx, schema("main"), ReadMode{})
	require.NoError(t, err)
	assert.Equal(t, model.NoSchema, db.Schema)

	svc := NewService(src, store, Defaults{})
	db, err = svc.Get(ctx, schema("main"), ReadMode{})
	require.NoError(t, err)
	assert.Equal(t, "rev1", db.Name, "the stored snapshot matches the resolved schema")
	assert.Equal(t, 1, src.count())

	again, err := svc.Get(ctx, nil, ReadMode{})
	require.NoError(t, err)
	assert.Same(t, db, again)
	last, ok := svc.LastSchema()
	require.True(t, ok)
	assert.Equal(t, model.NoSchema, last)
}

func TestService_CachesUnderRequestedAndResolvedSchema(t *testing.T) {
	ctx := context.Background()
	src := &schemalessSource{}
	// Hide ResolveSchema so resolution is only known after the read.
	svc := NewService(struct{ Source }{src}, nil, Defaults{})

	first, err := svc.Get(ctx, schema("main"), ReadMode{})
	require.NoError(t, err)
	byRequest, err := svc.Get(ctx, schema("main"), ReadMode{})
	require.NoError(t, err)
	byResolved, err := svc.Get(ctx, &model.NoSchema, ReadMode{})
	require.NoError(t, err)
	assert.Same(t, first, byRequest)
	assert.Same(t, first, byResolved)
	assert.Equal(t, 1, src.count())
}

func TestService_SafeReadsReturnCopies(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	cached, err := svc.Get(ctx, schema("public"), ReadMode{})
	require.NoError(t, err)
	safe, err := svc.Get(ctx, schema("public"), ReadMode{SafeMode: true})
	require.NoError(t, err)
	assert.NotSame(t, cached, safe)
	assert.Equal(t, cached.Name, safe.Name)

	safe.SetOptions(model.Options{ActiveRecord: true})
	safe.Tables[0].Description = "changed"
	assert.False(t, cached.Options.ActiveRecord)
	assert.Empty(t, cached.Tables[0].Description)
}
