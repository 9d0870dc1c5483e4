package storage

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeDB is an in-memory game_snapshots table answering the store's queries.
type fakeDB struct {
	rows    map[string][]any
	created bool
	failing error
}

func newFakeDB() *fakeDB {
	return &fakeDB{rows: make(map[string][]any)}
}

func (db *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if db.failing != nil {
		return pgconn.CommandTag{}, db.failing
	}
	switch sql {
	case createSnapshotsTable:
		db.created = true
		return pgconn.NewCommandTag("CREATE TABLE"), nil
	case upsertSnapshot:
		db.rows[args[0].(string)] = append([]any(nil), args...)
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case deleteSnapshot:
		id := args[0].(string)
		if _, ok := db.rows[id]; !ok {
			return pgconn.NewCommandTag("DELETE 0"), nil
		}
		delete(db.rows, id)
		return pgconn.NewCommandTag("DELETE 1"), nil
	}
	return pgconn.CommandTag{}, fmt.Errorf("unexpected statement %q", sql)
}

func (db *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if db.failing != nil {
		return nil, db.failing
	}
	if sql != selectRecords {
		return nil, fmt.Errorf("unexpected query %q", sql)
	}
	ids := make([]string, 0, len(db.rows))
	for id := range db.rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	rows := &fakeRows{}
	for _, id := range ids {
		rows.values = append(rows.values, db.rows[id][:6])
	}
	return rows, nil
}

func (db *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if db.failing != nil {
		return fakeRow{err: db.failing}
	}
	if sql != selectSnapshot {
		return fakeRow{err: fmt.Errorf("unexpected query %q", sql)}
	}
	row, ok := db.rows[args[0].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{values: row}
}

func scanInto(values []any, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("scan: %d values into %d destinations", len(values), len(dest))
	}
	for i, v := range values {
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanInto(r.values, dest)
}

type fakeRows struct {
	values [][]any
	pos    int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos <= len(r.values)
}

func (r *fakeRows) Scan(dest ...any) error {
	return scanInto(r.values[r.pos-1], dest)
}

func (r *fakeRows) Values() ([]any, error) {
	return r.values[r.pos-1], nil
}

func newPostgresStore(t *testing.T) (*PostgresStore, *fakeDB) {
	t.Helper()
	db := newFakeDB()
	store, err := NewPostgresStore(context.Background(), db, testClock, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.True(t, db.created)
	return store, db
}

func TestPostgresStoreSaveLoadList(t *testing.T) {
	ctx := context.Background()
	store, _ := newPostgresStore(t)

	for _, id := range []string{"game-2", "game-1"} {
		_, err := store.Save(ctx, testSnapshot(t, id))
		require.NoError(t, err)
	}
	loaded, err := store.Load(ctx, "game-1")
	require.NoError(t, err)
	assert.Equal(t, "game-1", loaded.GameID)

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "game-1", records[0].GameID)
	assert.Equal(t, "DAY", records[0].Phase)
	assert.Equal(t, testClock.At, records[1].SavedAt)
}

func TestPostgresStoreMissingAndDeleted(t *testing.T) {
	ctx := context.Background()
	store, _ := newPostgresStore(t)

	_, err := store.Load(ctx, "game-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "game-1"), ErrNotFound)

	_, err = store.Save(ctx, testSnapshot(t, "game-1"))
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "game-1"))
	_, err = store.Load(ctx, "game-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStoreDetectsTampering(t *testing.T) {
	ctx := context.Background()
	store, db := newPostgresStore(t)
	snap := testSnapshot(t, "game-1")
	_, err := store.Save(ctx, snap)
	require.NoError(t, err)

	snap.Day = 7
	data, err := snap.EncodeJSON()
	require.NoError(t, err)
	db.rows["game-1"][6] = data

	_, err = store.Load(ctx, "game-1")
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestPostgresStoreWrapsDatabaseErrors(t *testing.T) {
	ctx := context.Background()
	store, db := newPostgresStore(t)
	db.failing = errors.New("connection reset")

	_, err := store.Save(ctx, testSnapshot(t, "game-1"))
	assert.ErrorContains(t, err, "connection reset")
	_, err = store.Load(ctx, "game-1")
	assert.ErrorContains(t, err, "connection reset")
	assert.NotErrorIs(t, err, ErrNotFound)
	_, err = store.List(ctx)
	assert.Error(t, err)

	_, err = NewPostgresStore(ctx, db, nil, nil)
	assert.Error(t, err)
	_, err = NewPostgresStore(ctx, nil, nil, nil)
	assert.Error(t, err)
}
