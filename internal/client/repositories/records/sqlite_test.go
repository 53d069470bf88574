package records

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/farmsync/internal/client/models"
	"github.com/dmitrijs2005/farmsync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE plots (
  id             TEXT PRIMARY KEY,
  data           TEXT NOT NULL DEFAULT '{}',
  is_deleted     INTEGER NOT NULL DEFAULT 0,
  deleted_at     TEXT,
  created_at     TEXT NOT NULL,
  updated_at     TEXT NOT NULL,
  _last_modified INTEGER NOT NULL,
  _synced        INTEGER
);`)
	require.NoError(t, err)
	return db
}

func newRepo(t *testing.T) (*SQLiteRepository, *sql.DB) {
	t.Helper()
	db := setupDB(t)
	r, err := NewSQLiteRepository(db, models.TablePlots)
	require.NoError(t, err)
	return r, db
}

var base = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

func plot(id, name string, offset time.Duration, synced models.SyncState) models.Record {
	at := base.Add(offset)
	return models.Record{
		ID:           id,
		Fields:       models.Fields{"name": name, "length_m": 10.0},
		CreatedAt:    at,
		UpdatedAt:    at,
		LastModified: at.UnixMilli(),
		Synced:       synced,
	}
}

func TestNewSQLiteRepository_UnknownTable(t *testing.T) {
	_, err := NewSQLiteRepository(setupDB(t), "plots; DROP TABLE plots")
	assert.ErrorIs(t, err, common.ErrConstraint)
}

func TestUpsertAndGet_RoundTrip(t *testing.T) {
	r, _ := newRepo(t)
	ctx := context.Background()

	rec := plot("p1", "North Field", 0, models.SyncDirty)
	require.NoError(t, r.Upsert(ctx, rec))

	got, err := r.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, rec, *got)

	deletedAt := base.Add(time.Hour)
	rec.IsDeleted = true
	rec.DeletedAt = &deletedAt
	rec.Synced = models.SyncSynced
	require.NoError(t, r.Upsert(ctx, rec))

	got, err = r.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, rec, *got)
}

func TestUpsert_RequiresID(t *testing.T) {
	r, _ := newRepo(t)
	err := r.Upsert(context.Background(), plot("", "x", 0, models.SyncDirty))
	assert.ErrorIs(t, err, common.ErrConstraint)
}

func TestGet_NotFound(t *testing.T) {
	r, _ := newRepo(t)
	_, err := r.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGet_NullSyncedIsUnknown(t *testing.T) {
	r, db := newRepo(t)
	_, err := db.Exec(`INSERT INTO plots (id, created_at, updated_at, _last_modified) VALUES ('legacy', ?, ?, 1)`,
		base.Format(time.RFC3339Nano), base.Format(time.RFC3339Nano))
	require.NoError(t, err)

	got, err := r.Get(context.Background(), "legacy")
	require.NoError(t, err)
	assert.Equal(t, models.SyncUnknown, got.Synced)
	assert.Equal(t, models.Fields{}, got.Fields)
}

func TestQuery_Filters(t *testing.T) {
	r, _ := newRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, plot("a", "North Field", 0, models.SyncSynced)))
	require.NoError(t, r.Upsert(ctx, plot("b", "South Field", time.Minute, models.SyncDirty)))
	require.NoError(t, r.Upsert(ctx, plot("c", "Orchard", 2*time.Minute, models.SyncUnknown)))
	gone := plot("d", "Old Pen", 3*time.Minute, models.SyncDirty)
	gone.IsDeleted = true
	require.NoError(t, r.Upsert(ctx, gone))

	ids := func(recs []models.Record) []string {
		out := make([]string, 0, len(recs))
		for _, rec := range recs {
			out = append(out, rec.ID)
		}
		return out
	}

	tests := []struct {
		name string
		f    Filter
		want []string
	}{
		{"active excludes tombstones", Active(), []string{"a", "b", "c"}},
		{"include deleted", Filter{IncludeDeleted: true}, []string{"a", "b", "c", "d"}},
		{"by ids", ByIDs("c", "a", "d"), []string{"a", "c"}},
		{"empty id set", ByIDs(), []string{}},
		{"dirty includes unknown and tombstones", Filter{DirtyOnly: true, IncludeDeleted: true, OrderBy: "_last_modified"}, []string{"b", "c", "d"}},
		{"field equality", Filter{Where: map[string]any{"name": "Orchard"}}, []string{"c"}},
		{"numeric equality", Filter{Where: map[string]any{"length_m": 10}}, []string{"a", "b", "c"}},
		{"order by field desc", Filter{OrderBy: "name", Desc: true}, []string{"b", "c", "a"}},
		{"limit", Filter{Limit: 2}, []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Query(ctx, tt.f)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestQuery_DefaultOrderWithinOneSecond(t *testing.T) {
	r, db := newRepo(t)
	ctx := context.Background()

	// ids sort opposite to creation so the id tie-break cannot hide a bad order
	require.NoError(t, r.Upsert(ctx, plot("z-first", "North Field", 0, models.SyncDirty)))
	require.NoError(t, r.Upsert(ctx, plot("a-second", "South Field", 500*time.Millisecond, models.SyncDirty)))
	require.NoError(t, r.Upsert(ctx, plot("m-third", "Orchard", time.Second, models.SyncDirty)))

	got, err := r.Query(ctx, Active())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "z-first", got[0].ID)
	assert.Equal(t, "a-second", got[1].ID)
	assert.Equal(t, "m-third", got[2].ID)

	var stored string
	require.NoError(t, db.QueryRow(`SELECT created_at FROM plots WHERE id = 'z-first'`).Scan(&stored))
	assert.Equal(t, "2026-05-01T08:00:00.000000000Z", stored)
}

func TestQuery_RejectsBadIdentifiers(t *testing.T) {
	r, _ := newRepo(t)
	ctx := context.Background()

	_, err := r.Query(ctx, Filter{Where: map[string]any{"name') OR 1=1 --": "x"}})
	assert.ErrorIs(t, err, common.ErrConstraint)

	_, err = r.Query(ctx, Filter{OrderBy: "name; DROP"})
	assert.ErrorIs(t, err, common.ErrConstraint)
}

func TestMarkSynced_OnlyWhenUnchanged(t *testing.T) {
	r, _ := newRepo(t)
	ctx := context.Background()

	rec := plot("p1", "North Field", 0, models.SyncDirty)
	require.NoError(t, r.Upsert(ctx, rec))

	ok, err := r.MarkSynced(ctx, "p1", rec.LastModified-1)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := r.CountDirty(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ok, err = r.MarkSynced(ctx, "p1", rec.LastModified)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := r.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.SyncSynced, got.Synced)

	n, err = r.CountDirty(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRepository_DBErrorsWrapped(t *testing.T) {
	r, db := newRepo(t)
	ctx := context.Background()
	require.NoError(t, db.Close())

	_, err := r.Get(ctx, "x")
	assert.ErrorContains(t, err, "failed to get plots/x")
	_, err = r.Query(ctx, Active())
	assert.ErrorContains(t, err, "failed to query plots")
	assert.ErrorContains(t, r.Upsert(ctx, plot("x", "y", 0, models.SyncDirty)), "failed to upsert plots/x")
	_, err = r.MarkSynced(ctx, "x", 1)
	assert.ErrorContains(t, err, "failed to mark plots/x synced")
	_, err = r.CountDirty(ctx)
	assert.ErrorContains(t, err, "failed to count dirty plots")
}
