package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	"github.com/dmitrijs2005/farmsync/internal/client/migrations"
	"github.com/dmitrijs2005/farmsync/internal/client/models"
	"github.com/dmitrijs2005/farmsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/farmsync/internal/client/repositories/records"
	"github.com/dmitrijs2005/farmsync/internal/common"
	"github.com/dmitrijs2005/farmsync/internal/filex"
	"github.com/dmitrijs2005/farmsync/internal/logging"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// Filter re-exports the query filter so callers need only this package.
type Filter = records.Filter

var (
	Active = records.Active
	ByIDs  = records.ByIDs
)

type Store struct {
	db       *sql.DB
	path     string
	provider *goose.Provider
	logger   logging.Logger

	writeMu sync.Mutex
	hub     *hub
}

// Open opens (or creates) the database at path and migrates it to the
// latest schema.
func Open(ctx context.Context, path string, logger logging.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if _, err := filex.EnsureDir(dir); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.Migrations)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate local store: %w", err)
	}

	s := &Store{
		db:       db,
		path:     path,
		provider: provider,
		logger:   logger.With("module", "store"),
		hub:      newHub(),
	}
	return s, nil
}

// Close stops live queries and closes the database.
func (s *Store) Close() error {
	s.hub.closeAll()
	return s.db.Close()
}

// DB exposes the handle for read-only helpers such as backups.
func (s *Store) DB() *sql.DB { return s.db }

// Path is the database file.
func (s *Store) Path() string { return s.path }

// SchemaVersion is the last applied migration.
func (s *Store) SchemaVersion(ctx context.Context) (int64, error) {
	return s.provider.GetDBVersion(ctx)
}

// Metadata returns the key/value repository outside of any transaction.
func (s *Store) Metadata() metadata.Repository {
	return metadata.NewSQLiteRepository(s.db)
}

// Get returns a record including tombstones, or common.ErrNotFound.
func (s *Store) Get(ctx context.Context, table models.Table, id string) (*models.Record, error) {
	repo, err := records.NewSQLiteRepository(s.db, table)
	if err != nil {
		return nil, err
	}
	return repo.Get(ctx, id)
}

// Query returns the records of table that match f.
func (s *Store) Query(ctx context.Context, table models.Table, f Filter) ([]models.Record, error) {
	repo, err := records.NewSQLiteRepository(s.db, table)
	if err != nil {
		return nil, err
	}
	return repo.Query(ctx, f)
}

// Put upserts a single record in its own transaction.
func (s *Store) Put(ctx context.Context, table models.Table, r models.Record) error {
	return s.RunInTransaction(ctx, []models.Table{table}, func(ctx context.Context, tx *Tx) error {
		return tx.Put(ctx, table, r)
	})
}

// RunInTransaction runs fn in a single write transaction scoped to tables.
// Either every write made through tx is committed or none is. Subscribers of
// the tables that were written are notified after the commit.
func (s *Store) RunInTransaction(ctx context.Context, tables []models.Table, fn func(ctx context.Context, tx *Tx) error) (err error) {
	scope := make(map[models.Table]struct{}, len(tables))
	for _, t := range tables {
		if _, err := models.LookupTable(t); err != nil {
			return err
		}
		scope[t] = struct{}{}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	tx := &Tx{tx: sqlTx, scope: scope, touched: map[models.Table]struct{}{}}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
			}
			return
		}
		if err = sqlTx.Commit(); err != nil {
			err = fmt.Errorf("commit tx: %w", err)
			return
		}
		if len(tx.touched) > 0 {
			s.logger.Debug(ctx, "transaction committed", "tables", tableList(tx.touched))
			s.hub.publish(tx.touched)
		}
	}()

	err = fn(ctx, tx)
	return err
}

// CountDirty returns, per table, how many records wait for a push.
func (s *Store) CountDirty(ctx context.Context) (map[models.Table]int, error) {
	out := make(map[models.Table]int, len(models.Tables))
	for _, t := range models.Tables {
		repo, err := records.NewSQLiteRepository(s.db, t.Name)
		if err != nil {
			return nil, err
		}
		n, err := repo.CountDirty(ctx)
		if err != nil {
			return nil, err
		}
		out[t.Name] = n
	}
	return out, nil
}

// Watermarks returns the pull position of every table pulled so far.
func (s *Store) Watermarks(ctx context.Context) (map[models.Table]int64, error) {
	raw, err := s.Metadata().ListPrefix(ctx, metadata.WatermarkPrefix)
	if err != nil {
		return nil, err
	}
	out := make(map[models.Table]int64, len(raw))
	for t, v := range raw {
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("watermark of %s: %w", t, err)
		}
		out[models.Table(t)] = n
	}
	return out, nil
}

// ResolveNames maps ids of table to their display label. Ids that are
// missing or tombstoned map to common.NotAvailable.
func (s *Store) ResolveNames(ctx context.Context, table models.Table, ids []string) (map[string]string, error) {
	spec, err := models.LookupTable(table)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(ids))
	want := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, seen := out[id]; seen {
			continue
		}
		out[id] = common.NotAvailable
		if id != "" {
			want = append(want, id)
		}
	}

	recs, err := s.Query(ctx, table, ByIDs(want...))
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		if label := r.Fields.String(spec.Label); label != "" {
			out[r.ID] = label
		}
	}
	return out, nil
}

// Snapshot writes a consistent copy of the database to path, which must not
// exist yet.
func (s *Store) Snapshot(ctx context.Context, path string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return fmt.Errorf("snapshot to %s: %w", path, err)
	}
	return nil
}

func tableList(set map[models.Table]struct{}) []string {
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, string(t))
	}
	slices.Sort(out)
	return out
}
