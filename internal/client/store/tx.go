package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/farmsync/internal/client/models"
	"github.com/dmitrijs2005/farmsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/farmsync/internal/client/repositories/records"
	"github.com/dmitrijs2005/farmsync/internal/common"
)

// Tx is the handle passed to RunInTransaction callbacks. It only allows
// access to the tables the transaction was opened for.
type Tx struct {
	tx      *sql.Tx
	scope   map[models.Table]struct{}
	touched map[models.Table]struct{}
}

func (t *Tx) repo(table models.Table) (*records.SQLiteRepository, error) {
	if _, ok := t.scope[table]; !ok {
		return nil, fmt.Errorf("%w: table %q is not part of this transaction", common.ErrConstraint, table)
	}
	return records.NewSQLiteRepository(t.tx, table)
}

func (t *Tx) Get(ctx context.Context, table models.Table, id string) (*models.Record, error) {
	r, err := t.repo(table)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

func (t *Tx) Query(ctx context.Context, table models.Table, f Filter) ([]models.Record, error) {
	r, err := t.repo(table)
	if err != nil {
		return nil, err
	}
	return r.Query(ctx, f)
}

func (t *Tx) Put(ctx context.Context, table models.Table, rec models.Record) error {
	r, err := t.repo(table)
	if err != nil {
		return err
	}
	if err := r.Upsert(ctx, rec); err != nil {
		return err
	}
	t.touched[table] = struct{}{}
	return nil
}

// MarkSynced sets _synced=1 when the stored _last_modified still equals
// lastModified. It reports whether the row was updated.
func (t *Tx) MarkSynced(ctx context.Context, table models.Table, id string, lastModified int64) (bool, error) {
	r, err := t.repo(table)
	if err != nil {
		return false, err
	}
	ok, err := r.MarkSynced(ctx, id, lastModified)
	if ok {
		t.touched[table] = struct{}{}
	}
	return ok, err
}

// Metadata is the key/value repository bound to this transaction.
func (t *Tx) Metadata() metadata.Repository {
	return metadata.NewSQLiteRepository(t.tx)
}

// CountDirty counts the records of table that wait for a push.
func (t *Tx) CountDirty(ctx context.Context, table models.Table) (int, error) {
	r, err := t.repo(table)
	if err != nil {
		return 0, err
	}
	return r.CountDirty(ctx)
}

// Clear removes every record of table, tombstones included.
func (t *Tx) Clear(ctx context.Context, table models.Table) error {
	r, err := t.repo(table)
	if err != nil {
		return err
	}
	if err := r.DeleteAll(ctx); err != nil {
		return err
	}
	t.touched[table] = struct{}{}
	return nil
}
