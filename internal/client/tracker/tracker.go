// Package tracker is the only write path used by UI code. Every mutation is
// stamped with fresh sync metadata and leaves the record dirty, so the push
// pipeline will pick it up.
package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/farmsync/internal/client/models"
	"github.com/dmitrijs2005/farmsync/internal/client/store"
	"github.com/dmitrijs2005/farmsync/internal/common"
	"github.com/dmitrijs2005/farmsync/internal/logging"
	"github.com/google/uuid"
)

// Option customizes a Tracker.
type Option func(*Tracker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithIDSource replaces uuid.NewString.
func WithIDSource(newID func() string) Option {
	return func(t *Tracker) { t.newID = newID }
}

// WithOnChange registers a hook that runs after every committed mutation.
func WithOnChange(fn func(table models.Table)) Option {
	return func(t *Tracker) { t.onChange = fn }
}

type Tracker struct {
	store    *store.Store
	logger   logging.Logger
	now      func() time.Time
	newID    func() string
	onChange func(models.Table)
}

func New(s *store.Store, logger logging.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		store:  s,
		logger: logger.With("module", "tracker"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// SetOnChange replaces the post-commit hook. Wiring code uses it when the
// orchestrator is built after the tracker.
func (t *Tracker) SetOnChange(fn func(models.Table)) {
	t.onChange = fn
}

// Create stores a new dirty record built from input.
func (t *Tracker) Create(ctx context.Context, table models.Table, input models.Fields) (*models.Record, error) {
	rec, err := models.StampForCreate(input, t.now(), t.newID())
	if err != nil {
		return nil, err
	}

	if err := t.store.Put(ctx, table, rec); err != nil {
		return nil, fmt.Errorf("create %s: %w", table, err)
	}

	t.logger.Debug(ctx, "record created", "table", table, "id", rec.ID)
	t.changed(table)
	return &rec, nil
}

// Update merges patch into a live record.
func (t *Tracker) Update(ctx context.Context, table models.Table, id string, patch models.Fields) (*models.Record, error) {
	rec, err := t.mutate(ctx, table, id, func(existing models.Record, now time.Time) (models.Record, error) {
		return models.StampForUpdate(existing, patch, now)
	})
	if err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", table, id, err)
	}

	t.logger.Debug(ctx, "record updated", "table", table, "id", id, "last_modified", rec.LastModified)
	return rec, nil
}

// SoftDelete tombstones a live record. The row stays in the store so the
// deletion can be pushed.
func (t *Tracker) SoftDelete(ctx context.Context, table models.Table, id string, extra models.Fields) (*models.Record, error) {
	rec, err := t.mutate(ctx, table, id, func(existing models.Record, now time.Time) (models.Record, error) {
		return models.StampForDelete(existing, extra, now)
	})
	if err != nil {
		return nil, fmt.Errorf("delete %s/%s: %w", table, id, err)
	}

	t.logger.Debug(ctx, "record tombstoned", "table", table, "id", id)
	return rec, nil
}

// MarkForSync applies patch to a record, or tombstones it when isDelete is
// set, and leaves it queued for the next push.
func (t *Tracker) MarkForSync(ctx context.Context, table models.Table, id string, patch models.Fields, isDelete bool) (*models.Record, error) {
	if isDelete {
		return t.SoftDelete(ctx, table, id, patch)
	}
	return t.Update(ctx, table, id, patch)
}

func (t *Tracker) mutate(ctx context.Context, table models.Table, id string, stamp func(models.Record, time.Time) (models.Record, error)) (*models.Record, error) {
	var out models.Record

	err := t.store.RunInTransaction(ctx, []models.Table{table}, func(ctx context.Context, tx *store.Tx) error {
		existing, err := tx.Get(ctx, table, id)
		if err != nil {
			return err
		}
		if existing.IsDeleted {
			return common.ErrNotFound
		}

		out, err = stamp(*existing, t.now())
		if err != nil {
			return err
		}
		return tx.Put(ctx, table, out)
	})
	if err != nil {
		return nil, err
	}

	t.changed(table)
	return &out, nil
}

func (t *Tracker) changed(table models.Table) {
	if t.onChange != nil {
		t.onChange(table)
	}
}
