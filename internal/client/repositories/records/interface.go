// Package records persists envelope-stamped records in the per-entity tables
// of the local store.
package records

import (
	"context"

	"github.com/dmitrijs2005/farmsync/internal/client/models"
)

// Repository reads and writes one entity table.
type Repository interface {
	// Get returns the record with id, tombstoned or not, or common.ErrNotFound.
	Get(ctx context.Context, id string) (*models.Record, error)

	// Query returns the records matching f.
	Query(ctx context.Context, f Filter) ([]models.Record, error)

	// Upsert inserts r or replaces the stored row with the same id.
	Upsert(ctx context.Context, r models.Record) error

	// MarkSynced flips _synced to 1 only if the row still carries
	// lastModified. It reports whether a row was updated.
	MarkSynced(ctx context.Context, id string, lastModified int64) (bool, error)

	// CountDirty counts rows that still have to be pushed.
	CountDirty(ctx context.Context) (int, error)

	// DeleteAll drops every row of the table.
	DeleteAll(ctx context.Context) error
}

// Filter narrows a query. The zero value selects every live record.
type Filter struct {
	// IncludeDeleted also returns tombstones.
	IncludeDeleted bool
	// IDs restricts the result to the given ids. A non-nil empty slice
	// matches nothing.
	IDs []string
	// Where holds equality predicates on domain fields.
	Where map[string]any
	// DirtyOnly keeps records whose _synced is 0 or unknown.
	DirtyOnly bool
	// OrderBy is an envelope column or a domain field. Defaults to created_at.
	OrderBy string
	Desc    bool
	Limit   int
}

// Active selects live records.
func Active() Filter { return Filter{} }

// ByIDs selects live records with the given ids.
func ByIDs(ids ...string) Filter {
	if ids == nil {
		ids = []string{}
	}
	return Filter{IDs: ids}
}
