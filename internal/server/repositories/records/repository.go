// Package records stores the synchronized records of every user.
package records

import (
	"context"

	"github.com/dmitrijs2005/farmsync/internal/server/models"
)

type Repository interface {
	// Get returns the stored record or common.ErrNotFound.
	Get(ctx context.Context, userID, table, id string) (*models.Record, error)
	// Upsert inserts r or replaces the stored record with the same key.
	Upsert(ctx context.Context, r *models.Record) error
	// ListSince returns at most limit records of table with a version
	// greater than since, in version order.
	ListSince(ctx context.Context, userID, table string, since int64, limit int) ([]models.Record, error)
}
