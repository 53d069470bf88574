// Package syncer moves records between the local store and the remote
// service. The Pusher sends dirty records, the Puller merges remote changes
// with last-write-wins, and the Orchestrator schedules and serializes both.
package syncer

import (
	"context"

	"github.com/dmitrijs2005/farmsync/internal/client/models"
)

// Remote is the consumed side of the sync protocol. Implementations apply
// their own per-call timeout.
type Remote interface {
	// Push sends full records of one table and returns one ack per record.
	Push(ctx context.Context, table models.Table, batch []models.Record) ([]models.Ack, error)

	// Pull returns up to limit records of table changed after since,
	// tombstones included.
	Pull(ctx context.Context, table models.Table, since int64, limit int) (*models.PullPage, error)
}
