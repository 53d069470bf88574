package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/farmsync/internal/client/models"
	"github.com/dmitrijs2005/farmsync/internal/client/store"
	"github.com/dmitrijs2005/farmsync/internal/common"
	"github.com/dmitrijs2005/farmsync/internal/logging"
)

const DefaultPushBatchSize = 100

// PushReport summarizes one push pass over all tables.
type PushReport struct {
	// Pushed counts records sent to the remote.
	Pushed int
	// Acked counts records that became synced.
	Acked int
	// Raced counts accepted records that were edited again while the
	// batch was in flight. They stay dirty.
	Raced int
	// Rejected counts records the remote refused. They stay dirty.
	Rejected int
	Failures []error
}

type Pusher struct {
	store     *store.Store
	remote    Remote
	logger    logging.Logger
	batchSize int
}

func NewPusher(s *store.Store, remote Remote, logger logging.Logger, batchSize int) *Pusher {
	if batchSize <= 0 {
		batchSize = DefaultPushBatchSize
	}
	return &Pusher{
		store:     s,
		remote:    remote,
		logger:    logger.With("module", "push"),
		batchSize: batchSize,
	}
}

// Push sends every dirty record, table by table. A failing table does not
// stop the others; all failures are returned joined and listed in the report.
// Records involved in a failure keep _synced=0.
func (p *Pusher) Push(ctx context.Context) (PushReport, error) {
	var rep PushReport

	for _, table := range models.TableNames() {
		if err := p.pushTable(ctx, table, &rep); err != nil {
			p.logger.Warn(ctx, "push failed", "table", table, "error", err)
			rep.Failures = append(rep.Failures, err)
		}
	}

	return rep, errors.Join(rep.Failures...)
}

func (p *Pusher) pushTable(ctx context.Context, table models.Table, rep *PushReport) error {
	dirty, err := p.store.Query(ctx, table, store.Filter{
		IncludeDeleted: true,
		DirtyOnly:      true,
		OrderBy:        models.KeyLastModified,
	})
	if err != nil {
		return fmt.Errorf("read dirty %s: %w", table, err)
	}
	if len(dirty) == 0 {
		return nil
	}

	for start := 0; start < len(dirty); start += p.batchSize {
		batch := dirty[start:min(start+p.batchSize, len(dirty))]

		acks, err := p.remote.Push(ctx, table, batch)
		if err != nil {
			return &common.TransportError{Op: "push", Table: string(table), Err: err}
		}
		rep.Pushed += len(batch)

		if err := p.applyAcks(ctx, table, batch, acks, rep); err != nil {
			return err
		}
	}

	p.logger.Debug(ctx, "table pushed", "table", table, "records", len(dirty))
	return nil
}

// applyAcks marks accepted records synced, but only those whose stored
// _last_modified still equals the value that was sent.
func (p *Pusher) applyAcks(ctx context.Context, table models.Table, batch []models.Record, acks []models.Ack, rep *PushReport) error {
	sent := make(map[string]int64, len(batch))
	for _, r := range batch {
		sent[r.ID] = r.LastModified
	}

	var acked, raced, rejected int
	err := p.store.RunInTransaction(ctx, []models.Table{table}, func(ctx context.Context, tx *store.Tx) error {
		acked, raced, rejected = 0, 0, 0
		for _, ack := range acks {
			lm, ok := sent[ack.ID]
			if !ok {
				p.logger.Warn(ctx, "ack for a record that was not sent", "table", table, "id", ack.ID)
				continue
			}
			if !ack.Accepted {
				rejected++
				p.logger.Warn(ctx, "record rejected by remote", "table", table, "id", ack.ID, "reason", ack.Reason)
				continue
			}

			marked, err := tx.MarkSynced(ctx, table, ack.ID, lm)
			if err != nil {
				return err
			}
			if !marked {
				raced++
				p.logger.Debug(ctx, "record changed during push, left dirty", "table", table, "id", ack.ID)
				continue
			}
			acked++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("apply acks for %s: %w", table, err)
	}

	rep.Acked += acked
	rep.Raced += raced
	rep.Rejected += rejected
	return nil
}
