package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/farmsync/internal/client/models"
	"github.com/dmitrijs2005/farmsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/farmsync/internal/client/store"
	"github.com/dmitrijs2005/farmsync/internal/common"
	"github.com/dmitrijs2005/farmsync/internal/logging"
)

const DefaultPullPageSize = 200

// PullReport summarizes one pull pass over all tables.
type PullReport struct {
	Pages       int
	Received    int
	Inserted    int
	Overwritten int
	KeptLocal   int
	Conflicts   []*common.ConflictObserved
	Failures    []error
}

type Puller struct {
	store    *store.Store
	remote   Remote
	logger   logging.Logger
	pageSize int
}

func NewPuller(s *store.Store, remote Remote, logger logging.Logger, pageSize int) *Puller {
	if pageSize <= 0 {
		pageSize = DefaultPullPageSize
	}
	return &Puller{
		store:    s,
		remote:   remote,
		logger:   logger.With("module", "pull"),
		pageSize: pageSize,
	}
}

// Pull fetches the changes of every table since its watermark and merges
// them into the store.
func (p *Puller) Pull(ctx context.Context) (PullReport, error) {
	var rep PullReport

	for _, table := range models.TableNames() {
		if err := p.pullTable(ctx, table, &rep); err != nil {
			p.logger.Warn(ctx, "pull failed", "table", table, "error", err)
			rep.Failures = append(rep.Failures, err)
		}
	}

	return rep, errors.Join(rep.Failures...)
}

// Watermark returns the pull position of table.
func (p *Puller) Watermark(ctx context.Context, table models.Table) (int64, error) {
	return p.store.Metadata().GetInt64(ctx, metadata.WatermarkKey(string(table)))
}

func (p *Puller) pullTable(ctx context.Context, table models.Table, rep *PullReport) error {
	since, err := p.Watermark(ctx, table)
	if err != nil {
		return fmt.Errorf("read watermark of %s: %w", table, err)
	}

	for {
		page, err := p.remote.Pull(ctx, table, since, p.pageSize)
		if err != nil {
			return &common.TransportError{Op: "pull", Table: string(table), Err: err}
		}

		if err := p.ApplyPage(ctx, table, since, page, rep); err != nil {
			return err
		}

		if !page.HasMore || len(page.Records) == 0 {
			return nil
		}
		if page.Watermark <= since {
			p.logger.Warn(ctx, "remote reported more data without advancing the watermark", "table", table, "since", since)
			return nil
		}
		since = page.Watermark
	}
}

// ApplyPage merges one page into table and advances the watermark from since
// to page.Watermark in the same transaction. On error nothing is applied.
// Applying the same page again leaves the store unchanged.
func (p *Puller) ApplyPage(ctx context.Context, table models.Table, since int64, page *models.PullPage, rep *PullReport) error {
	if rep == nil {
		rep = &PullReport{}
	}

	var (
		inserted, overwritten, kept int
		conflicts                   []*common.ConflictObserved
	)

	err := p.store.RunInTransaction(ctx, []models.Table{table}, func(ctx context.Context, tx *store.Tx) error {
		inserted, overwritten, kept = 0, 0, 0
		conflicts = nil

		for _, rr := range page.Records {
			local, err := tx.Get(ctx, table, rr.Record.ID)
			if err != nil && !errors.Is(err, common.ErrNotFound) {
				return err
			}

			d := Reconcile(local, rr)
			if d.Conflict() {
				conflicts = append(conflicts, &common.ConflictObserved{
					Table:        string(table),
					ID:           rr.Record.ID,
					LocalMillis:  local.LastModified,
					RemoteMillis: remoteMillis(rr),
					RemoteWon:    d == OverwriteConflict,
				})
			}

			switch d {
			case KeepLocal:
				kept++
				continue
			case Insert:
				inserted++
			default:
				overwritten++
			}

			if err := tx.Put(ctx, table, asLocal(rr)); err != nil {
				return err
			}
		}

		if page.Watermark > since {
			return tx.Metadata().SetInt64(ctx, metadata.WatermarkKey(string(table)), page.Watermark)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("apply %s page after %d: %w", table, since, err)
	}

	for _, c := range conflicts {
		p.logger.Warn(ctx, "conflict resolved", "error", c)
	}

	rep.Pages++
	rep.Received += len(page.Records)
	rep.Inserted += inserted
	rep.Overwritten += overwritten
	rep.KeptLocal += kept
	rep.Conflicts = append(rep.Conflicts, conflicts...)
	return nil
}
