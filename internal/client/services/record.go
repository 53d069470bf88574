package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/farmsync/internal/client/models"
	"github.com/dmitrijs2005/farmsync/internal/client/store"
	"github.com/dmitrijs2005/farmsync/internal/client/tracker"
	"github.com/dmitrijs2005/farmsync/internal/common"
)

// CropPlanView is a crop plan with its references resolved to names.
type CropPlanView struct {
	ID     string
	Name   string
	Status string
	Crop   string
	Plot   string
	Season string
}

// RecordService is what the shell edits and reads records through. Writes
// go through the tracker so they are stamped and queued for push.
type RecordService struct {
	store   *store.Store
	tracker *tracker.Tracker
}

func NewRecordService(s *store.Store, t *tracker.Tracker) *RecordService {
	return &RecordService{store: s, tracker: t}
}

func (s *RecordService) Add(ctx context.Context, table models.Table, fields models.Fields) (*models.Record, error) {
	return s.tracker.Create(ctx, table, fields)
}

func (s *RecordService) Edit(ctx context.Context, table models.Table, id string, patch models.Fields) (*models.Record, error) {
	return s.tracker.Update(ctx, table, id, patch)
}

func (s *RecordService) Delete(ctx context.Context, table models.Table, id string) (*models.Record, error) {
	return s.tracker.SoftDelete(ctx, table, id, nil)
}

// Get returns a live record. Tombstones read as common.ErrNotFound.
func (s *RecordService) Get(ctx context.Context, table models.Table, id string) (*models.Record, error) {
	r, err := s.store.Get(ctx, table, id)
	if err != nil {
		return nil, err
	}
	if r.IsDeleted {
		return nil, fmt.Errorf("%s/%s: %w", table, id, common.ErrNotFound)
	}
	return r, nil
}

// List returns the live records of table ordered by creation.
func (s *RecordService) List(ctx context.Context, table models.Table) ([]models.Record, error) {
	return s.store.Query(ctx, table, store.Active())
}

// PendingCounts reports, per table, how many records wait for a push.
func (s *RecordService) PendingCounts(ctx context.Context) (map[models.Table]int, error) {
	return s.store.CountDirty(ctx)
}

// WatchPending emits the number of records waiting for a push, once now and
// again after every commit. The channel closes when ctx ends or the store
// closes. Counts that fail are skipped.
func (s *RecordService) WatchPending(ctx context.Context) <-chan int {
	sub := s.store.Watch(models.TableNames()...)
	out := make(chan int, 1)

	go func() {
		defer close(out)
		defer sub.Close()

		for {
			if counts, err := s.store.CountDirty(ctx); err == nil {
				total := 0
				for _, n := range counts {
					total += n
				}
				select {
				case out <- total:
				case <-ctx.Done():
					return
				}
			}

			select {
			case _, ok := <-sub.C:
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// Watermarks reports, per table, the server version pulled up to.
func (s *RecordService) Watermarks(ctx context.Context) (map[models.Table]int64, error) {
	return s.store.Watermarks(ctx)
}

// CropPlanViews lists live crop plans by name with crop, plot and season
// names. References to missing or deleted records show as common.NotAvailable.
func (s *RecordService) CropPlanViews(ctx context.Context) ([]CropPlanView, error) {
	recs, err := s.store.Query(ctx, models.TableCropPlans, store.Filter{OrderBy: "name"})
	if err != nil {
		return nil, err
	}

	plans := make([]models.CropPlan, 0, len(recs))
	var cropIDs, plotIDs, seasonIDs []string
	for _, r := range recs {
		p, err := models.Decode[models.CropPlan](r)
		if err != nil {
			return nil, fmt.Errorf("crop plan %s: %w", r.ID, err)
		}
		plans = append(plans, p)
		cropIDs = append(cropIDs, p.CropID)
		plotIDs = append(plotIDs, p.PlotID)
		seasonIDs = append(seasonIDs, deref(p.SeasonID))
	}

	crops, err := s.store.ResolveNames(ctx, models.TableCrops, cropIDs)
	if err != nil {
		return nil, err
	}
	plots, err := s.store.ResolveNames(ctx, models.TablePlots, plotIDs)
	if err != nil {
		return nil, err
	}
	seasons, err := s.store.ResolveNames(ctx, models.TableSeasons, seasonIDs)
	if err != nil {
		return nil, err
	}

	out := make([]CropPlanView, 0, len(plans))
	for i, p := range plans {
		out = append(out, CropPlanView{
			ID:     recs[i].ID,
			Name:   p.Name,
			Status: p.Status,
			Crop:   crops[p.CropID],
			Plot:   plots[p.PlotID],
			Season: seasons[deref(p.SeasonID)],
		})
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
