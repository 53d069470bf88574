package syncer

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/farmsync/internal/client/models"
	"github.com/dmitrijs2005/farmsync/internal/client/store"
	"github.com/dmitrijs2005/farmsync/internal/client/tracker"
	"github.com/dmitrijs2005/farmsync/internal/logging"
	"github.com/stretchr/testify/require"
)

// fakeRemote keeps records per table with a global version counter, like
// the sync server does per user.
type fakeRemote struct {
	mu      sync.Mutex
	records map[models.Table]map[string]models.RemoteRecord
	version int64
	reject  map[string]string
	pushErr error
	pullErr error
	pushes  []int
	pulls   map[models.Table]int
	onPush  func(table models.Table, batch []models.Record)
	onPull  func(table models.Table)
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		records: map[models.Table]map[string]models.RemoteRecord{},
		reject:  map[string]string{},
		pulls:   map[models.Table]int{},
	}
}

func (f *fakeRemote) Push(ctx context.Context, table models.Table, batch []models.Record) ([]models.Ack, error) {
	if f.onPush != nil {
		f.onPush(table, batch)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.pushErr != nil {
		return nil, f.pushErr
	}
	f.pushes = append(f.pushes, len(batch))

	acks := make([]models.Ack, 0, len(batch))
	for _, r := range batch {
		if reason, ok := f.reject[r.ID]; ok {
			acks = append(acks, models.Ack{ID: r.ID, Reason: reason})
			continue
		}
		f.version++
		rec := r.Clone()
		rec.Synced = models.SyncUnknown
		f.table(table)[r.ID] = models.RemoteRecord{Record: rec, RemoteModified: r.LastModified, Version: f.version}
		acks = append(acks, models.Ack{ID: r.ID, Accepted: true, RemoteModified: r.LastModified, Version: f.version})
	}
	return acks, nil
}

func (f *fakeRemote) Pull(ctx context.Context, table models.Table, since int64, limit int) (*models.PullPage, error) {
	if f.onPull != nil {
		f.onPull(table)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.pulls[table]++
	if f.pullErr != nil {
		return nil, f.pullErr
	}

	var out []models.RemoteRecord
	for _, r := range f.records[table] {
		if r.Version > since {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })

	page := &models.PullPage{Watermark: since}
	if len(out) > limit {
		out = out[:limit]
		page.HasMore = true
	}
	if len(out) > 0 {
		page.Watermark = out[len(out)-1].Version
	}
	page.Records = out
	return page, nil
}

func (f *fakeRemote) table(t models.Table) map[string]models.RemoteRecord {
	m, ok := f.records[t]
	if !ok {
		m = map[string]models.RemoteRecord{}
		f.records[t] = m
	}
	return m
}

// put stores a remote-side edit.
func (f *fakeRemote) put(table models.Table, rec models.Record, modified int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.version++
	rec.LastModified = modified
	rec.Synced = models.SyncUnknown
	f.table(table)[rec.ID] = models.RemoteRecord{Record: rec, RemoteModified: modified, Version: f.version}
}

func (f *fakeRemote) setPushErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushErr = err
}

func (f *fakeRemote) setPullErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pullErr = err
}

func (f *fakeRemote) pullCount(t models.Table) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pulls[t]
}

type env struct {
	store   *store.Store
	tracker *tracker.Tracker
	remote  *fakeRemote
	clock   time.Time
}

var t0 = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

func newEnv(t *testing.T) *env {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "farm.db"), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	e := &env{store: s, remote: newFakeRemote(), clock: t0}
	e.tracker = tracker.New(s, logging.Discard(), tracker.WithClock(func() time.Time { return e.clock }))
	return e
}

func (e *env) advance(d time.Duration) {
	e.clock = e.clock.Add(d)
}

func (e *env) create(t *testing.T, table models.Table, f models.Fields) models.Record {
	t.Helper()
	r, err := e.tracker.Create(context.Background(), table, f)
	require.NoError(t, err)
	return *r
}

func (e *env) get(t *testing.T, table models.Table, id string) models.Record {
	t.Helper()
	r, err := e.store.Get(context.Background(), table, id)
	require.NoError(t, err)
	return *r
}
