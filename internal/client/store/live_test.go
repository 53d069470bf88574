package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/farmsync/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, c <-chan []models.Record) []models.Record {
	t.Helper()
	select {
	case recs, ok := <-c:
		require.True(t, ok, "channel closed")
		return recs
	case <-time.After(2 * time.Second):
		t.Fatal("no live query result")
		return nil
	}
}

func TestWatch_SignalsOnlyAfterCommitOfWatchedTable(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	sub := s.Watch(models.TablePlots)
	defer sub.Close()

	require.NoError(t, s.Put(ctx, models.TableCrops, newRecord(t, "c1", models.Fields{"name": "Kale"})))
	select {
	case <-sub.C:
		t.Fatal("unexpected signal for another table")
	default:
	}

	_ = s.RunInTransaction(ctx, []models.Table{models.TablePlots}, func(ctx context.Context, tx *Tx) error {
		require.NoError(t, tx.Put(ctx, models.TablePlots, newRecord(t, "p1", models.Fields{"name": "A"})))
		return errors.New("abort")
	})
	select {
	case <-sub.C:
		t.Fatal("rolled back transaction must not notify")
	default:
	}

	require.NoError(t, s.Put(ctx, models.TablePlots, newRecord(t, "p1", models.Fields{"name": "A"})))
	require.NoError(t, s.Put(ctx, models.TablePlots, newRecord(t, "p2", models.Fields{"name": "B"})))

	select {
	case <-sub.C:
	case <-time.After(time.Second):
		t.Fatal("expected a signal")
	}
	select {
	case <-sub.C:
		t.Fatal("signals must coalesce")
	default:
	}
}

func TestLiveQuery_ReEmitsAfterCommits(t *testing.T) {
	s := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := s.LiveQuery(ctx, models.TablePlots, Active())
	require.NoError(t, err)
	assert.Empty(t, receive(t, c))

	require.NoError(t, s.Put(context.Background(), models.TablePlots, newRecord(t, "p1", models.Fields{"name": "North Field"})))
	recs := receive(t, c)
	require.Len(t, recs, 1)
	assert.Equal(t, "North Field", recs[0].Fields.String("name"))

	cancel()
	select {
	case _, ok := <-c:
		for ok {
			_, ok = <-c
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestLiveQuery_UnknownTable(t *testing.T) {
	s := openStore(t)
	_, err := s.LiveQuery(context.Background(), "tractors", Active())
	assert.Error(t, err)
}

func TestClose_EndsSubscriptions(t *testing.T) {
	s := openStore(t)
	sub := s.Watch(models.TablePlots)

	s.hub.closeAll()
	_, ok := <-sub.C
	assert.False(t, ok)
	sub.Close()

	late := s.Watch(models.TablePlots)
	_, ok = <-late.C
	assert.False(t, ok)
}
