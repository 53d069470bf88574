package store

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/farmsync/internal/client/models"
)

// Subscription receives a signal after every commit that wrote one of its
// tables. Signals coalesce: a slow reader sees one pending signal, not many.
type Subscription struct {
	C      <-chan struct{}
	c      chan struct{}
	tables map[models.Table]struct{}
	hub    *hub
	once   sync.Once
}

// Close stops delivery. It is safe to call more than once.
func (sub *Subscription) Close() {
	sub.once.Do(func() { sub.hub.remove(sub) })
}

type hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[*Subscription]struct{})}
}

func (h *hub) add(tables []models.Table) *Subscription {
	c := make(chan struct{}, 1)
	sub := &Subscription{C: c, c: c, tables: make(map[models.Table]struct{}, len(tables)), hub: h}
	for _, t := range tables {
		sub.tables[t] = struct{}{}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(c)
		return sub
	}
	h.subs[sub] = struct{}{}
	return sub
}

func (h *hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.c)
	}
}

func (h *hub) publish(touched map[models.Table]struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		for t := range touched {
			if _, ok := sub.tables[t]; !ok {
				continue
			}
			select {
			case sub.c <- struct{}{}:
			default:
			}
			break
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub.c)
	}
}

// Watch subscribes to commits touching any of tables.
func (s *Store) Watch(tables ...models.Table) *Subscription {
	return s.hub.add(tables)
}

// LiveQuery emits the result of Query now and again after every commit that
// touches table. The channel is closed when ctx ends or the store closes.
// Query errors are logged and the previous result stays current.
func (s *Store) LiveQuery(ctx context.Context, table models.Table, f Filter) (<-chan []models.Record, error) {
	if _, err := models.LookupTable(table); err != nil {
		return nil, err
	}

	sub := s.Watch(table)
	out := make(chan []models.Record, 1)

	go func() {
		defer close(out)
		defer sub.Close()

		for {
			recs, err := s.Query(ctx, table, f)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Warn(ctx, "live query failed", "table", table, "error", err)
			} else {
				select {
				case out <- recs:
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

	return out, nil
}
