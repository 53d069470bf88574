package repomanager

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/farmsync/internal/common"
	"github.com/dmitrijs2005/farmsync/internal/server/models"
	"github.com/dmitrijs2005/farmsync/internal/server/repositories/records"
	"github.com/dmitrijs2005/farmsync/internal/server/repositories/users"
	"github.com/google/uuid"
)

type recordKey struct {
	userID, table, id string
}

type memoryData struct {
	users   map[string]models.User
	byName  map[string]string
	records map[recordKey]models.Record
}

func (d *memoryData) clone() *memoryData {
	return &memoryData{
		users:   maps.Clone(d.users),
		byName:  maps.Clone(d.byName),
		records: maps.Clone(d.records),
	}
}

// MemoryRepositoryManager keeps everything in process memory. WithTx works
// on a copy of the data that replaces the original only on success.
type MemoryRepositoryManager struct {
	mu   *sync.Mutex
	data *memoryData
	inTx bool
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		mu: &sync.Mutex{},
		data: &memoryData{
			users:   map[string]models.User{},
			byName:  map[string]string{},
			records: map[recordKey]models.Record{},
		},
	}
}

func (m *MemoryRepositoryManager) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context) error { return nil }

func (m *MemoryRepositoryManager) Close() error { return nil }

func (m *MemoryRepositoryManager) Users() users.Repository { return memoryUsers{m} }

func (m *MemoryRepositoryManager) Records() records.Repository { return memoryRecords{m} }

func (m *MemoryRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx RepositoryManager) error) error {
	if m.inTx {
		return fn(ctx, m)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &MemoryRepositoryManager{mu: m.mu, data: m.data.clone(), inTx: true}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.data = tx.data
	return nil
}

type memoryUsers struct {
	m *MemoryRepositoryManager
}

func (r memoryUsers) Create(ctx context.Context, user *models.User) (*models.User, error) {
	defer r.m.lock()()

	d := r.m.data
	if _, ok := d.byName[user.UserName]; ok {
		return nil, fmt.Errorf("user %q: %w", user.UserName, common.ErrAlreadyExists)
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = time.Now().UTC()

	d.users[user.ID] = *user
	d.byName[user.UserName] = user.ID
	return user, nil
}

func (r memoryUsers) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	defer r.m.lock()()

	id, ok := r.m.data.byName[login]
	if !ok {
		return nil, common.ErrNotFound
	}
	u := r.m.data.users[id]
	return &u, nil
}

func (r memoryUsers) IncrementCurrentVersion(ctx context.Context, userID string) (int64, error) {
	defer r.m.lock()()

	u, ok := r.m.data.users[userID]
	if !ok {
		return 0, common.ErrNotFound
	}
	u.CurrentVersion++
	r.m.data.users[userID] = u
	return u.CurrentVersion, nil
}

type memoryRecords struct {
	m *MemoryRepositoryManager
}

func (r memoryRecords) Get(ctx context.Context, userID, table, id string) (*models.Record, error) {
	defer r.m.lock()()

	rec, ok := r.m.data.records[recordKey{userID, table, id}]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &rec, nil
}

func (r memoryRecords) Upsert(ctx context.Context, rec *models.Record) error {
	defer r.m.lock()()

	stored := *rec
	stored.Payload = append([]byte(nil), rec.Payload...)
	r.m.data.records[recordKey{rec.UserID, rec.Table, rec.ID}] = stored
	return nil
}

func (r memoryRecords) ListSince(ctx context.Context, userID, table string, since int64, limit int) ([]models.Record, error) {
	defer r.m.lock()()

	var out []models.Record
	for k, rec := range r.m.data.records {
		if k.userID == userID && k.table == table && rec.Version > since {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
