package scan

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/vulnhunter/internal/store"
	"github.com/kiranshivaraju/vulnhunter/pkg/models"
)

// memStore is an in-memory store.Store holding upload records only.
type memStore struct {
	mu      sync.Mutex
	uploads map[string]*models.Upload
	saves   int
}

func newMemStore() *memStore {
	return &memStore{uploads: map[string]*models.Upload{}}
}

func cloneUpload(u *models.Upload) *models.Upload {
	c := *u
	c.UploadedFiles = slices.Clone(u.UploadedFiles)
	c.Diagnostics = slices.Clone(u.Diagnostics)
	return &c
}

func (m *memStore) put(u *models.Upload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads[u.ID] = cloneUpload(u)
}

func (m *memStore) get(id string) *models.Upload {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.uploads[id]
	if !ok {
		return nil
	}
	return cloneUpload(u)
}

// setStatus changes a record behind the runner's back, as a concurrent
// request would.
func (m *memStore) setStatus(id string, status models.UploadStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads[id].Status = status
	m.uploads[id].UpdatedAt = m.uploads[id].UpdatedAt.Add(time.Second)
}

func (m *memStore) Ping(_ context.Context) error { return nil }
func (m *memStore) GetAPIKeyByPrefix(_ context.Context, _ string) ([]*models.APIKey, error) {
	return nil, nil
}
func (m *memStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }
func (m *memStore) CreateAPIKey(_ context.Context, _ *models.APIKey) error    { return nil }
func (m *memStore) ListAPIKeys(_ context.Context, _ uuid.UUID) ([]*models.APIKey, error) {
	return nil, nil
}
func (m *memStore) RevokeAPIKey(_ context.Context, _ uuid.UUID, _ uuid.UUID) error { return nil }

func (m *memStore) CreateUpload(_ context.Context, u *models.Upload) error {
	m.put(u)
	return nil
}

func (m *memStore) GetUpload(_ context.Context, id string) (*models.Upload, error) {
	if u := m.get(id); u != nil {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func (m *memStore) SaveUpload(_ context.Context, u *models.Upload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.uploads[u.ID]
	if !ok {
		return store.ErrNotFound
	}
	if !cur.UpdatedAt.Equal(u.UpdatedAt) {
		return store.ErrConflict
	}
	u.UpdatedAt = u.UpdatedAt.Add(time.Microsecond)
	m.uploads[u.ID] = cloneUpload(u)
	m.saves++
	return nil
}

func (m *memStore) ListActiveUploads(_ context.Context, _ uuid.UUID) ([]*models.Upload, error) {
	return nil, nil
}

// memCache records keys written through the cache.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memCache) Ping(_ context.Context) error { return nil }

func (m *memCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

var _ store.Store = (*memStore)(nil)
