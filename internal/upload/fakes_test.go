package upload

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/vulnhunter/internal/store"
	"github.com/kiranshivaraju/vulnhunter/pkg/models"
)

type memStore struct {
	mu      sync.Mutex
	uploads map[string]*models.Upload
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

func (m *memStore) get(id string) *models.Upload {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.uploads[id]
	if !ok {
		return nil
	}
	return cloneUpload(u)
}

func (m *memStore) put(u *models.Upload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads[u.ID] = cloneUpload(u)
}

// touch bumps the stored version, as a write from another request would.
func (m *memStore) touch(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
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
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.uploads[u.ID]; ok {
		return store.ErrDuplicateKey
	}
	u.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	m.uploads[u.ID] = cloneUpload(u)
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
	return nil
}

func (m *memStore) ListActiveUploads(_ context.Context, userID uuid.UUID) ([]*models.Upload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Upload
	for _, u := range m.uploads {
		if u.UserID != userID {
			continue
		}
		switch u.Status {
		case models.UploadStatusInitiated, models.UploadStatusInProgress, models.UploadStatusQueued:
			out = append(out, cloneUpload(u))
		}
	}
	return out, nil
}

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

// fakeQueue is a plain FIFO of ids.
type fakeQueue struct {
	ids       []string
	cancelled []string
}

func (q *fakeQueue) Enqueue(id string) int {
	q.ids = append(q.ids, id)
	return len(q.ids) - 1
}

func (q *fakeQueue) Cancel(id string) {
	q.cancelled = append(q.cancelled, id)
	if i := slices.Index(q.ids, id); i >= 0 {
		q.ids = slices.Delete(q.ids, i, i+1)
	}
}

func (q *fakeQueue) Position(id string) int {
	return slices.Index(q.ids, id)
}

var (
	_ store.Store = (*memStore)(nil)
	_ Queue       = (*fakeQueue)(nil)
)
