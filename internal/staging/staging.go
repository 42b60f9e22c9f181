// Package staging holds received file contents in memory between upload and scan.
package staging

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/kiranshivaraju/vulnhunter/pkg/models"
	"github.com/patrickmn/go-cache"
)

// ErrNotOpen is returned when files are added for an upload that has no staging entry.
var ErrNotOpen = errors.New("upload was not initiated correctly")

// Store maps upload ids to their received files. Entries idle for longer than
// the configured TTL are dropped. Safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	files *cache.Cache
}

// New creates a Store. A ttl of zero or less keeps entries until discarded.
func New(ttl time.Duration) *Store {
	if ttl <= 0 {
		return &Store{files: cache.New(cache.NoExpiration, 0)}
	}
	return &Store{files: cache.New(ttl, 10*time.Minute)}
}

// Open creates an empty entry for id, replacing any existing one.
func (s *Store) Open(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files.Set(id, []models.UploadedFile{}, cache.DefaultExpiration)
}

// Add appends f to id's entry and returns the new file count.
func (s *Store) Add(id string, f models.UploadedFile) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	x, ok := s.files.Get(id)
	if !ok {
		return 0, ErrNotOpen
	}
	files := append(x.([]models.UploadedFile), f)
	s.files.Set(id, files, cache.DefaultExpiration)
	return len(files), nil
}

// Files returns a copy of id's files. The second result is false if id has no entry.
func (s *Store) Files(id string) ([]models.UploadedFile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	x, ok := s.files.Get(id)
	if !ok {
		return nil, false
	}
	return slices.Clone(x.([]models.UploadedFile)), true
}

// Discard drops id's entry.
func (s *Store) Discard(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files.Delete(id)
}

// Len returns the number of open entries, including expired ones not yet purged.
func (s *Store) Len() int {
	return s.files.ItemCount()
}
