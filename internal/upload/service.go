// Package upload implements the upload session operations exposed over HTTP:
// opening a session, receiving files, requesting a scan and reading results.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/vulnhunter/internal/cache"
	"github.com/kiranshivaraju/vulnhunter/internal/lifecycle"
	"github.com/kiranshivaraju/vulnhunter/internal/staging"
	"github.com/kiranshivaraju/vulnhunter/internal/store"
	"github.com/kiranshivaraju/vulnhunter/pkg/models"
)

var (
	ErrNotFound         = errors.New("upload not found")
	ErrNotOwner         = errors.New("upload belongs to another user")
	ErrInvalidNumFiles  = errors.New("invalid number of files")
	ErrMissingDirName   = errors.New("dir_name is required")
	ErrFileLimit        = errors.New("all files for this upload have already been received")
	ErrFileTooLarge     = errors.New("file too large")
	ErrUnsupportedFile  = errors.New("unsupported file type")
	ErrMissingPath      = errors.New("file path is required")
	ErrNotQueued        = errors.New("upload is not queued")
	ErrNoLongerQueued   = errors.New("upload is no longer in the queue")
	ErrConcurrentChange = errors.New("upload was modified by another request")
)

// Queue is the part of the scan runner the service drives.
type Queue interface {
	Enqueue(id string) int
	Cancel(id string)
	Position(id string) int
}

// Limits bounds what a single upload session may contain.
type Limits struct {
	MaxFiles     int
	MaxFileBytes int64
}

// Service coordinates the store, the status cache, file staging and the scan queue.
type Service struct {
	store   store.Store
	cache   cache.Cache
	staging *staging.Store
	queue   Queue
	limits  Limits
}

func NewService(st store.Store, ca cache.Cache, files *staging.Store, q Queue, limits Limits) *Service {
	return &Service{store: st, cache: ca, staging: files, queue: q, limits: limits}
}

// Result is what a client polling for diagnostics sees.
type Result struct {
	Status      models.UploadStatus `json:"status"`
	Position    *int                `json:"position,omitempty"`
	Message     string              `json:"message,omitempty"`
	Diagnostics []models.Diagnostic `json:"diagnostics,omitempty"`
}

// InitSession stops every active upload of the user, removing queued ones
// from the scan queue, and opens a new session expecting numFiles files.
func (s *Service) InitSession(ctx context.Context, userID uuid.UUID, dirName string, numFiles int) (*models.Upload, error) {
	if strings.TrimSpace(dirName) == "" {
		return nil, ErrMissingDirName
	}
	if numFiles < 1 || numFiles > s.limits.MaxFiles {
		return nil, fmt.Errorf("%w: num_files must be between 1 and %d", ErrInvalidNumFiles, s.limits.MaxFiles)
	}

	active, err := s.store.ListActiveUploads(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing active uploads: %w", err)
	}
	for _, u := range active {
		if err := s.stop(ctx, u); err != nil {
			return nil, err
		}
	}

	u := &models.Upload{
		ID:            userID.String() + "-" + uuid.NewString(),
		UserID:        userID,
		UploadTime:    time.Now().UTC(),
		DirName:       dirName,
		NumFiles:      numFiles,
		UploadedFiles: []string{},
		Status:        models.UploadStatusInitiated,
	}
	if err := s.store.CreateUpload(ctx, u); err != nil {
		return nil, fmt.Errorf("creating upload: %w", err)
	}
	s.staging.Open(u.ID)
	s.remember(ctx, u)

	slog.Info("upload session opened", "upload_id", u.ID, "num_files", numFiles, "stopped", len(active))
	return u, nil
}

func (s *Service) stop(ctx context.Context, u *models.Upload) error {
	wasQueued := u.Status == models.UploadStatusQueued
	if err := lifecycle.Apply(u, lifecycle.EventSuperseded); err != nil {
		return err
	}
	if err := s.save(ctx, u); err != nil {
		return fmt.Errorf("stopping upload %s: %w", u.ID, err)
	}
	if wasQueued {
		s.queue.Cancel(u.ID)
	}
	s.staging.Discard(u.ID)
	return nil
}

// AddFile stages one received file. The first file moves the upload from
// initiated to in progress.
func (s *Service) AddFile(ctx context.Context, userID uuid.UUID, id string, f models.UploadedFile) (*models.Upload, error) {
	if err := s.validateFile(f); err != nil {
		return nil, err
	}

	u, err := s.owned(ctx, userID, id, false)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.Apply(u, lifecycle.EventFileReceived); err != nil {
		return nil, err
	}
	if len(u.UploadedFiles) >= u.NumFiles {
		return nil, fmt.Errorf("%w: expected %d", ErrFileLimit, u.NumFiles)
	}
	if _, ok := s.staging.Files(id); !ok {
		return nil, staging.ErrNotOpen
	}

	u.UploadedFiles = append(u.UploadedFiles, f.Path)
	if err := s.save(ctx, u); err != nil {
		return nil, err
	}
	if _, err := s.staging.Add(id, f); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) validateFile(f models.UploadedFile) error {
	if strings.TrimSpace(f.Path) == "" {
		return ErrMissingPath
	}
	if !AllowedExtension(f.Name) {
		return fmt.Errorf("%w: %s", ErrUnsupportedFile, path.Ext(f.Name))
	}
	if s.limits.MaxFileBytes > 0 && int64(len(f.Contents)) > s.limits.MaxFileBytes {
		return fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, s.limits.MaxFileBytes)
	}
	return nil
}

// Scan queues an in-progress upload and returns its queue position.
func (s *Service) Scan(ctx context.Context, userID uuid.UUID, id string) (int, error) {
	u, err := s.owned(ctx, userID, id, false)
	if err != nil {
		return 0, err
	}
	if err := lifecycle.Apply(u, lifecycle.EventScanRequested); err != nil {
		return 0, err
	}
	if err := s.save(ctx, u); err != nil {
		return 0, err
	}

	pos := s.queue.Enqueue(id)
	slog.Info("upload queued for scan", "upload_id", id, "position", pos)
	return pos, nil
}

// Diagnostics reports the scan outcome: the queue position while queued, the
// failure message, or the findings once completed.
func (s *Service) Diagnostics(ctx context.Context, userID uuid.UUID, id string) (*Result, error) {
	u, err := s.owned(ctx, userID, id, true)
	if err != nil {
		return nil, err
	}

	res := &Result{Status: u.Status}
	switch u.Status {
	case models.UploadStatusQueued:
		pos := s.queue.Position(id)
		if pos < 0 {
			return nil, ErrNoLongerQueued
		}
		res.Position = &pos
		res.Message = fmt.Sprintf("Upload at position %d in queue", pos)
	case models.UploadStatusFailed:
		res.Message = "Scan failed. " + u.UploadError
	case models.UploadStatusCompleted:
		res.Message = "Scan completed"
		res.Diagnostics = u.Diagnostics
		if res.Diagnostics == nil {
			res.Diagnostics = []models.Diagnostic{}
		}
	default:
		return nil, ErrNotQueued
	}
	return res, nil
}

// Position returns the queue position of a queued upload.
func (s *Service) Position(ctx context.Context, userID uuid.UUID, id string) (int, error) {
	u, err := s.owned(ctx, userID, id, true)
	if err != nil {
		return 0, err
	}
	if u.Status != models.UploadStatusQueued {
		return 0, ErrNotQueued
	}
	pos := s.queue.Position(id)
	if pos < 0 {
		return 0, ErrNoLongerQueued
	}
	return pos, nil
}

// Get returns the upload record.
func (s *Service) Get(ctx context.Context, userID uuid.UUID, id string) (*models.Upload, error) {
	return s.owned(ctx, userID, id, true)
}

// owned loads id and checks it belongs to userID. Read-only callers may be
// served from the cache; callers that mutate always read the store. A store
// copy read on a cache miss is cached only once terminal, so it can never
// overwrite a newer record the runner cached in the meantime.
func (s *Service) owned(ctx context.Context, userID uuid.UUID, id string, cached bool) (*models.Upload, error) {
	var u *models.Upload
	if cached {
		if hit, found, err := cache.GetUpload(ctx, s.cache, id); err == nil && found {
			u = hit
		}
	}
	if u == nil {
		var err error
		u, err = s.store.GetUpload(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("loading upload: %w", err)
		}
		if cached && lifecycle.IsTerminal(u.Status) {
			s.remember(ctx, u)
		}
	}
	if u.UserID != userID {
		return nil, ErrNotOwner
	}
	return u, nil
}

func (s *Service) save(ctx context.Context, u *models.Upload) error {
	if err := s.store.SaveUpload(ctx, u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return ErrConcurrentChange
		}
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("saving upload: %w", err)
	}
	s.remember(ctx, u)
	return nil
}

func (s *Service) remember(ctx context.Context, u *models.Upload) {
	if err := cache.PutUpload(ctx, s.cache, u); err != nil {
		slog.Warn("caching upload failed", "upload_id", u.ID, "error", err)
	}
}
