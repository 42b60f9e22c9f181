package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/vulnhunter/internal/api/middleware"
	"github.com/kiranshivaraju/vulnhunter/internal/api/response"
	"github.com/kiranshivaraju/vulnhunter/internal/lifecycle"
	"github.com/kiranshivaraju/vulnhunter/internal/staging"
	"github.com/kiranshivaraju/vulnhunter/internal/upload"
	"github.com/kiranshivaraju/vulnhunter/pkg/models"
)

// multipartOverhead is the allowance for form fields and part headers on top
// of the file itself.
const multipartOverhead = 64 << 10

// Uploads defines the upload operations the handlers depend on.
type Uploads interface {
	InitSession(ctx context.Context, userID uuid.UUID, dirName string, numFiles int) (*models.Upload, error)
	AddFile(ctx context.Context, userID uuid.UUID, id string, f models.UploadedFile) (*models.Upload, error)
	Scan(ctx context.Context, userID uuid.UUID, id string) (int, error)
	Diagnostics(ctx context.Context, userID uuid.UUID, id string) (*upload.Result, error)
	Position(ctx context.Context, userID uuid.UUID, id string) (int, error)
	Get(ctx context.Context, userID uuid.UUID, id string) (*models.Upload, error)
}

// NewInitSessionHandler returns an http.HandlerFunc for POST /api/v1/uploads.
func NewInitSessionHandler(svc Uploads) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		var req struct {
			DirName  string `json:"dir_name"`
			NumFiles int    `json:"num_files"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		u, err := svc.InitSession(r.Context(), userID, req.DirName, req.NumFiles)
		if err != nil {
			writeUploadError(w, r, err)
			return
		}
		response.Created(w, map[string]string{"uid": u.ID})
	}
}

// NewAddFileHandler returns an http.HandlerFunc for
// POST /api/v1/uploads/{uploadID}/files. The request is multipart with the
// file under "file" and its relative path under "path".
func NewAddFileHandler(svc Uploads, maxFileBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxFileBytes+multipartOverhead)
		if err := r.ParseMultipartForm(maxFileBytes + multipartOverhead); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File is too large", nil)
				return
			}
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Expected a multipart form", nil)
			return
		}
		defer r.MultipartForm.RemoveAll()

		part, header, err := r.FormFile("file")
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "file is required", nil)
			return
		}
		defer part.Close()

		contents, err := io.ReadAll(io.LimitReader(part, maxFileBytes+1))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read file", nil)
			return
		}
		if !utf8.Valid(contents) {
			response.Error(w, http.StatusBadRequest, "UNSUPPORTED_FILE", "File must be UTF-8 text", nil)
			return
		}

		_, err = svc.AddFile(r.Context(), userID, chi.URLParam(r, "uploadID"), models.UploadedFile{
			Name:     header.Filename,
			Path:     r.FormValue("path"),
			Contents: string(contents),
		})
		if err != nil {
			writeUploadError(w, r, err)
			return
		}
		response.JSON(w, map[string]bool{"uploaded": true})
	}
}

// NewScanHandler returns an http.HandlerFunc for POST /api/v1/uploads/{uploadID}/scan.
func NewScanHandler(svc Uploads) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		pos, err := svc.Scan(r.Context(), userID, chi.URLParam(r, "uploadID"))
		if err != nil {
			writeUploadError(w, r, err)
			return
		}
		response.Accepted(w, map[string]int{"position": pos})
	}
}

// NewDiagnosticsHandler returns an http.HandlerFunc for
// GET /api/v1/uploads/{uploadID}/diagnostics.
func NewDiagnosticsHandler(svc Uploads) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		res, err := svc.Diagnostics(r.Context(), userID, chi.URLParam(r, "uploadID"))
		if err != nil {
			writeUploadError(w, r, err)
			return
		}
		response.JSON(w, res)
	}
}

// NewPositionHandler returns an http.HandlerFunc for
// GET /api/v1/uploads/{uploadID}/position.
func NewPositionHandler(svc Uploads) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		pos, err := svc.Position(r.Context(), userID, chi.URLParam(r, "uploadID"))
		if err != nil {
			writeUploadError(w, r, err)
			return
		}
		response.JSON(w, map[string]int{"position": pos})
	}
}

// NewGetUploadHandler returns an http.HandlerFunc for GET /api/v1/uploads/{uploadID}.
func NewGetUploadHandler(svc Uploads) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		u, err := svc.Get(r.Context(), userID, chi.URLParam(r, "uploadID"))
		if err != nil {
			writeUploadError(w, r, err)
			return
		}
		response.JSON(w, u)
	}
}

func writeUploadError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, upload.ErrNotFound):
		response.Error(w, http.StatusNotFound, "UPLOAD_NOT_FOUND",
			"No such upload exists. Please initiate an upload first.", nil)
	case errors.Is(err, upload.ErrNotOwner):
		response.Error(w, http.StatusForbidden, "FORBIDDEN",
			"No such upload ID associated with user", nil)
	case errors.Is(err, upload.ErrInvalidNumFiles),
		errors.Is(err, upload.ErrMissingDirName),
		errors.Is(err, upload.ErrMissingPath):
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
	case errors.Is(err, upload.ErrUnsupportedFile):
		response.Error(w, http.StatusBadRequest, "UNSUPPORTED_FILE", "File type is not allowed", nil)
	case errors.Is(err, upload.ErrFileTooLarge):
		response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", err.Error(), nil)
	case errors.Is(err, upload.ErrFileLimit):
		response.Error(w, http.StatusConflict, "FILE_LIMIT_REACHED", err.Error(), nil)
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		response.Error(w, http.StatusConflict, "INVALID_STATE",
			"Upload session has already been terminated, completed, or has not been uploaded to.", nil)
	case errors.Is(err, upload.ErrNotQueued):
		response.Error(w, http.StatusConflict, "NOT_QUEUED", "This upload has not been queued.", nil)
	case errors.Is(err, upload.ErrNoLongerQueued):
		response.Error(w, http.StatusConflict, "NOT_IN_QUEUE",
			"This upload is no longer in the queue. Please try again.", nil)
	case errors.Is(err, upload.ErrConcurrentChange):
		response.Error(w, http.StatusConflict, "CONCURRENT_CHANGE", err.Error(), nil)
	case errors.Is(err, staging.ErrNotOpen):
		response.Error(w, http.StatusConflict, "UPLOAD_NOT_INITIATED", err.Error(), nil)
	default:
		slog.Error("upload request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}
