package models

import (
	"time"

	"github.com/google/uuid"
)

// UploadStatus is the lifecycle state of an upload session.
type UploadStatus string

const (
	UploadStatusInitiated  UploadStatus = "initiated"
	UploadStatusInProgress UploadStatus = "in_progress"
	UploadStatusQueued     UploadStatus = "queued"
	UploadStatusCompleted  UploadStatus = "completed"
	UploadStatusFailed     UploadStatus = "failed"
	UploadStatusStopped    UploadStatus = "stopped"
)

// Severity of a diagnostic.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Upload is one user's submitted set of files awaiting security analysis.
// The received file contents live in staging, never in this record.
type Upload struct {
	ID            string       `db:"id"             json:"uid"`
	UserID        uuid.UUID    `db:"user_id"        json:"user_id"`
	UploadTime    time.Time    `db:"upload_time"    json:"upload_time"`
	DirName       string       `db:"dir_name"       json:"dir_name"`
	NumFiles      int          `db:"num_files"      json:"num_files"`
	UploadedFiles []string     `db:"uploaded_files" json:"uploaded_files"`
	Diagnostics   []Diagnostic `db:"diagnostics"    json:"diagnostics"`
	Status        UploadStatus `db:"status"         json:"status"`
	UploadError   string       `db:"upload_error"   json:"uploadError"`
	UpdatedAt     time.Time    `db:"updated_at"     json:"updated_at"`
}

// Diagnostic is one reported vulnerability finding tied to a file and line.
type Diagnostic struct {
	FilePath      string `json:"file_path"`
	FileName      string `json:"file_name"`
	LineNumber    int    `json:"line_number"`
	Severity      string `json:"severity"`
	Vulnerability string `json:"vulnerability"`
	Reasoning     string `json:"reasoning"`
}

// UploadedFile is a received source file held in memory until its upload is scanned.
type UploadedFile struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Contents string `json:"contents"`
}
