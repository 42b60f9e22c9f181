package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/vulnhunter/internal/lifecycle"
	"github.com/kiranshivaraju/vulnhunter/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- API Keys ---

const apiKeyColumns = `id, user_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at`

func scanAPIKeys(rows pgx.Rows) ([]*models.APIKey, error) {
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	return scanAPIKeys(rows)
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	scopes := key.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, user_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.UserID, key.Name, key.KeyHash, key.KeyPrefix, scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, userID uuid.UUID) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE user_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return scanAPIKeys(rows)
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`, id, userID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Uploads ---

const uploadColumns = `id, user_id, upload_time, dir_name, num_files, uploaded_files, diagnostics, status, upload_error, updated_at`

func scanUpload(row pgx.Row) (*models.Upload, error) {
	var (
		u     models.Upload
		diags []byte
	)
	if err := row.Scan(&u.ID, &u.UserID, &u.UploadTime, &u.DirName, &u.NumFiles, &u.UploadedFiles,
		&diags, &u.Status, &u.UploadError, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if len(diags) > 0 {
		if err := json.Unmarshal(diags, &u.Diagnostics); err != nil {
			return nil, fmt.Errorf("decode diagnostics: %w", err)
		}
	}
	return &u, nil
}

// uploadArgs returns the non-key columns in uploadColumns order.
func uploadArgs(u *models.Upload) ([]any, error) {
	files := u.UploadedFiles
	if files == nil {
		files = []string{}
	}
	diags := u.Diagnostics
	if diags == nil {
		diags = []models.Diagnostic{}
	}
	diagJSON, err := json.Marshal(diags)
	if err != nil {
		return nil, fmt.Errorf("encode diagnostics: %w", err)
	}
	return []any{u.UserID, u.UploadTime, u.DirName, u.NumFiles, files, diagJSON, string(u.Status), u.UploadError, u.UpdatedAt}, nil
}

func (s *PostgresStore) CreateUpload(ctx context.Context, u *models.Upload) error {
	ts := now()
	if u.UploadTime.IsZero() {
		u.UploadTime = ts
	}
	u.UpdatedAt = ts

	args, err := uploadArgs(u)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO uploads (`+uploadColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		append([]any{u.ID}, args...)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create upload: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUpload(ctx context.Context, id string) (*models.Upload, error) {
	u, err := scanUpload(s.pool.QueryRow(ctx,
		`SELECT `+uploadColumns+` FROM uploads WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get upload: %w", err)
	}
	return u, nil
}

// SaveUpload overwrites every mutable column of an existing upload. The write
// only applies if updated_at still matches the value u was read with.
func (s *PostgresStore) SaveUpload(ctx context.Context, u *models.Upload) error {
	prev := u.UpdatedAt
	next := now()
	if !next.After(prev) {
		next = prev.Add(time.Microsecond)
	}

	saved := *u
	saved.UpdatedAt = next
	args, err := uploadArgs(&saved)
	if err != nil {
		return err
	}
	args = append([]any{u.ID}, args...)
	args = append(args, prev)

	tag, err := s.pool.Exec(ctx,
		`UPDATE uploads SET user_id = $2, upload_time = $3, dir_name = $4, num_files = $5,
		        uploaded_files = $6, diagnostics = $7, status = $8, upload_error = $9, updated_at = $10
		 WHERE id = $1 AND updated_at = $11`,
		args...)
	if err != nil {
		return fmt.Errorf("save upload: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM uploads WHERE id = $1)`, u.ID).Scan(&exists); err != nil {
			return fmt.Errorf("save upload: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConflict
	}
	u.UpdatedAt = next
	return nil
}

// ListActiveUploads returns the user's uploads that are initiated, in progress or queued.
func (s *PostgresStore) ListActiveUploads(ctx context.Context, userID uuid.UUID) ([]*models.Upload, error) {
	var active []string
	for _, st := range lifecycle.ActiveStatuses() {
		active = append(active, string(st))
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+uploadColumns+` FROM uploads
		 WHERE user_id = $1 AND status = ANY($2)
		 ORDER BY upload_time ASC`,
		userID, active)
	if err != nil {
		return nil, fmt.Errorf("list active uploads: %w", err)
	}
	defer rows.Close()

	var uploads []*models.Upload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}

// now returns the current time at the precision Postgres stores, so that
// timestamps round-trip exactly.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
