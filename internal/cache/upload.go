package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kiranshivaraju/vulnhunter/pkg/models"
)

// UploadTTL bounds how long a cached upload record may serve polling reads.
const UploadTTL = time.Hour

// PutUpload writes the upload record through to the cache. If the write fails
// the key is deleted so readers fall back to the store instead of a stale copy.
func PutUpload(ctx context.Context, c Cache, u *models.Upload) error {
	b, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal upload: %w", err)
	}
	if err := c.Set(ctx, UploadKey(u.ID), b, UploadTTL); err != nil {
		_ = c.Delete(ctx, UploadKey(u.ID))
		return fmt.Errorf("caching upload %s: %w", u.ID, err)
	}
	return nil
}

// GetUpload returns the cached record for id. A corrupt entry is dropped and
// reported as a miss.
func GetUpload(ctx context.Context, c Cache, id string) (*models.Upload, bool, error) {
	b, found, err := c.Get(ctx, UploadKey(id))
	if err != nil || !found {
		return nil, false, err
	}
	var u models.Upload
	if err := json.Unmarshal(b, &u); err != nil {
		_ = c.Delete(ctx, UploadKey(id))
		return nil, false, nil
	}
	return &u, true, nil
}
