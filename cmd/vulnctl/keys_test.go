package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	mw "github.com/kiranshivaraju/vulnhunter/internal/api/middleware"
	"github.com/kiranshivaraju/vulnhunter/pkg/models"
)

type fakeKeyStore struct {
	created   []*models.APIKey
	createErr error
}

func (f *fakeKeyStore) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, key)
	return nil
}

func (f *fakeKeyStore) ListAPIKeys(_ context.Context, _ uuid.UUID) ([]*models.APIKey, error) {
	return f.created, nil
}

func (f *fakeKeyStore) RevokeAPIKey(_ context.Context, _ uuid.UUID, _ uuid.UUID) error {
	return nil
}

func TestGenerateKey(t *testing.T) {
	raw, hash, err := generateKey()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(raw, keyPrefix))
	assert.Len(t, raw, len(keyPrefix)+2*keyRandomSize)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)))

	other, _, err := generateKey()
	require.NoError(t, err)
	assert.NotEqual(t, raw, other)
}

func TestCreateKey_StoresPrefixAndHash(t *testing.T) {
	s := &fakeKeyStore{}
	userID := uuid.New()

	raw, err := createKey(context.Background(), s, userID, "ci", []string{"scan"})
	require.NoError(t, err)
	require.Len(t, s.created, 1)

	key := s.created[0]
	assert.Equal(t, userID, key.UserID)
	assert.Equal(t, "ci", key.Name)
	assert.Equal(t, raw[:mw.KeyPrefixLen], key.KeyPrefix)
	assert.Equal(t, []string{"scan"}, key.Scopes)
	assert.NotEqual(t, raw, key.KeyHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(raw)))
}

func TestCreateKey_StoreError(t *testing.T) {
	s := &fakeKeyStore{createErr: errors.New("db down")}

	_, err := createKey(context.Background(), s, uuid.New(), "ci", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store key")
}

func TestParseScopes(t *testing.T) {
	assert.Equal(t, []string{"scan", "admin"}, parseScopes(" scan, ,admin,"))
	assert.Nil(t, parseScopes(""))
}

func TestPrintKeys(t *testing.T) {
	used := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	keys := []*models.APIKey{
		{ID: uuid.New(), Name: "ci", KeyPrefix: "vh_ab12c", Scopes: []string{"scan"}, LastUsedAt: &used},
		{ID: uuid.New(), Name: "laptop", KeyPrefix: "vh_ff001", Scopes: []string{"scan"}},
	}

	var buf bytes.Buffer
	require.NoError(t, printKeys(&buf, keys))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "PREFIX")
	assert.Contains(t, lines[1], "2026-03-01T12:00:00Z")
	assert.Contains(t, lines[2], "never")
}
