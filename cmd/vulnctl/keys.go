package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
	"golang.org/x/crypto/bcrypt"

	mw "github.com/kiranshivaraju/vulnhunter/internal/api/middleware"
	"github.com/kiranshivaraju/vulnhunter/internal/config"
	"github.com/kiranshivaraju/vulnhunter/internal/store"
	"github.com/kiranshivaraju/vulnhunter/pkg/models"
)

const (
	keyPrefix     = "vh_"
	keyRandomSize = 24
)

// keyStore is the slice of store.Store the key commands use.
type keyStore interface {
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, userID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, userID uuid.UUID) error
}

func keysCommand() *cli.Command {
	userFlag := &cli.StringFlag{Name: "user-id", Usage: "owner of the key", Required: true}

	return &cli.Command{
		Name:  "keys",
		Usage: "Issue, list and revoke API keys",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Issue a new API key and print it once",
				Flags: []cli.Flag{
					databaseFlag,
					userFlag,
					&cli.StringFlag{Name: "name", Usage: "label for the key", Required: true},
					&cli.StringFlag{Name: "scopes", Usage: "comma separated scopes", Value: mw.ScopeScan},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					userID, err := uuid.Parse(cmd.String("user-id"))
					if err != nil {
						return fmt.Errorf("invalid --user-id: %w", err)
					}
					return withStore(ctx, cmd, func(s keyStore) error {
						raw, err := createKey(ctx, s, userID, cmd.String("name"), parseScopes(cmd.String("scopes")))
						if err != nil {
							return err
						}
						fmt.Fprintf(cmd.Root().Writer, "%s\n", raw)
						return nil
					})
				},
			},
			{
				Name:  "list",
				Usage: "List the active keys of a user",
				Flags: []cli.Flag{databaseFlag, userFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					userID, err := uuid.Parse(cmd.String("user-id"))
					if err != nil {
						return fmt.Errorf("invalid --user-id: %w", err)
					}
					return withStore(ctx, cmd, func(s keyStore) error {
						keys, err := s.ListAPIKeys(ctx, userID)
						if err != nil {
							return err
						}
						return printKeys(cmd.Root().Writer, keys)
					})
				},
			},
			{
				Name:  "revoke",
				Usage: "Revoke a key by id",
				Flags: []cli.Flag{
					databaseFlag,
					userFlag,
					&cli.StringFlag{Name: "id", Usage: "key id", Required: true},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					userID, err := uuid.Parse(cmd.String("user-id"))
					if err != nil {
						return fmt.Errorf("invalid --user-id: %w", err)
					}
					keyID, err := uuid.Parse(cmd.String("id"))
					if err != nil {
						return fmt.Errorf("invalid --id: %w", err)
					}
					return withStore(ctx, cmd, func(s keyStore) error {
						if err := s.RevokeAPIKey(ctx, keyID, userID); err != nil {
							if errors.Is(err, store.ErrNotFound) {
								return fmt.Errorf("no active key %s for user %s", keyID, userID)
							}
							return err
						}
						fmt.Fprintln(cmd.Root().Writer, "revoked")
						return nil
					})
				},
			},
		},
	}
}

func withStore(ctx context.Context, cmd *cli.Command, fn func(keyStore) error) error {
	pool, err := store.Connect(ctx, config.DatabaseConfig{
		URL:             cmd.String("database-url"),
		MaxOpenConns:    2,
		MaxIdleConns:    0,
		ConnMaxLifetime: time.Minute,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(store.NewPostgresStore(pool))
}

// generateKey returns a new raw key and its bcrypt hash.
func generateKey() (string, string, error) {
	buf := make([]byte, keyRandomSize)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("read random: %w", err)
	}
	raw := keyPrefix + hex.EncodeToString(buf)

	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("hash key: %w", err)
	}
	return raw, string(hash), nil
}

func createKey(ctx context.Context, s keyStore, userID uuid.UUID, name string, scopes []string) (string, error) {
	raw, hash, err := generateKey()
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	key := &models.APIKey{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      name,
		KeyHash:   hash,
		KeyPrefix: raw[:mw.KeyPrefixLen],
		Scopes:    scopes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.CreateAPIKey(ctx, key); err != nil {
		return "", fmt.Errorf("store key: %w", err)
	}
	return raw, nil
}

func parseScopes(s string) []string {
	var scopes []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			scopes = append(scopes, part)
		}
	}
	return scopes
}

func printKeys(w io.Writer, keys []*models.APIKey) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPREFIX\tSCOPES\tLAST USED")
	for _, k := range keys {
		lastUsed := "never"
		if k.LastUsedAt != nil {
			lastUsed = k.LastUsedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", k.ID, k.Name, k.KeyPrefix, strings.Join(k.Scopes, ","), lastUsed)
	}
	return tw.Flush()
}
