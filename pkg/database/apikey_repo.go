package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/conductorhq/conductor/pkg/apierr"
	"github.com/conductorhq/conductor/pkg/models"
)

// ApiKeyRepo persists ApiKey credential records. It never stores the raw
// key, only its SHA-256 hash.
type ApiKeyRepo struct {
	db *sql.DB
}

// Create inserts a newly issued ApiKey.
func (r *ApiKeyRepo) Create(ctx context.Context, k *models.ApiKey) error {
	scopesJSON, err := json.Marshal(k.Scopes)
	if err != nil {
		return fmt.Errorf("encoding scopes: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO api_keys (id, user_id, name, key_hash, key_prefix, scopes, rate_limit, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())`,
		k.ID, k.UserID, k.Name, k.KeyHash, k.KeyPrefix, scopesJSON, k.RateLimit, k.ExpiresAt)
	if err != nil {
		return fmt.Errorf("inserting api key: %w", err)
	}
	return nil
}

// GetByHash looks up an ApiKey by its SHA-256 hash — the only lookup path
// C2 validation uses, so presented keys are never compared by substring.
func (r *ApiKeyRepo) GetByHash(ctx context.Context, hash string) (*models.ApiKey, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, key_hash, key_prefix, scopes, rate_limit, expires_at, last_used_at, created_at
		FROM api_keys WHERE key_hash = $1`, hash)

	var k models.ApiKey
	var scopesJSON []byte
	if err := row.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.KeyPrefix, &scopesJSON,
		&k.RateLimit, &k.ExpiresAt, &k.LastUsedAt, &k.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierr.New(apierr.Unauthenticated, "invalid api key")
		}
		return nil, fmt.Errorf("loading api key: %w", err)
	}
	if err := json.Unmarshal(scopesJSON, &k.Scopes); err != nil {
		return nil, fmt.Errorf("decoding scopes: %w", err)
	}
	return &k, nil
}

// TouchLastUsed updates last_used_at best-effort; callers should not fail
// the request if this errors.
func (r *ApiKeyRepo) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("touching api key last_used_at: %w", err)
	}
	return nil
}
