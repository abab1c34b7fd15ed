// Package credentials implements the Credential Store (C2): issuance,
// validation, and scope enforcement for opaque API keys, grounded on the
// spec's sha256-hash-lookup contract rather than the original Python
// system's Fernet-encrypted provider-secret vault (that vault protects a
// different secret — upstream LLM provider keys — and has no bearing on
// how callers authenticate to this platform).
package credentials

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/conductorhq/conductor/pkg/apierr"
	"github.com/conductorhq/conductor/pkg/database"
	"github.com/conductorhq/conductor/pkg/models"
)

const (
	keyPrefix    = "sk_live_"
	keyRandBytes = 24 // 192 bits, the spec's stated minimum
)

// Store issues and validates API keys.
type Store struct {
	repo *database.ApiKeyRepo
	log  *slog.Logger
}

// New constructs a Store.
func New(repo *database.ApiKeyRepo, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{repo: repo, log: log}
}

// IssueParams describes a new key to mint.
type IssueParams struct {
	UserID    string
	Name      string
	Scopes    []string
	RateLimit int
	ExpiresAt *time.Time
}

// Issued is returned from Issue. RawKey is present only here — it is
// never persisted or retrievable again.
type Issued struct {
	Record *models.ApiKey
	RawKey string
}

// Issue mints a new API key: a URL-safe random secret of at least
// keyRandBytes of entropy, tagged with keyPrefix, hashed with SHA-256 for
// storage. The raw key is returned to the caller exactly once.
func (s *Store) Issue(ctx context.Context, p IssueParams) (*Issued, error) {
	buf := make([]byte, keyRandBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generating api key entropy: %w", err)
	}
	raw := keyPrefix + base64.RawURLEncoding.EncodeToString(buf)

	hash := hashKey(raw)
	record := &models.ApiKey{
		ID:        uuid.NewString(),
		UserID:    p.UserID,
		Name:      p.Name,
		KeyHash:   hash,
		KeyPrefix: raw[:len(keyPrefix)+6],
		Scopes:    p.Scopes,
		RateLimit: p.RateLimit,
		ExpiresAt: p.ExpiresAt,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, err
	}
	s.log.Info("issued api key", "api_key_id", record.ID, "user_id", record.UserID, "name", record.Name)
	return &Issued{Record: record, RawKey: raw}, nil
}

// Validate looks up a presented raw key by the hash of its full bytes —
// never by prefix or substring — and enforces expiry. On success it
// best-effort touches last_used_at; a failure there never fails the
// request.
func (s *Store) Validate(ctx context.Context, rawKey string) (*models.ApiKey, error) {
	if rawKey == "" {
		return nil, apierr.New(apierr.Unauthenticated, "missing api key")
	}
	hash := hashKey(rawKey)

	record, err := s.repo.GetByHash(ctx, hash)
	if err != nil {
		return nil, err
	}

	if record.Expired(time.Now().UTC()) {
		return nil, apierr.New(apierr.Unauthenticated, "api key expired")
	}

	if err := s.repo.TouchLastUsed(ctx, record.ID, time.Now().UTC()); err != nil {
		s.log.Warn("failed to touch api key last_used_at", "api_key_id", record.ID, "error", err)
	}

	return record, nil
}

// RequireScope returns a Forbidden apierr.Error if key lacks scope.
func RequireScope(key *models.ApiKey, scope string) error {
	if !key.HasScope(scope) {
		return apierr.New(apierr.Forbidden, fmt.Sprintf("missing required scope %q", scope))
	}
	return nil
}

// hashKey computes the lowercase hex SHA-256 digest of the raw key's UTF-8
// bytes. Validation looks keys up by this digest via the store's unique
// index, never by prefix or substring scan.
func hashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
