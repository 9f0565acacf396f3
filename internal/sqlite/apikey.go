package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oxyledger/oxyregistry/internal/repository"
)

// APIKeyRepository implements repository.APIKeyRepository for SQLite.
// Only SHA-256 hashes of tokens are stored.
type APIKeyRepository struct {
	db *DB
}

// NewAPIKeyRepository creates a new APIKeyRepository
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Add registers a token for caller
func (r *APIKeyRepository) Add(ctx context.Context, token, caller, description string) error {
	if strings.TrimSpace(token) == "" || strings.TrimSpace(caller) == "" {
		return repository.ErrInvalidInput
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO api_keys (key_hash, caller, created_at, description) VALUES (?, ?, ?, ?)`,
		HashToken(token), caller, time.Now(), description,
	)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to add api key: %w", err)
	}
	return nil
}

// ResolveCaller returns the caller owning token and stamps last_used
func (r *APIKeyRepository) ResolveCaller(ctx context.Context, token string) (string, error) {
	hash := HashToken(token)

	var caller string
	err := r.db.QueryRowContext(ctx, `SELECT caller FROM api_keys WHERE key_hash = ?`, hash).Scan(&caller)
	if errors.Is(err, sql.ErrNoRows) {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve api key: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used = ? WHERE key_hash = ?`, time.Now(), hash); err != nil {
		return "", fmt.Errorf("failed to stamp api key: %w", err)
	}
	return caller, nil
}

// HashToken returns the hex SHA-256 of a bearer token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
