package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"scamshield/internal/domain/models"
	"scamshield/internal/domain/services"
)

// APIKeyRepository handles API key persistence
type APIKeyRepository struct {
	pool *pgxpool.Pool
}

// NewAPIKeyRepository creates a new API key repository
func NewAPIKeyRepository(pool *pgxpool.Pool) *APIKeyRepository {
	return &APIKeyRepository{pool: pool}
}

const apiKeyColumns = `
	id, label, environment, prefix, suffix, key_hash, permissions, usage, quota,
	is_primary, status, quota_warned, created_at, updated_at, expires_at, last_used_at`

// Create inserts a new key
func (r *APIKeyRepository) Create(ctx context.Context, k *models.APIKey) error {
	query := `
		INSERT INTO api_keys (` + apiKeyColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)`

	_, err := r.pool.Exec(ctx, query,
		k.ID, k.Label, string(k.Environment), k.Prefix, k.Suffix, k.KeyHash,
		permissionsToStrings(k.Permissions), k.Usage, k.Quota,
		k.Primary, string(k.Status), k.QuotaWarned, k.CreatedAt, k.UpdatedAt,
		timeToTimestamptzPtr(k.ExpiresAt), timeToTimestamptzPtr(k.LastUsedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

// Get retrieves a key by ID
func (r *APIKeyRepository) Get(ctx context.Context, id uuid.UUID) (*models.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE id = $1`
	k, err := scanAPIKey(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return k, nil
}

// GetByHash retrieves a key by the hash of its plaintext
func (r *APIKeyRepository) GetByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE key_hash = $1`
	k, err := scanAPIKey(r.pool.QueryRow(ctx, query, hash))
	if err != nil {
		return nil, notFound(err)
	}
	return k, nil
}

// List retrieves all keys, oldest first
func (r *APIKeyRepository) List(ctx context.Context) ([]*models.APIKey, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+apiKeyColumns+` FROM api_keys ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	keys := make([]*models.APIKey, 0)
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Update writes every mutable column. Usage only moves forward.
func (r *APIKeyRepository) Update(ctx context.Context, k *models.APIKey) error {
	query := `
		UPDATE api_keys SET
			label = $2, suffix = $3, key_hash = $4, permissions = $5,
			usage = GREATEST(usage, $6), quota = $7, is_primary = $8, status = $9,
			quota_warned = $10, updated_at = $11, expires_at = $12
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query,
		k.ID, k.Label, k.Suffix, k.KeyHash, permissionsToStrings(k.Permissions),
		k.Usage, k.Quota, k.Primary, string(k.Status),
		k.QuotaWarned, k.UpdatedAt, timeToTimestamptzPtr(k.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("failed to update api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return services.ErrNotFound
	}
	return nil
}

// Delete removes a key
func (r *APIKeyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return services.ErrNotFound
	}
	return nil
}

// ClearPrimary unsets is_primary on every key except keep
func (r *APIKeyRepository) ClearPrimary(ctx context.Context, keep uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE api_keys SET is_primary = FALSE WHERE id <> $1 AND is_primary`, keep)
	if err != nil {
		return fmt.Errorf("failed to clear primary flag: %w", err)
	}
	return nil
}

// IncrementUsage atomically bumps the usage counter
func (r *APIKeyRepository) IncrementUsage(ctx context.Context, id uuid.UUID, at time.Time) (int64, error) {
	var usage int64
	err := r.pool.QueryRow(ctx,
		`UPDATE api_keys SET usage = usage + 1, last_used_at = $2 WHERE id = $1 RETURNING usage`,
		id, at,
	).Scan(&usage)
	if err != nil {
		return 0, notFound(err)
	}
	return usage, nil
}

func scanAPIKey(row pgx.Row) (*models.APIKey, error) {
	var (
		k                   models.APIKey
		env, status         string
		perms               []string
		expires, lastUsedAt pgtype.Timestamptz
	)

	err := row.Scan(
		&k.ID, &k.Label, &env, &k.Prefix, &k.Suffix, &k.KeyHash, &perms, &k.Usage, &k.Quota,
		&k.Primary, &status, &k.QuotaWarned, &k.CreatedAt, &k.UpdatedAt, &expires, &lastUsedAt,
	)
	if err != nil {
		return nil, err
	}

	k.Environment = models.APIKeyEnvironment(env)
	k.Status = models.APIKeyStatus(status)
	k.Permissions = stringsToPermissions(perms)
	k.ExpiresAt = timestamptzToTimePtr(expires)
	k.LastUsedAt = timestamptzToTimePtr(lastUsedAt)

	return &k, nil
}
