package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"scamshield/internal/domain/models"
	"scamshield/pkg/logger"
)

var (
	ErrInvalidKey    = errors.New("invalid api key")
	ErrKeyRevoked    = errors.New("api key revoked")
	ErrKeyExpired    = errors.New("api key expired")
	ErrQuotaExceeded = errors.New("api key quota exceeded")
)

const keyEntropyBytes = 16

// APIKeyServiceConfig contains configuration for the API key service
type APIKeyServiceConfig struct {
	// QuotaWarnRatio is the share of quota at which quota.warning fires
	QuotaWarnRatio float64
	// BootstrapKey is accepted with every permission without being stored
	BootstrapKey string
}

// APIKeyService issues and authenticates API keys
type APIKeyService struct {
	repo   APIKeyRepository
	cfg    APIKeyServiceConfig
	logger *logger.Logger

	mu      sync.RWMutex
	trigger EventTrigger
}

// NewAPIKeyService creates a new API key service
func NewAPIKeyService(repo APIKeyRepository, cfg APIKeyServiceConfig, log *logger.Logger) *APIKeyService {
	if cfg.QuotaWarnRatio <= 0 || cfg.QuotaWarnRatio > 1 {
		cfg.QuotaWarnRatio = 0.8
	}
	return &APIKeyService{
		repo:   repo,
		cfg:    cfg,
		logger: log.WithComponent("apikey-service"),
	}
}

// SetEventTrigger sets the webhook trigger used for quota warnings
func (s *APIKeyService) SetEventTrigger(t EventTrigger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trigger = t
}

// Create issues a new key. The plaintext is only available in the result.
func (s *APIKeyService) Create(ctx context.Context, req *models.CreateAPIKeyRequest) (*models.IssuedAPIKey, error) {
	label := strings.TrimSpace(req.Label)
	if label == "" {
		return nil, fmt.Errorf("%w: label is required", ErrInvalidInput)
	}
	env := req.Environment
	if env == "" {
		env = models.APIKeyEnvProduction
	}
	if !env.Valid() {
		return nil, fmt.Errorf("%w: unknown environment %q", ErrInvalidInput, env)
	}
	perms, err := normalizePermissions(req.Permissions)
	if err != nil {
		return nil, err
	}
	if req.Quota < 0 || req.ExpiresInDays < 0 {
		return nil, fmt.Errorf("%w: quota and expiry must not be negative", ErrInvalidInput)
	}

	plaintext, err := generateKey(env)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	key := &models.APIKey{
		ID:          uuid.New(),
		Label:       label,
		Environment: env,
		Prefix:      env.Prefix(),
		Suffix:      plaintext[len(plaintext)-4:],
		KeyHash:     HashKey(plaintext),
		Permissions: perms,
		Quota:       req.Quota,
		Status:      models.APIKeyStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.ExpiresInDays > 0 {
		exp := now.AddDate(0, 0, req.ExpiresInDays)
		key.ExpiresAt = &exp
	}

	existing, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	key.Primary = len(existing) == 0

	if err := s.repo.Create(ctx, key); err != nil {
		return nil, fmt.Errorf("failed to store api key: %w", err)
	}

	s.logger.Info().
		Str("key_id", key.ID.String()).
		Str("label", key.Label).
		Str("environment", string(env)).
		Msg("api key created")

	return &models.IssuedAPIKey{APIKeyView: key.View(), Key: plaintext}, nil
}

// List returns every key
func (s *APIKeyService) List(ctx context.Context) ([]*models.APIKey, error) {
	return s.repo.List(ctx)
}

// Get returns one key
func (s *APIKeyService) Get(ctx context.Context, id uuid.UUID) (*models.APIKey, error) {
	return s.repo.Get(ctx, id)
}

// Update edits label, permissions, quota or the primary flag
func (s *APIKeyService) Update(ctx context.Context, id uuid.UUID, req *models.UpdateAPIKeyRequest) (*models.APIKey, error) {
	key, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Label != nil {
		label := strings.TrimSpace(*req.Label)
		if label == "" {
			return nil, fmt.Errorf("%w: label must not be empty", ErrInvalidInput)
		}
		key.Label = label
	}
	if req.Permissions != nil {
		perms, err := normalizePermissions(req.Permissions)
		if err != nil {
			return nil, err
		}
		key.Permissions = perms
	}
	if req.Quota != nil {
		if *req.Quota < 0 {
			return nil, fmt.Errorf("%w: quota must not be negative", ErrInvalidInput)
		}
		key.Quota = *req.Quota
		key.QuotaWarned = false
	}
	if req.Primary != nil {
		key.Primary = *req.Primary
	}
	key.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, key); err != nil {
		return nil, fmt.Errorf("failed to update api key: %w", err)
	}
	if key.Primary {
		if err := s.repo.ClearPrimary(ctx, key.ID); err != nil {
			return nil, fmt.Errorf("failed to clear primary flag: %w", err)
		}
	}

	return key, nil
}

// Regenerate replaces the key material, keeping ID, label and permissions
func (s *APIKeyService) Regenerate(ctx context.Context, id uuid.UUID) (*models.IssuedAPIKey, error) {
	key, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	plaintext, err := generateKey(key.Environment)
	if err != nil {
		return nil, err
	}

	key.KeyHash = HashKey(plaintext)
	key.Suffix = plaintext[len(plaintext)-4:]
	key.Status = models.APIKeyStatusActive
	key.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, key); err != nil {
		return nil, fmt.Errorf("failed to update api key: %w", err)
	}

	s.logger.Info().Str("key_id", key.ID.String()).Msg("api key regenerated")

	return &models.IssuedAPIKey{APIKeyView: key.View(), Key: plaintext}, nil
}

// Revoke disables a key without deleting it
func (s *APIKeyService) Revoke(ctx context.Context, id uuid.UUID) (*models.APIKey, error) {
	key, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	key.Status = models.APIKeyStatusRevoked
	key.Primary = false
	key.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, key); err != nil {
		return nil, fmt.Errorf("failed to update api key: %w", err)
	}
	s.logger.Info().Str("key_id", key.ID.String()).Msg("api key revoked")
	return key, nil
}

// Delete removes a key
func (s *APIKeyService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("key_id", id.String()).Msg("api key deleted")
	return nil
}

// Authenticate resolves a plaintext key, enforcing status, expiry and quota,
// and counts the call against the key's usage
func (s *APIKeyService) Authenticate(ctx context.Context, plaintext string) (*models.APIKey, error) {
	plaintext = strings.TrimSpace(plaintext)
	if plaintext == "" {
		return nil, ErrInvalidKey
	}

	if s.cfg.BootstrapKey != "" && subtle.ConstantTimeCompare([]byte(plaintext), []byte(s.cfg.BootstrapKey)) == 1 {
		return bootstrapKey(plaintext), nil
	}

	key, err := s.repo.GetByHash(ctx, HashKey(plaintext))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidKey
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up api key: %w", err)
	}

	now := time.Now().UTC()
	switch {
	case key.Status == models.APIKeyStatusRevoked:
		return nil, ErrKeyRevoked
	case key.IsExpired(now):
		return nil, ErrKeyExpired
	case key.Quota > 0 && key.Usage >= key.Quota:
		return nil, ErrQuotaExceeded
	}

	usage, err := s.repo.IncrementUsage(ctx, key.ID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to record api key usage: %w", err)
	}
	key.Usage = usage
	key.LastUsedAt = &now

	if key.Quota > 0 && !key.QuotaWarned && float64(usage) >= s.cfg.QuotaWarnRatio*float64(key.Quota) {
		s.warnQuota(ctx, key)
	}

	return key, nil
}

func (s *APIKeyService) warnQuota(ctx context.Context, key *models.APIKey) {
	key.QuotaWarned = true
	if err := s.repo.Update(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("key_id", key.ID.String()).Msg("failed to mark quota warning")
	}

	s.logger.Warn().
		Str("key_id", key.ID.String()).
		Int64("usage", key.Usage).
		Int64("quota", key.Quota).
		Msg("api key approaching quota")

	s.mu.RLock()
	trigger := s.trigger
	s.mu.RUnlock()
	if trigger == nil {
		return
	}

	payload := &models.QuotaEventPayload{
		KeyID:     key.ID.String(),
		Label:     key.Label,
		MaskedKey: key.MaskedKey(),
		Usage:     key.Usage,
		Quota:     key.Quota,
	}
	if err := trigger.TriggerEvent(ctx, models.WebhookEventQuotaWarning, payload); err != nil {
		s.logger.Warn().Err(err).Msg("failed to trigger quota.warning")
	}
}

// HashKey returns the stored form of a plaintext key
func HashKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

func generateKey(env models.APIKeyEnvironment) (string, error) {
	buf := make([]byte, keyEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	return env.Prefix() + hex.EncodeToString(buf), nil
}

func normalizePermissions(perms []models.Permission) ([]models.Permission, error) {
	if len(perms) == 0 {
		return append([]models.Permission(nil), models.DefaultPermissions...), nil
	}
	out := make([]models.Permission, 0, len(perms))
	seen := make(map[models.Permission]bool, len(perms))
	for _, p := range perms {
		if !p.Valid() {
			return nil, fmt.Errorf("%w: unknown permission %q", ErrInvalidInput, p)
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out, nil
}

func bootstrapKey(plaintext string) *models.APIKey {
	env := models.APIKeyEnvProduction
	if strings.HasPrefix(plaintext, models.APIKeyEnvTest.Prefix()) {
		env = models.APIKeyEnvTest
	}
	suffix := plaintext
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	return &models.APIKey{
		ID:          uuid.Nil,
		Label:       "bootstrap",
		Environment: env,
		Prefix:      env.Prefix(),
		Suffix:      suffix,
		Permissions: append([]models.Permission(nil), models.AllPermissions...),
		Status:      models.APIKeyStatusActive,
	}
}
