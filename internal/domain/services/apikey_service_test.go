package services_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scamshield/internal/domain/models"
	"scamshield/internal/domain/services"
	"scamshield/internal/infrastructure/memory"
	"scamshield/pkg/logger"
)

func newKeyService(t *testing.T) (*services.APIKeyService, *recordingTrigger) {
	t.Helper()
	svc := services.NewAPIKeyService(memory.NewAPIKeyStore(), services.APIKeyServiceConfig{
		QuotaWarnRatio: 0.8,
		BootstrapKey:   "sk_test_bootstrap0001",
	}, logger.NewNop())
	trig := &recordingTrigger{}
	svc.SetEventTrigger(trig)
	return svc, trig
}

func TestAPIKey_CreateAndAuthenticate(t *testing.T) {
	svc, _ := newKeyService(t)
	ctx := context.Background()

	issued, err := svc.Create(ctx, &models.CreateAPIKeyRequest{Label: "Production", Environment: models.APIKeyEnvProduction})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(issued.Key, "sk_live_"))
	assert.Len(t, issued.Key, len("sk_live_")+32)
	assert.Equal(t, "sk_live_••••••••"+issued.Key[len(issued.Key)-4:], issued.Masked)
	assert.Equal(t, models.DefaultPermissions, issued.Permissions)
	assert.True(t, issued.Primary)
	assert.NotContains(t, issued.KeyHash, issued.Key)

	key, err := svc.Authenticate(ctx, issued.Key)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, key.ID)
	assert.EqualValues(t, 1, key.Usage)
	assert.NotNil(t, key.LastUsedAt)

	_, err = svc.Authenticate(ctx, "sk_live_nope")
	assert.ErrorIs(t, err, services.ErrInvalidKey)
	_, err = svc.Authenticate(ctx, "")
	assert.ErrorIs(t, err, services.ErrInvalidKey)
}

func TestAPIKey_CreateValidation(t *testing.T) {
	svc, _ := newKeyService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  models.CreateAPIKeyRequest
	}{
		{"no label", models.CreateAPIKeyRequest{}},
		{"bad env", models.CreateAPIKeyRequest{Label: "x", Environment: "staging"}},
		{"bad permission", models.CreateAPIKeyRequest{Label: "x", Permissions: []models.Permission{"root"}}},
		{"negative quota", models.CreateAPIKeyRequest{Label: "x", Quota: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, &tt.req)
			assert.ErrorIs(t, err, services.ErrInvalidInput)
		})
	}
}

func TestAPIKey_TestEnvironmentPrefix(t *testing.T) {
	svc, _ := newKeyService(t)
	issued, err := svc.Create(context.Background(), &models.CreateAPIKeyRequest{Label: "Dev", Environment: models.APIKeyEnvTest})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(issued.Key, "sk_test_"))
	assert.Equal(t, "sk_test_", issued.Prefix)
}

func TestAPIKey_PrimaryIsExclusive(t *testing.T) {
	svc, _ := newKeyService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, &models.CreateAPIKeyRequest{Label: "a"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, &models.CreateAPIKeyRequest{Label: "b"})
	require.NoError(t, err)
	assert.False(t, b.Primary)

	primary := true
	_, err = svc.Update(ctx, b.ID, &models.UpdateAPIKeyRequest{Primary: &primary})
	require.NoError(t, err)

	gotA, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	gotB, err := svc.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, gotA.Primary)
	assert.True(t, gotB.Primary)
}

func TestAPIKey_RegenerateRevokeDelete(t *testing.T) {
	svc, _ := newKeyService(t)
	ctx := context.Background()

	issued, err := svc.Create(ctx, &models.CreateAPIKeyRequest{Label: "a"})
	require.NoError(t, err)

	regen, err := svc.Regenerate(ctx, issued.ID)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, regen.ID)
	assert.NotEqual(t, issued.Key, regen.Key)

	_, err = svc.Authenticate(ctx, issued.Key)
	assert.ErrorIs(t, err, services.ErrInvalidKey)
	_, err = svc.Authenticate(ctx, regen.Key)
	require.NoError(t, err)

	_, err = svc.Revoke(ctx, issued.ID)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, regen.Key)
	assert.ErrorIs(t, err, services.ErrKeyRevoked)

	require.NoError(t, svc.Delete(ctx, issued.ID))
	assert.ErrorIs(t, svc.Delete(ctx, issued.ID), services.ErrNotFound)
	_, err = svc.Regenerate(ctx, uuid.New())
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestAPIKey_QuotaWarningFiresOnceThenExceeded(t *testing.T) {
	svc, trig := newKeyService(t)
	ctx := context.Background()

	issued, err := svc.Create(ctx, &models.CreateAPIKeyRequest{Label: "metered", Quota: 5})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := svc.Authenticate(ctx, issued.Key)
		require.NoError(t, err)
	}

	assert.Equal(t, []models.WebhookEventType{models.WebhookEventQuotaWarning}, trig.types())
	payload, ok := trig.events[0].Data.(*models.QuotaEventPayload)
	require.True(t, ok)
	assert.EqualValues(t, 4, payload.Usage)
	assert.EqualValues(t, 5, payload.Quota)

	_, err = svc.Authenticate(ctx, issued.Key)
	assert.ErrorIs(t, err, services.ErrQuotaExceeded)
	assert.Len(t, trig.types(), 1)
}

func TestAPIKey_BootstrapKeyHasAllPermissions(t *testing.T) {
	svc, _ := newKeyService(t)

	key, err := svc.Authenticate(context.Background(), "sk_test_bootstrap0001")
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, key.ID)
	assert.Equal(t, models.APIKeyEnvTest, key.Environment)
	for _, p := range models.AllPermissions {
		assert.True(t, key.HasPermission(p), p)
	}
}

func TestHashKeyIsStable(t *testing.T) {
	assert.Equal(t, services.HashKey("abc"), services.HashKey("abc"))
	assert.NotEqual(t, services.HashKey("abc"), services.HashKey("abd"))
	assert.Len(t, services.HashKey("abc"), 64)
}
