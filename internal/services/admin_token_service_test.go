package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mail-dispatch/internal/config"
	"mail-dispatch/internal/repository"
)

func TestInitializeAdminTokenCreatesOnce(t *testing.T) {
	cfg := &config.Config{InitAdminToken: true, JWTSecret: "secret", AdminTokenName: "Mail Admin"}
	tokens := newMemoryClientTokens()
	svc := NewAdminTokenService(cfg, tokens)

	issued, err := svc.InitializeAdminToken(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, issued)

	stored, err := tokens.FindByClientID(context.Background(), AdminClientID)
	require.NoError(t, err)
	sum := sha256.Sum256([]byte(issued))
	assert.Equal(t, hex.EncodeToString(sum[:]), stored.TokenHash)
	assert.True(t, stored.IsActive)

	parsed, err := jwt.Parse(issued, func(*jwt.Token) (interface{}, error) { return []byte("secret"), nil })
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, AdminClientID, claims["client_id"])

	again, err := svc.InitializeAdminToken(context.Background())
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestInitializeAdminTokenRegeneratesRevoked(t *testing.T) {
	cfg := &config.Config{InitAdminToken: true, JWTSecret: "secret", AdminTokenName: "Mail Admin"}
	tokens := newMemoryClientTokens()
	svc := NewAdminTokenService(cfg, tokens)

	_, err := svc.InitializeAdminToken(context.Background())
	require.NoError(t, err)

	stored, _ := tokens.FindByClientID(context.Background(), AdminClientID)
	revokedAt := time.Now()
	stored.IsActive = false
	stored.RevokedAt = &revokedAt
	require.NoError(t, tokens.Save(context.Background(), stored))

	issued, err := svc.InitializeAdminToken(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, issued)

	stored, _ = tokens.FindByClientID(context.Background(), AdminClientID)
	assert.True(t, stored.IsActive)
	assert.Nil(t, stored.RevokedAt)
}

func TestInitializeAdminTokenDisabled(t *testing.T) {
	tokens := newMemoryClientTokens()
	svc := NewAdminTokenService(&config.Config{InitAdminToken: false}, tokens)

	issued, err := svc.InitializeAdminToken(context.Background())
	require.NoError(t, err)
	assert.Empty(t, issued)
	assert.Empty(t, tokens.tokens)
}

func TestIssueAndRevokeClientToken(t *testing.T) {
	tokens := newMemoryClientTokens()
	svc := NewAdminTokenService(&config.Config{JWTSecret: "secret"}, tokens)
	ctx := context.Background()

	issued, record, err := svc.IssueClientToken(ctx, "Sales Desk", "Sales", []string{"mail:send"})
	require.NoError(t, err)
	assert.Regexp(t, `^client_[0-9a-f]{8}$`, record.ClientID)
	assert.True(t, record.IsActive)

	parsed, err := jwt.Parse(issued, func(*jwt.Token) (interface{}, error) { return []byte("secret"), nil })
	require.NoError(t, err)
	assert.Equal(t, record.ClientID, parsed.Claims.(jwt.MapClaims)["client_id"])

	revoked, err := svc.RevokeClientToken(ctx, record.ClientID)
	require.NoError(t, err)
	assert.False(t, revoked.IsActive)
	require.NotNil(t, revoked.RevokedAt)

	stored, err := tokens.FindByClientID(ctx, record.ClientID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)

	_, err = svc.RevokeClientToken(ctx, "client_missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
