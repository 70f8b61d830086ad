package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"mail-dispatch/internal/models"
	"mail-dispatch/internal/repository"
)

type mockIssuer struct{ mock.Mock }

func (m *mockIssuer) IssueClientToken(ctx context.Context, name, department string, permissions []string) (string, *models.ClientToken, error) {
	args := m.Called(ctx, name, department, permissions)
	rec, _ := args.Get(1).(*models.ClientToken)
	return args.String(0), rec, args.Error(2)
}

func (m *mockIssuer) RevokeClientToken(ctx context.Context, clientID string) (*models.ClientToken, error) {
	args := m.Called(ctx, clientID)
	rec, _ := args.Get(0).(*models.ClientToken)
	return rec, args.Error(1)
}

type mockTokenRepo struct {
	mock.Mock
	repository.ClientTokenRepository
}

func (m *mockTokenRepo) FindByClientID(ctx context.Context, clientID string) (*models.ClientToken, error) {
	args := m.Called(ctx, clientID)
	rec, _ := args.Get(0).(*models.ClientToken)
	return rec, args.Error(1)
}

func setupAuthHandler() (*gin.Engine, *mockIssuer, *mockTokenRepo) {
	gin.SetMode(gin.TestMode)
	issuer := new(mockIssuer)
	tokens := new(mockTokenRepo)
	h := NewAuthHandler(issuer, tokens)

	router := gin.New()
	router.POST("/token", h.CreateToken)
	router.GET("/token/:id", h.GetToken)
	router.DELETE("/token/:id", h.RevokeToken)
	return router, issuer, tokens
}

func TestCreateToken(t *testing.T) {
	router, issuer, _ := setupAuthHandler()
	issuer.On("IssueClientToken", mock.Anything, "Sales Desk", "Sales", []string{"mail:send"}).
		Return("jwt-string", &models.ClientToken{ClientID: "client_ab12cd34", CreatedAt: time.Now()}, nil)

	f := &mailFixture{router: router}
	w := f.do(http.MethodPost, "/token", map[string]any{
		"client_name": "Sales Desk",
		"department":  "Sales",
		"permissions": []string{"mail:send"},
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"token":"jwt-string"`)
	assert.Contains(t, w.Body.String(), `"client_id":"client_ab12cd34"`)

	w = f.do(http.MethodPost, "/token", map[string]any{"client_name": "No perms"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetAndRevokeTokenNotFound(t *testing.T) {
	router, issuer, tokens := setupAuthHandler()
	tokens.On("FindByClientID", mock.Anything, "client_missing").Return(nil, repository.ErrNotFound)
	issuer.On("RevokeClientToken", mock.Anything, "client_missing").Return(nil, repository.ErrNotFound)
	issuer.On("RevokeClientToken", mock.Anything, "client_1").Return(&models.ClientToken{ClientID: "client_1"}, nil)

	f := &mailFixture{router: router}
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/token/client_missing", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/token/client_missing", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodDelete, "/token/client_1", nil).Code)
}
