// internal/api/handlers/auth_handler.go
// Token 管理 API Handler

package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mail-dispatch/internal/models"
	"mail-dispatch/internal/repository"
)

// TokenIssuer Token 簽發與撤銷介面 (services.AdminTokenService 實作)
type TokenIssuer interface {
	IssueClientToken(ctx context.Context, clientName, department string, permissions []string) (string, *models.ClientToken, error)
	RevokeClientToken(ctx context.Context, clientID string) (*models.ClientToken, error)
}

// CreateTokenRequest 建立 Token 請求
type CreateTokenRequest struct {
	ClientName  string   `json:"client_name" binding:"required"`
	Department  string   `json:"department"`
	Permissions []string `json:"permissions" binding:"required,min=1"`
}

// CreateTokenResponse 建立 Token 回應
type CreateTokenResponse struct {
	Token     string    `json:"token"`
	ClientID  string    `json:"client_id"`
	CreatedAt time.Time `json:"created_at"`
}

// AuthHandler Token 管理 Handler
type AuthHandler struct {
	issuer TokenIssuer
	tokens repository.ClientTokenRepository
}

// NewAuthHandler 建立 Auth Handler
func NewAuthHandler(issuer TokenIssuer, tokens repository.ClientTokenRepository) *AuthHandler {
	return &AuthHandler{
		issuer: issuer,
		tokens: tokens,
	}
}

// CreateToken 建立新 Token，Token 只在此回應出現一次
func (h *AuthHandler) CreateToken(c *gin.Context) {
	var req CreateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err.Error())
		return
	}

	tokenString, record, err := h.issuer.IssueClientToken(c.Request.Context(), req.ClientName, req.Department, req.Permissions)
	if err != nil {
		internalError(c, "token_generation_error", "Failed to generate token")
		return
	}

	c.JSON(http.StatusCreated, CreateTokenResponse{
		Token:     tokenString,
		ClientID:  record.ClientID,
		CreatedAt: record.CreatedAt,
	})
}

// GetToken 查詢 Token 資訊
func (h *AuthHandler) GetToken(c *gin.Context) {
	record, err := h.tokens.FindByClientID(c.Request.Context(), c.Param("id"))
	if err != nil {
		tokenLookupError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// RevokeToken 撤銷 Token
func (h *AuthHandler) RevokeToken(c *gin.Context) {
	if _, err := h.issuer.RevokeClientToken(c.Request.Context(), c.Param("id")); err != nil {
		tokenLookupError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Token 已撤銷",
	})
}

// ListTokens 列出所有 Token
func (h *AuthHandler) ListTokens(c *gin.Context) {
	tokens, err := h.tokens.List(c.Request.Context())
	if err != nil {
		internalError(c, "database_error", "Failed to list tokens")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total": len(tokens),
		"data":  tokens,
	})
}

func tokenLookupError(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "not_found",
			"message": "Token not found",
		})
		return
	}
	internalError(c, "database_error", "Failed to load token")
}
