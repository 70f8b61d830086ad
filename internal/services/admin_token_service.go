// internal/services/admin_token_service.go
// Admin Token 初始化服務

package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"mail-dispatch/internal/config"
	"mail-dispatch/internal/models"
	"mail-dispatch/internal/repository"
)

const (
	// AdminClientID 固定的 Admin Client ID
	AdminClientID = "mail-admin"
	// AdminDepartment 部門名稱
	AdminDepartment = "Operations"
	// tokenIssuer JWT iss
	tokenIssuer = "mail-dispatch"
)

// AdminTokenService Admin Token 初始化服務
type AdminTokenService struct {
	cfg    *config.Config
	tokens repository.ClientTokenRepository
}

// NewAdminTokenService 建立 Admin Token 服務
func NewAdminTokenService(cfg *config.Config, tokens repository.ClientTokenRepository) *AdminTokenService {
	return &AdminTokenService{
		cfg:    cfg,
		tokens: tokens,
	}
}

// InitializeAdminToken 初始化 Admin Token
// 若 Token 不存在則建立並輸出到 logs
// 若 Token 已存在且有效則跳過
// 若 Token 已存在但已撤銷則重新啟用並生成新 Token
func (s *AdminTokenService) InitializeAdminToken(ctx context.Context) (string, error) {
	if !s.cfg.InitAdminToken {
		log.Println("[Admin Token] INIT_ADMIN_TOKEN=false, skipping initialization")
		return "", nil
	}

	existing, err := s.tokens.FindByClientID(ctx, AdminClientID)
	switch {
	case err == nil && existing.IsActive:
		log.Println("[Admin Token] Admin token already exists and is active")
		log.Printf("[Admin Token]   Client ID: %s", existing.ClientID)
		log.Printf("[Admin Token]   Created At: %s", existing.CreatedAt.Format(time.RFC3339))
		return "", nil
	case err == nil:
		log.Println("[Admin Token] Found revoked admin token, regenerating...")
		return s.issue(ctx, existing)
	case errors.Is(err, repository.ErrNotFound):
		log.Println("[Admin Token] No existing admin token found, creating new one...")
		return s.issue(ctx, &models.ClientToken{
			ID:          uuid.NewString(),
			ClientID:    AdminClientID,
			Department:  AdminDepartment,
			Permissions: pq.StringArray{"admin"},
		})
	default:
		return "", err
	}
}

// issue 生成 JWT 並儲存 hash，回傳 token 字串
func (s *AdminTokenService) issue(ctx context.Context, record *models.ClientToken) (string, error) {
	tokenString, err := s.GenerateJWT(record.ClientID, s.cfg.AdminTokenName, record.Department, record.Permissions)
	if err != nil {
		return "", err
	}

	record.TokenHash = hashToken(tokenString)
	record.ClientName = s.cfg.AdminTokenName
	record.IsActive = true
	record.RevokedAt = nil

	if err := s.tokens.Save(ctx, record); err != nil {
		return "", err
	}

	s.printTokenToLogs(tokenString, record)
	return tokenString, nil
}

// IssueClientToken 為新的後台操作者建立 Token
func (s *AdminTokenService) IssueClientToken(ctx context.Context, clientName, department string, permissions []string) (string, *models.ClientToken, error) {
	record := &models.ClientToken{
		ID:          uuid.NewString(),
		ClientID:    fmt.Sprintf("client_%s", uuid.NewString()[:8]),
		ClientName:  clientName,
		Department:  department,
		Permissions: pq.StringArray(permissions),
		IsActive:    true,
	}

	tokenString, err := s.GenerateJWT(record.ClientID, clientName, department, permissions)
	if err != nil {
		return "", nil, err
	}
	record.TokenHash = hashToken(tokenString)

	if err := s.tokens.Save(ctx, record); err != nil {
		return "", nil, err
	}
	log.Printf("[Admin Token] Issued token for %s (%s)", record.ClientID, clientName)
	return tokenString, record, nil
}

// RevokeClientToken 撤銷 Token，之後該 client_id 的請求一律拒絕
func (s *AdminTokenService) RevokeClientToken(ctx context.Context, clientID string) (*models.ClientToken, error) {
	record, err := s.tokens.FindByClientID(ctx, clientID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	record.IsActive = false
	record.RevokedAt = &now
	if err := s.tokens.Save(ctx, record); err != nil {
		return nil, err
	}
	log.Printf("[Admin Token] Revoked token for %s", clientID)
	return record, nil
}

func hashToken(tokenString string) string {
	hash := sha256.Sum256([]byte(tokenString))
	return hex.EncodeToString(hash[:])
}

// GenerateJWT 生成永久有效的 JWT Token
func (s *AdminTokenService) GenerateJWT(clientID, clientName, department string, permissions []string) (string, error) {
	claims := jwt.MapClaims{
		"iss":         tokenIssuer,
		"sub":         uuid.NewString(),
		"iat":         time.Now().Unix(),
		"client_id":   clientID,
		"client_name": clientName,
		"department":  department,
		"permissions": permissions,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// printTokenToLogs 輸出 Token 到 logs
func (s *AdminTokenService) printTokenToLogs(tokenString string, clientToken *models.ClientToken) {
	separator := strings.Repeat("=", 80)

	log.Println(separator)
	log.Println("ADMIN TOKEN CREATED")
	log.Println(separator)
	log.Printf("  Client ID:    %s", clientToken.ClientID)
	log.Printf("  Client Name:  %s", clientToken.ClientName)
	log.Printf("  Permissions:  %v", clientToken.Permissions)
	log.Println("  Copy the token below now. It will NOT be shown again.")
	log.Printf("  %s", tokenString)
	log.Println(separator)
}
