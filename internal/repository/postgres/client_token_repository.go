// internal/repository/postgres/client_token_repository.go
// Client Token PostgreSQL 實作

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"mail-dispatch/internal/models"
	"mail-dispatch/internal/repository"
)

// ClientTokenRepository Client Token 儲存
type ClientTokenRepository struct {
	db *gorm.DB
}

// NewClientTokenRepository 建立 Client Token 儲存
func NewClientTokenRepository(db *gorm.DB) *ClientTokenRepository {
	return &ClientTokenRepository{db: db}
}

// FindByClientID 以 client_id 查詢 (含已撤銷)
func (r *ClientTokenRepository) FindByClientID(ctx context.Context, clientID string) (*models.ClientToken, error) {
	var token models.ClientToken
	if err := r.db.WithContext(ctx).Where("client_id = ?", clientID).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query client token: %w", err)
	}
	return &token, nil
}

// List 依建立時間新到舊列出
func (r *ClientTokenRepository) List(ctx context.Context) ([]models.ClientToken, error) {
	var tokens []models.ClientToken
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&tokens).Error; err != nil {
		return nil, fmt.Errorf("failed to list client tokens: %w", err)
	}
	return tokens, nil
}

// Save 新增或更新
func (r *ClientTokenRepository) Save(ctx context.Context, token *models.ClientToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Save(token).Error; err != nil {
		return fmt.Errorf("failed to save client token: %w", err)
	}
	return nil
}
