// internal/repository/postgres/template_repository.go
// 郵件範本 PostgreSQL 實作

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"mail-dispatch/internal/models"
	"mail-dispatch/internal/repository"
)

// TemplateRepository 範本儲存
type TemplateRepository struct {
	db *gorm.DB
}

// NewTemplateRepository 建立範本儲存
func NewTemplateRepository(db *gorm.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// FindActiveByID 查詢啟用中的範本，格式錯誤的 id 視為不存在
func (r *TemplateRepository) FindActiveByID(ctx context.Context, id string) (*models.EmailTemplate, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}

	var tmpl models.EmailTemplate
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&tmpl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query template: %w", err)
	}
	return &tmpl, nil
}

// IncrementUsage 原子累加使用次數
func (r *TemplateRepository) IncrementUsage(ctx context.Context, id string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.EmailTemplate{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"usage_count":  gorm.Expr("usage_count + 1"),
			"last_used_at": at,
			"updated_at":   at,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to increment template usage: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
