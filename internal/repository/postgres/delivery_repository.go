// internal/repository/postgres/delivery_repository.go
// 發送紀錄 PostgreSQL 實作 (GORM)

package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mail-dispatch/internal/models"
	"mail-dispatch/internal/repository"
)

// DeliveryRepository 發送紀錄儲存
type DeliveryRepository struct {
	db *gorm.DB
}

// NewDeliveryRepository 建立發送紀錄儲存
func NewDeliveryRepository(db *gorm.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

// Create 新增發送紀錄 (含附件)
func (r *DeliveryRepository) Create(ctx context.Context, record *models.DeliveryRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	for i := range record.Attachments {
		if record.Attachments[i].ID == "" {
			record.Attachments[i].ID = uuid.NewString()
		}
		record.Attachments[i].DeliveryID = record.ID
	}
	if record.ClickedLinks == nil {
		record.ClickedLinks = []models.ClickedLink{}
	}

	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to create delivery record: %w", err)
	}
	return nil
}

// FindByID 以 ID 查詢
func (r *DeliveryRepository) FindByID(ctx context.Context, id string) (*models.DeliveryRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	return r.findOne(ctx, "id = ?", id)
}

// FindByToken 以追蹤 token 查詢
func (r *DeliveryRepository) FindByToken(ctx context.Context, token string) (*models.DeliveryRecord, error) {
	return r.findOne(ctx, "tracking_token = ?", token)
}

func (r *DeliveryRepository) findOne(ctx context.Context, query string, arg string) (*models.DeliveryRecord, error) {
	var record models.DeliveryRecord
	err := r.db.WithContext(ctx).
		Preload("ClickedLinks").
		Preload("Attachments").
		Where(query, arg).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query delivery record: %w", err)
	}
	return &record, nil
}

// List 依關聯條件分頁查詢，依 sent_at 由新到舊
func (r *DeliveryRepository) List(ctx context.Context, filter repository.DeliveryFilter) ([]models.DeliveryRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.DeliveryRecord{})

	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}
	if filter.ContactID != nil {
		query = query.Where("contact_id = ?", *filter.ContactID)
	}
	if filter.DealID != nil {
		query = query.Where("deal_id = ?", *filter.DealID)
	}
	if filter.ProjectID != nil {
		query = query.Where("project_id = ?", *filter.ProjectID)
	}
	if filter.CampaignID != nil {
		query = query.Where("campaign_id = ?", *filter.CampaignID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count delivery records: %w", err)
	}

	var records []models.DeliveryRecord
	if err := query.Preload("ClickedLinks").
		Order("sent_at DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list delivery records: %w", err)
	}

	return records, total, nil
}

// RecordOpen 單一 UPDATE 累加開信次數，read_at 只在首次開信時寫入
func (r *DeliveryRepository) RecordOpen(ctx context.Context, token string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.DeliveryRecord{}).
		Where("tracking_token = ?", token).
		Updates(map[string]interface{}{
			"open_count":     gorm.Expr("open_count + 1"),
			"last_opened_at": at,
			"read_status":    true,
			"read_at":        gorm.Expr("COALESCE(read_at, ?)", at),
			"updated_at":     at,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to record open: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// RecordClick 以 (delivery_id, url_hash) upsert 點擊紀錄，並同步更新寄送紀錄的 updated_at
func (r *DeliveryRepository) RecordClick(ctx context.Context, token, url string, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record models.DeliveryRecord
		err := tx.Select("id").
			Where("tracking_token = ?", token).
			Take(&record).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repository.ErrNotFound
			}
			return fmt.Errorf("failed to resolve tracking token: %w", err)
		}

		link := models.ClickedLink{
			ID:         uuid.NewString(),
			DeliveryID: record.ID,
			URLHash:    hashURL(url),
			URL:        url,
			ClickedAt:  at,
			ClickCount: 1,
		}

		err = tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "delivery_id"}, {Name: "url_hash"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"click_count": gorm.Expr("clicked_links.click_count + 1"),
				"clicked_at":  at,
			}),
		}).Create(&link).Error
		if err != nil {
			return fmt.Errorf("failed to record click: %w", err)
		}

		err = tx.Model(&models.DeliveryRecord{}).
			Where("id = ?", record.ID).
			Update("updated_at", at).Error
		if err != nil {
			return fmt.Errorf("failed to touch delivery record: %w", err)
		}
		return nil
	})
}

// RecordReply 標記已回覆，replied_at 只寫入第一次
func (r *DeliveryRepository) RecordReply(ctx context.Context, token string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.DeliveryRecord{}).
		Where("tracking_token = ?", token).
		Updates(map[string]interface{}{
			"reply_status": true,
			"replied_at":   gorm.Expr("COALESCE(replied_at, ?)", at),
			"updated_at":   at,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to record reply: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CountEngagement 以 COUNT FILTER 一次取得所有統計計數
func (r *DeliveryRepository) CountEngagement(ctx context.Context, filter repository.StatsFilter) (*models.EngagementCounts, error) {
	query := r.db.WithContext(ctx).
		Model(&models.DeliveryRecord{}).
		Select(`COUNT(*) AS total_sent,
			COUNT(*) FILTER (WHERE read_status) AS total_opened,
			COUNT(*) FILTER (WHERE reply_status) AS total_replied,
			COUNT(*) FILTER (WHERE bounce_status <> 'none') AS total_bounced`)

	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}
	if filter.From != nil {
		query = query.Where("sent_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("sent_at <= ?", *filter.To)
	}

	var counts models.EngagementCounts
	if err := query.Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count engagement: %w", err)
	}
	return &counts, nil
}

// hashURL url 可能超過 btree 索引長度，唯一鍵改用 sha256
func hashURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}
