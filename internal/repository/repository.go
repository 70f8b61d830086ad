// internal/repository/repository.go
// 儲存層介面 - PostgreSQL 與 MongoDB 實作共用

package repository

import (
	"context"
	"errors"
	"time"

	"mail-dispatch/internal/models"
)

// ErrNotFound 查無資料
var ErrNotFound = errors.New("record not found")

// DeliveryFilter 發送紀錄查詢條件
type DeliveryFilter struct {
	ClientID   *string
	ContactID  *string
	DealID     *string
	ProjectID  *string
	CampaignID *string
	Limit      int
	Offset     int
}

// StatsFilter 統計查詢條件，SentAt 範圍為包含兩端
type StatsFilter struct {
	ClientID *string
	From     *time.Time
	To       *time.Time
}

// DeliveryRepository 發送紀錄儲存
type DeliveryRepository interface {
	Create(ctx context.Context, record *models.DeliveryRecord) error
	FindByID(ctx context.Context, id string) (*models.DeliveryRecord, error)
	FindByToken(ctx context.Context, token string) (*models.DeliveryRecord, error)
	List(ctx context.Context, filter DeliveryFilter) ([]models.DeliveryRecord, int64, error)

	// 以下皆為單一原子操作，token 不存在時回傳 ErrNotFound
	RecordOpen(ctx context.Context, token string, at time.Time) error
	RecordClick(ctx context.Context, token, url string, at time.Time) error
	RecordReply(ctx context.Context, token string, at time.Time) error

	CountEngagement(ctx context.Context, filter StatsFilter) (*models.EngagementCounts, error)
}

// TemplateRepository 範本儲存 (發送流程只讀取並累計使用次數)
type TemplateRepository interface {
	FindActiveByID(ctx context.Context, id string) (*models.EmailTemplate, error)
	IncrementUsage(ctx context.Context, id string, at time.Time) error
}

// ClientTokenRepository Client Token 儲存
type ClientTokenRepository interface {
	FindByClientID(ctx context.Context, clientID string) (*models.ClientToken, error)
	List(ctx context.Context) ([]models.ClientToken, error)
	Save(ctx context.Context, token *models.ClientToken) error
}

// Repositories 儲存層集合
type Repositories struct {
	Deliveries   DeliveryRepository
	Templates    TemplateRepository
	ClientTokens ClientTokenRepository

	Ping  func(ctx context.Context) error
	Close func(ctx context.Context) error
}
