// internal/services/engagement_service.go
// 開信、點擊、回覆事件紀錄

package services

import (
	"context"
	"errors"
	"time"

	"mail-dispatch/internal/repository"
)

// EngagementService 追蹤事件服務
// 未知或格式錯誤的 token 一律忽略，追蹤端點不回報錯誤給收件人
type EngagementService struct {
	deliveries repository.DeliveryRepository
	now        func() time.Time
}

// NewEngagementService 建立追蹤事件服務
func NewEngagementService(deliveries repository.DeliveryRepository) *EngagementService {
	return &EngagementService{
		deliveries: deliveries,
		now:        time.Now,
	}
}

// RecordOpen 紀錄開信
func (s *EngagementService) RecordOpen(ctx context.Context, token string) error {
	if !IsTrackingToken(token) {
		return nil
	}
	return ignoreNotFound(s.deliveries.RecordOpen(ctx, token, s.now().UTC()))
}

// RecordClick 紀錄點擊，回傳原始網址供轉址
func (s *EngagementService) RecordClick(ctx context.Context, token, url string) (string, error) {
	if !IsTrackingToken(token) || url == "" {
		return url, nil
	}
	return url, ignoreNotFound(s.deliveries.RecordClick(ctx, token, url, s.now().UTC()))
}

// RecordReply 紀錄回覆
func (s *EngagementService) RecordReply(ctx context.Context, token string) error {
	if !IsTrackingToken(token) {
		return nil
	}
	return ignoreNotFound(s.deliveries.RecordReply(ctx, token, s.now().UTC()))
}

func ignoreNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}
