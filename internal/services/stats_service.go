// internal/services/stats_service.go
// 發送統計

package services

import (
	"context"
	"fmt"
	"math"

	"mail-dispatch/internal/models"
	"mail-dispatch/internal/repository"
)

// StatsService 統計服務
type StatsService struct {
	deliveries repository.DeliveryRepository
}

// NewStatsService 建立統計服務
func NewStatsService(deliveries repository.DeliveryRepository) *StatsService {
	return &StatsService{deliveries: deliveries}
}

// ComputeStats 計算發送數與開信率、回覆率 (百分比，小數兩位)
func (s *StatsService) ComputeStats(ctx context.Context, filter repository.StatsFilter) (*models.EmailStats, error) {
	counts, err := s.deliveries.CountEngagement(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}

	return &models.EmailStats{
		EngagementCounts: *counts,
		OpenRate:         percentage(counts.TotalOpened, counts.TotalSent),
		ReplyRate:        percentage(counts.TotalReplied, counts.TotalSent),
	}, nil
}

func percentage(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*100*100) / 100
}
