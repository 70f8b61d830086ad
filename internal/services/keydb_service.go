// internal/services/keydb_service.go
// KeyDB 批次狀態快取服務

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mail-dispatch/internal/config"
	"mail-dispatch/internal/models"
)

// ErrStatusNotFound 批次狀態不存在或已過期
var ErrStatusNotFound = errors.New("batch status not found")

// KeyDBService KeyDB 服務
type KeyDBService struct {
	cfg    *config.Config
	client *redis.Client
}

// NewKeyDBService 建立 KeyDB 服務
func NewKeyDBService(cfg *config.Config) (*KeyDBService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.KeyDBURL,
		Password: cfg.KeyDBPassword,
		DB:       0,
	})

	// 測試連接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to KeyDB: %w", err)
	}

	return newKeyDBServiceWithClient(cfg, client), nil
}

func newKeyDBServiceWithClient(cfg *config.Config, client *redis.Client) *KeyDBService {
	return &KeyDBService{
		cfg:    cfg,
		client: client,
	}
}

func batchStatusKey(batchID string) string {
	return fmt.Sprintf("batch:status:%s", batchID)
}

// SetBatchStatus 寫入批次狀態
func (s *KeyDBService) SetBatchStatus(ctx context.Context, status *models.BatchStatusCache) error {
	status.LastUpdated = time.Now().UTC().Format(time.RFC3339)

	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	return s.client.Set(ctx, batchStatusKey(status.BatchID), data, s.cfg.KeyDBStatusTTL).Err()
}

// GetBatchStatus 取得批次狀態
func (s *KeyDBService) GetBatchStatus(ctx context.Context, batchID string) (*models.BatchStatusCache, error) {
	data, err := s.client.Get(ctx, batchStatusKey(batchID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrStatusNotFound
		}
		return nil, fmt.Errorf("failed to get status: %w", err)
	}

	var status models.BatchStatusCache
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status: %w", err)
	}

	return &status, nil
}

// Ping 檢查連接
func (s *KeyDBService) Ping(ctx context.Context) bool {
	return s.client.Ping(ctx).Err() == nil
}

// Close 關閉連接
func (s *KeyDBService) Close() error {
	return s.client.Close()
}
