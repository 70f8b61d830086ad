// internal/api/handlers/health_handler.go
// 健康檢查 Handler

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mail-dispatch/internal/config"
)

// CachePinger 快取連線檢查 (services.KeyDBService 實作)
type CachePinger interface {
	Ping(ctx context.Context) bool
}

// HealthHandler 健康檢查 Handler
type HealthHandler struct {
	cfg       *config.Config
	storePing func(ctx context.Context) error
	cache     CachePinger
}

// NewHealthHandler 建立 Health Handler
func NewHealthHandler(cfg *config.Config, storePing func(ctx context.Context) error, cache CachePinger) *HealthHandler {
	return &HealthHandler{
		cfg:       cfg,
		storePing: storePing,
		cache:     cache,
	}
}

// Health 健康檢查
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	services := gin.H{
		h.cfg.StoreDriver: "ok",
		"keydb":           "ok",
	}
	response := gin.H{
		"status":   "healthy",
		"version":  "1.0.0",
		"services": services,
	}

	// 檢查資料庫
	if h.storePing == nil || h.storePing(ctx) != nil {
		services[h.cfg.StoreDriver] = "error"
		response["status"] = "degraded"
	}

	// 檢查 KeyDB
	if h.cache != nil && !h.cache.Ping(ctx) {
		services["keydb"] = "error"
		response["status"] = "degraded"
	}

	statusCode := http.StatusOK
	if response["status"] == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}
