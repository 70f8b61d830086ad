// internal/api/handlers/tracking_handler.go
// 開信像素與點擊轉址 Handler (不需認證)

package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// 1x1 透明 GIF
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00, 0xff, 0xff, 0xff,
	0x00, 0x00, 0x00, 0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// EngagementRecorder 追蹤事件紀錄介面 (services.EngagementService 實作)
type EngagementRecorder interface {
	RecordOpen(ctx context.Context, token string) error
	RecordClick(ctx context.Context, token, url string) (string, error)
}

// TrackingHandler 追蹤 Handler
type TrackingHandler struct {
	recorder EngagementRecorder
	timeout  time.Duration
}

// NewTrackingHandler 建立 Tracking Handler
func NewTrackingHandler(recorder EngagementRecorder, timeout time.Duration) *TrackingHandler {
	return &TrackingHandler{
		recorder: recorder,
		timeout:  timeout,
	}
}

// Open 紀錄開信並回傳像素，儲存失敗仍回傳像素
func (h *TrackingHandler) Open(c *gin.Context) {
	ctx, cancel := h.context(c)
	defer cancel()

	if err := h.recorder.RecordOpen(ctx, c.Param("token")); err != nil {
		log.Printf("[Tracking] Failed to record open: %v", err)
	}

	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Data(http.StatusOK, "image/gif", pixelGIF)
}

// Click 紀錄點擊後轉址到原始網址
func (h *TrackingHandler) Click(c *gin.Context) {
	target := c.Query("url")
	if target == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "missing_url",
			"message": "url query parameter is required",
		})
		return
	}

	ctx, cancel := h.context(c)
	defer cancel()

	dest, err := h.recorder.RecordClick(ctx, c.Param("token"), target)
	if err != nil {
		log.Printf("[Tracking] Failed to record click: %v", err)
		dest = target
	}

	c.Redirect(http.StatusFound, dest)
}

func (h *TrackingHandler) context(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), h.timeout)
}
