// internal/api/handlers/mail_handler.go
// 郵件 API Handler

package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"mail-dispatch/internal/config"
	"mail-dispatch/internal/models"
	"mail-dispatch/internal/repository"
	"mail-dispatch/internal/services"
)

// BatchPublisher 批次作業發布介面
type BatchPublisher interface {
	PublishBatch(ctx context.Context, job *models.BatchJob) error
}

// BatchStatusStore 批次狀態快取介面
type BatchStatusStore interface {
	SetBatchStatus(ctx context.Context, status *models.BatchStatusCache) error
	GetBatchStatus(ctx context.Context, batchID string) (*models.BatchStatusCache, error)
}

// StatsComputer 統計介面
type StatsComputer interface {
	ComputeStats(ctx context.Context, filter repository.StatsFilter) (*models.EmailStats, error)
}

// MailHandler 郵件 Handler
type MailHandler struct {
	cfg         *config.Config
	dispatcher  services.Dispatcher
	deliveries  repository.DeliveryRepository
	stats       StatsComputer
	attachments *services.AttachmentStore
	publisher   BatchPublisher
	statuses    BatchStatusStore
}

// NewMailHandler 建立 Mail Handler
func NewMailHandler(
	cfg *config.Config,
	dispatcher services.Dispatcher,
	deliveries repository.DeliveryRepository,
	stats StatsComputer,
	attachments *services.AttachmentStore,
	publisher BatchPublisher,
	statuses BatchStatusStore,
) *MailHandler {
	return &MailHandler{
		cfg:         cfg,
		dispatcher:  dispatcher,
		deliveries:  deliveries,
		stats:       stats,
		attachments: attachments,
		publisher:   publisher,
		statuses:    statuses,
	}
}

// SendRequest 直接發送請求
type SendRequest struct {
	To          models.AddressList          `json:"to"`
	Subject     string                      `json:"subject" binding:"required"`
	HTML        string                      `json:"html"`
	Text        *string                     `json:"text,omitempty"`
	Attachments []services.AttachmentUpload `json:"attachments,omitempty"`
	models.SendOptions
}

// TemplateSendRequest 範本發送請求
type TemplateSendRequest struct {
	TemplateID  string                      `json:"template_id" binding:"required"`
	To          models.AddressList          `json:"to"`
	Variables   map[string]any              `json:"variables,omitempty"`
	Attachments []services.AttachmentUpload `json:"attachments,omitempty"`
	models.SendOptions
}

// BatchSendRequest 批次發送請求，template_id 與 subject/html 擇一
type BatchSendRequest struct {
	TemplateID string                  `json:"template_id,omitempty"`
	Subject    string                  `json:"subject,omitempty"`
	HTML       string                  `json:"html,omitempty"`
	Text       *string                 `json:"text,omitempty"`
	Recipients []models.BatchRecipient `json:"recipients" binding:"required,min=1"`
	models.SendOptions
}

// Send 發送單封郵件
func (h *MailHandler) Send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err.Error())
		return
	}

	attachments, err := h.attachments.SaveAll(req.Attachments)
	if err != nil {
		writeSendError(c, err)
		return
	}

	result, err := h.dispatcher.SendRaw(c.Request.Context(), services.SendRawInput{
		To:          req.To,
		Subject:     req.Subject,
		HTML:        req.HTML,
		Text:        req.Text,
		Attachments: attachments,
		Options:     req.SendOptions,
		CreatedBy:   c.GetString("client_id"),
	})
	if err != nil {
		writeSendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// SendTemplate 以範本發送
func (h *MailHandler) SendTemplate(c *gin.Context) {
	var req TemplateSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err.Error())
		return
	}

	attachments, err := h.attachments.SaveAll(req.Attachments)
	if err != nil {
		writeSendError(c, err)
		return
	}

	result, err := h.dispatcher.SendWithTemplate(c.Request.Context(), services.SendTemplateInput{
		TemplateID:  req.TemplateID,
		To:          req.To,
		Variables:   req.Variables,
		Attachments: attachments,
		Options:     req.SendOptions,
		CreatedBy:   c.GetString("client_id"),
	})
	if err != nil {
		writeSendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// SendBatch 批次發送 (加入 RabbitMQ 隊列，由 Worker 逐一發送)
func (h *MailHandler) SendBatch(c *gin.Context) {
	var req BatchSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err.Error())
		return
	}
	if req.TemplateID == "" && req.HTML == "" && req.Text == nil {
		validationError(c, "template_id or html/text content is required")
		return
	}
	if req.EmailType != "" && !req.EmailType.IsValid() {
		validationError(c, "unknown email_type")
		return
	}

	job := &models.BatchJob{
		BatchID:    uuid.NewString(),
		TemplateID: req.TemplateID,
		Subject:    req.Subject,
		HTML:       req.HTML,
		Text:       req.Text,
		Options:    req.SendOptions,
		Recipients: req.Recipients,
		CreatedBy:  c.GetString("client_id"),
		QueuedAt:   time.Now().UTC(),
	}

	ctx := c.Request.Context()
	status := &models.BatchStatusCache{
		BatchID: job.BatchID,
		Status:  models.BatchStatusQueued,
		Total:   len(job.Recipients),
	}
	if err := h.statuses.SetBatchStatus(ctx, status); err != nil {
		log.Printf("[Batch] Failed to cache status for %s: %v", job.BatchID, err)
	}

	if err := h.publisher.PublishBatch(ctx, job); err != nil {
		log.Printf("[Batch] Failed to queue %s: %v", job.BatchID, err)
		status.Status = models.BatchStatusFailed
		status.ErrorMessage = "failed to queue batch"
		_ = h.statuses.SetBatchStatus(ctx, status)

		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "queue_error",
			"message": "Failed to queue batch",
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success":  true,
		"batch_id": job.BatchID,
		"status":   models.BatchStatusQueued,
		"total":    len(job.Recipients),
	})
}

// GetBatchStatus 查詢批次狀態
func (h *MailHandler) GetBatchStatus(c *gin.Context) {
	status, err := h.statuses.GetBatchStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrStatusNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error":   "not_found",
				"message": "Batch not found or expired",
			})
			return
		}
		internalError(c, "cache_error", "Failed to load batch status")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    status,
	})
}

// GetDelivery 查詢單筆發送紀錄
func (h *MailHandler) GetDelivery(c *gin.Context) {
	ctx, cancel := h.storeContext(c)
	defer cancel()

	record, err := h.deliveries.FindByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error":   "not_found",
				"message": "Delivery not found",
			})
			return
		}
		internalError(c, "database_error", "Failed to load delivery")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    record,
	})
}

// GetHistory 查詢發送歷史
func (h *MailHandler) GetHistory(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	filter := repository.DeliveryFilter{
		ClientID:   optionalQuery(c, "client_id"),
		ContactID:  optionalQuery(c, "contact_id"),
		DealID:     optionalQuery(c, "deal_id"),
		ProjectID:  optionalQuery(c, "project_id"),
		CampaignID: optionalQuery(c, "campaign_id"),
		Limit:      limit,
		Offset:     (page - 1) * limit,
	}

	ctx, cancel := h.storeContext(c)
	defer cancel()

	records, total, err := h.deliveries.List(ctx, filter)
	if err != nil {
		internalError(c, "database_error", "Failed to load history")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total": total,
		"page":  page,
		"limit": limit,
		"data":  records,
	})
}

// GetStats 發送統計
func (h *MailHandler) GetStats(c *gin.Context) {
	from, err := parseDateParam(c.Query("from"), false)
	if err != nil {
		validationError(c, "from must be RFC3339 or YYYY-MM-DD")
		return
	}
	to, err := parseDateParam(c.Query("to"), true)
	if err != nil {
		validationError(c, "to must be RFC3339 or YYYY-MM-DD")
		return
	}

	ctx, cancel := h.storeContext(c)
	defer cancel()

	stats, err := h.stats.ComputeStats(ctx, repository.StatsFilter{
		ClientID: optionalQuery(c, "client_id"),
		From:     from,
		To:       to,
	})
	if err != nil {
		internalError(c, "database_error", "Failed to compute stats")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    stats,
	})
}

func (h *MailHandler) storeContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.cfg.StoreTimeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), h.cfg.StoreTimeout)
}

// parseDateParam 接受 RFC3339 或 YYYY-MM-DD；endOfDay 時日期格式取當日最後一刻
func parseDateParam(value string, endOfDay bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func optionalQuery(c *gin.Context, key string) *string {
	if v := c.Query(key); v != "" {
		return &v
	}
	return nil
}

// writeSendError 依錯誤類型回應對應狀態碼
func writeSendError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		validationError(c, err.Error())
	case errors.Is(err, services.ErrTemplateNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "template_not_found",
			"message": "Template not found or inactive",
		})
	case errors.Is(err, services.ErrTokenGeneration):
		internalError(c, "token_error", "Failed to generate tracking token")
	default:
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error":   "send_failed",
			"message": err.Error(),
		})
	}
}

func validationError(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   "validation_error",
		"message": message,
	})
}

func internalError(c *gin.Context, code, message string) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error":   code,
		"message": message,
	})
}
