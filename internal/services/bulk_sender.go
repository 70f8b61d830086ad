// internal/services/bulk_sender.go
// 批次發送 - 逐一發送並在每封之間固定延遲

package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"mail-dispatch/internal/config"
	"mail-dispatch/internal/models"
)

// Dispatcher 單封發送介面 (DispatchService 實作)
type Dispatcher interface {
	SendRaw(ctx context.Context, in SendRawInput) (*SendResult, error)
	SendWithTemplate(ctx context.Context, in SendTemplateInput) (*SendResult, error)
}

// BulkRequest 批次發送請求，TemplateID 與 Subject/HTML 擇一
type BulkRequest struct {
	TemplateID string
	Subject    string
	HTML       string
	Text       *string
	Recipients []models.BatchRecipient
	Options    models.SendOptions
	CreatedBy  string
}

// BulkResult 批次結果
type BulkResult struct {
	Sent   []models.BulkSuccess `json:"sent"`
	Failed []models.BulkFailure `json:"failed"`
}

// BulkSender 批次發送服務
type BulkSender struct {
	dispatcher Dispatcher
	delay      time.Duration
}

// NewBulkSender 建立批次發送服務
func NewBulkSender(cfg *config.Config, dispatcher Dispatcher) *BulkSender {
	return &BulkSender{
		dispatcher: dispatcher,
		delay:      cfg.BulkSendDelay,
	}
}

// Send 依序發送，單一收件人失敗不中斷批次
// context 取消時剩餘收件人全部標記為失敗
func (b *BulkSender) Send(ctx context.Context, req BulkRequest) *BulkResult {
	result := &BulkResult{
		Sent:   make([]models.BulkSuccess, 0, len(req.Recipients)),
		Failed: make([]models.BulkFailure, 0),
	}

	for i, rcpt := range req.Recipients {
		if i > 0 && b.delay > 0 {
			if err := wait(ctx, b.delay); err != nil {
				result.markRemainingFailed(req.Recipients[i:], err)
				break
			}
		}
		if err := ctx.Err(); err != nil {
			result.markRemainingFailed(req.Recipients[i:], err)
			break
		}

		res, err := b.sendOne(ctx, req, rcpt)
		if err != nil {
			log.Printf("[Bulk] Recipient %d/%d failed: %v", i+1, len(req.Recipients), err)
			result.Failed = append(result.Failed, models.BulkFailure{Recipient: rcpt.Email, Error: err.Error()})
			continue
		}

		result.Sent = append(result.Sent, models.BulkSuccess{
			Recipient:     rcpt.Email,
			DeliveryID:    res.DeliveryID,
			TrackingToken: res.TrackingToken,
		})
	}

	log.Printf("[Bulk] Finished: %d sent, %d failed", len(result.Sent), len(result.Failed))
	return result
}

func (b *BulkSender) sendOne(ctx context.Context, req BulkRequest, rcpt models.BatchRecipient) (*SendResult, error) {
	opts := req.Options
	if rcpt.ContactID != nil {
		opts.ContactID = rcpt.ContactID
	}
	to := models.AddressList{rcpt.Email}

	if req.TemplateID != "" {
		return b.dispatcher.SendWithTemplate(ctx, SendTemplateInput{
			TemplateID: req.TemplateID,
			To:         to,
			Variables:  rcpt.Variables,
			Options:    opts,
			CreatedBy:  req.CreatedBy,
		})
	}

	subject, html, text := req.Subject, req.HTML, req.Text
	if len(rcpt.Variables) > 0 {
		subject = RenderTemplate(subject, rcpt.Variables)
		html = RenderTemplate(html, rcpt.Variables)
		if text != nil {
			rendered := RenderTemplate(*text, rcpt.Variables)
			text = &rendered
		}
	}

	return b.dispatcher.SendRaw(ctx, SendRawInput{
		To:        to,
		Subject:   subject,
		HTML:      html,
		Text:      text,
		Options:   opts,
		CreatedBy: req.CreatedBy,
	})
}

func (r *BulkResult) markRemainingFailed(remaining []models.BatchRecipient, cause error) {
	for _, rcpt := range remaining {
		r.Failed = append(r.Failed, models.BulkFailure{
			Recipient: rcpt.Email,
			Error:     fmt.Sprintf("batch cancelled: %v", cause),
		})
	}
}

// wait 等待 d 或 context 結束
func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
