// internal/models/mail.go
// 發送請求與批次作業資料模型

package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// AddressList 收件人列表
// JSON 可接受單一字串或字串陣列，不做去重
type AddressList []string

// UnmarshalJSON 解析單一地址或地址陣列
func (l *AddressList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		if strings.TrimSpace(single) == "" {
			*l = AddressList{}
			return nil
		}
		*l = AddressList{strings.TrimSpace(single)}
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return errors.New("address list must be a string or an array of strings")
	}

	result := make(AddressList, 0, len(list))
	for _, addr := range list {
		if trimmed := strings.TrimSpace(addr); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	*l = result
	return nil
}

// Envelope 交給發送服務的完整郵件
type Envelope struct {
	FromAddress  string
	FromName     string
	ToAddresses  []string
	CCAddresses  []string
	BCCAddresses []string
	Subject      string
	HTML         string
	Text         string
	Attachments  []DeliveryAttachment

	// TrackingToken 用於產生 Message-ID，回信可依此對應發送紀錄
	TrackingToken string
}

// Recipients 回傳所有 RCPT TO 地址
func (e *Envelope) Recipients() []string {
	rcpts := make([]string, 0, len(e.ToAddresses)+len(e.CCAddresses)+len(e.BCCAddresses))
	rcpts = append(rcpts, e.ToAddresses...)
	rcpts = append(rcpts, e.CCAddresses...)
	rcpts = append(rcpts, e.BCCAddresses...)
	return rcpts
}

// SendOptions 發送共用選項 (關聯與追蹤設定)
type SendOptions struct {
	CC                AddressList `json:"cc,omitempty"`
	BCC               AddressList `json:"bcc,omitempty"`
	EmailType         EmailType   `json:"email_type,omitempty"`
	CampaignID        *string     `json:"campaign_id,omitempty"`
	ClientID          *string     `json:"client_id,omitempty"`
	ContactID         *string     `json:"contact_id,omitempty"`
	DealID            *string     `json:"deal_id,omitempty"`
	ProjectID         *string     `json:"project_id,omitempty"`
	FollowUpScheduled *time.Time  `json:"follow_up_scheduled,omitempty"`
	DisableTracking   bool        `json:"disable_tracking,omitempty"`
}

// BatchRecipient 批次收件人，可帶各自的範本變數
type BatchRecipient struct {
	Email     string         `json:"email"`
	ContactID *string        `json:"contact_id,omitempty"`
	Variables map[string]any `json:"variables,omitempty"`
}

// BatchJob RabbitMQ 批次作業訊息格式
type BatchJob struct {
	BatchID    string           `json:"batch_id"`
	TemplateID string           `json:"template_id,omitempty"`
	Subject    string           `json:"subject,omitempty"`
	HTML       string           `json:"html,omitempty"`
	Text       *string          `json:"text,omitempty"`
	Options    SendOptions      `json:"options"`
	Recipients []BatchRecipient `json:"recipients"`
	CreatedBy  string           `json:"created_by"`
	QueuedAt   time.Time        `json:"queued_at"`
}

// BatchStatus 批次狀態
type BatchStatus string

const (
	BatchStatusQueued     BatchStatus = "queued"
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusFailed     BatchStatus = "failed"
)

// BulkSuccess 批次中成功的一筆
type BulkSuccess struct {
	Recipient     string `json:"recipient"`
	DeliveryID    string `json:"delivery_id"`
	TrackingToken string `json:"tracking_token"`
}

// BulkFailure 批次中失敗的一筆
type BulkFailure struct {
	Recipient string `json:"recipient"`
	Error     string `json:"error"`
}

// BatchStatusCache KeyDB 快取格式
type BatchStatusCache struct {
	BatchID      string        `json:"batch_id"`
	Status       BatchStatus   `json:"status"`
	Total        int           `json:"total"`
	Succeeded    []BulkSuccess `json:"succeeded,omitempty"`
	Failed       []BulkFailure `json:"failed,omitempty"`
	LastUpdated  string        `json:"last_updated"`
	ErrorMessage string        `json:"error_message,omitempty"`
}
