// internal/models/delivery.go
// 發送紀錄資料模型 - 每封成功交付 SMTP 的郵件一筆

package models

import (
	"time"

	"github.com/lib/pq"
)

// EmailType 郵件類型
type EmailType string

const (
	EmailTypeOutreach  EmailType = "outreach"
	EmailTypeProposal  EmailType = "proposal"
	EmailTypeInvoice   EmailType = "invoice"
	EmailTypeFollowUp  EmailType = "follow-up"
	EmailTypeGreeting  EmailType = "greeting"
	EmailTypeSupport   EmailType = "support"
	EmailTypeMarketing EmailType = "marketing"
	EmailTypeOther     EmailType = "other"
)

// IsValid 檢查是否為已知類型
func (t EmailType) IsValid() bool {
	switch t {
	case EmailTypeOutreach, EmailTypeProposal, EmailTypeInvoice, EmailTypeFollowUp,
		EmailTypeGreeting, EmailTypeSupport, EmailTypeMarketing, EmailTypeOther:
		return true
	}
	return false
}

// BounceStatus 退信狀態
type BounceStatus string

const (
	BounceStatusNone BounceStatus = "none"
	BounceStatusSoft BounceStatus = "soft"
	BounceStatusHard BounceStatus = "hard"
)

// DeliveryRecord 發送紀錄
// 建立後僅追蹤欄位 (開信、點擊、回覆、退信) 會被更新
type DeliveryRecord struct {
	ID            string `json:"id" gorm:"type:uuid;primaryKey" bson:"_id"`
	TrackingToken string `json:"tracking_token" gorm:"uniqueIndex;not null" bson:"trackingToken"`

	// 信封
	FromAddress  string               `json:"from" gorm:"column:from_address;not null" bson:"from"`
	ToAddresses  pq.StringArray       `json:"to" gorm:"column:to_addresses;type:text[];not null" bson:"to"`
	CCAddresses  pq.StringArray       `json:"cc,omitempty" gorm:"column:cc_addresses;type:text[]" bson:"cc,omitempty"`
	BCCAddresses pq.StringArray       `json:"bcc,omitempty" gorm:"column:bcc_addresses;type:text[]" bson:"bcc,omitempty"`
	Subject      string               `json:"subject" gorm:"not null" bson:"subject"`
	HTMLBody     string               `json:"html_body" gorm:"column:html_body" bson:"htmlBody"`
	TextBody     *string              `json:"text_body,omitempty" gorm:"column:text_body" bson:"textBody,omitempty"`
	Attachments  []DeliveryAttachment `json:"attachments,omitempty" gorm:"foreignKey:DeliveryID" bson:"attachments"`

	// 發送資訊
	SentAt            time.Time `json:"sent_at" gorm:"not null;index" bson:"sentAt"`
	EmailType         EmailType `json:"email_type" gorm:"not null;default:'other'" bson:"emailType"`
	TemplateID        *string   `json:"template_id,omitempty" gorm:"type:uuid;index" bson:"templateId,omitempty"`
	CampaignID        *string   `json:"campaign_id,omitempty" gorm:"index" bson:"campaignId,omitempty"`
	ProviderMessageID string    `json:"provider_message_id,omitempty" bson:"providerMessageId,omitempty"`

	// 關聯
	ClientID  *string `json:"client_id,omitempty" gorm:"index" bson:"clientId,omitempty"`
	ContactID *string `json:"contact_id,omitempty" gorm:"index" bson:"contactId,omitempty"`
	DealID    *string `json:"deal_id,omitempty" gorm:"index" bson:"dealId,omitempty"`
	ProjectID *string `json:"project_id,omitempty" bson:"projectId,omitempty"`

	// 開信追蹤
	ReadStatus   bool       `json:"read_status" gorm:"not null;default:false" bson:"readStatus"`
	ReadAt       *time.Time `json:"read_at,omitempty" bson:"readAt,omitempty"`
	OpenCount    int        `json:"open_count" gorm:"not null;default:0" bson:"openCount"`
	LastOpenedAt *time.Time `json:"last_opened_at,omitempty" bson:"lastOpenedAt,omitempty"`

	// 點擊追蹤
	ClickedLinks []ClickedLink `json:"clicked_links" gorm:"foreignKey:DeliveryID" bson:"clickedLinks"`

	// 回覆與退信 (由外部事件更新)
	ReplyStatus  bool         `json:"reply_status" gorm:"not null;default:false" bson:"replyStatus"`
	RepliedAt    *time.Time   `json:"replied_at,omitempty" bson:"repliedAt,omitempty"`
	BounceStatus BounceStatus `json:"bounce_status" gorm:"not null;default:'none'" bson:"bounceStatus"`
	BouncedAt    *time.Time   `json:"bounced_at,omitempty" bson:"bouncedAt,omitempty"`
	BounceReason *string      `json:"bounce_reason,omitempty" bson:"bounceReason,omitempty"`

	// 後續追蹤 (僅資料)
	FollowUpScheduled *time.Time `json:"follow_up_scheduled,omitempty" bson:"followUpScheduled,omitempty"`
	FollowUpCompleted bool       `json:"follow_up_completed" gorm:"not null;default:false" bson:"followUpCompleted"`

	// 稽核
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime" bson:"createdAt"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime" bson:"updatedAt"`
	CreatedBy string    `json:"created_by" gorm:"not null" bson:"createdBy"`
}

// TableName 指定資料表名稱
func (DeliveryRecord) TableName() string {
	return "delivery_records"
}

// ClickedLink 點擊紀錄，每個目的網址一筆
type ClickedLink struct {
	ID         string    `json:"-" gorm:"type:uuid;primaryKey" bson:"-"`
	DeliveryID string    `json:"-" gorm:"type:uuid;not null;uniqueIndex:idx_clicked_links_delivery_url" bson:"-"`
	URLHash    string    `json:"-" gorm:"column:url_hash;not null;uniqueIndex:idx_clicked_links_delivery_url" bson:"-"`
	URL        string    `json:"url" gorm:"column:url;not null" bson:"url"`
	ClickedAt  time.Time `json:"clicked_at" gorm:"not null" bson:"clickedAt"`
	ClickCount int       `json:"click_count" gorm:"not null;default:1" bson:"clickCount"`
}

// TableName 指定資料表名稱
func (ClickedLink) TableName() string {
	return "clicked_links"
}

// DeliveryAttachment 附件資料模型
type DeliveryAttachment struct {
	ID          string `json:"-" gorm:"type:uuid;primaryKey" bson:"-"`
	DeliveryID  string `json:"-" gorm:"type:uuid;not null;index" bson:"-"`
	Filename    string `json:"filename" gorm:"not null" bson:"filename"`
	StoragePath string `json:"storage_path" gorm:"not null" bson:"storagePath"`
	SizeBytes   int64  `json:"size_bytes" bson:"sizeBytes"`
	ContentType string `json:"content_type,omitempty" bson:"contentType,omitempty"`
}

// TableName 指定資料表名稱
func (DeliveryAttachment) TableName() string {
	return "delivery_attachments"
}

// EngagementCounts 統計用原始計數
type EngagementCounts struct {
	TotalSent    int64 `json:"total_sent" bson:"totalSent"`
	TotalOpened  int64 `json:"total_opened" bson:"totalOpened"`
	TotalReplied int64 `json:"total_replied" bson:"totalReplied"`
	TotalBounced int64 `json:"total_bounced" bson:"totalBounced"`
}

// EmailStats 發送統計
type EmailStats struct {
	EngagementCounts
	OpenRate  float64 `json:"open_rate"`
	ReplyRate float64 `json:"reply_rate"`
}
