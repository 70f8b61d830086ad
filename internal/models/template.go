// internal/models/template.go
// 郵件範本資料模型

package models

import (
	"time"

	"github.com/lib/pq"
)

// EmailTemplate 可重複使用的郵件範本
// 內容由後台維護，發送流程只讀取並累計使用次數
type EmailTemplate struct {
	ID                 string         `json:"id" gorm:"type:uuid;primaryKey" bson:"_id"`
	Name               string         `json:"name" gorm:"not null;index" bson:"name"`
	TemplateType       EmailType      `json:"template_type" gorm:"not null;default:'other'" bson:"templateType"`
	Category           string         `json:"category" bson:"category"`
	Subject            string         `json:"subject" gorm:"not null" bson:"subject"`
	HTMLBody           string         `json:"html_body" gorm:"column:html_body;not null" bson:"htmlBody"`
	TextBody           *string        `json:"text_body,omitempty" gorm:"column:text_body" bson:"textBody,omitempty"`
	AvailableVariables pq.StringArray `json:"available_variables" gorm:"type:text[]" bson:"availableVariables"`
	UsageCount         int            `json:"usage_count" gorm:"not null;default:0" bson:"usageCount"`
	LastUsedAt         *time.Time     `json:"last_used_at,omitempty" bson:"lastUsedAt,omitempty"`
	IsActive           bool           `json:"is_active" gorm:"default:true" bson:"isActive"`
	CreatedAt          time.Time      `json:"created_at" gorm:"autoCreateTime" bson:"createdAt"`
	UpdatedAt          time.Time      `json:"updated_at" gorm:"autoUpdateTime" bson:"updatedAt"`
	CreatedBy          *string        `json:"created_by,omitempty" bson:"createdBy,omitempty"`
}

// TableName 指定資料表名稱
func (EmailTemplate) TableName() string {
	return "email_templates"
}
