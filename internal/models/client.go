// internal/models/client.go
// Client Token 資料模型 - 後台操作者的 API 憑證

package models

import (
	"time"

	"github.com/lib/pq"
)

// ClientToken Client Token 資料模型
// client_id 會寫入發送紀錄的 created_by
type ClientToken struct {
	ID          string         `json:"id" gorm:"type:uuid;primaryKey" bson:"_id"`
	ClientID    string         `json:"client_id" gorm:"uniqueIndex;not null" bson:"clientId"`
	ClientName  string         `json:"client_name" gorm:"not null" bson:"clientName"`
	Department  string         `json:"department,omitempty" bson:"department,omitempty"`
	Permissions pq.StringArray `json:"permissions" gorm:"type:text[];not null" bson:"permissions"`
	TokenHash   string         `json:"-" gorm:"not null" bson:"tokenHash"`
	CreatedAt   time.Time      `json:"created_at" gorm:"autoCreateTime" bson:"createdAt"`
	RevokedAt   *time.Time     `json:"revoked_at,omitempty" bson:"revokedAt,omitempty"`
	IsActive    bool           `json:"is_active" gorm:"default:true" bson:"isActive"`
}

// TableName 指定資料表名稱
func (ClientToken) TableName() string {
	return "client_tokens"
}
