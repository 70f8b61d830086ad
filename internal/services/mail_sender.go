// internal/services/mail_sender.go
// 郵件發送服務共用介面

package services

import (
	"context"

	"mail-dispatch/internal/models"
)

// MailTransport 郵件發送服務介面
// SMTP、SendGrid 都需實作此介面
type MailTransport interface {
	// Send 交付郵件，回傳服務端 message id
	Send(ctx context.Context, env *models.Envelope) (string, error)

	// Name 回傳服務名稱，用於 logging
	Name() string
}
