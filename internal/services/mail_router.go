// internal/services/mail_router.go
// 郵件路由服務 - 依 MAIL_PROVIDER 選擇發送服務

package services

import (
	"context"
	"fmt"
	"log"

	"mail-dispatch/internal/config"
	"mail-dispatch/internal/models"
)

// MailRouter 郵件路由服務
// MAIL_PROVIDER=sendgrid 時使用 SendGrid，其餘使用 SMTP
type MailRouter struct {
	provider        string
	smtpTransport   MailTransport
	sendgridService MailTransport
}

// NewMailRouter 建立郵件路由服務
func NewMailRouter(cfg *config.Config, smtpTransport MailTransport, sendgridService MailTransport) *MailRouter {
	return &MailRouter{
		provider:        cfg.MailProvider,
		smtpTransport:   smtpTransport,
		sendgridService: sendgridService,
	}
}

// Route 選擇對應的發送服務
func (r *MailRouter) Route() MailTransport {
	if r.provider == config.MailProviderSendGrid {
		return r.sendgridService
	}
	return r.smtpTransport
}

// Send 發送郵件 (自動路由到對應服務)
func (r *MailRouter) Send(ctx context.Context, env *models.Envelope) (string, error) {
	transport := r.Route()
	if transport == nil {
		return "", fmt.Errorf("mail provider %q is not configured", r.provider)
	}
	log.Printf("[Dispatch] Using %s for %d recipient(s)", transport.Name(), len(env.Recipients()))
	return transport.Send(ctx, env)
}

// Name 回傳服務名稱
func (r *MailRouter) Name() string {
	return "MailRouter"
}

// ValidateConfiguration 驗證郵件服務設定
func (r *MailRouter) ValidateConfiguration() error {
	switch r.provider {
	case config.MailProviderSendGrid:
		if r.sendgridService == nil {
			return fmt.Errorf("SendGrid service is not configured")
		}
	default:
		if r.smtpTransport == nil {
			return fmt.Errorf("SMTP transport is not configured")
		}
	}
	return nil
}
