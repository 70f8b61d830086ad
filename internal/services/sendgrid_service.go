// internal/services/sendgrid_service.go
// SendGrid 郵件發送服務

package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"mail-dispatch/internal/config"
	"mail-dispatch/internal/models"
)

// sendGridClient sendgrid.Client 的最小介面，方便測試替換
type sendGridClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridService SendGrid 郵件發送服務
// 實作 MailTransport interface
type SendGridService struct {
	cfg    *config.Config
	client sendGridClient
}

// NewSendGridService 建立 SendGrid 服務
func NewSendGridService(cfg *config.Config) *SendGridService {
	return &SendGridService{
		cfg:    cfg,
		client: sendgrid.NewSendClient(cfg.SendGridAPIKey),
	}
}

// Name 回傳服務名稱
func (s *SendGridService) Name() string {
	return "SendGrid"
}

// IsConfigured 檢查 SendGrid 是否已設定
func (s *SendGridService) IsConfigured() bool {
	return s.cfg.SendGridAPIKey != ""
}

// Send 發送郵件 (使用 SendGrid API)，回傳 X-Message-Id
func (s *SendGridService) Send(ctx context.Context, env *models.Envelope) (string, error) {
	message, err := s.buildMessage(env)
	if err != nil {
		return "", err
	}

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return "", fmt.Errorf("failed to send email via SendGrid: %w", err)
	}

	// 檢查回應狀態 (2xx 表示成功)
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return "", fmt.Errorf("SendGrid API error (status %d): %s", response.StatusCode, response.Body)
	}

	if ids := response.Headers["X-Message-Id"]; len(ids) > 0 {
		return ids[0], nil
	}
	return "", nil
}

// buildMessage 建立 SendGrid v3 郵件
func (s *SendGridService) buildMessage(env *models.Envelope) (*mail.SGMailV3, error) {
	message := mail.NewV3Mail()
	message.SetFrom(mail.NewEmail(env.FromName, env.FromAddress))
	message.Subject = env.Subject

	// 建立個人化設定 (收件人)
	personalization := mail.NewPersonalization()
	for _, addr := range env.ToAddresses {
		personalization.AddTos(mail.NewEmail("", addr))
	}
	for _, addr := range env.CCAddresses {
		personalization.AddCCs(mail.NewEmail("", addr))
	}
	for _, addr := range env.BCCAddresses {
		personalization.AddBCCs(mail.NewEmail("", addr))
	}
	message.AddPersonalizations(personalization)

	// 讓回信可依 token 對應發送紀錄
	if env.TrackingToken != "" {
		message.SetCustomArg("tracking_token", env.TrackingToken)
	}

	// SendGrid 要求順序: text/plain 必須在 text/html 之前
	if env.Text != "" {
		message.AddContent(mail.NewContent("text/plain", env.Text))
	}
	if env.HTML != "" {
		message.AddContent(mail.NewContent("text/html", env.HTML))
	}

	if err := s.loadAttachments(env, message); err != nil {
		return nil, fmt.Errorf("failed to load attachments: %w", err)
	}

	return message, nil
}

// loadAttachments 載入附件
func (s *SendGridService) loadAttachments(env *models.Envelope, message *mail.SGMailV3) error {
	for _, att := range env.Attachments {
		content, err := os.ReadFile(att.StoragePath)
		if err != nil {
			return fmt.Errorf("failed to read attachment %s: %w", att.Filename, err)
		}

		contentType := att.ContentType
		if contentType == "" {
			contentType = mimetype.Detect(content).String()
		}

		attachment := mail.NewAttachment()
		attachment.SetContent(base64.StdEncoding.EncodeToString(content))
		attachment.SetType(contentType)
		attachment.SetFilename(filepath.Base(att.Filename))
		attachment.SetDisposition("attachment")

		message.AddAttachment(attachment)
	}

	return nil
}
