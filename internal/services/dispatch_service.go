// internal/services/dispatch_service.go
// 發送流程 - token、追蹤處理、交付、寫入發送紀錄

package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"mail-dispatch/internal/config"
	"mail-dispatch/internal/models"
	"mail-dispatch/internal/repository"
)

// SendRawInput 直接發送請求
type SendRawInput struct {
	To          models.AddressList
	Subject     string
	HTML        string
	Text        *string
	Attachments []models.DeliveryAttachment
	Options     models.SendOptions
	CreatedBy   string

	// TemplateID 由 SendWithTemplate 設定
	TemplateID *string
}

// SendTemplateInput 範本發送請求
type SendTemplateInput struct {
	TemplateID  string
	To          models.AddressList
	Variables   map[string]any
	Attachments []models.DeliveryAttachment
	Options     models.SendOptions
	CreatedBy   string
}

// SendResult 發送結果
type SendResult struct {
	DeliveryID        string `json:"delivery_id"`
	TrackingToken     string `json:"tracking_token"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`
}

// DispatchService 發送服務
type DispatchService struct {
	cfg          *config.Config
	transport    MailTransport
	deliveries   repository.DeliveryRepository
	templates    repository.TemplateRepository
	instrumentor *Instrumentor
	now          func() time.Time
}

// NewDispatchService 建立發送服務
func NewDispatchService(cfg *config.Config, transport MailTransport, deliveries repository.DeliveryRepository, templates repository.TemplateRepository) *DispatchService {
	return &DispatchService{
		cfg:          cfg,
		transport:    transport,
		deliveries:   deliveries,
		templates:    templates,
		instrumentor: NewInstrumentor(cfg.TrackingBaseURL),
		now:          time.Now,
	}
}

// SendRaw 發送郵件並寫入發送紀錄
// 交付失敗時不寫入紀錄
func (s *DispatchService) SendRaw(ctx context.Context, in SendRawInput) (*SendResult, error) {
	emailType, err := validateSend(in.To, in.CreatedBy, in.Options.EmailType)
	if err != nil {
		return nil, err
	}

	token, err := GenerateTrackingToken()
	if err != nil {
		return nil, err
	}

	html := in.HTML
	if !in.Options.DisableTracking {
		html = s.instrumentor.Instrument(html, token)
	}

	env := &models.Envelope{
		FromAddress:   s.cfg.SenderEmail,
		FromName:      s.cfg.SenderName,
		ToAddresses:   in.To,
		CCAddresses:   in.Options.CC,
		BCCAddresses:  in.Options.BCC,
		Subject:       in.Subject,
		HTML:          html,
		Attachments:   in.Attachments,
		TrackingToken: token,
	}
	if in.Text != nil {
		env.Text = *in.Text
	}

	sendCtx := ctx
	if s.cfg.SMTPTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, s.cfg.SMTPTimeout)
		defer cancel()
	}

	messageID, err := s.transport.Send(sendCtx, env)
	if err != nil {
		log.Printf("[Dispatch] Send failed via %s (%d recipient(s)): %v", s.transport.Name(), len(env.Recipients()), err)
		return nil, fmt.Errorf("failed to send email: %w", err)
	}

	record := &models.DeliveryRecord{
		ID:                uuid.NewString(),
		TrackingToken:     token,
		FromAddress:       s.cfg.SenderEmail,
		ToAddresses:       pq.StringArray(in.To),
		CCAddresses:       pq.StringArray(in.Options.CC),
		BCCAddresses:      pq.StringArray(in.Options.BCC),
		Subject:           in.Subject,
		HTMLBody:          html,
		TextBody:          in.Text,
		Attachments:       in.Attachments,
		SentAt:            s.now().UTC(),
		EmailType:         emailType,
		TemplateID:        in.TemplateID,
		CampaignID:        in.Options.CampaignID,
		ProviderMessageID: messageID,
		ClientID:          in.Options.ClientID,
		ContactID:         in.Options.ContactID,
		DealID:            in.Options.DealID,
		ProjectID:         in.Options.ProjectID,
		ClickedLinks:      []models.ClickedLink{},
		BounceStatus:      models.BounceStatusNone,
		FollowUpScheduled: in.Options.FollowUpScheduled,
		CreatedBy:         in.CreatedBy,
	}

	if err := s.deliveries.Create(ctx, record); err != nil {
		log.Printf("[Dispatch] Email %s was sent but its delivery record was not stored: %v", messageID, err)
		return nil, fmt.Errorf("email %s was sent but recording failed: %w", messageID, err)
	}

	log.Printf("[Dispatch] Sent delivery %s via %s", record.ID, s.transport.Name())

	return &SendResult{
		DeliveryID:        record.ID,
		TrackingToken:     token,
		ProviderMessageID: messageID,
	}, nil
}

// SendWithTemplate 以範本發送
// 使用次數在交付前累加，交付失敗也不回滾
func (s *DispatchService) SendWithTemplate(ctx context.Context, in SendTemplateInput) (*SendResult, error) {
	if _, err := validateSend(in.To, in.CreatedBy, in.Options.EmailType); err != nil {
		return nil, err
	}

	tmpl, err := s.templates.FindActiveByID(ctx, in.TemplateID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to load template: %w", err)
	}

	subject := RenderTemplate(tmpl.Subject, in.Variables)
	html := RenderTemplate(tmpl.HTMLBody, in.Variables)
	var text *string
	if tmpl.TextBody != nil {
		rendered := RenderTemplate(*tmpl.TextBody, in.Variables)
		text = &rendered
	}

	if err := s.templates.IncrementUsage(ctx, tmpl.ID, s.now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to update template usage: %w", err)
	}

	opts := in.Options
	if opts.EmailType == "" {
		opts.EmailType = tmpl.TemplateType
	}
	templateID := tmpl.ID

	return s.SendRaw(ctx, SendRawInput{
		To:          in.To,
		Subject:     subject,
		HTML:        html,
		Text:        text,
		Attachments: in.Attachments,
		Options:     opts,
		CreatedBy:   in.CreatedBy,
		TemplateID:  &templateID,
	})
}

// validateSend 檢查收件人、建立者與郵件類型，空類型視為 other
func validateSend(to models.AddressList, createdBy string, emailType models.EmailType) (models.EmailType, error) {
	if len(to) == 0 {
		return "", fmt.Errorf("%w: at least one recipient is required", ErrInvalidRequest)
	}
	if createdBy == "" {
		return "", fmt.Errorf("%w: created_by is required", ErrInvalidRequest)
	}
	if emailType == "" {
		return models.EmailTypeOther, nil
	}
	if !emailType.IsValid() {
		return "", fmt.Errorf("%w: unknown email type %q", ErrInvalidRequest, emailType)
	}
	return emailType, nil
}
