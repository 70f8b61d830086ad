// internal/services/smtp_transport.go
// SMTP 郵件發送服務 (帳號密碼認證，implicit TLS 或 STARTTLS)

package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
	"github.com/gabriel-vasile/mimetype"

	"mail-dispatch/internal/config"
	"mail-dispatch/internal/models"
)

// SMTPTransport SMTP 郵件發送服務
// 實作 MailTransport interface
type SMTPTransport struct {
	cfg       *config.Config
	tlsConfig *tls.Config
	now       func() time.Time
}

// NewSMTPTransport 建立 SMTP 發送服務
func NewSMTPTransport(cfg *config.Config) *SMTPTransport {
	return &SMTPTransport{
		cfg: cfg,
		tlsConfig: &tls.Config{
			ServerName: cfg.SMTPHost,
			MinVersion: tls.VersionTLS12,
		},
		now: time.Now,
	}
}

// Name 回傳服務名稱
func (s *SMTPTransport) Name() string {
	return "SMTP"
}

// Send 組成 MIME 並交付 SMTP 伺服器，回傳設定的 Message-ID
func (s *SMTPTransport) Send(ctx context.Context, env *models.Envelope) (string, error) {
	messageID := s.messageID(env)

	var buf bytes.Buffer
	if err := s.compose(&buf, env, messageID); err != nil {
		return "", fmt.Errorf("failed to compose message: %w", err)
	}

	client, err := s.dial(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	if s.cfg.SMTPUsername != "" {
		auth := sasl.NewPlainClient("", s.cfg.SMTPUsername, s.cfg.SMTPPassword)
		if err := client.Auth(auth); err != nil {
			return "", fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.SendMail(env.FromAddress, env.Recipients(), &buf); err != nil {
		return "", fmt.Errorf("failed to send email via SMTP: %w", err)
	}

	// 郵件已被伺服器接受，QUIT 失敗不影響結果
	_ = client.Quit()

	return "<" + messageID + ">", nil
}

// dial 依設定以 implicit TLS 或 STARTTLS 建立連線
func (s *SMTPTransport) dial(ctx context.Context) (*gosmtp.Client, error) {
	addr := s.cfg.SMTPAddr()

	dialCtx, cancel := s.dialContext(ctx)
	defer cancel()

	var (
		client *gosmtp.Client
		err    error
	)

	if s.cfg.SMTPImplicitTLS {
		dialer := &tls.Dialer{Config: s.tlsConfig}
		conn, dialErr := dialer.DialContext(dialCtx, "tcp", addr)
		if dialErr != nil {
			return nil, fmt.Errorf("failed to connect to SMTP server %s: %w", addr, dialErr)
		}
		client = gosmtp.NewClient(conn)
	} else {
		var dialer net.Dialer
		conn, dialErr := dialer.DialContext(dialCtx, "tcp", addr)
		if dialErr != nil {
			return nil, fmt.Errorf("failed to connect to SMTP server %s: %w", addr, dialErr)
		}
		client, err = gosmtp.NewClientStartTLS(conn, s.tlsConfig)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to start TLS with %s: %w", addr, err)
		}
	}

	client.CommandTimeout = s.cfg.SMTPTimeout
	client.SubmissionTimeout = s.cfg.SMTPTimeout

	return client, nil
}

// dialContext SMTP_TIMEOUT 為 0 時不設連線逾時，與 DispatchService 一致
func (s *SMTPTransport) dialContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.SMTPTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.SMTPTimeout)
}

// messageID token@寄件網域，回信的 In-Reply-To 會帶回此值
func (s *SMTPTransport) messageID(env *models.Envelope) string {
	domain := "localhost"
	if at := strings.LastIndex(env.FromAddress, "@"); at >= 0 && at < len(env.FromAddress)-1 {
		domain = env.FromAddress[at+1:]
	}
	return env.TrackingToken + "@" + domain
}

// compose 以 go-message 產生 multipart 郵件
func (s *SMTPTransport) compose(w io.Writer, env *models.Envelope, messageID string) error {
	var h mail.Header
	h.SetDate(s.now())
	h.SetAddressList("From", []*mail.Address{{Name: env.FromName, Address: env.FromAddress}})
	h.SetAddressList("To", toAddresses(env.ToAddresses))
	if len(env.CCAddresses) > 0 {
		h.SetAddressList("Cc", toAddresses(env.CCAddresses))
	}
	h.SetSubject(env.Subject)
	h.SetMessageID(messageID)

	mw, err := mail.CreateWriter(w, h)
	if err != nil {
		return err
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return err
	}
	if env.Text != "" {
		if err := writeInlinePart(tw, "text/plain", env.Text); err != nil {
			return err
		}
	}
	if env.HTML != "" {
		if err := writeInlinePart(tw, "text/html", env.HTML); err != nil {
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}

	for _, att := range env.Attachments {
		if err := writeAttachment(mw, att); err != nil {
			return err
		}
	}

	return mw.Close()
}

func writeInlinePart(tw *mail.InlineWriter, contentType, body string) error {
	var ph mail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	pw, err := tw.CreatePart(ph)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(pw, body); err != nil {
		pw.Close()
		return err
	}
	return pw.Close()
}

func writeAttachment(mw *mail.Writer, att models.DeliveryAttachment) error {
	content, err := os.ReadFile(att.StoragePath)
	if err != nil {
		return fmt.Errorf("failed to read attachment %s: %w", att.Filename, err)
	}

	contentType := att.ContentType
	if contentType == "" {
		contentType = mimetype.Detect(content).String()
	}

	var ah mail.AttachmentHeader
	ah.Set("Content-Type", contentType)
	ah.SetFilename(filepath.Base(att.Filename))

	aw, err := mw.CreateAttachment(ah)
	if err != nil {
		return err
	}
	if _, err := aw.Write(content); err != nil {
		aw.Close()
		return err
	}
	return aw.Close()
}

func toAddresses(addrs []string) []*mail.Address {
	list := make([]*mail.Address, 0, len(addrs))
	for _, a := range addrs {
		list = append(list, &mail.Address{Address: a})
	}
	return list
}
