// internal/smtp/backend.go
// SMTP Backend 介面實作 - 為每個連線建立回信 Session

package smtp

import (
	"context"
	"log"

	gosmtp "github.com/emersion/go-smtp"

	"mail-dispatch/internal/config"
)

// ReplyRecorder 回信紀錄介面 (services.EngagementService 實作)
type ReplyRecorder interface {
	RecordReply(ctx context.Context, token string) error
}

// Backend 實作 smtp.Backend 介面
type Backend struct {
	cfg     *config.Config
	replies ReplyRecorder
}

// NewBackend 建立 SMTP Backend
func NewBackend(cfg *config.Config, replies ReplyRecorder) *Backend {
	return &Backend{
		cfg:     cfg,
		replies: replies,
	}
}

// NewSession 建立新的 SMTP Session
func (b *Backend) NewSession(c *gosmtp.Conn) (gosmtp.Session, error) {
	log.Printf("[SMTP] New connection from: %s", c.Hostname())
	return NewSession(b.cfg, b.replies), nil
}
