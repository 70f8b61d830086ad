// internal/smtp/server.go
// SMTP Server 核心 - 啟動與管理回信接收伺服器

package smtp

import (
	"errors"
	"fmt"
	"log"
	"time"

	gosmtp "github.com/emersion/go-smtp"

	"mail-dispatch/internal/config"
)

// Server SMTP 伺服器
type Server struct {
	cfg        *config.Config
	replies    ReplyRecorder
	smtpServer *gosmtp.Server
}

// NewServer 建立 SMTP 伺服器
func NewServer(cfg *config.Config, replies ReplyRecorder) *Server {
	s := &Server{
		cfg:     cfg,
		replies: replies,
	}

	s.smtpServer = gosmtp.NewServer(NewBackend(cfg, replies))
	s.smtpServer.Addr = fmt.Sprintf(":%s", cfg.SMTPInboundPort)
	s.smtpServer.Domain = cfg.SMTPInboundDomain
	s.smtpServer.ReadTimeout = 30 * time.Second
	s.smtpServer.WriteTimeout = 30 * time.Second
	s.smtpServer.MaxMessageBytes = int64(cfg.SMTPMaxMessageSize) * 1024 * 1024
	s.smtpServer.MaxRecipients = 50

	return s
}

// Start 啟動 SMTP 伺服器 (阻塞)
func (s *Server) Start() error {
	log.Printf("[SMTP] Reply receiver listening on port %s (domain %s)", s.cfg.SMTPInboundPort, s.cfg.SMTPInboundDomain)
	log.Printf("[SMTP] Max message size: %d MB", s.cfg.SMTPMaxMessageSize)

	if err := s.smtpServer.ListenAndServe(); err != nil && !errors.Is(err, gosmtp.ErrServerClosed) {
		return fmt.Errorf("SMTP server error: %w", err)
	}
	return nil
}

// Shutdown 關閉伺服器
func (s *Server) Shutdown() error {
	log.Println("[SMTP] Shutting down server...")
	return s.smtpServer.Close()
}
