// internal/smtp/session.go
// SMTP Session 處理 - 由回信標頭找出追蹤 token 並標記已回覆

package smtp

import (
	"bufio"
	"context"
	"io"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
	gosmtp "github.com/emersion/go-smtp"

	"mail-dispatch/internal/config"
	"mail-dispatch/internal/services"
)

// 標頭格式不合規時的退路
var rawMsgIDPattern = regexp.MustCompile(`<([0-9a-f]{64})@[^>]*>`)

// replyHeaders 依序檢查的標頭
var replyHeaders = []string{"In-Reply-To", "References"}

// Session 實作 smtp.Session 介面
type Session struct {
	cfg     *config.Config
	replies ReplyRecorder

	from string
	to   []string
}

// NewSession 建立新的 Session
func NewSession(cfg *config.Config, replies ReplyRecorder) *Session {
	return &Session{
		cfg:     cfg,
		replies: replies,
		to:      make([]string, 0),
	}
}

// Mail 處理 MAIL FROM 指令
func (s *Session) Mail(from string, opts *gosmtp.MailOptions) error {
	s.from = cleanEmail(from)
	return nil
}

// Rcpt 處理 RCPT TO 指令
func (s *Session) Rcpt(to string, opts *gosmtp.RcptOptions) error {
	s.to = append(s.to, cleanEmail(to))
	return nil
}

// Data 只解析標頭，內文不保存
// 沒有追蹤 token 的郵件照常接受後丟棄
func (s *Session) Data(r io.Reader) error {
	header, err := textproto.ReadHeader(bufio.NewReader(r))
	if err != nil {
		return &gosmtp.SMTPError{
			Code:         554,
			EnhancedCode: gosmtp.EnhancedCode{5, 6, 0},
			Message:      "Malformed message header",
		}
	}

	tokens := ExtractReplyTokens(mail.Header{Header: message.Header{Header: header}})
	if len(tokens) == 0 {
		log.Printf("[SMTP] Message without tracking reference discarded (rcpts=%d)", len(s.to))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.storeTimeout())
	defer cancel()

	for _, token := range tokens {
		if err := s.replies.RecordReply(ctx, token); err != nil {
			log.Printf("[SMTP] Failed to record reply: %v", err)
			return &gosmtp.SMTPError{
				Code:         451,
				EnhancedCode: gosmtp.EnhancedCode{4, 3, 0},
				Message:      "Temporary failure, try again later",
			}
		}
	}

	log.Printf("[SMTP] Recorded reply for %d tracked message(s)", len(tokens))
	return nil
}

// ExtractReplyTokens 由 In-Reply-To 與 References 取出不重複的追蹤 token
func ExtractReplyTokens(h mail.Header) []string {
	seen := make(map[string]struct{})
	var tokens []string

	add := func(id string) {
		local, _, ok := strings.Cut(id, "@")
		if !ok || !services.IsTrackingToken(local) {
			return
		}
		if _, dup := seen[local]; dup {
			return
		}
		seen[local] = struct{}{}
		tokens = append(tokens, local)
	}

	for _, key := range replyHeaders {
		ids, err := h.MsgIDList(key)
		if err != nil {
			for _, m := range rawMsgIDPattern.FindAllStringSubmatch(h.Get(key), -1) {
				add(m[1] + "@")
			}
			continue
		}
		for _, id := range ids {
			add(id)
		}
	}
	return tokens
}

func (s *Session) storeTimeout() time.Duration {
	if s.cfg.StoreTimeout > 0 {
		return s.cfg.StoreTimeout
	}
	return 10 * time.Second
}

// Reset 重置 Session 狀態
func (s *Session) Reset() {
	s.from = ""
	s.to = make([]string, 0)
}

// Logout 處理 QUIT 指令
func (s *Session) Logout() error {
	return nil
}

// cleanEmail 移除角括號
func cleanEmail(email string) string {
	email = strings.TrimSpace(email)
	email = strings.TrimPrefix(email, "<")
	email = strings.TrimSuffix(email, ">")
	return email
}

var _ gosmtp.Session = (*Session)(nil)

