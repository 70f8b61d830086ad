// internal/services/attachment_store.go
// 附件儲存 - 寫入 ATTACHMENT_PATH/日期/上傳 ID/檔名

package services

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"mail-dispatch/internal/config"
	"mail-dispatch/internal/models"
)

// AttachmentUpload API 附件 (base64 內容)
type AttachmentUpload struct {
	Filename    string `json:"filename" binding:"required"`
	Content     string `json:"content" binding:"required"`
	ContentType string `json:"content_type"`
}

// AttachmentStore 附件儲存服務
type AttachmentStore struct {
	basePath  string
	maxBytes  int64
	now       func() time.Time
	newUpload func() string
}

// NewAttachmentStore 建立附件儲存服務
func NewAttachmentStore(cfg *config.Config) *AttachmentStore {
	return &AttachmentStore{
		basePath:  cfg.AttachmentPath,
		maxBytes:  int64(cfg.MaxAttachmentSizeMB) * 1024 * 1024,
		now:       time.Now,
		newUpload: uuid.NewString,
	}
}

// SaveAll 解碼並寫入所有附件，同一次請求共用一個上傳目錄
func (s *AttachmentStore) SaveAll(uploads []AttachmentUpload) ([]models.DeliveryAttachment, error) {
	if len(uploads) == 0 {
		return nil, nil
	}

	dir := filepath.Join(s.basePath, s.now().Format("2006/01/02"), s.newUpload())
	attachments := make([]models.DeliveryAttachment, 0, len(uploads))

	for _, up := range uploads {
		content, err := base64.StdEncoding.DecodeString(up.Content)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid base64 content for %s", ErrInvalidRequest, up.Filename)
		}
		if s.maxBytes > 0 && int64(len(content)) > s.maxBytes {
			return nil, fmt.Errorf("%w: %s exceeds maximum size of %dMB", ErrInvalidRequest, up.Filename, s.maxBytes/1024/1024)
		}

		name := filepath.Base(up.Filename)
		if name == "." || name == string(filepath.Separator) {
			return nil, fmt.Errorf("%w: invalid attachment filename %q", ErrInvalidRequest, up.Filename)
		}

		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create attachment directory: %w", err)
		}
		storagePath := filepath.Join(dir, name)
		if err := os.WriteFile(storagePath, content, 0644); err != nil {
			return nil, fmt.Errorf("failed to save attachment: %w", err)
		}

		contentType := up.ContentType
		if contentType == "" {
			contentType = mimetype.Detect(content).String()
		}

		attachments = append(attachments, models.DeliveryAttachment{
			Filename:    name,
			StoragePath: storagePath,
			SizeBytes:   int64(len(content)),
			ContentType: contentType,
		})
	}

	return attachments, nil
}
