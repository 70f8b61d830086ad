// internal/services/errors.go
// 服務層錯誤定義

package services

import "errors"

var (
	// ErrTemplateNotFound 範本不存在、已停用或 id 格式錯誤
	ErrTemplateNotFound = errors.New("template not found")
	// ErrInvalidRequest 發送請求不完整
	ErrInvalidRequest = errors.New("invalid send request")
	// ErrTokenGeneration 系統亂數來源無法使用
	ErrTokenGeneration = errors.New("failed to generate tracking token")
)
