// internal/services/token.go
// 追蹤 token 產生

package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// TrackingTokenLength token 字元長度 (32 bytes hex)
const TrackingTokenLength = 64

var tokenSource io.Reader = rand.Reader

// GenerateTrackingToken 產生 64 字元小寫 hex token
// 亂數來源失敗時直接回傳錯誤，不使用任何替代來源
func GenerateTrackingToken() (string, error) {
	buf := make([]byte, TrackingTokenLength/2)
	if _, err := io.ReadFull(tokenSource, buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}
	return hex.EncodeToString(buf), nil
}

// IsTrackingToken 檢查字串是否為 token 格式
func IsTrackingToken(s string) bool {
	if len(s) != TrackingTokenLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
