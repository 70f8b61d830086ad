// internal/services/instrumentor.go
// HTML 追蹤處理 - 開信像素與連結改寫

package services

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
)

var (
	// href 前必須是空白，避免命中 data-href、xlink:href
	hrefPattern    = regexp.MustCompile(`(?i)(<a\b[^>]*?\shref\s*=\s*)(?:"([^"]*)"|'([^']*)'|([^\s"'>]+))`)
	closingBodyTag = regexp.MustCompile(`(?i)</body\s*>`)
	entityPattern  = regexp.MustCompile(`&#?[0-9A-Za-z]+;`)
)

// Instrumentor 在 HTML 內容加入開信像素並改寫連結
type Instrumentor struct {
	baseURL string
}

// NewInstrumentor 建立 Instrumentor，baseURL 例如 https://mail.example.com/api/email
func NewInstrumentor(baseURL string) *Instrumentor {
	return &Instrumentor{baseURL: strings.TrimRight(baseURL, "/")}
}

// PixelURL 開信像素網址
func (i *Instrumentor) PixelURL(token string) string {
	return fmt.Sprintf("%s/track/%s", i.baseURL, token)
}

// ClickURL 點擊追蹤網址
func (i *Instrumentor) ClickURL(token, destination string) string {
	return fmt.Sprintf("%s/click/%s?url=%s", i.baseURL, token, url.QueryEscape(destination))
}

// Instrument 先改寫連結再加入像素，像素網址不會被改寫
func (i *Instrumentor) Instrument(body, token string) string {
	return i.InjectPixel(i.RewriteLinks(body, token), token)
}

// InjectPixel 在最後一個 </body> 前加入像素，找不到則附加在結尾
// 已含同一 token 的像素時不重複加入
func (i *Instrumentor) InjectPixel(body, token string) string {
	pixelURL := i.PixelURL(token)
	if strings.Contains(body, pixelURL) {
		return body
	}

	pixel := fmt.Sprintf(`<img src="%s" width="1" height="1" style="display:none;" alt="" />`, pixelURL)

	locs := closingBodyTag.FindAllStringIndex(body, -1)
	if len(locs) == 0 {
		return body + pixel
	}

	at := locs[len(locs)-1][0]
	return body[:at] + pixel + body[at:]
}

// RewriteLinks 將所有 <a href> 改為點擊追蹤網址
// mailto:、tel: 與已是追蹤網址的連結保持不變；未加引號的 href 改寫後補上雙引號
func (i *Instrumentor) RewriteLinks(body, token string) string {
	clickPrefix := strings.ToLower(i.baseURL + "/click/")

	return hrefPattern.ReplaceAllStringFunc(body, func(match string) string {
		m := hrefPattern.FindStringSubmatchIndex(match)
		prefix := match[:m[3]]

		quote := `"`
		var href string
		switch {
		case m[4] >= 0:
			href = match[m[4]:m[5]]
		case m[6] >= 0:
			quote = "'"
			href = match[m[6]:m[7]]
		default:
			href = match[m[8]:m[9]]
		}

		destination := unescapeHref(href)
		if !shouldTrackLink(destination, clickPrefix) {
			return match
		}

		return prefix + quote + i.ClickURL(token, destination) + quote
	})
}

// unescapeHref 只還原以分號結尾的實體，避免 ?a=1&not=2 被當成 &not
func unescapeHref(href string) string {
	return entityPattern.ReplaceAllStringFunc(href, html.UnescapeString)
}

func shouldTrackLink(href, clickPrefix string) bool {
	lower := strings.ToLower(strings.TrimSpace(href))
	switch {
	case strings.HasPrefix(lower, "mailto:"), strings.HasPrefix(lower, "tel:"):
		return false
	case strings.HasPrefix(lower, clickPrefix):
		return false
	}
	return true
}
