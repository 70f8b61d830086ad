// internal/services/template_renderer.go
// 範本變數替換 - 只支援 {{name}}，不支援條件、迴圈或跳脫

package services

import (
	"fmt"
	"regexp"
	"strconv"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([^{}]*?)\s*\}\}`)

// RenderTemplate 以 vars 替換所有 {{ name }}
// 找不到或值為 nil 的變數會替換成空字串
func RenderTemplate(body string, vars map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(body, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		value, ok := vars[name]
		if !ok {
			return ""
		}
		return formatValue(value)
	})
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
