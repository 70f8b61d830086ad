// internal/api/middlewares/auth.go
// JWT 認證中介軟體

package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"mail-dispatch/internal/config"
	"mail-dispatch/internal/repository"
)

// JWTAuth JWT 認證中介軟體
// 簽章正確之外，client_id 必須對應一筆未撤銷的 Token
func JWTAuth(cfg *config.Config, tokens repository.ClientTokenRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing_token", "Authorization header is required")
			return
		}

		// 解析 Bearer token
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			abortUnauthorized(c, "invalid_token_format", "Authorization header must be Bearer token")
			return
		}

		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			abortUnauthorized(c, "invalid_token", "Invalid or expired token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			abortUnauthorized(c, "invalid_claims", "Invalid token claims")
			return
		}

		clientID, ok := claims["client_id"].(string)
		if !ok || clientID == "" {
			abortUnauthorized(c, "invalid_client", "Token missing client_id")
			return
		}

		// 驗證 Token 是否有效 (未撤銷)
		record, err := tokens.FindByClientID(c.Request.Context(), clientID)
		if err != nil || !record.IsActive {
			abortUnauthorized(c, "token_revoked", "Token has been revoked or is inactive")
			return
		}

		c.Set("client_id", clientID)
		c.Set("client_name", claims["client_name"])
		c.Set("department", claims["department"])
		c.Set("permissions", claims["permissions"])

		c.Next()
	}
}

// RequirePermission 權限檢查中介軟體，admin 擁有所有權限
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		permsInterface, exists := c.Get("permissions")
		if !exists {
			abortForbidden(c, "no_permissions", "No permissions found")
			return
		}

		var permissions []string
		switch v := permsInterface.(type) {
		case []interface{}:
			for _, p := range v {
				if s, ok := p.(string); ok {
					permissions = append(permissions, s)
				}
			}
		case []string:
			permissions = v
		}

		for _, p := range permissions {
			if p == permission || p == "admin" {
				c.Next()
				return
			}
		}

		abortForbidden(c, "permission_denied", "You don't have permission to access this resource")
	}
}

func abortUnauthorized(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   code,
		"message": message,
	})
}

func abortForbidden(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"success": false,
		"error":   code,
		"message": message,
	})
}
