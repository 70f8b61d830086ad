// internal/api/routes/routes.go
// Gin 路由註冊

package routes

import (
	"net/url"

	"github.com/gin-gonic/gin"

	"mail-dispatch/internal/api/handlers"
	"mail-dispatch/internal/api/middlewares"
	"mail-dispatch/internal/config"
	"mail-dispatch/internal/repository"
	"mail-dispatch/internal/services"
)

// Dependencies 路由依賴
type Dependencies struct {
	Config            *config.Config
	Repositories      *repository.Repositories
	DispatchService   *services.DispatchService
	EngagementService *services.EngagementService
	StatsService      *services.StatsService
	AdminTokenService *services.AdminTokenService
	AttachmentStore   *services.AttachmentStore
	QueueService      *services.QueueService
	KeyDBService      *services.KeyDBService
}

// RegisterRoutes 註冊所有路由
func RegisterRoutes(router *gin.Engine, deps *Dependencies) {
	repos := deps.Repositories

	healthHandler := handlers.NewHealthHandler(deps.Config, repos.Ping, deps.KeyDBService)
	trackingHandler := handlers.NewTrackingHandler(deps.EngagementService, deps.Config.StoreTimeout)
	mailHandler := handlers.NewMailHandler(
		deps.Config,
		deps.DispatchService,
		repos.Deliveries,
		deps.StatsService,
		deps.AttachmentStore,
		deps.QueueService,
		deps.KeyDBService,
	)
	authHandler := handlers.NewAuthHandler(deps.AdminTokenService, repos.ClientTokens)

	// 公開路由
	router.GET("/health", healthHandler.Health)

	// 追蹤路由 (收件人信箱直接請求，不需認證)
	tracking := router.Group(TrackingPath(deps.Config.TrackingBaseURL))
	{
		tracking.GET("/track/:token", trackingHandler.Open)
		tracking.GET("/click/:token", trackingHandler.Click)
	}

	v1 := router.Group("/api/v1")
	{
		// 郵件相關 API (需認證)
		mail := v1.Group("/mail")
		mail.Use(middlewares.JWTAuth(deps.Config, repos.ClientTokens))
		{
			mail.POST("/send", mailHandler.Send)
			mail.POST("/send/template", mailHandler.SendTemplate)
			mail.POST("/send/batch", mailHandler.SendBatch)
			mail.GET("/batch/:id", mailHandler.GetBatchStatus)
			mail.GET("/deliveries/:id", mailHandler.GetDelivery)
			mail.GET("/history", mailHandler.GetHistory)
			mail.GET("/stats", mailHandler.GetStats)
		}

		// Token 管理 API (需 admin 權限)
		auth := v1.Group("/auth")
		auth.Use(middlewares.JWTAuth(deps.Config, repos.ClientTokens))
		auth.Use(middlewares.RequirePermission("admin"))
		{
			auth.POST("/token", authHandler.CreateToken)
			auth.GET("/token/:id", authHandler.GetToken)
			auth.DELETE("/token/:id", authHandler.RevokeToken)
			auth.GET("/tokens", authHandler.ListTokens)
		}
	}
}

// TrackingPath 由追蹤網址取出路由前綴，例如 https://mail.example.com/api/email → /api/email
func TrackingPath(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}
