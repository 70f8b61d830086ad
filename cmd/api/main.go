// cmd/api/main.go
// Gin RESTful API 入口 - 操作 API 與開信 / 點擊追蹤

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"mail-dispatch/internal/api/routes"
	"mail-dispatch/internal/config"
	"mail-dispatch/internal/database"
	"mail-dispatch/internal/services"
)

func main() {
	log.Println("Starting Mail Dispatch API Server...")

	// 載入設定
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// 初始化資料庫
	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	repos, err := database.Open(startCtx, cfg)
	cancel()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer repos.Close(context.Background())

	// 初始化 Admin Token
	adminTokenService := services.NewAdminTokenService(cfg, repos.ClientTokens)
	if _, err := adminTokenService.InitializeAdminToken(context.Background()); err != nil {
		log.Printf("Warning: Failed to initialize admin token: %v", err)
	}

	// 初始化 KeyDB
	keydbService, err := services.NewKeyDBService(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to KeyDB: %v", err)
	}
	defer keydbService.Close()

	// 初始化 RabbitMQ
	queueService, err := services.NewQueueService(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer queueService.Close()

	// 初始化郵件路由服務
	mailRouter := newMailRouter(cfg)
	if err := mailRouter.ValidateConfiguration(); err != nil {
		log.Fatalf("Mail router configuration issue: %v", err)
	}

	dispatchService := services.NewDispatchService(cfg, mailRouter, repos.Deliveries, repos.Templates)

	// 初始化 Gin
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	routes.RegisterRoutes(router, &routes.Dependencies{
		Config:            cfg,
		Repositories:      repos,
		DispatchService:   dispatchService,
		EngagementService: services.NewEngagementService(repos.Deliveries),
		StatsService:      services.NewStatsService(repos.Deliveries),
		AdminTokenService: adminTokenService,
		AttachmentStore:   services.NewAttachmentStore(cfg),
		QueueService:      queueService,
		KeyDBService:      keydbService,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	go func() {
		log.Printf("API Server listening on port %s", cfg.APIPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("API Server stopped")
}

// newMailRouter 建立 SMTP 與 SendGrid 發送服務，SendGrid 未設定時不註冊
func newMailRouter(cfg *config.Config) *services.MailRouter {
	var sendgrid services.MailTransport
	if sg := services.NewSendGridService(cfg); sg.IsConfigured() {
		sendgrid = sg
	} else if cfg.MailProvider == config.MailProviderSendGrid {
		log.Println("WARNING: SendGrid API Key not configured, SendGrid mail sending will fail")
	}
	return services.NewMailRouter(cfg, services.NewSMTPTransport(cfg), sendgrid)
}
