// cmd/worker/main.go
// RabbitMQ Worker 入口 - 消費批次發送作業

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mail-dispatch/internal/config"
	"mail-dispatch/internal/database"
	"mail-dispatch/internal/services"
	"mail-dispatch/internal/worker"
)

func main() {
	log.Println("Starting Mail Dispatch Worker...")

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

	// 初始化 KeyDB
	keydbService, err := services.NewKeyDBService(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to KeyDB: %v", err)
	}
	defer keydbService.Close()

	// 失敗隊列發布
	queueService, err := services.NewQueueService(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer queueService.Close()

	// 初始化郵件路由服務
	var sendgrid services.MailTransport
	if sg := services.NewSendGridService(cfg); sg.IsConfigured() {
		sendgrid = sg
	} else if cfg.MailProvider == config.MailProviderSendGrid {
		log.Println("WARNING: SendGrid API Key not configured, SendGrid mail sending will fail")
	}
	mailRouter := services.NewMailRouter(cfg, services.NewSMTPTransport(cfg), sendgrid)
	if err := mailRouter.ValidateConfiguration(); err != nil {
		log.Fatalf("Mail router configuration issue: %v", err)
	}

	dispatchService := services.NewDispatchService(cfg, mailRouter, repos.Deliveries, repos.Templates)
	bulkSender := services.NewBulkSender(cfg, dispatchService)

	consumer := worker.NewConsumer(cfg, bulkSender, keydbService, queueService)
	if err := consumer.Start(); err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}

	log.Printf("Worker started with concurrency: %d", cfg.WorkerConcurrency)

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	consumer.GracefulShutdown(30 * time.Second)

	log.Println("Worker stopped")
}
