// cmd/smtp-receiver/main.go
// SMTP 回信接收服務入口
// 收件人回覆追蹤郵件時標記發送紀錄為已回覆

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
	"mail-dispatch/internal/smtp"
)

func main() {
	log.Println("Starting Mail Dispatch Reply Receiver...")

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

	smtpServer := smtp.NewServer(cfg, services.NewEngagementService(repos.Deliveries))

	go func() {
		if err := smtpServer.Start(); err != nil {
			log.Fatalf("SMTP server error: %v", err)
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if err := smtpServer.Shutdown(); err != nil {
		log.Printf("Error while shutting down SMTP server: %v", err)
	}

	log.Println("Reply receiver stopped")
}
