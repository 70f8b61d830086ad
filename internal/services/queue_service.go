// internal/services/queue_service.go
// RabbitMQ 隊列服務 - 批次發送作業

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"mail-dispatch/internal/config"
	"mail-dispatch/internal/models"
)

// DeadLetterExchange 死信交換器名稱
const DeadLetterExchange = "dlx"

// QueueService RabbitMQ 隊列服務
type QueueService struct {
	cfg     *config.Config
	conn    *amqp.Connection
	channel *amqp.Channel
	mu      sync.RWMutex
}

// NewQueueService 建立隊列服務
func NewQueueService(cfg *config.Config) (*QueueService, error) {
	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	svc := &QueueService{
		cfg:     cfg,
		conn:    conn,
		channel: channel,
	}

	if err := DeclareQueues(channel, cfg); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	return svc, nil
}

// DeclareQueues 宣告批次隊列、失敗隊列與死信交換器 (API 與 Worker 共用)
func DeclareQueues(channel *amqp.Channel, cfg *config.Config) error {
	if err := channel.ExchangeDeclare(
		DeadLetterExchange, // name
		"direct",           // type
		true,               // durable
		false,              // auto-deleted
		false,              // internal
		false,              // no-wait
		nil,                // arguments
	); err != nil {
		return fmt.Errorf("failed to declare DLX: %w", err)
	}

	// 無法解析的訊息經由 DLX 轉到失敗隊列
	_, err := channel.QueueDeclare(
		cfg.BatchQueueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-dead-letter-exchange":    DeadLetterExchange,
			"x-dead-letter-routing-key": "failed",
		},
	)
	if err != nil {
		return fmt.Errorf("failed to declare batch queue: %w", err)
	}

	_, err = channel.QueueDeclare(
		cfg.FailedQueueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare failed queue: %w", err)
	}

	if err := channel.QueueBind(
		cfg.FailedQueueName,
		"failed",
		DeadLetterExchange,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("failed to bind failed queue: %w", err)
	}

	log.Println("RabbitMQ queues declared successfully")
	return nil
}

// PublishBatch 發布批次作業
func (s *QueueService) PublishBatch(ctx context.Context, job *models.BatchJob) error {
	return s.publish(ctx, s.cfg.BatchQueueName, job)
}

// PublishFailed 發布到失敗隊列
func (s *QueueService) PublishFailed(ctx context.Context, job *models.BatchJob) error {
	return s.publish(ctx, s.cfg.FailedQueueName, job)
}

func (s *QueueService) publish(ctx context.Context, queue string, job *models.BatchJob) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return s.channel.PublishWithContext(
		ctx,
		"",    // exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    job.BatchID,
			Body:         body,
		},
	)
}

// Close 關閉連接
func (s *QueueService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.channel != nil {
		s.channel.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
