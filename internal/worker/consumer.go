// internal/worker/consumer.go
// RabbitMQ Worker Consumer - 消費批次作業並逐一發送

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"mail-dispatch/internal/config"
	"mail-dispatch/internal/models"
	"mail-dispatch/internal/services"
)

const consumerTag = "mail-dispatch-worker"

// errMalformedJob 無法解析的訊息，交給死信交換器
var errMalformedJob = errors.New("malformed batch job")

// BatchRunner 批次發送介面 (services.BulkSender 實作)
type BatchRunner interface {
	Send(ctx context.Context, req services.BulkRequest) *services.BulkResult
}

// StatusWriter 批次狀態寫入介面 (services.KeyDBService 實作)
type StatusWriter interface {
	SetBatchStatus(ctx context.Context, status *models.BatchStatusCache) error
}

// FailedPublisher 失敗隊列發布介面 (services.QueueService 實作)
type FailedPublisher interface {
	PublishFailed(ctx context.Context, job *models.BatchJob) error
}

// Consumer RabbitMQ Consumer
type Consumer struct {
	cfg      *config.Config
	runner   BatchRunner
	statuses StatusWriter
	failed   FailedPublisher

	conn    *amqp.Connection
	channel *amqp.Channel

	// ctx 在關機逾時後取消，中斷進行中的批次
	ctx    context.Context
	cancel context.CancelFunc

	isShutdown atomic.Bool
	activeJobs atomic.Int32
	wg         sync.WaitGroup
}

// NewConsumer 建立 Consumer
func NewConsumer(cfg *config.Config, runner BatchRunner, statuses StatusWriter, failed FailedPublisher) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		cfg:      cfg,
		runner:   runner,
		statuses: statuses,
		failed:   failed,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start 啟動 Consumer
func (c *Consumer) Start() error {
	var err error

	c.conn, err = amqp.Dial(c.cfg.RabbitMQURL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	c.channel, err = c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := services.DeclareQueues(c.channel, c.cfg); err != nil {
		return err
	}

	// 設定 prefetch
	if err := c.channel.Qos(c.cfg.WorkerPrefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	msgs, err := c.channel.Consume(
		c.cfg.BatchQueueName,
		consumerTag,
		false, // auto-ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to consume: %w", err)
	}

	log.Printf("Worker started, consuming from queue: %s", c.cfg.BatchQueueName)

	for i := 0; i < c.cfg.WorkerConcurrency; i++ {
		c.wg.Add(1)
		go c.processMessages(msgs)
	}

	return nil
}

// processMessages 處理訊息
func (c *Consumer) processMessages(msgs <-chan amqp.Delivery) {
	defer c.wg.Done()

	for msg := range msgs {
		if c.isShutdown.Load() {
			_ = msg.Nack(false, true) // 重新排隊
			continue
		}

		if err := c.handleBody(c.ctx, msg.Body); err != nil {
			log.Printf("[Worker] Rejecting message: %v", err)
			_ = msg.Nack(false, false)
			continue
		}
		_ = msg.Ack(false)
	}
}

// handleBody 解析並執行批次作業
// 只有無法解析的訊息回傳錯誤，發送失敗記錄在批次狀態中
func (c *Consumer) handleBody(ctx context.Context, body []byte) error {
	c.activeJobs.Add(1)
	defer c.activeJobs.Add(-1)

	var job models.BatchJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("%w: %v", errMalformedJob, err)
	}
	if job.BatchID == "" || len(job.Recipients) == 0 {
		return fmt.Errorf("%w: missing batch_id or recipients", errMalformedJob)
	}

	log.Printf("[Worker] Processing batch %s (%d recipients)", job.BatchID, len(job.Recipients))

	status := &models.BatchStatusCache{
		BatchID: job.BatchID,
		Status:  models.BatchStatusProcessing,
		Total:   len(job.Recipients),
	}
	c.writeStatus(ctx, status)

	result := c.runner.Send(ctx, services.BulkRequest{
		TemplateID: job.TemplateID,
		Subject:    job.Subject,
		HTML:       job.HTML,
		Text:       job.Text,
		Recipients: job.Recipients,
		Options:    job.Options,
		CreatedBy:  job.CreatedBy,
	})

	status.Succeeded = result.Sent
	status.Failed = result.Failed
	status.Status = models.BatchStatusCompleted

	if len(result.Sent) == 0 {
		status.Status = models.BatchStatusFailed
		status.ErrorMessage = "all recipients failed"
		if err := c.failed.PublishFailed(context.WithoutCancel(ctx), &job); err != nil {
			log.Printf("[Worker] Failed to publish batch %s to failed queue: %v", job.BatchID, err)
		}
	}

	c.writeStatus(context.WithoutCancel(ctx), status)
	log.Printf("[Worker] Batch %s %s: %d sent, %d failed", job.BatchID, status.Status, len(result.Sent), len(result.Failed))
	return nil
}

func (c *Consumer) writeStatus(ctx context.Context, status *models.BatchStatusCache) {
	if err := c.statuses.SetBatchStatus(ctx, status); err != nil {
		log.Printf("[Worker] Failed to update status for batch %s: %v", status.BatchID, err)
	}
}

// GracefulShutdown 優雅關機，等待進行中的批次完成，逾時則中斷
func (c *Consumer) GracefulShutdown(timeout time.Duration) {
	log.Println("Initiating graceful shutdown...")
	c.isShutdown.Store(true)

	// 停止接收新訊息
	if c.channel != nil {
		_ = c.channel.Cancel(consumerTag, false)
	}

	deadline := time.After(timeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

wait:
	for c.activeJobs.Load() > 0 {
		select {
		case <-deadline:
			log.Println("Shutdown timeout, cancelling active batches")
			c.cancel()
			break wait
		case <-ticker.C:
		}
	}

	c.wg.Wait()
	c.cancel()

	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}

	log.Println("Worker shutdown complete")
}
