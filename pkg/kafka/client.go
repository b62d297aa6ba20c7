// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"hierarchy-go/internal/config"
	"hierarchy-go/pkg/log"
	"hierarchy-go/pkg/tasks"
)

// TaskProcessor defines the interface for any service that can process a task.
// This decouples the Kafka consumer from the concrete pipeline implementation.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.RekeyTask) error
}

// AttemptCounter 记录任务失败次数。
type AttemptCounter interface {
	Incr(ctx context.Context, taskKey string) (int64, error)
	Reset(ctx context.Context, taskKey string) error
}

// Producer 把重排任务写入 Kafka。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
	}
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: w}
}

// PublishRekey 发送一个子树重排任务。同一实体的任务使用相同的消息键，落在同一分区上按顺序处理。
func (p *Producer) PublishRekey(ctx context.Context, task tasks.RekeyTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.EntityID),
		Value: taskBytes,
	})
}

// Close 关闭生产者。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// StartConsumer 启动一个 Kafka 消费者来处理重排任务，直到 ctx 被取消。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor TaskProcessor, attempts AttemptCounter) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("从 Kafka 读取消息失败", err)
			}
			break
		}
		if !processWithRetry(ctx, m.Value, processor, attempts, cfg.MaxAttempts, retryBackoff) {
			break
		}
		if err := r.CommitMessages(ctx, m); err != nil {
			log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
		}
	}

	if err := r.Close(); err != nil {
		log.Errorf("关闭 Kafka 消费者失败: %v", err)
	}
}

// retryBackoff 是同一条消息两次重试之间的等待时间。
const retryBackoff = time.Second

// processWithRetry 在当前会话内反复处理同一条消息，直到 handleMessage 允许提交。
// 同一个消费组会话不会重新投递未提交的消息，因此重试必须在取下一条之前完成。
// ctx 被取消时返回 false，消息不提交。
func processWithRetry(ctx context.Context, value []byte, processor TaskProcessor, attempts AttemptCounter, maxAttempts int, backoff time.Duration) bool {
	for retry := 0; ; retry++ {
		if handleMessage(ctx, value, processor, attempts, maxAttempts) {
			return true
		}
		wait := backoff * time.Duration(retry+1)
		if wait > 30*backoff {
			wait = 30 * backoff
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
	}
}

// handleMessage 处理一条消息，返回是否应当提交 offset。
// 格式错误的消息直接提交；处理失败时返回 false 由调用方重试，达到 maxAttempts 后提交以终止重试。
func handleMessage(ctx context.Context, value []byte, processor TaskProcessor, attempts AttemptCounter, maxAttempts int) bool {
	var task tasks.RekeyTask
	if err := json.Unmarshal(value, &task); err != nil || task.EntityID == "" {
		log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(value))
		return true
	}

	log.Infof("开始处理重排任务: EntityID=%s, Reason=%s", task.EntityID, task.Reason)
	if err := processor.Process(ctx, task); err != nil {
		log.Errorf("处理重排任务失败: EntityID=%s, Error: %v", task.EntityID, err)
		n, incErr := attempts.Incr(ctx, task.Key())
		if incErr != nil {
			// Redis 异常时保守处理：不提交 offset，继续重试
			return false
		}
		if maxAttempts > 0 && n >= int64(maxAttempts) {
			log.Errorf("重排任务多次失败(>=%d)，提交 offset 终止重试: EntityID=%s", maxAttempts, task.EntityID)
			return true
		}
		return false
	}

	log.Infof("重排任务处理成功: EntityID=%s", task.EntityID)
	_ = attempts.Reset(ctx, task.Key())
	return true
}
