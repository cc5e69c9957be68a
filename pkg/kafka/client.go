// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"wordclass-go/internal/config"
	"wordclass-go/pkg/log"
	"wordclass-go/pkg/tasks"
)

// maxAttempts 次失败后提交 offset，不再重试。
const maxAttempts = 3

// TaskProcessor 是能处理训练任务的服务，消费者只依赖这个接口。
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.TrainingTask) error
}

// Producer 把训练任务写入 Kafka。
type Producer struct {
	writer *kafka.Writer
}

// InitProducer 初始化 Kafka 生产者。
func InitProducer(cfg config.KafkaConfig) *Producer {
	p := &Producer{writer: &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}}
	log.Info("Kafka 生产者初始化成功")
	return p
}

// ProduceTrainingTask 发送一个训练任务到 Kafka，以任务 ID 作为消息 key。
func (p *Producer) ProduceTrainingTask(ctx context.Context, task tasks.TrainingTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.TaskID),
		Value: taskBytes,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// StartConsumer 启动一个 Kafka 消费者来处理训练任务，ctx 取消后返回。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor TaskProcessor, rdb *redis.Client) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Error("关闭 Kafka 消费者失败", err)
		}
	}()

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)
	tracker := &attemptTracker{rdb: rdb}

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("Kafka 消费者已停止")
			} else {
				log.Error("从 Kafka 读取消息失败", err)
			}
			return
		}

		log.Infof("收到 Kafka 消息: offset %d", m.Offset)
		if handleMessage(ctx, m.Value, processor, tracker) {
			if err := r.CommitMessages(ctx, m); err != nil {
				log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
			}
		}
	}
}

// retryBackoff 是同一条消息两次处理之间的等待时间。
var retryBackoff = 2 * time.Second

// handleMessage 处理一条消息，返回是否应该提交 offset。
// 失败的消息在这里重试，直到 Redis 中的失败计数达到 maxAttempts：
// 未提交的消息在同一个消费组会话内不会被重新拉取，后续消息的提交还会越过它。
func handleMessage(ctx context.Context, value []byte, processor TaskProcessor, tracker *attemptTracker) bool {
	var task tasks.TrainingTask
	if err := json.Unmarshal(value, &task); err != nil {
		// 消息格式错误，直接提交，避免阻塞队列
		log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(value))
		return true
	}

	for {
		log.Infof("开始处理训练任务: TaskID=%s", task.TaskID)
		err := processor.Process(ctx, task)
		if err == nil {
			log.Infof("训练任务处理成功: TaskID=%s", task.TaskID)
			tracker.clear(ctx, task.TaskID)
			return true
		}

		log.Errorf("处理训练任务失败: TaskID=%s, Error: %v", task.TaskID, err)
		attempts, incErr := tracker.fail(ctx, task.TaskID)
		if incErr != nil {
			// Redis 异常时保守处理：不提交 offset，交给下一次会话重新投递
			return false
		}
		if attempts >= maxAttempts {
			log.Errorf("训练任务多次失败(>=%d)，提交 offset 终止重试: TaskID=%s", maxAttempts, task.TaskID)
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(retryBackoff):
		}
		log.Warnf("重试训练任务: TaskID=%s, attempt=%d", task.TaskID, attempts+1)
	}
}

// attemptTracker 用 Redis 计数每个任务的失败次数。
type attemptTracker struct {
	rdb *redis.Client
}

func attemptsKey(taskID string) string {
	return fmt.Sprintf("kafka:attempts:%s", taskID)
}

func (t *attemptTracker) fail(ctx context.Context, taskID string) (int64, error) {
	key := attemptsKey(taskID)
	attempts, err := t.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	_ = t.rdb.Expire(ctx, key, 24*time.Hour).Err()
	return attempts, nil
}

func (t *attemptTracker) clear(ctx context.Context, taskID string) {
	_ = t.rdb.Del(ctx, attemptsKey(taskID)).Err()
}
