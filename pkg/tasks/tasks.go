// Package tasks 定义了通过 Kafka 传递的任务结构。
package tasks

import "time"

// TrainingTask 描述一次训练请求。超参数为零值时使用服务端默认值。
type TrainingTask struct {
	TaskID          string    `json:"task_id"`
	Reload          bool      `json:"reload"`
	Save            bool      `json:"save"`
	Epochs          int       `json:"epochs,omitempty"`
	BatchSize       int       `json:"batch_size,omitempty"`
	LearningRate    float64   `json:"learning_rate,omitempty"`
	ValidationSplit *float64  `json:"validation_split,omitempty"`
	RequestedAt     time.Time `json:"requested_at"`
}
