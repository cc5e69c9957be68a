package model

import (
	"encoding/json"
	"time"
)

// ModelMetadata 对应 model_metadata 表，每次训练保存追加一行，按 created_at 最新的一行即当前模型。
type ModelMetadata struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name       string    `gorm:"type:varchar(255);not null" json:"name"`
	Accuracy   float64   `gorm:"not null;default:0" json:"accuracy"`
	Parameters string    `gorm:"type:text" json:"-"`
	Path       string    `gorm:"type:varchar(512)" json:"path"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"-"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (ModelMetadata) TableName() string {
	return "model_metadata"
}

// MetadataInput 是 save_model 动作携带的记录。Parameters 可以是 JSON 对象，也可以是已序列化的字符串。
type MetadataInput struct {
	Name       string          `json:"name"`
	Accuracy   float64         `json:"accuracy"`
	Parameters json.RawMessage `json:"parameters"`
	Path       string          `json:"path"`
}

// MetadataView 是 get_model_metadata 返回的记录，参数已从序列化形式解码。
type MetadataView struct {
	ID         uint            `json:"id"`
	Name       string          `json:"name"`
	Accuracy   float64         `json:"accuracy"`
	Path       string          `json:"path"`
	CreatedAt  LocalTime       `json:"createdAt"`
	Parameters json.RawMessage `json:"parameters"`
}

// TrainingParameters 是训练运行序列化进 parameters 字段的内容。
type TrainingParameters struct {
	RunID           string         `json:"runId"`
	FeatureColumns  []string       `json:"featureColumns"`
	LabelColumn     string         `json:"labelColumn"`
	NumClasses      int            `json:"numClasses"`
	Epochs          int            `json:"epochs"`
	BatchSize       int            `json:"batchSize"`
	ValidationSplit float64        `json:"validationSplit"`
	LearningRate    float64        `json:"learningRate"`
	DropoutRate     float64        `json:"dropoutRate"`
	VocabularySizes map[string]int `json:"vocabularySizes"`
	EmbeddingDims   map[string]int `json:"embeddingDims"`
}
