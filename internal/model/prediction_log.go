package model

import "time"

// PredictionLog 对应 prediction_logs 表，记录一次预测结果。
type PredictionLog struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Text           string    `gorm:"type:text;not null" json:"text"`
	PredictedClass string    `gorm:"type:varchar(255);not null" json:"class"`
	Confidence     float64   `gorm:"not null;default:0" json:"confidence"`
	UserID         *string   `gorm:"type:varchar(255)" json:"userId"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (PredictionLog) TableName() string {
	return "prediction_logs"
}

// PredictionInput 是 log_prediction 动作携带的内容。
type PredictionInput struct {
	Text       string  `json:"text"`
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	UserID     *string `json:"userId,omitempty"`
}
