package repository

import (
	"gorm.io/gorm"
	"wordclass-go/internal/model"
	"wordclass-go/pkg/errs"
)

// PredictionLogRepository 记录预测日志。
type PredictionLogRepository interface {
	Create(db *gorm.DB, entry *model.PredictionLog) error
}

type predictionLogRepository struct{}

func NewPredictionLogRepository() PredictionLogRepository {
	return &predictionLogRepository{}
}

// Create 确保 prediction_logs 表存在后插入一条日志。
func (r *predictionLogRepository) Create(db *gorm.DB, entry *model.PredictionLog) error {
	if err := db.AutoMigrate(&model.PredictionLog{}); err != nil {
		return errs.Query("log_prediction", err)
	}
	if err := db.Create(entry).Error; err != nil {
		return errs.Query("log_prediction", err)
	}
	return nil
}
