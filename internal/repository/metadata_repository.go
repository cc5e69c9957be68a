package repository

import (
	"errors"

	"gorm.io/gorm"
	"wordclass-go/internal/model"
	"wordclass-go/pkg/errs"
)

// MetadataRepository 负责 model_metadata 表的追加与查询。
type MetadataRepository interface {
	Save(db *gorm.DB, record *model.ModelMetadata) error
	Latest(db *gorm.DB) (*model.ModelMetadata, error)
}

type metadataRepository struct{}

// NewMetadataRepository 创建一个新的 MetadataRepository 实例。
func NewMetadataRepository() MetadataRepository {
	return &metadataRepository{}
}

// Save 先确保表存在（幂等），再插入一条记录。
func (r *metadataRepository) Save(db *gorm.DB, record *model.ModelMetadata) error {
	if err := db.AutoMigrate(&model.ModelMetadata{}); err != nil {
		return errs.Query("save_model", err)
	}
	if err := db.Create(record).Error; err != nil {
		return errs.Query("save_model", err)
	}
	return nil
}

// Latest 返回按创建时间最新的一条记录；表不存在或为空时返回 NotFound。
func (r *metadataRepository) Latest(db *gorm.DB) (*model.ModelMetadata, error) {
	if !db.Migrator().HasTable(&model.ModelMetadata{}) {
		return nil, errs.NotFound("get_model_metadata", "no model metadata found")
	}
	var record model.ModelMetadata
	err := db.Order("created_at desc").Order("id desc").First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("get_model_metadata", "no model metadata found")
	}
	if err != nil {
		return nil, errs.Query("get_model_metadata", err)
	}
	return &record, nil
}
