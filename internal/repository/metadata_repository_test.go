package repository

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wordclass-go/internal/model"
	"wordclass-go/pkg/errs"
)

func TestMetadataLatestWhenEmpty(t *testing.T) {
	db := createDB(t)
	_, err := NewMetadataRepository().Latest(db)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestMetadataSaveAndLatest(t *testing.T) {
	db := createDB(t)
	repo := NewMetadataRepository()

	first := &model.ModelMetadata{Name: "v1", Accuracy: 0.5, Parameters: `{"epochs":1}`, Path: "redis://a"}
	require.NoError(t, repo.Save(db, first))
	second := &model.ModelMetadata{Name: "v2", Accuracy: 0.9, Parameters: `{"epochs":2}`, Path: "redis://b"}
	require.NoError(t, repo.Save(db, second))
	assert.NotZero(t, first.ID)
	assert.Greater(t, second.ID, first.ID)

	latest, err := repo.Latest(db)
	require.NoError(t, err)
	assert.Equal(t, "v2", latest.Name)
	assert.Equal(t, `{"epochs":2}`, latest.Parameters)
}

func TestPredictionLogCreate(t *testing.T) {
	db := createDB(t)
	user := "u-1"
	entry := &model.PredictionLog{Text: "buy milk", PredictedClass: "shopping", Confidence: 0.8, UserID: &user}
	require.NoError(t, NewPredictionLogRepository().Create(db, entry))
	assert.NotZero(t, entry.ID)

	var stored model.PredictionLog
	require.NoError(t, db.First(&stored, entry.ID).Error)
	assert.Equal(t, "shopping", stored.PredictedClass)
	require.NotNil(t, stored.UserID)
	assert.Equal(t, "u-1", *stored.UserID)
}
