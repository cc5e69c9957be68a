package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"wordclass-go/internal/heuristic"
	"wordclass-go/internal/repository"
	"wordclass-go/pkg/database"
)

type wordRow struct {
	ID       uint `gorm:"primaryKey"`
	Text     *string
	Category *string
}

func (wordRow) TableName() string { return "word_table" }

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func createDB(t *testing.T, samples ...[2]string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&wordRow{}))
	for i, s := range samples {
		row := wordRow{ID: uint(i + 1), Text: strPtr(s[0]), Category: strPtr(s[1])}
		require.NoError(t, db.Create(&row).Error)
	}
	return db
}

func scenarioRows() [][2]string {
	return [][2]string{
		{"buy milk", "shopping"},
		{"write code", "work"},
		{"buy bread", "shopping"},
	}
}

func newGateway(db *gorm.DB, maxBatch int) GatewayService {
	return NewGatewayService(
		database.NewStaticConnector(db),
		repository.NewTableRepository("word_table"),
		repository.NewMetadataRepository(),
		repository.NewPredictionLogRepository(),
		heuristic.NewPredictor(nil),
		maxBatch,
	)
}

type panickingConnector struct{}

func (panickingConnector) Conn(ctx context.Context, _ *database.ConnectionParams) (*gorm.DB, error) {
	panic("driver exploded")
}
