package repository

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type wordRow struct {
	ID       uint `gorm:"primaryKey"`
	Text     *string
	Category *string
}

func (wordRow) TableName() string { return "word_table" }

func strPtr(s string) *string { return &s }

func createDB(t *testing.T, rows ...wordRow) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&wordRow{}))
	for i := range rows {
		require.NoError(t, db.Create(&rows[i]).Error)
	}
	return db
}

func sampleRows() []wordRow {
	return []wordRow{
		{ID: 1, Text: strPtr("buy milk"), Category: strPtr("shopping")},
		{ID: 2, Text: strPtr("write code"), Category: strPtr("work")},
		{ID: 3, Text: strPtr("buy bread"), Category: strPtr("shopping")},
	}
}
