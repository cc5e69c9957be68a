package repository

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wordclass-go/internal/model"
	"wordclass-go/pkg/errs"
)

func TestTableSchema(t *testing.T) {
	db := createDB(t, sampleRows()...)
	repo := NewTableRepository("word_table")

	cols, err := repo.Schema(db)
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, "id", cols[0].Name)
	assert.Equal(t, "text", cols[1].Name)
	assert.Equal(t, "category", cols[2].Name)
	assert.Equal(t, model.KindNumber, cols[0].Kind)
	assert.Equal(t, model.KindString, cols[1].Kind)
}

func TestTableSchemaMissingTable(t *testing.T) {
	db := createDB(t)
	_, err := NewTableRepository("nope").Schema(db)
	assert.True(t, errors.Is(err, errs.ErrQuery))
}

func TestTableBatchPagination(t *testing.T) {
	db := createDB(t, sampleRows()...)
	repo := NewTableRepository("word_table")
	cols, err := repo.Schema(db)
	require.NoError(t, err)

	total, err := repo.Count(db)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	first, err := repo.Batch(db, cols, 0, 2)
	require.NoError(t, err)
	assert.Len(t, first, 2)

	second, err := repo.Batch(db, cols, 2, 2)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, model.String("buy bread"), second[0]["text"])
	assert.Equal(t, model.Number(3), second[0]["id"])

	assert.EqualValues(t, total, len(first)+len(second))
}

func TestTableBatchNullValues(t *testing.T) {
	db := createDB(t, wordRow{ID: 1, Text: strPtr("orphan"), Category: nil})
	repo := NewTableRepository("word_table")
	cols, err := repo.Schema(db)
	require.NoError(t, err)

	rows, err := repo.Batch(db, cols, 0, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0]["category"].IsNull())
}

func TestCategoryDistribution(t *testing.T) {
	rows := append(sampleRows(), wordRow{ID: 4, Text: strPtr("no label")})
	db := createDB(t, rows...)

	dist, err := NewTableRepository("word_table").CategoryDistribution(db, "category")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"shopping": 2, "work": 1}, dist)
}
