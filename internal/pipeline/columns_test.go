package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wordclass-go/internal/model"
	"wordclass-go/pkg/errs"
)

func cols(names ...string) []model.Column {
	out := make([]model.Column, len(names))
	for i, n := range names {
		out[i] = model.Column{Name: n}
	}
	return out
}

func TestClassifyByLabelName(t *testing.T) {
	got, err := ClassifyColumns(cols("id", "title", "body", "label"))
	require.NoError(t, err)
	assert.Equal(t, "label", got.Label)
	assert.Equal(t, []string{"title", "body"}, got.Features)
}

func TestClassifyFirstLabelNameWins(t *testing.T) {
	got, err := ClassifyColumns(cols("id", "category", "text", "label"))
	require.NoError(t, err)
	assert.Equal(t, "category", got.Label)
	assert.Equal(t, []string{"text", "label"}, got.Features)
}

func TestClassifyNameMatchIsCaseSensitive(t *testing.T) {
	got, err := ClassifyColumns(cols("id", "Category", "text"))
	require.NoError(t, err)
	assert.Equal(t, "Category", got.Label)
	assert.Equal(t, []string{"text"}, got.Features)
}

func TestClassifyKeyFlaggedColumn(t *testing.T) {
	schema := []model.Column{
		{Name: "id", Key: model.KeyPrimary},
		{Name: "text"},
		{Name: "topic", Key: model.KeyPrimary},
	}
	got, err := ClassifyColumns(schema)
	require.NoError(t, err)
	assert.Equal(t, "topic", got.Label)
	assert.Equal(t, []string{"text"}, got.Features)
}

func TestClassifyFallbackToFirstColumn(t *testing.T) {
	got, err := ClassifyColumns(cols("id", "topic", "text", "notes"))
	require.NoError(t, err)
	assert.Equal(t, "topic", got.Label)
	assert.Equal(t, []string{"text", "notes"}, got.Features)
}

func TestClassifyZeroFeatures(t *testing.T) {
	_, err := ClassifyColumns(cols("id", "category"))
	assert.True(t, errors.Is(err, errs.ErrConfiguration))

	_, err = ClassifyColumns(cols("id"))
	assert.True(t, errors.Is(err, errs.ErrConfiguration))
}

func TestClassifyAlwaysOneLabelAndFeatures(t *testing.T) {
	schemas := [][]model.Column{
		cols("id", "a", "b"),
		cols("a", "b", "c"),
		cols("id", "text", "category", "extra"),
		cols("label", "id", "x"),
	}
	for _, s := range schemas {
		got, err := ClassifyColumns(s)
		require.NoError(t, err)
		assert.NotEmpty(t, got.Label)
		assert.NotEmpty(t, got.Features)
		assert.NotContains(t, got.Features, got.Label)
		assert.NotContains(t, got.Features, "id")
	}
}
