package gatewayclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"wordclass-go/internal/classifier"
	"wordclass-go/internal/handler"
	"wordclass-go/internal/heuristic"
	"wordclass-go/internal/model"
	"wordclass-go/internal/repository"
	"wordclass-go/internal/service"
	"wordclass-go/pkg/database"
	"wordclass-go/pkg/errs"
)

type wordRow struct {
	ID       uint `gorm:"primaryKey"`
	Text     string
	Category string
}

func (wordRow) TableName() string { return "word_table" }

func newGatewayServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&wordRow{}))
	samples := [][2]string{
		{"buy milk", "shopping"}, {"write code", "work"}, {"buy bread", "shopping"},
		{"write report", "work"}, {"buy eggs", "shopping"}, {"review code", "work"},
	}
	for i, s := range samples {
		require.NoError(t, db.Create(&wordRow{ID: uint(i + 1), Text: s[0], Category: s[1]}).Error)
	}

	gateway := service.NewGatewayService(
		database.NewStaticConnector(db),
		repository.NewTableRepository("word_table"),
		repository.NewMetadataRepository(),
		repository.NewPredictionLogRepository(),
		heuristic.NewPredictor(nil),
		4,
	)
	r := gin.New()
	r.Any("/api", handler.NewActionHandler(gateway).Handle)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientReadsTable(t *testing.T) {
	c := New(newGatewayServer(t).URL)
	ctx := context.Background()

	schema, err := c.Schema(ctx)
	require.NoError(t, err)
	require.Len(t, schema, 3)
	assert.Equal(t, "id", schema[0].Name)
	assert.Equal(t, model.KindNumber, schema[0].Kind)

	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 6, n)

	_, err = c.Batch(ctx, 0, 10)
	assert.True(t, errors.Is(err, errs.ErrValidation))
	assert.Contains(t, err.Error(), "exceeds the maximum of 4")

	rows, err := c.Batch(ctx, 0, 4)
	require.NoError(t, err)
	assert.Len(t, rows, 4)
	assert.Equal(t, "buy milk", rows[0].Get("text").Text())

	rows, err = c.Batch(ctx, 4, 4)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestClientMapsRemoteErrors(t *testing.T) {
	c := New(newGatewayServer(t).URL)

	_, err := c.Batch(context.Background(), -1, 10)
	assert.True(t, errors.Is(err, errs.ErrValidation))
	assert.Contains(t, err.Error(), "offset")
}

func TestClientTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := New(srv.URL).Count(context.Background())
	assert.True(t, errors.Is(err, errs.ErrConnection))
}

func TestClientNonJSONResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	_, err := New(srv.URL).Count(context.Background())
	assert.True(t, errors.Is(err, errs.ErrConnection))
}

func TestClientMetadataAndLogging(t *testing.T) {
	c := New(newGatewayServer(t).URL)
	ctx := context.Background()

	view, err := c.LatestMetadata(ctx)
	require.NoError(t, err)
	assert.Nil(t, view)

	id, err := c.SaveMetadata(ctx, model.MetadataInput{
		Name:       "word-classifier",
		Accuracy:   0.75,
		Parameters: []byte(`{"epochs":3}`),
		Path:       "redis://test:artifact:word-classifier",
	})
	require.NoError(t, err)
	assert.NotZero(t, id)

	view, err = c.LatestMetadata(ctx)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, id, view.ID)
	assert.JSONEq(t, `{"epochs":3}`, string(view.Parameters))

	logID, err := c.LogPrediction(ctx, model.PredictionInput{Text: "buy milk", Class: "shopping", Confidence: 0.9})
	require.NoError(t, err)
	assert.NotZero(t, logID)

	stats, err := c.WordTableStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 6, stats.TotalRecords)
	assert.Equal(t, map[string]int64{"shopping": 3, "work": 3}, stats.CategoryDistribution)

	res, err := c.HeuristicPredict(ctx, "Buy milk and bread")
	require.NoError(t, err)
	assert.Equal(t, "shopping", res.Category)
	assert.InDelta(t, 0.8, res.Confidence, 1e-9)
}

func TestClientFeedsClassifierSession(t *testing.T) {
	c := New(newGatewayServer(t).URL)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	session := classifier.NewSession(classifier.SessionConfig{
		Source:    c,
		Store:     repository.NewArtifactRepository(rdb, "test"),
		Metadata:  c,
		PageSize:  4,
		ModelName: "word-classifier",
	})
	ctx := context.Background()
	corpus, err := session.Init(ctx)
	require.NoError(t, err)
	assert.Len(t, corpus.Labels, 6)

	hp := classifier.DefaultHyperparams()
	hp.Epochs = 5
	hp.BatchSize = 2
	hp.ValidationSplit = 0
	_, err = session.Train(ctx, hp, nil)
	require.NoError(t, err)

	report, err := session.Save(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Warning)
	assert.NotZero(t, report.MetadataID)

	view, err := c.LatestMetadata(ctx)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, report.Location, view.Path)
}
