package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wordclass-go/internal/model"
	"wordclass-go/pkg/errs"
)

type tableSource struct {
	schema []model.Column
	rows   []model.Row
}

func (s *tableSource) Schema(ctx context.Context) ([]model.Column, error) {
	return s.schema, nil
}

func (s *tableSource) Count(ctx context.Context) (int64, error) {
	return int64(len(s.rows)), nil
}

func (s *tableSource) Batch(ctx context.Context, offset, limit int) ([]model.Row, error) {
	if offset >= len(s.rows) {
		return nil, nil
	}
	return s.rows[offset:min(offset+limit, len(s.rows))], nil
}

func shoppingSource() *tableSource {
	src := &tableSource{schema: []model.Column{
		{Name: "id", Key: model.KeyPrimary, Kind: model.KindNumber},
		{Name: "text", Kind: model.KindString},
		{Name: "category", Kind: model.KindString},
	}}
	samples := [][2]string{
		{"buy milk", "shopping"}, {"write code", "work"}, {"buy bread", "shopping"},
		{"write report", "work"}, {"buy eggs", "shopping"}, {"review code", "work"},
	}
	for i, s := range samples {
		src.rows = append(src.rows, model.Row{
			"id":       model.Number(float64(i + 1)),
			"text":     model.String(s[0]),
			"category": model.String(s[1]),
		})
	}
	return src
}

type memoryStore struct {
	mu    sync.Mutex
	blobs map[string]model.ArtifactBlobs
}

func (m *memoryStore) Put(ctx context.Context, key string, blobs model.ArtifactBlobs) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blobs == nil {
		m.blobs = map[string]model.ArtifactBlobs{}
	}
	m.blobs[key] = blobs
	return nil
}

func (m *memoryStore) Get(ctx context.Context, key string) (model.ArtifactBlobs, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[key]
	if !ok {
		return model.ArtifactBlobs{}, errs.NotFound("load_artifact", "artifact %s not found", key)
	}
	return b, nil
}

func (m *memoryStore) Location(key string) string {
	return "memory://" + key
}

type recordingSink struct {
	inputs []model.MetadataInput
	err    error
}

func (r *recordingSink) SaveMetadata(ctx context.Context, in model.MetadataInput) (uint, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.inputs = append(r.inputs, in)
	return uint(len(r.inputs)), nil
}

func quickHyperparams() Hyperparams {
	hp := DefaultHyperparams()
	hp.Epochs = 30
	hp.BatchSize = 2
	hp.ValidationSplit = 0
	hp.LearningRate = 0.01
	return hp
}

func newTestSession(t *testing.T, sink MetadataSink) (*Session, *memoryStore) {
	store := &memoryStore{}
	s := NewSession(SessionConfig{
		Source:      shoppingSource(),
		Store:       store,
		Metadata:    sink,
		PageSize:    4,
		ArtifactKey: "test-model",
	})
	_, err := s.Init(context.Background())
	require.NoError(t, err)
	return s, store
}

func TestPredictBeforeTraining(t *testing.T) {
	s, _ := newTestSession(t, nil)
	_, err := s.Predict("buy milk")
	assert.True(t, errors.Is(err, errs.ErrModelNotTrained))

	_, err = s.Save(context.Background())
	assert.True(t, errors.Is(err, errs.ErrModelNotTrained))
}

func TestTrainWithoutInit(t *testing.T) {
	s := NewSession(SessionConfig{Source: shoppingSource(), Store: &memoryStore{}})
	_, err := s.Train(context.Background(), quickHyperparams(), nil)
	assert.True(t, errors.Is(err, errs.ErrConfiguration))
}

func TestTrainAndPredict(t *testing.T) {
	s, _ := newTestSession(t, nil)

	epochs := 0
	res, err := s.Train(context.Background(), quickHyperparams(), func(EpochLog) { epochs++ })
	require.NoError(t, err)
	assert.Equal(t, 30, epochs)
	assert.NotEmpty(t, res.RunID)

	p, err := s.Predict("buy milk")
	require.NoError(t, err)
	assert.Equal(t, "shopping", p.Label)
	assert.Equal(t, []string{"shopping", "work"}, p.Classes)
	assert.Len(t, p.Probabilities, 2)
	assert.InDelta(t, p.Probabilities[0], p.Probability, 1e-12)

	p, err = s.PredictFields(map[string]string{"text": "write code"})
	require.NoError(t, err)
	assert.Equal(t, "work", p.Label)

	eval, err := s.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, eval.Samples)

	st := s.Status()
	assert.True(t, st.Trained)
	assert.False(t, st.Training)
	assert.Equal(t, res.RunID, st.RunID)
	assert.Zero(t, liveBuffers.Load())
}

func TestSecondTrainIsRejectedWhileRunning(t *testing.T) {
	s, _ := newTestSession(t, nil)
	hp := quickHyperparams()
	hp.Epochs = 2

	var inner error
	_, err := s.Train(context.Background(), hp, func(l EpochLog) {
		if l.Epoch == 1 {
			_, inner = s.Train(context.Background(), hp, nil)
			assert.True(t, s.Status().Training)
		}
	})
	require.NoError(t, err)
	assert.ErrorIs(t, inner, ErrTrainingInProgress)
	assert.False(t, s.Status().Training)
}

func TestFailedTrainKeepsPreviousModel(t *testing.T) {
	s, _ := newTestSession(t, nil)
	first, err := s.Train(context.Background(), quickHyperparams(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Train(ctx, quickHyperparams(), nil)
	require.Error(t, err)

	st := s.Status()
	assert.Equal(t, first.RunID, st.RunID)
	assert.NotEmpty(t, st.LastError)
	assert.False(t, st.Training)

	_, err = s.Train(context.Background(), quickHyperparams(), nil)
	assert.NoError(t, err)
}

func TestSaveLoadReproducesPredictions(t *testing.T) {
	sink := &recordingSink{}
	s, store := newTestSession(t, sink)
	_, err := s.Train(context.Background(), quickHyperparams(), nil)
	require.NoError(t, err)

	texts := []string{"buy milk", "write code", "unknown words only", ""}
	before := make([]*Prediction, len(texts))
	for i, txt := range texts {
		before[i], err = s.Predict(txt)
		require.NoError(t, err)
	}

	report, err := s.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "memory://test-model", report.Location)
	assert.Empty(t, report.Warning)
	assert.Equal(t, uint(1), report.MetadataID)

	require.Len(t, sink.inputs, 1)
	var params model.TrainingParameters
	require.NoError(t, json.Unmarshal(sink.inputs[0].Parameters, &params))
	assert.Equal(t, []string{"text"}, params.FeatureColumns)
	assert.Equal(t, "category", params.LabelColumn)
	assert.Equal(t, 2, params.NumClasses)
	assert.Equal(t, report.RunID, params.RunID)

	fresh := NewSession(SessionConfig{Source: shoppingSource(), Store: store, ArtifactKey: "test-model"})
	runID, err := fresh.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.RunID, runID)

	for i, txt := range texts {
		after, err := fresh.Predict(txt)
		require.NoError(t, err)
		assert.Equal(t, before[i].Label, after.Label)
		assert.InDeltaSlice(t, before[i].Probabilities, after.Probabilities, 1e-12)
	}
}

func TestSaveMetadataFailureIsWarning(t *testing.T) {
	s, store := newTestSession(t, &recordingSink{err: errs.Connection("save_metadata", errors.New("gateway down"))})
	_, err := s.Train(context.Background(), quickHyperparams(), nil)
	require.NoError(t, err)

	report, err := s.Save(context.Background())
	require.NoError(t, err)
	assert.Contains(t, report.Warning, "gateway down")
	assert.Zero(t, report.MetadataID)

	_, err = store.Get(context.Background(), "test-model")
	assert.NoError(t, err)
}

func TestLoadMissingArtifact(t *testing.T) {
	s := NewSession(SessionConfig{Store: &memoryStore{}, ArtifactKey: "absent"})
	_, err := s.Load(context.Background())
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestDecodeRejectsMixedRuns(t *testing.T) {
	s, store := newTestSession(t, nil)
	_, err := s.Train(context.Background(), quickHyperparams(), nil)
	require.NoError(t, err)
	_, err = s.Save(context.Background())
	require.NoError(t, err)
	first, _ := store.Get(context.Background(), "test-model")

	_, err = s.Train(context.Background(), quickHyperparams(), nil)
	require.NoError(t, err)
	_, err = s.Save(context.Background())
	require.NoError(t, err)
	second, _ := store.Get(context.Background(), "test-model")

	mixed := model.ArtifactBlobs{Weights: first.Weights, Vocabularies: second.Vocabularies, Labels: second.Labels}
	_, err = DecodeArtifact(mixed)
	assert.True(t, errors.Is(err, errs.ErrValidation))

	_, err = DecodeArtifact(model.ArtifactBlobs{Weights: first.Weights})
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestMultiBranchSession(t *testing.T) {
	src := &tableSource{schema: []model.Column{
		{Name: "id", Key: model.KeyPrimary, Kind: model.KindNumber},
		{Name: "title", Kind: model.KindString},
		{Name: "body", Kind: model.KindString},
		{Name: "label", Kind: model.KindString},
	}}
	samples := [][3]string{
		{"match report", "team won the game", "sports"},
		{"new app", "software release notes", "technology"},
		{"final score", "player scored twice", "sports"},
		{"data leak", "internet security bug", "technology"},
	}
	for i, s := range samples {
		src.rows = append(src.rows, model.Row{
			"id":    model.Number(float64(i + 1)),
			"title": model.String(s[0]),
			"body":  model.String(s[1]),
			"label": model.String(s[2]),
		})
	}

	s := NewSession(SessionConfig{Source: src, Store: &memoryStore{}})
	corpus, err := s.Init(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "body"}, corpus.Columns.Features)

	_, err = s.Train(context.Background(), quickHyperparams(), nil)
	require.NoError(t, err)

	p, err := s.PredictFields(map[string]string{"title": "match report", "body": "team won the game"})
	require.NoError(t, err)
	assert.Equal(t, "sports", p.Label)

	_, err = s.Predict("software")
	assert.NoError(t, err)
}
