package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"wordclass-go/internal/classifier"
	"wordclass-go/internal/model"
	"wordclass-go/internal/repository"
	"wordclass-go/pkg/errs"
	"wordclass-go/pkg/tasks"
)

func trainingRows() [][2]string {
	return [][2]string{
		{"buy milk", "shopping"}, {"write code", "work"}, {"buy bread", "shopping"},
		{"write report", "work"}, {"buy eggs", "shopping"}, {"review code", "work"},
	}
}

func testDefaults() classifier.Hyperparams {
	hp := classifier.DefaultHyperparams()
	hp.Epochs = 30
	hp.BatchSize = 2
	hp.ValidationSplit = 0
	hp.LearningRate = 0.01
	return hp
}

type fakeProducer struct {
	produced []tasks.TrainingTask
	err      error
}

func (f *fakeProducer) ProduceTrainingTask(ctx context.Context, task tasks.TrainingTask) error {
	if f.err != nil {
		return f.err
	}
	f.produced = append(f.produced, task)
	return nil
}

func newClassifierService(t *testing.T, producer TaskProducer) (ClassifierService, *gorm.DB) {
	t.Helper()
	db := createDB(t, trainingRows()...)
	local := NewLocalGateway(newGateway(db, 1000), nil)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	session := classifier.NewSession(classifier.SessionConfig{
		Source:      local,
		Store:       repository.NewArtifactRepository(rdb, "test"),
		Metadata:    local,
		PageSize:    4,
		ArtifactKey: "word-classifier",
		ModelName:   "word-classifier",
	})
	return NewClassifierService(context.Background(), session, testDefaults(), producer, local, nil), db
}

func TestProcessTrainsAndSaves(t *testing.T) {
	svc, db := newClassifierService(t, nil)
	events, cancel := svc.Progress().Subscribe(64)
	defer cancel()

	err := svc.Process(context.Background(), tasks.TrainingTask{TaskID: "t-1", Save: true})
	require.NoError(t, err)

	var types []string
	epochs := 0
	for len(events) > 0 {
		ev := <-events
		types = append(types, ev.Type)
		if ev.Type == EventEpoch {
			epochs++
		}
	}
	assert.Equal(t, 30, epochs)
	assert.Equal(t, EventStarted, types[0])
	assert.Equal(t, []string{EventSaved, EventCompleted}, types[len(types)-2:])

	var meta model.ModelMetadata
	require.NoError(t, db.First(&meta).Error)
	assert.Equal(t, "word-classifier", meta.Name)
	assert.Equal(t, "redis://test:artifact:word-classifier", meta.Path)
	assert.Contains(t, meta.Parameters, `"labelColumn":"category"`)

	st := svc.Status()
	assert.True(t, st.Trained)
	assert.Equal(t, 6, st.Rows)
}

func TestPredictLogsWhenAsked(t *testing.T) {
	svc, db := newClassifierService(t, nil)
	require.NoError(t, svc.Process(context.Background(), tasks.TrainingTask{TaskID: "t-1"}))

	p, err := svc.Predict(context.Background(), PredictRequest{Text: "buy milk", Log: true, UserID: strPtr("u-7")})
	require.NoError(t, err)
	assert.Equal(t, "shopping", p.Label)

	var entry model.PredictionLog
	require.NoError(t, db.First(&entry).Error)
	assert.Equal(t, "buy milk", entry.Text)
	assert.Equal(t, "shopping", entry.PredictedClass)

	_, err = svc.Predict(context.Background(), PredictRequest{})
	assert.True(t, errors.Is(err, errs.ErrValidation))

	p, err = svc.Predict(context.Background(), PredictRequest{Fields: map[string]string{"text": "write code"}})
	require.NoError(t, err)
	assert.Equal(t, "work", p.Label)
}

func TestPredictBeforeTrainingFails(t *testing.T) {
	svc, _ := newClassifierService(t, nil)
	_, err := svc.Predict(context.Background(), PredictRequest{Text: "buy milk"})
	assert.True(t, errors.Is(err, errs.ErrModelNotTrained))
}

func TestSaveThenLoadRestoresModel(t *testing.T) {
	svc, _ := newClassifierService(t, nil)
	require.NoError(t, svc.Process(context.Background(), tasks.TrainingTask{TaskID: "t-1"}))
	before, err := svc.Predict(context.Background(), PredictRequest{Text: "buy bread"})
	require.NoError(t, err)

	report, err := svc.Save(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Warning)

	runID, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.RunID, runID)

	after, err := svc.Predict(context.Background(), PredictRequest{Text: "buy bread"})
	require.NoError(t, err)
	assert.Equal(t, before.Probabilities, after.Probabilities)
}

func TestSubmitViaProducer(t *testing.T) {
	producer := &fakeProducer{}
	svc, _ := newClassifierService(t, producer)

	task, err := svc.Submit(context.Background(), TrainRequest{Epochs: 3, Save: true})
	require.NoError(t, err)
	require.Len(t, producer.produced, 1)
	assert.Equal(t, task.TaskID, producer.produced[0].TaskID)
	assert.Equal(t, 3, producer.produced[0].Epochs)

	producer.err = errors.New("broker down")
	_, err = svc.Submit(context.Background(), TrainRequest{})
	assert.True(t, errors.Is(err, errs.ErrConnection))

	bad := 1.5
	_, err = svc.Submit(context.Background(), TrainRequest{ValidationSplit: &bad})
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestSubmitLocally(t *testing.T) {
	svc, _ := newClassifierService(t, nil)
	events, cancel := svc.Progress().Subscribe(128)
	defer cancel()

	task, err := svc.Submit(context.Background(), TrainRequest{Epochs: 2})
	require.NoError(t, err)

	deadline := time.After(30 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type == EventFailed {
				t.Fatalf("training failed: %s", ev.Message)
			}
			if ev.Type == EventCompleted && ev.TaskID == task.TaskID {
				assert.True(t, svc.Status().Trained)
				return
			}
		case <-deadline:
			t.Fatal("local training did not complete")
		}
	}
}

func TestLocalSubmitWhilePendingIsRejected(t *testing.T) {
	svc, _ := newClassifierService(t, nil)
	impl := svc.(*classifierService)
	events, cancel := svc.Progress().Subscribe(256)
	defer cancel()

	// 上一个本地任务已提交但尚未开始训练
	impl.pending.Store(true)
	_, err := svc.Submit(context.Background(), TrainRequest{Epochs: 2})
	assert.True(t, IsTrainingInProgress(err))
	assert.Len(t, events, 0)

	impl.pending.Store(false)
	task, err := svc.Submit(context.Background(), TrainRequest{Epochs: 2})
	require.NoError(t, err)

	deadline := time.After(30 * time.Second)
	for done := false; !done; {
		select {
		case ev := <-events:
			assert.NotEqual(t, EventFailed, ev.Type, ev.Message)
			done = ev.Type == EventCompleted && ev.TaskID == task.TaskID
		case <-deadline:
			t.Fatal("local training did not complete")
		}
	}
	assert.Eventually(t, func() bool { return !impl.pending.Load() }, 5*time.Second, 10*time.Millisecond)
}

func TestConcurrentLocalSubmitAcceptsOne(t *testing.T) {
	svc, _ := newClassifierService(t, nil)
	impl := svc.(*classifierService)
	events, cancel := svc.Progress().Subscribe(1024)
	defer cancel()

	const callers = 8
	results := make(chan error, callers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Submit(context.Background(), TrainRequest{Epochs: 2})
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	accepted := 0
	for err := range results {
		if err == nil {
			accepted++
			continue
		}
		assert.True(t, IsTrainingInProgress(err))
	}
	// 训练极快时槽位可能已释放，但每个被接受的任务都必须独占槽位
	assert.GreaterOrEqual(t, accepted, 1)

	completed := 0
	deadline := time.After(60 * time.Second)
	for completed < accepted {
		select {
		case ev := <-events:
			assert.NotEqual(t, EventFailed, ev.Type, ev.Message)
			if ev.Type == EventCompleted {
				completed++
			}
		case <-deadline:
			t.Fatal("local training did not complete")
		}
	}
	assert.Eventually(t, func() bool { return !impl.pending.Load() }, 5*time.Second, 10*time.Millisecond)
}

func TestProgressHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewProgressHub()
	events, cancel := hub.Subscribe(1)

	hub.Publish(ProgressEvent{Type: EventStarted})
	hub.Publish(ProgressEvent{Type: EventCompleted})
	assert.Len(t, events, 1)
	assert.Equal(t, EventStarted, (<-events).Type)

	cancel()
	cancel()
	_, open := <-events
	assert.False(t, open)
	hub.Publish(ProgressEvent{Type: EventEpoch})
}
