package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wordclass-go/pkg/tasks"
)

type stubProcessor struct {
	err      error
	// failures 次之后开始成功；为 0 时始终返回 err
	failures int
	calls    int
}

func (p *stubProcessor) Process(ctx context.Context, task tasks.TrainingTask) error {
	p.calls++
	if p.failures > 0 && p.calls > p.failures {
		return nil
	}
	return p.err
}

func TestMain(m *testing.M) {
	retryBackoff = time.Millisecond
	os.Exit(m.Run())
}

func newTracker(t *testing.T) (*attemptTracker, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return &attemptTracker{rdb: rdb}, mr
}

func encodeTask(t *testing.T, id string) []byte {
	data, err := json.Marshal(tasks.TrainingTask{TaskID: id, Save: true})
	require.NoError(t, err)
	return data
}

func TestHandleMessageSuccessCommitsAndClears(t *testing.T) {
	tracker, mr := newTracker(t)
	mr.Set(attemptsKey("t1"), "2")

	p := &stubProcessor{}
	assert.True(t, handleMessage(context.Background(), encodeTask(t, "t1"), p, tracker))
	assert.Equal(t, 1, p.calls)
	assert.False(t, mr.Exists(attemptsKey("t1")))
}

func TestHandleMessageRetriesUntilLimit(t *testing.T) {
	tracker, mr := newTracker(t)
	p := &stubProcessor{err: errors.New("gateway unavailable")}

	assert.True(t, handleMessage(context.Background(), encodeTask(t, "t2"), p, tracker))
	assert.Equal(t, maxAttempts, p.calls)

	got, err := mr.Get(attemptsKey("t2"))
	require.NoError(t, err)
	assert.Equal(t, "3", got)
	assert.True(t, mr.TTL(attemptsKey("t2")) > 0)
}

func TestHandleMessageRecoversOnRetry(t *testing.T) {
	tracker, mr := newTracker(t)
	p := &stubProcessor{err: errors.New("gateway unavailable"), failures: 2}

	assert.True(t, handleMessage(context.Background(), encodeTask(t, "t4"), p, tracker))
	assert.Equal(t, 3, p.calls)
	assert.False(t, mr.Exists(attemptsKey("t4")))
}

func TestHandleMessageStopsRetryingOnCancel(t *testing.T) {
	tracker, _ := newTracker(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &stubProcessor{err: errors.New("gateway unavailable")}

	assert.False(t, handleMessage(ctx, encodeTask(t, "t5"), p, tracker))
	assert.Equal(t, 1, p.calls)
}

func TestHandleMessageMalformedIsCommitted(t *testing.T) {
	tracker, _ := newTracker(t)
	p := &stubProcessor{}
	assert.True(t, handleMessage(context.Background(), []byte("{oops"), p, tracker))
	assert.Equal(t, 0, p.calls)
}

func TestHandleMessageRedisDownIsNotCommitted(t *testing.T) {
	tracker, mr := newTracker(t)
	mr.Close()
	p := &stubProcessor{err: errors.New("boom")}
	assert.False(t, handleMessage(context.Background(), encodeTask(t, "t3"), p, tracker))
}
