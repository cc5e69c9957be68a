package service

import (
	"sync"
	"time"

	"wordclass-go/internal/classifier"
)

// 训练进度事件类型。
const (
	EventQueued    = "queued"
	EventStarted   = "started"
	EventEpoch     = "epoch"
	EventSaved     = "saved"
	EventCompleted = "completed"
	EventFailed    = "failed"
)

// ProgressEvent 是推送给订阅者的一条进度消息。
type ProgressEvent struct {
	Type    string               `json:"type"`
	TaskID  string               `json:"taskId,omitempty"`
	Epoch   *classifier.EpochLog `json:"epoch,omitempty"`
	Message string               `json:"message,omitempty"`
	Time    time.Time            `json:"time"`
}

// ProgressHub 将训练进度扇出给所有订阅者。订阅者的缓冲区满时丢弃事件，不阻塞训练。
type ProgressHub struct {
	mu   sync.Mutex
	subs map[chan ProgressEvent]struct{}
}

func NewProgressHub() *ProgressHub {
	return &ProgressHub{subs: make(map[chan ProgressEvent]struct{})}
}

// Subscribe 注册一个订阅者，返回事件通道和取消函数。取消后通道被关闭。
func (h *ProgressHub) Subscribe(buffer int) (<-chan ProgressEvent, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan ProgressEvent, buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish 非阻塞地投递事件。
func (h *ProgressHub) Publish(ev ProgressEvent) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
