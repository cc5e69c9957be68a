package classifier

import (
	"sync"
	"sync/atomic"
)

// matrix 是行优先存储的二维矩阵。
type matrix struct {
	R, C int
	Data []float64
}

// row 返回第 i 行的切片视图。
func (m *matrix) row(i int) []float64 {
	return m.Data[i*m.C : (i+1)*m.C]
}

// bufferPool 复用激活值和梯度的临时缓冲区，减少 GC 压力。
var bufferPool = sync.Pool{New: func() any {
	buf := make([]float64, 0, 1024)
	return &buf
}}

// liveBuffers 记录当前借出未归还的缓冲区数量。
var liveBuffers atomic.Int64

// workspace 跟踪一次训练步、评估或预测借出的缓冲区，调用 release 统一归还。
type workspace struct {
	borrowed []*[]float64
}

func newWorkspace() *workspace {
	return &workspace{}
}

// alloc 借出一块清零的 r×c 矩阵。
func (w *workspace) alloc(r, c int) *matrix {
	n := r * c
	bp := bufferPool.Get().(*[]float64)
	buf := *bp
	if cap(buf) < n {
		buf = make([]float64, n)
	} else {
		buf = buf[:n]
		clear(buf)
	}
	*bp = buf
	w.borrowed = append(w.borrowed, bp)
	liveBuffers.Add(1)
	return &matrix{R: r, C: c, Data: buf}
}

// vector 借出一段长度为 n 的清零切片。
func (w *workspace) vector(n int) []float64 {
	return w.alloc(1, n).Data
}

func (w *workspace) release() {
	for _, bp := range w.borrowed {
		*bp = (*bp)[:0]
		bufferPool.Put(bp)
	}
	liveBuffers.Add(-int64(len(w.borrowed)))
	w.borrowed = w.borrowed[:0]
}
