package classifier

import (
	"math"
	"math/rand"

	"wordclass-go/pkg/errs"
)

const (
	maxEmbeddingDim = 50
	hiddenUnits     = 64
	hidden2Units    = 32
)

// EmbeddingDim 返回词表大小对应的嵌入维度：min(50, ceil(sqrt(words)))，至少为 1。
func EmbeddingDim(words int) int {
	d := int(math.Ceil(math.Sqrt(float64(words))))
	if d < 1 {
		d = 1
	}
	if d > maxEmbeddingDim {
		d = maxEmbeddingDim
	}
	return d
}

// Network 是每个特征列一个嵌入分支、拼接后接 dense(64)→dropout→dense(32)→softmax 的分类网络。
type Network struct {
	Branches    []*Embedding `json:"branches"`
	Hidden      *Dense       `json:"hidden"`
	Hidden2     *Dense       `json:"hidden2"`
	Output      *Dense       `json:"output"`
	DropoutRate float64      `json:"dropout_rate"`
}

// NewNetwork 按各分支的词表大小（不含保留的 0 号索引）构建网络。
func NewNetwork(vocabSizes []int, numClasses int, dropoutRate float64, rng *rand.Rand) (*Network, error) {
	if len(vocabSizes) == 0 {
		return nil, errs.Configuration("build_model", "model needs at least one feature branch")
	}
	if numClasses < 1 {
		return nil, errs.Configuration("build_model", "model needs at least one class")
	}
	if dropoutRate < 0 || dropoutRate >= 1 {
		return nil, errs.Validation("build_model", "dropout rate %v out of range [0, 1)", dropoutRate)
	}

	n := &Network{DropoutRate: dropoutRate}
	width := 0
	for _, words := range vocabSizes {
		e := newEmbedding(words+1, EmbeddingDim(words), rng)
		n.Branches = append(n.Branches, e)
		width += e.OutputDim
	}
	n.Hidden = newDense(width, hiddenUnits, rng)
	n.Hidden2 = newDense(hiddenUnits, hidden2Units, rng)
	n.Output = newDense(hidden2Units, numClasses, rng)
	return n, nil
}

// NumClasses 返回输出层的类别数。
func (n *Network) NumClasses() int {
	return n.Output.Out
}

func (n *Network) inputWidth() int {
	w := 0
	for _, e := range n.Branches {
		w += e.OutputDim
	}
	return w
}

// params 按固定顺序返回全部可训练参数：各分支嵌入，然后是三层 dense 的权重和偏置。
func (n *Network) params() [][]float64 {
	ps := make([][]float64, 0, len(n.Branches)+6)
	for _, e := range n.Branches {
		ps = append(ps, e.Weights)
	}
	return append(ps,
		n.Hidden.Weights, n.Hidden.Bias,
		n.Hidden2.Weights, n.Hidden2.Bias,
		n.Output.Weights, n.Output.Bias,
	)
}

// activations 保存一次前向传播的中间结果，反向传播时使用。
type activations struct {
	x       *matrix
	h1      *matrix
	dropped *matrix
	mask    *matrix
	h2      *matrix
	probs   *matrix
}

// forward 执行前向传播。rng 不为 nil 时处于训练模式，启用 dropout。
func (n *Network) forward(ws *workspace, inputs [][][]int, rows int, rng *rand.Rand) *activations {
	a := &activations{}
	a.x = ws.alloc(rows, n.inputWidth())
	offset := 0
	for b, e := range n.Branches {
		e.forward(inputs[b], a.x, offset)
		offset += e.OutputDim
	}

	a.h1 = ws.alloc(rows, n.Hidden.Out)
	n.Hidden.forward(a.x, a.h1)
	relu(a.h1)
	a.dropped = a.h1
	if rng != nil && n.DropoutRate > 0 {
		keep := 1 - n.DropoutRate
		a.mask = ws.alloc(rows, n.Hidden.Out)
		a.dropped = ws.alloc(rows, n.Hidden.Out)
		for i, v := range a.h1.Data {
			if rng.Float64() < keep {
				a.mask.Data[i] = 1 / keep
				a.dropped.Data[i] = v / keep
			}
		}
	}

	a.h2 = ws.alloc(rows, n.Hidden2.Out)
	n.Hidden2.forward(a.dropped, a.h2)
	relu(a.h2)

	a.probs = ws.alloc(rows, n.Output.Out)
	n.Output.forward(a.h2, a.probs)
	softmaxRows(a.probs)
	return a
}

// backward 计算平均交叉熵损失对全部参数的梯度，grads 与 params() 顺序一致。
func (n *Network) backward(ws *workspace, inputs [][][]int, a *activations, labels []int, grads [][]float64) {
	rows := a.probs.R
	nb := len(n.Branches)

	dLogits := ws.alloc(rows, n.Output.Out)
	copy(dLogits.Data, a.probs.Data)
	for r, y := range labels {
		dLogits.row(r)[y] -= 1
	}
	inv := 1 / float64(rows)
	for i := range dLogits.Data {
		dLogits.Data[i] *= inv
	}

	dH2 := ws.alloc(rows, n.Hidden2.Out)
	n.Output.backward(a.h2, dLogits, grads[nb+4], grads[nb+5], dH2)
	reluBackward(dH2, a.h2)

	dH1 := ws.alloc(rows, n.Hidden.Out)
	n.Hidden2.backward(a.dropped, dH2, grads[nb+2], grads[nb+3], dH1)
	if a.mask != nil {
		for i, m := range a.mask.Data {
			dH1.Data[i] *= m
		}
	}
	reluBackward(dH1, a.h1)

	dX := ws.alloc(rows, n.Hidden.In)
	n.Hidden.backward(a.x, dH1, grads[nb], grads[nb+1], dX)

	offset := 0
	for b, e := range n.Branches {
		e.backward(inputs[b], dX, offset, grads[b])
		offset += e.OutputDim
	}
}

// Predict 对一个已填充的批次做推理，返回每行的类别概率。
func (n *Network) Predict(inputs [][][]int) [][]float64 {
	rows := 0
	if len(inputs) > 0 {
		rows = len(inputs[0])
	}
	ws := newWorkspace()
	defer ws.release()

	a := n.forward(ws, inputs, rows, nil)
	out := make([][]float64, rows)
	for r := 0; r < rows; r++ {
		out[r] = append([]float64(nil), a.probs.row(r)...)
	}
	return out
}

// validate 检查反序列化得到的网络各层形状是否自洽。
func (n *Network) validate() error {
	if len(n.Branches) == 0 {
		return errs.Configuration("load_model", "model has no feature branches")
	}
	if n.Hidden == nil || n.Hidden2 == nil || n.Output == nil {
		return errs.Validation("load_model", "model is missing dense layers")
	}
	for i, e := range n.Branches {
		if e == nil || e.InputDim < 1 || e.OutputDim < 1 || len(e.Weights) != e.InputDim*e.OutputDim {
			return errs.Validation("load_model", "embedding branch %d has inconsistent shape", i)
		}
	}
	layers := []*Dense{n.Hidden, n.Hidden2, n.Output}
	in := n.inputWidth()
	for i, d := range layers {
		if d.In != in || len(d.Weights) != d.In*d.Out || len(d.Bias) != d.Out {
			return errs.Validation("load_model", "dense layer %d has inconsistent shape", i)
		}
		in = d.Out
	}
	return nil
}
