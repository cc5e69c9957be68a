package classifier

import (
	"math"
	"math/rand"
)

// Embedding 将词索引映射为稠密向量并对序列做均值池化。
// 索引 0（未知词与填充）被屏蔽，不计入均值。
type Embedding struct {
	InputDim  int       `json:"input_dim"`
	OutputDim int       `json:"output_dim"`
	Weights   []float64 `json:"weights"`
}

func newEmbedding(inputDim, outputDim int, rng *rand.Rand) *Embedding {
	e := &Embedding{
		InputDim:  inputDim,
		OutputDim: outputDim,
		Weights:   make([]float64, inputDim*outputDim),
	}
	for i := range e.Weights {
		e.Weights[i] = rng.Float64()*0.1 - 0.05
	}
	return e
}

func (e *Embedding) masked(idx int) bool {
	return idx <= 0 || idx >= e.InputDim
}

// forward 将每行的池化结果写入 out 的 [offset, offset+OutputDim) 列，全部被屏蔽的行保持为零向量。
func (e *Embedding) forward(seqs [][]int, out *matrix, offset int) {
	for r, seq := range seqs {
		dst := out.row(r)[offset : offset+e.OutputDim]
		n := 0
		for _, idx := range seq {
			if e.masked(idx) {
				continue
			}
			n++
			src := e.Weights[idx*e.OutputDim : (idx+1)*e.OutputDim]
			for d, v := range src {
				dst[d] += v
			}
		}
		if n > 0 {
			inv := 1 / float64(n)
			for d := range dst {
				dst[d] *= inv
			}
		}
	}
}

func (e *Embedding) backward(seqs [][]int, gradOut *matrix, offset int, grad []float64) {
	for r, seq := range seqs {
		n := 0
		for _, idx := range seq {
			if !e.masked(idx) {
				n++
			}
		}
		if n == 0 {
			continue
		}
		g := gradOut.row(r)[offset : offset+e.OutputDim]
		inv := 1 / float64(n)
		for _, idx := range seq {
			if e.masked(idx) {
				continue
			}
			dst := grad[idx*e.OutputDim : (idx+1)*e.OutputDim]
			for d, v := range g {
				dst[d] += v * inv
			}
		}
	}
}

// Dense 是全连接层，Weights 按 In×Out 行优先存储。
type Dense struct {
	In      int       `json:"in"`
	Out     int       `json:"out"`
	Weights []float64 `json:"weights"`
	Bias    []float64 `json:"bias"`
}

// newDense 使用 Glorot 均匀分布初始化权重，偏置为 0。
func newDense(in, out int, rng *rand.Rand) *Dense {
	d := &Dense{
		In:      in,
		Out:     out,
		Weights: make([]float64, in*out),
		Bias:    make([]float64, out),
	}
	limit := math.Sqrt(6 / float64(in+out))
	for i := range d.Weights {
		d.Weights[i] = (rng.Float64()*2 - 1) * limit
	}
	return d
}

// forward 计算 y = xW + b。
func (d *Dense) forward(x, y *matrix) {
	for r := 0; r < x.R; r++ {
		xr, yr := x.row(r), y.row(r)
		copy(yr, d.Bias)
		for i, xv := range xr {
			if xv == 0 {
				continue
			}
			w := d.Weights[i*d.Out : (i+1)*d.Out]
			for j, wv := range w {
				yr[j] += xv * wv
			}
		}
	}
}

// backward 累加 dW、db；dx 不为 nil 时写入对输入的梯度。
func (d *Dense) backward(x, dy *matrix, dW, db []float64, dx *matrix) {
	for r := 0; r < x.R; r++ {
		xr, gr := x.row(r), dy.row(r)
		for j, g := range gr {
			db[j] += g
		}
		for i, xv := range xr {
			w := d.Weights[i*d.Out : (i+1)*d.Out]
			gw := dW[i*d.Out : (i+1)*d.Out]
			s := 0.0
			for j, g := range gr {
				gw[j] += xv * g
				s += w[j] * g
			}
			if dx != nil {
				dx.row(r)[i] = s
			}
		}
	}
}

func relu(m *matrix) {
	for i, v := range m.Data {
		if v < 0 {
			m.Data[i] = 0
		}
	}
}

// reluBackward 将 grad 中激活值为 0 的位置清零。
func reluBackward(grad, activated *matrix) {
	for i, v := range activated.Data {
		if v <= 0 {
			grad.Data[i] = 0
		}
	}
}

// softmaxRows 对每一行做数值稳定的 softmax。
func softmaxRows(m *matrix) {
	for r := 0; r < m.R; r++ {
		row := m.row(r)
		maxV := math.Inf(-1)
		for _, v := range row {
			if v > maxV {
				maxV = v
			}
		}
		sum := 0.0
		for j, v := range row {
			e := math.Exp(v - maxV)
			row[j] = e
			sum += e
		}
		for j := range row {
			row[j] /= sum
		}
	}
}

const probabilityFloor = 1e-7

// crossEntropy 返回稀疏分类交叉熵之和与预测正确的行数。
func crossEntropy(probs *matrix, labels []int) (float64, int) {
	loss := 0.0
	correct := 0
	for r, y := range labels {
		row := probs.row(r)
		p := math.Min(math.Max(row[y], probabilityFloor), 1-probabilityFloor)
		loss -= math.Log(p)
		if argmax(row) == y {
			correct++
		}
	}
	return loss, correct
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
