package classifier

import "math"

// Adam 优化器，参数与 Keras 默认值一致。
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64

	step int
	m, v [][]float64
}

func NewAdam(lr float64) *Adam {
	return &Adam{LearningRate: lr, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-7}
}

// Step 原地更新 params，grads 与 params 一一对应。
func (o *Adam) Step(params, grads [][]float64) {
	if o.m == nil {
		o.m = make([][]float64, len(params))
		o.v = make([][]float64, len(params))
		for i, p := range params {
			o.m[i] = make([]float64, len(p))
			o.v[i] = make([]float64, len(p))
		}
	}
	o.step++
	t := float64(o.step)
	lr := o.LearningRate * math.Sqrt(1-math.Pow(o.Beta2, t)) / (1 - math.Pow(o.Beta1, t))

	for i, p := range params {
		m, v, g := o.m[i], o.v[i], grads[i]
		for j := range p {
			m[j] = o.Beta1*m[j] + (1-o.Beta1)*g[j]
			v[j] = o.Beta2*v[j] + (1-o.Beta2)*g[j]*g[j]
			p[j] -= lr * m[j] / (math.Sqrt(v[j]) + o.Epsilon)
		}
	}
}
