package classifier

import (
	"context"
	"fmt"
	"math/rand"

	"wordclass-go/pkg/errs"
)

// Hyperparams 是一次训练使用的超参数。
type Hyperparams struct {
	Epochs          int     `json:"epochs"`
	BatchSize       int     `json:"batch_size"`
	ValidationSplit float64 `json:"validation_split"`
	LearningRate    float64 `json:"learning_rate"`
	DropoutRate     float64 `json:"dropout_rate"`
	Seed            int64   `json:"seed"`
}

func DefaultHyperparams() Hyperparams {
	return Hyperparams{
		Epochs:          10,
		BatchSize:       32,
		ValidationSplit: 0.2,
		LearningRate:    0.001,
		DropoutRate:     0.2,
		Seed:            42,
	}
}

func (h Hyperparams) validate() error {
	switch {
	case h.Epochs <= 0:
		return errs.Validation("train", "epochs must be positive, got %d", h.Epochs)
	case h.BatchSize <= 0:
		return errs.Validation("train", "batch size must be positive, got %d", h.BatchSize)
	case h.ValidationSplit < 0 || h.ValidationSplit >= 1:
		return errs.Validation("train", "validation split %v out of range [0, 1)", h.ValidationSplit)
	case h.LearningRate <= 0:
		return errs.Validation("train", "learning rate must be positive, got %v", h.LearningRate)
	case h.DropoutRate < 0 || h.DropoutRate >= 1:
		return errs.Validation("train", "dropout rate %v out of range [0, 1)", h.DropoutRate)
	}
	return nil
}

// EpochLog 是每个 epoch 结束时上报的指标，验证集为空时 Val* 字段为 nil。
type EpochLog struct {
	Epoch       int      `json:"epoch"`
	Loss        float64  `json:"loss"`
	Accuracy    float64  `json:"accuracy"`
	ValLoss     *float64 `json:"val_loss,omitempty"`
	ValAccuracy *float64 `json:"val_accuracy,omitempty"`
}

// EpochCallback 在每个 epoch 完成后被同步调用。
type EpochCallback func(EpochLog)

// Trainer 负责在一个网络上执行 fit 循环。
type Trainer struct {
	net *Network
	opt *Adam
	hp  Hyperparams
	rng *rand.Rand
}

func NewTrainer(net *Network, hp Hyperparams, rng *rand.Rand) *Trainer {
	return &Trainer{net: net, opt: NewAdam(hp.LearningRate), hp: hp, rng: rng}
}

// splitValidation 从训练集尾部切出 floor(n*split) 行作为验证集。
func splitValidation(n int, split float64) (train, val []int) {
	nVal := int(float64(n) * split)
	nTrain := n - nVal
	train = make([]int, nTrain)
	for i := range train {
		train[i] = i
	}
	val = make([]int, nVal)
	for i := range val {
		val[i] = nTrain + i
	}
	return train, val
}

// Fit 训练网络并逐 epoch 回调。每个 batch 之间检查 ctx 是否已取消。
func (t *Trainer) Fit(ctx context.Context, data Dataset, onEpoch EpochCallback) ([]EpochLog, error) {
	if err := t.hp.validate(); err != nil {
		return nil, err
	}
	if data.Len() == 0 {
		return nil, errs.Configuration("train", "no training rows")
	}
	if len(data.Inputs) != len(t.net.Branches) {
		return nil, errs.Configuration("train", "dataset has %d branches, model expects %d", len(data.Inputs), len(t.net.Branches))
	}

	trainIdx, valIdx := splitValidation(data.Len(), t.hp.ValidationSplit)
	history := make([]EpochLog, 0, t.hp.Epochs)

	for epoch := 1; epoch <= t.hp.Epochs; epoch++ {
		t.rng.Shuffle(len(trainIdx), func(i, j int) {
			trainIdx[i], trainIdx[j] = trainIdx[j], trainIdx[i]
		})

		lossSum, correct := 0.0, 0
		for start := 0; start < len(trainIdx); start += t.hp.BatchSize {
			if err := ctx.Err(); err != nil {
				return history, fmt.Errorf("训练在第 %d 个 epoch 被取消: %w", epoch, err)
			}
			end := min(start+t.hp.BatchSize, len(trainIdx))
			l, c := t.step(data, trainIdx[start:end])
			lossSum += l
			correct += c
		}

		entry := EpochLog{
			Epoch:    epoch,
			Loss:     lossSum / float64(len(trainIdx)),
			Accuracy: float64(correct) / float64(len(trainIdx)),
		}
		if len(valIdx) > 0 {
			vl, va := t.net.evaluate(data, valIdx, t.hp.BatchSize)
			entry.ValLoss = &vl
			entry.ValAccuracy = &va
		}
		history = append(history, entry)
		if onEpoch != nil {
			onEpoch(entry)
		}
	}
	return history, nil
}

// step 在一个 mini-batch 上做一次前向、反向和参数更新，返回损失之和与正确数。
func (t *Trainer) step(data Dataset, idx []int) (float64, int) {
	ws := newWorkspace()
	defer ws.release()

	inputs, labels := data.batch(idx)
	a := t.net.forward(ws, inputs, len(idx), t.rng)
	loss, correct := crossEntropy(a.probs, labels)

	params := t.net.params()
	grads := make([][]float64, len(params))
	for i, p := range params {
		grads[i] = ws.vector(len(p))
	}
	t.net.backward(ws, inputs, a, labels, grads)
	t.opt.Step(params, grads)
	return loss, correct
}

// evaluate 以推理模式计算 idx 指定行上的平均损失与准确率。
func (n *Network) evaluate(data Dataset, idx []int, batchSize int) (float64, float64) {
	if len(idx) == 0 {
		return 0, 0
	}
	lossSum, correct := 0.0, 0
	for start := 0; start < len(idx); start += batchSize {
		end := min(start+batchSize, len(idx))
		l, c := n.evaluateBatch(data, idx[start:end])
		lossSum += l
		correct += c
	}
	return lossSum / float64(len(idx)), float64(correct) / float64(len(idx))
}

func (n *Network) evaluateBatch(data Dataset, idx []int) (float64, int) {
	ws := newWorkspace()
	defer ws.release()

	inputs, labels := data.batch(idx)
	a := n.forward(ws, inputs, len(idx), nil)
	return crossEntropy(a.probs, labels)
}

// Evaluation 是一次评估的结果。
type Evaluation struct {
	Loss     float64 `json:"loss"`
	Accuracy float64 `json:"accuracy"`
	Samples  int     `json:"samples"`
}

// Evaluate 在整个数据集上评估网络。
func Evaluate(net *Network, data Dataset, batchSize int) (Evaluation, error) {
	if data.Len() == 0 {
		return Evaluation{}, errs.Configuration("evaluate", "no rows to evaluate")
	}
	if batchSize <= 0 {
		batchSize = DefaultHyperparams().BatchSize
	}
	idx := make([]int, data.Len())
	for i := range idx {
		idx[i] = i
	}
	loss, acc := net.evaluate(data, idx, batchSize)
	return Evaluation{Loss: loss, Accuracy: acc, Samples: len(idx)}, nil
}
