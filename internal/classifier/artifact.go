package classifier

import (
	"encoding/json"
	"fmt"

	"wordclass-go/internal/model"
	"wordclass-go/internal/pipeline"
	"wordclass-go/pkg/errs"
)

// Artifact 是一次训练得到的完整模型单元：权重、各列词表和逆标签映射。
// 三者只能一起保存、一起加载。
type Artifact struct {
	RunID        string
	Network      *Network
	Columns      []string
	LabelColumn  string
	Vocabularies map[string]pipeline.Vocabulary
	Labels       []string
}

type weightsBlob struct {
	RunID   string   `json:"run_id"`
	Network *Network `json:"network"`
}

type vocabulariesBlob struct {
	RunID        string                         `json:"run_id"`
	Columns      []string                       `json:"columns"`
	Vocabularies map[string]pipeline.Vocabulary `json:"vocabularies"`
}

type labelsBlob struct {
	RunID       string   `json:"run_id"`
	LabelColumn string   `json:"label_column"`
	Labels      []string `json:"labels"`
}

// Encode 将模型单元序列化为三个键值块。
func (a *Artifact) Encode() (model.ArtifactBlobs, error) {
	var blobs model.ArtifactBlobs
	var err error
	if blobs.Weights, err = json.Marshal(weightsBlob{RunID: a.RunID, Network: a.Network}); err != nil {
		return blobs, fmt.Errorf("序列化权重失败: %w", err)
	}
	if blobs.Vocabularies, err = json.Marshal(vocabulariesBlob{
		RunID:        a.RunID,
		Columns:      a.Columns,
		Vocabularies: a.Vocabularies,
	}); err != nil {
		return blobs, fmt.Errorf("序列化词表失败: %w", err)
	}
	if blobs.Labels, err = json.Marshal(labelsBlob{
		RunID:       a.RunID,
		LabelColumn: a.LabelColumn,
		Labels:      a.Labels,
	}); err != nil {
		return blobs, fmt.Errorf("序列化标签映射失败: %w", err)
	}
	return blobs, nil
}

// DecodeArtifact 反序列化三个块并校验它们属于同一次训练、形状互相匹配。
func DecodeArtifact(blobs model.ArtifactBlobs) (*Artifact, error) {
	const op = "load_model"
	if !blobs.Complete() {
		return nil, errs.Validation(op, "artifact is incomplete")
	}

	var w weightsBlob
	if err := json.Unmarshal(blobs.Weights, &w); err != nil || w.Network == nil {
		return nil, errs.Validation(op, "weights blob is unreadable")
	}
	var v vocabulariesBlob
	if err := json.Unmarshal(blobs.Vocabularies, &v); err != nil {
		return nil, errs.Validation(op, "vocabularies blob is unreadable")
	}
	var l labelsBlob
	if err := json.Unmarshal(blobs.Labels, &l); err != nil {
		return nil, errs.Validation(op, "labels blob is unreadable")
	}

	if w.RunID != v.RunID || w.RunID != l.RunID {
		return nil, errs.Validation(op, "artifact blobs come from different runs (%q, %q, %q)", w.RunID, v.RunID, l.RunID)
	}
	if err := w.Network.validate(); err != nil {
		return nil, err
	}
	if len(v.Columns) != len(w.Network.Branches) {
		return nil, errs.Validation(op, "model has %d branches but %d vocabularies", len(w.Network.Branches), len(v.Columns))
	}
	for i, col := range v.Columns {
		vocab, ok := v.Vocabularies[col]
		if !ok {
			return nil, errs.Validation(op, "missing vocabulary for column %q", col)
		}
		if len(vocab)+1 != w.Network.Branches[i].InputDim {
			return nil, errs.Validation(op, "vocabulary for column %q does not match its embedding", col)
		}
	}
	if len(l.Labels) != w.Network.NumClasses() {
		return nil, errs.Validation(op, "model has %d classes but label map has %d", w.Network.NumClasses(), len(l.Labels))
	}

	return &Artifact{
		RunID:        w.RunID,
		Network:      w.Network,
		Columns:      v.Columns,
		LabelColumn:  l.LabelColumn,
		Vocabularies: v.Vocabularies,
		Labels:       l.Labels,
	}, nil
}

// Parameters 生成写入元数据记录的参数描述。
func (a *Artifact) Parameters(hp Hyperparams) model.TrainingParameters {
	p := model.TrainingParameters{
		RunID:           a.RunID,
		FeatureColumns:  a.Columns,
		LabelColumn:     a.LabelColumn,
		NumClasses:      len(a.Labels),
		Epochs:          hp.Epochs,
		BatchSize:       hp.BatchSize,
		ValidationSplit: hp.ValidationSplit,
		LearningRate:    hp.LearningRate,
		DropoutRate:     hp.DropoutRate,
		VocabularySizes: make(map[string]int, len(a.Columns)),
		EmbeddingDims:   make(map[string]int, len(a.Columns)),
	}
	for i, col := range a.Columns {
		p.VocabularySizes[col] = len(a.Vocabularies[col])
		p.EmbeddingDims[col] = a.Network.Branches[i].OutputDim
	}
	return p
}
