package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"wordclass-go/internal/model"
	"wordclass-go/internal/pipeline"
	"wordclass-go/pkg/errs"
	"wordclass-go/pkg/log"
)

// ErrTrainingInProgress 表示已有训练在进行，本次请求被拒绝。
var ErrTrainingInProgress = errors.New("training already in progress")

// ArtifactStore 保存和读取模型单元的三个键值块。
type ArtifactStore interface {
	Put(ctx context.Context, key string, blobs model.ArtifactBlobs) error
	Get(ctx context.Context, key string) (model.ArtifactBlobs, error)
	Location(key string) string
}

// MetadataSink 接收训练完成后的元数据记录，返回新记录的 ID。
type MetadataSink interface {
	SaveMetadata(ctx context.Context, in model.MetadataInput) (uint, error)
}

// SessionConfig 是创建 Session 所需的依赖与参数。
type SessionConfig struct {
	Source      pipeline.Source
	Store       ArtifactStore
	Metadata    MetadataSink
	PageSize    int
	ArtifactKey string
	ModelName   string
}

// Session 持有一份语料和一个模型，串行化 init → train → evaluate/save/load/predict。
type Session struct {
	cfg SessionConfig

	mu       sync.Mutex
	corpus   *pipeline.Corpus
	artifact *Artifact
	hp       Hyperparams
	history  []EpochLog
	training bool
	lastErr  string
}

func NewSession(cfg SessionConfig) *Session {
	if cfg.ArtifactKey == "" {
		cfg.ArtifactKey = "word-classifier"
	}
	if cfg.ModelName == "" {
		cfg.ModelName = cfg.ArtifactKey
	}
	return &Session{cfg: cfg, hp: DefaultHyperparams()}
}

// Init 拉取 schema 与全部数据并构建词表，替换当前语料。已训练的模型保持不变。
func (s *Session) Init(ctx context.Context) (*pipeline.Corpus, error) {
	s.mu.Lock()
	if s.training {
		s.mu.Unlock()
		return nil, ErrTrainingInProgress
	}
	s.mu.Unlock()

	corpus, err := pipeline.NewBuilder(s.cfg.Source, s.cfg.PageSize).Build(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.corpus = corpus
	s.mu.Unlock()
	return corpus, nil
}

// TrainResult 是一次成功训练的结果。
type TrainResult struct {
	RunID   string     `json:"run_id"`
	History []EpochLog `json:"history"`
}

// Train 在当前语料上训练一个新模型。失败时保留之前的模型，并允许再次训练。
func (s *Session) Train(ctx context.Context, hp Hyperparams, onEpoch EpochCallback) (*TrainResult, error) {
	s.mu.Lock()
	if s.training {
		s.mu.Unlock()
		return nil, ErrTrainingInProgress
	}
	corpus := s.corpus
	if corpus == nil {
		s.mu.Unlock()
		return nil, errs.Configuration("train", "corpus has not been loaded")
	}
	s.training = true
	s.lastErr = ""
	s.mu.Unlock()

	artifact, history, err := s.fit(ctx, corpus, hp, onEpoch)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.training = false
	if err != nil {
		s.lastErr = err.Error()
		log.Error("[Session] 训练失败", err)
		return nil, err
	}
	s.artifact = artifact
	s.hp = hp
	s.history = history
	log.Infow("[Session] 训练完成", "run_id", artifact.RunID, "epochs", len(history))
	return &TrainResult{RunID: artifact.RunID, History: history}, nil
}

func (s *Session) fit(ctx context.Context, corpus *pipeline.Corpus, hp Hyperparams, onEpoch EpochCallback) (*Artifact, []EpochLog, error) {
	if err := hp.validate(); err != nil {
		return nil, nil, err
	}
	columns := corpus.Columns.Features
	sizes := make([]int, len(columns))
	for i, col := range columns {
		sizes[i] = len(corpus.Vocabularies[col])
	}

	rng := rand.New(rand.NewSource(hp.Seed))
	net, err := NewNetwork(sizes, corpus.LabelMap.Len(), hp.DropoutRate, rng)
	if err != nil {
		return nil, nil, err
	}
	data := EncodeCorpus(corpus, columns, corpus.Vocabularies)
	history, err := NewTrainer(net, hp, rng).Fit(ctx, data, onEpoch)
	if err != nil {
		return nil, nil, err
	}

	return &Artifact{
		RunID:        uuid.NewString(),
		Network:      net,
		Columns:      append([]string(nil), columns...),
		LabelColumn:  corpus.Columns.Label,
		Vocabularies: corpus.Vocabularies,
		Labels:       corpus.LabelMap.Inverse(),
	}, history, nil
}

// Evaluate 在已加载的语料上评估当前模型，衡量的是训练集拟合程度。
func (s *Session) Evaluate(ctx context.Context) (Evaluation, error) {
	s.mu.Lock()
	artifact, corpus, batchSize := s.artifact, s.corpus, s.hp.BatchSize
	s.mu.Unlock()

	if artifact == nil {
		return Evaluation{}, errs.ModelNotTrained("evaluate")
	}
	if corpus == nil {
		return Evaluation{}, errs.Configuration("evaluate", "corpus has not been loaded")
	}
	if err := ctx.Err(); err != nil {
		return Evaluation{}, err
	}
	return Evaluate(artifact.Network, alignCorpus(corpus, artifact), batchSize)
}

// alignCorpus 用模型自身的词表和标签映射编码语料，丢弃模型不认识的标签。
func alignCorpus(corpus *pipeline.Corpus, artifact *Artifact) Dataset {
	labels := pipeline.LabelMapFromInverse(artifact.Labels)
	data := EncodeCorpus(corpus, artifact.Columns, artifact.Vocabularies)

	kept := Dataset{Inputs: make([][][]int, len(data.Inputs))}
	for r, id := range corpus.Labels {
		name, _ := corpus.LabelMap.Label(id)
		mapped, ok := labels.ID(name)
		if !ok {
			continue
		}
		for b := range data.Inputs {
			kept.Inputs[b] = append(kept.Inputs[b], data.Inputs[b][r])
		}
		kept.Labels = append(kept.Labels, mapped)
	}
	return kept
}

// Prediction 是单条输入的预测结果，Probabilities 按类别 ID 排列。
type Prediction struct {
	Label         string    `json:"label"`
	Probability   float64   `json:"probability"`
	Probabilities []float64 `json:"probabilities"`
	Classes       []string  `json:"classes"`
}

// Predict 将同一段文本作为每个特征列的输入进行预测。
func (s *Session) Predict(text string) (*Prediction, error) {
	s.mu.Lock()
	artifact := s.artifact
	s.mu.Unlock()
	if artifact == nil {
		return nil, errs.ModelNotTrained("predict")
	}

	fields := make(map[string]string, len(artifact.Columns))
	for _, col := range artifact.Columns {
		fields[col] = text
	}
	return predict(artifact, fields), nil
}

// PredictFields 按列分别提供输入，缺失的列按空串处理。
func (s *Session) PredictFields(fields map[string]string) (*Prediction, error) {
	s.mu.Lock()
	artifact := s.artifact
	s.mu.Unlock()
	if artifact == nil {
		return nil, errs.ModelNotTrained("predict")
	}
	return predict(artifact, fields), nil
}

func predict(artifact *Artifact, fields map[string]string) *Prediction {
	inputs := encodeFields(fields, artifact.Columns, artifact.Vocabularies)
	probs := artifact.Network.Predict(inputs)[0]
	best := argmax(probs)
	return &Prediction{
		Label:         artifact.Labels[best],
		Probability:   probs[best],
		Probabilities: probs,
		Classes:       append([]string(nil), artifact.Labels...),
	}
}

// SaveReport 分别报告保存的两个步骤：模型单元写入与元数据记录。
type SaveReport struct {
	RunID      string  `json:"run_id"`
	Location   string  `json:"location"`
	Accuracy   float64 `json:"accuracy"`
	MetadataID uint    `json:"metadata_id,omitempty"`
	Warning    string  `json:"warning,omitempty"`
}

// Save 先把模型单元写入存储（失败则返回错误），再尽力写元数据记录（失败只记为警告）。
func (s *Session) Save(ctx context.Context) (*SaveReport, error) {
	s.mu.Lock()
	artifact, hp, history := s.artifact, s.hp, s.history
	s.mu.Unlock()
	if artifact == nil {
		return nil, errs.ModelNotTrained("save")
	}

	blobs, err := artifact.Encode()
	if err != nil {
		return nil, err
	}
	if err := s.cfg.Store.Put(ctx, s.cfg.ArtifactKey, blobs); err != nil {
		return nil, fmt.Errorf("保存模型失败: %w", err)
	}
	report := &SaveReport{RunID: artifact.RunID, Location: s.cfg.Store.Location(s.cfg.ArtifactKey)}
	log.Infow("[Session] 模型已保存", "run_id", artifact.RunID, "location", report.Location)

	if eval, err := s.Evaluate(ctx); err == nil {
		report.Accuracy = eval.Accuracy
	} else if len(history) > 0 {
		report.Accuracy = history[len(history)-1].Accuracy
	}

	if s.cfg.Metadata == nil {
		report.Warning = "metadata sink not configured; metadata not recorded"
		return report, nil
	}
	params, err := json.Marshal(artifact.Parameters(hp))
	if err != nil {
		report.Warning = fmt.Sprintf("model saved but metadata could not be encoded: %v", err)
		return report, nil
	}
	id, err := s.cfg.Metadata.SaveMetadata(ctx, model.MetadataInput{
		Name:       s.cfg.ModelName,
		Accuracy:   report.Accuracy,
		Parameters: params,
		Path:       report.Location,
	})
	if err != nil {
		report.Warning = fmt.Sprintf("model saved but metadata was not recorded: %v", err)
		log.Warnw("[Session] 元数据写入失败", "run_id", artifact.RunID, "error", err)
		return report, nil
	}
	report.MetadataID = id
	return report, nil
}

// Load 从存储读取模型单元并替换当前模型。
func (s *Session) Load(ctx context.Context) (string, error) {
	blobs, err := s.cfg.Store.Get(ctx, s.cfg.ArtifactKey)
	if err != nil {
		return "", err
	}
	artifact, err := DecodeArtifact(blobs)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.artifact = artifact
	s.history = nil
	s.mu.Unlock()
	log.Infow("[Session] 模型已加载", "run_id", artifact.RunID, "classes", len(artifact.Labels))
	return artifact.RunID, nil
}

// Status 是会话当前状态的快照。
type Status struct {
	Initialized    bool       `json:"initialized"`
	Rows           int        `json:"rows"`
	FeatureColumns []string   `json:"feature_columns,omitempty"`
	LabelColumn    string     `json:"label_column,omitempty"`
	Classes        []string   `json:"classes,omitempty"`
	Trained        bool       `json:"trained"`
	Training       bool       `json:"training"`
	RunID          string     `json:"run_id,omitempty"`
	History        []EpochLog `json:"history,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{Training: s.training, LastError: s.lastErr, History: s.history}
	if s.corpus != nil {
		st.Initialized = true
		st.Rows = s.corpus.Len()
		st.FeatureColumns = s.corpus.Columns.Features
		st.LabelColumn = s.corpus.Columns.Label
	}
	if s.artifact != nil {
		st.Trained = true
		st.RunID = s.artifact.RunID
		st.Classes = s.artifact.Labels
	}
	return st
}
