package service

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"wordclass-go/internal/classifier"
	"wordclass-go/internal/model"
	"wordclass-go/pkg/errs"
	"wordclass-go/pkg/log"
	"wordclass-go/pkg/tasks"
)

// TaskProducer 把训练任务投递到消息队列。
type TaskProducer interface {
	ProduceTrainingTask(ctx context.Context, task tasks.TrainingTask) error
}

// PredictionRecorder 记录预测日志。
type PredictionRecorder interface {
	LogPrediction(ctx context.Context, in model.PredictionInput) (uint, error)
}

// TrainRequest 是 /train 的请求体，零值字段使用默认超参数。
type TrainRequest struct {
	Reload          bool     `json:"reload"`
	Save            bool     `json:"save"`
	Epochs          int      `json:"epochs"`
	BatchSize       int      `json:"batch_size"`
	LearningRate    float64  `json:"learning_rate"`
	ValidationSplit *float64 `json:"validation_split"`
}

// PredictRequest 可以给出一段文本（用于所有特征列），也可以按列给出。
type PredictRequest struct {
	Text   string            `json:"text"`
	Fields map[string]string `json:"fields"`
	Log    bool              `json:"log"`
	UserID *string           `json:"userId"`
}

// ClassifierService 定义了服务端训练与预测的操作。
type ClassifierService interface {
	Submit(ctx context.Context, req TrainRequest) (*tasks.TrainingTask, error)
	Process(ctx context.Context, task tasks.TrainingTask) error
	Status() classifier.Status
	Evaluate(ctx context.Context) (classifier.Evaluation, error)
	Predict(ctx context.Context, req PredictRequest) (*classifier.Prediction, error)
	Save(ctx context.Context) (*classifier.SaveReport, error)
	Load(ctx context.Context) (string, error)
	Progress() *ProgressHub
}

type classifierService struct {
	baseCtx  context.Context
	session  *classifier.Session
	defaults classifier.Hyperparams
	producer TaskProducer
	recorder PredictionRecorder
	hub      *ProgressHub

	// pending 在本地派发的任务从提交到结束期间为 true。
	pending atomic.Bool
}

// NewClassifierService 创建服务。producer 为 nil 时训练任务在本进程的 goroutine 中执行，
// 此时 baseCtx 取消会中止正在进行的训练。
func NewClassifierService(
	baseCtx context.Context,
	session *classifier.Session,
	defaults classifier.Hyperparams,
	producer TaskProducer,
	recorder PredictionRecorder,
	hub *ProgressHub,
) ClassifierService {
	if hub == nil {
		hub = NewProgressHub()
	}
	return &classifierService{
		baseCtx:  baseCtx,
		session:  session,
		defaults: defaults,
		producer: producer,
		recorder: recorder,
		hub:      hub,
	}
}

func (s *classifierService) Progress() *ProgressHub {
	return s.hub
}

// Submit 生成训练任务并派发，立即返回任务描述。
func (s *classifierService) Submit(ctx context.Context, req TrainRequest) (*tasks.TrainingTask, error) {
	if s.session.Status().Training {
		return nil, classifier.ErrTrainingInProgress
	}
	task := tasks.TrainingTask{
		TaskID:          uuid.NewString(),
		Reload:          req.Reload,
		Save:            req.Save,
		Epochs:          req.Epochs,
		BatchSize:       req.BatchSize,
		LearningRate:    req.LearningRate,
		ValidationSplit: req.ValidationSplit,
		RequestedAt:     time.Now(),
	}
	if _, err := s.hyperparams(task); err != nil {
		return nil, err
	}

	if s.producer != nil {
		if err := s.producer.ProduceTrainingTask(ctx, task); err != nil {
			return nil, errs.Connection("submit_training", err)
		}
		log.Infof("[ClassifierService] 训练任务已投递到 Kafka: %s", task.TaskID)
	} else {
		// 先占住训练槽位，并发提交的第二个请求同步得到 ErrTrainingInProgress
		if !s.pending.CompareAndSwap(false, true) {
			return nil, classifier.ErrTrainingInProgress
		}
		go func() {
			defer s.pending.Store(false)
			if err := s.Process(s.baseCtx, task); err != nil {
				log.Errorf("[ClassifierService] 本地训练任务失败: %s, error: %v", task.TaskID, err)
			}
		}()
	}
	s.hub.Publish(ProgressEvent{Type: EventQueued, TaskID: task.TaskID})
	return &task, nil
}

// hyperparams 将任务中的非零字段覆盖到默认超参数上并校验。
func (s *classifierService) hyperparams(task tasks.TrainingTask) (classifier.Hyperparams, error) {
	hp := s.defaults
	if task.Epochs != 0 {
		hp.Epochs = task.Epochs
	}
	if task.BatchSize != 0 {
		hp.BatchSize = task.BatchSize
	}
	if task.LearningRate != 0 {
		hp.LearningRate = task.LearningRate
	}
	if task.ValidationSplit != nil {
		hp.ValidationSplit = *task.ValidationSplit
	}
	switch {
	case hp.Epochs < 0 || hp.BatchSize < 0 || hp.LearningRate < 0:
		return hp, errs.Validation("train", "epochs, batch_size and learning_rate must be positive")
	case hp.ValidationSplit < 0 || hp.ValidationSplit >= 1:
		return hp, errs.Validation("train", "validation_split must be in [0, 1)")
	}
	return hp, nil
}

// Process 同步执行一个训练任务：必要时加载语料，训练，按需保存。Kafka 消费者与本地派发共用。
func (s *classifierService) Process(ctx context.Context, task tasks.TrainingTask) error {
	hp, err := s.hyperparams(task)
	if err != nil {
		s.fail(task, err)
		return err
	}
	s.hub.Publish(ProgressEvent{Type: EventStarted, TaskID: task.TaskID})

	if task.Reload || !s.session.Status().Initialized {
		corpus, err := s.session.Init(ctx)
		if err != nil {
			s.fail(task, err)
			return err
		}
		log.Infow("[ClassifierService] 语料已加载", "task_id", task.TaskID, "rows", corpus.Len())
	}

	res, err := s.session.Train(ctx, hp, func(l classifier.EpochLog) {
		entry := l
		s.hub.Publish(ProgressEvent{Type: EventEpoch, TaskID: task.TaskID, Epoch: &entry})
	})
	if err != nil {
		s.fail(task, err)
		return err
	}

	if task.Save {
		report, err := s.session.Save(ctx)
		if err != nil {
			s.fail(task, err)
			return err
		}
		s.hub.Publish(ProgressEvent{Type: EventSaved, TaskID: task.TaskID, Message: report.Warning})
	}
	s.hub.Publish(ProgressEvent{Type: EventCompleted, TaskID: task.TaskID, Message: res.RunID})
	return nil
}

func (s *classifierService) fail(task tasks.TrainingTask, err error) {
	s.hub.Publish(ProgressEvent{Type: EventFailed, TaskID: task.TaskID, Message: err.Error()})
}

func (s *classifierService) Status() classifier.Status {
	return s.session.Status()
}

func (s *classifierService) Evaluate(ctx context.Context) (classifier.Evaluation, error) {
	return s.session.Evaluate(ctx)
}

// Predict 用训练好的模型预测，req.Log 为 true 时尽力写一条预测日志。
func (s *classifierService) Predict(ctx context.Context, req PredictRequest) (*classifier.Prediction, error) {
	var (
		p   *classifier.Prediction
		err error
	)
	text := req.Text
	if len(req.Fields) > 0 {
		p, err = s.session.PredictFields(req.Fields)
		if text == "" {
			parts := make([]string, 0, len(req.Fields))
			for _, v := range req.Fields {
				parts = append(parts, v)
			}
			text = strings.Join(parts, " ")
		}
	} else {
		if strings.TrimSpace(req.Text) == "" {
			return nil, errs.Validation("predict", "text is required")
		}
		p, err = s.session.Predict(req.Text)
	}
	if err != nil {
		return nil, err
	}

	if req.Log && s.recorder != nil {
		_, logErr := s.recorder.LogPrediction(ctx, model.PredictionInput{
			Text:       text,
			Class:      p.Label,
			Confidence: p.Probability,
			UserID:     req.UserID,
		})
		if logErr != nil {
			log.Warnw("[ClassifierService] 预测日志写入失败", "error", logErr)
		}
	}
	return p, nil
}

func (s *classifierService) Save(ctx context.Context) (*classifier.SaveReport, error) {
	return s.session.Save(ctx)
}

func (s *classifierService) Load(ctx context.Context) (string, error) {
	runID, err := s.session.Load(ctx)
	if err != nil {
		return "", err
	}
	s.hub.Publish(ProgressEvent{Type: EventCompleted, Message: "loaded " + runID})
	return runID, nil
}

// IsTrainingInProgress 报告错误是否因为已有训练在进行。
func IsTrainingInProgress(err error) bool {
	return errors.Is(err, classifier.ErrTrainingInProgress)
}
