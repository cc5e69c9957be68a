// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"wordclass-go/internal/heuristic"
	"wordclass-go/internal/model"
	"wordclass-go/internal/repository"
	"wordclass-go/pkg/database"
	"wordclass-go/pkg/errs"
	"wordclass-go/pkg/log"
)

const (
	// DefaultBatchLimit 是 get_batch 未指定 limit 时的页大小。
	DefaultBatchLimit = 100
	// categoryColumn 存在时，统计接口会给出类别分布。
	categoryColumn = "category"
)

// 未知动作直接返回固定文案，不带操作名前缀。
var errUnknownAction = &errs.Error{Kind: errs.KindValidation, Msg: "Unknown action"}

// WordTableStats 是 get_word_table_stats 的结果。
type WordTableStats struct {
	TotalRecords         int64            `json:"totalRecords"`
	CategoryDistribution map[string]int64 `json:"categoryDistribution,omitempty"`
}

// GatewayService 定义了网关暴露的全部操作。每个操作都可以带上调用方的连接参数，服务本身不保存会话状态。
type GatewayService interface {
	Schema(ctx context.Context, conn *database.ConnectionParams) ([]model.Column, error)
	Count(ctx context.Context, conn *database.ConnectionParams) (int64, error)
	Batch(ctx context.Context, conn *database.ConnectionParams, offset, limit int) ([]model.Row, error)
	SaveMetadata(ctx context.Context, conn *database.ConnectionParams, in model.MetadataInput) (uint, error)
	LatestMetadata(ctx context.Context, conn *database.ConnectionParams) (*model.MetadataView, error)
	WordTableStats(ctx context.Context, conn *database.ConnectionParams) (*WordTableStats, error)
	LogPrediction(ctx context.Context, conn *database.ConnectionParams, in model.PredictionInput) (uint, error)
	HeuristicPredict(text string) (heuristic.Result, error)
	Dispatch(ctx context.Context, req ActionRequest) ActionResponse
}

type gatewayService struct {
	connector     database.Connector
	tableRepo     repository.TableRepository
	metadataRepo  repository.MetadataRepository
	predictionLog repository.PredictionLogRepository
	baseline      *heuristic.Predictor
	maxBatchLimit int
}

// NewGatewayService 创建一个新的 GatewayService 实例。
func NewGatewayService(
	connector database.Connector,
	tableRepo repository.TableRepository,
	metadataRepo repository.MetadataRepository,
	predictionLog repository.PredictionLogRepository,
	baseline *heuristic.Predictor,
	maxBatchLimit int,
) GatewayService {
	if maxBatchLimit <= 0 {
		maxBatchLimit = 1000
	}
	return &gatewayService{
		connector:     connector,
		tableRepo:     tableRepo,
		metadataRepo:  metadataRepo,
		predictionLog: predictionLog,
		baseline:      baseline,
		maxBatchLimit: maxBatchLimit,
	}
}

func (s *gatewayService) Schema(ctx context.Context, conn *database.ConnectionParams) ([]model.Column, error) {
	db, err := s.connector.Conn(ctx, conn)
	if err != nil {
		return nil, err
	}
	return s.tableRepo.Schema(db)
}

func (s *gatewayService) Count(ctx context.Context, conn *database.ConnectionParams) (int64, error) {
	db, err := s.connector.Conn(ctx, conn)
	if err != nil {
		return 0, err
	}
	return s.tableRepo.Count(db)
}

// Batch 读取一页数据。limit 超过配置上限时报 ValidationError，调用方据"返回行数小于 limit"判断数据结束，不能静默截断。
func (s *gatewayService) Batch(ctx context.Context, conn *database.ConnectionParams, offset, limit int) ([]model.Row, error) {
	if offset < 0 {
		return nil, errs.Validation("get_batch", "offset must not be negative, got %d", offset)
	}
	if limit <= 0 {
		return nil, errs.Validation("get_batch", "limit must be positive, got %d", limit)
	}
	if limit > s.maxBatchLimit {
		return nil, errs.Validation("get_batch", "limit %d exceeds the maximum of %d", limit, s.maxBatchLimit)
	}

	db, err := s.connector.Conn(ctx, conn)
	if err != nil {
		return nil, err
	}
	columns, err := s.tableRepo.Schema(db)
	if err != nil {
		return nil, err
	}
	return s.tableRepo.Batch(db, columns, offset, limit)
}

// SaveMetadata 追加一条模型元数据记录并返回其 ID。
func (s *gatewayService) SaveMetadata(ctx context.Context, conn *database.ConnectionParams, in model.MetadataInput) (uint, error) {
	if strings.TrimSpace(in.Name) == "" {
		return 0, errs.Validation("save_model", "model name is required")
	}
	params, err := normalizeParameters(in.Parameters)
	if err != nil {
		return 0, err
	}

	db, err := s.connector.Conn(ctx, conn)
	if err != nil {
		return 0, err
	}
	record := &model.ModelMetadata{
		Name:       in.Name,
		Accuracy:   in.Accuracy,
		Parameters: params,
		Path:       in.Path,
	}
	if err := s.metadataRepo.Save(db, record); err != nil {
		return 0, err
	}
	log.Infow("[Gateway] 模型元数据已保存", "id", record.ID, "name", record.Name, "accuracy", record.Accuracy)
	return record.ID, nil
}

// normalizeParameters 接受 JSON 对象或已序列化为字符串的 JSON，统一存为文本。
func normalizeParameters(raw json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "", nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", errs.Validation("save_model", "parameters are not valid JSON")
		}
		return s, nil
	}
	if !json.Valid(raw) {
		return "", errs.Validation("save_model", "parameters are not valid JSON")
	}
	return trimmed, nil
}

// LatestMetadata 返回最新的记录，parameters 从序列化形式解码。
func (s *gatewayService) LatestMetadata(ctx context.Context, conn *database.ConnectionParams) (*model.MetadataView, error) {
	db, err := s.connector.Conn(ctx, conn)
	if err != nil {
		return nil, err
	}
	record, err := s.metadataRepo.Latest(db)
	if err != nil {
		return nil, err
	}
	return &model.MetadataView{
		ID:         record.ID,
		Name:       record.Name,
		Accuracy:   record.Accuracy,
		Path:       record.Path,
		CreatedAt:  model.LocalTime(record.CreatedAt),
		Parameters: decodeParameters(record.Parameters),
	}, nil
}

// decodeParameters 把存储的文本还原为 JSON；不是合法 JSON 时原样作为字符串返回。
func decodeParameters(text string) json.RawMessage {
	if text == "" {
		return json.RawMessage("null")
	}
	if json.Valid([]byte(text)) {
		return json.RawMessage(text)
	}
	quoted, _ := json.Marshal(text)
	return quoted
}

func (s *gatewayService) WordTableStats(ctx context.Context, conn *database.ConnectionParams) (*WordTableStats, error) {
	db, err := s.connector.Conn(ctx, conn)
	if err != nil {
		return nil, err
	}
	total, err := s.tableRepo.Count(db)
	if err != nil {
		return nil, err
	}
	stats := &WordTableStats{TotalRecords: total}

	columns, err := s.tableRepo.Schema(db)
	if err != nil {
		return nil, err
	}
	for _, col := range columns {
		if col.Name != categoryColumn {
			continue
		}
		dist, err := s.tableRepo.CategoryDistribution(db, categoryColumn)
		if err != nil {
			return nil, err
		}
		stats.CategoryDistribution = dist
		break
	}
	return stats, nil
}

// LogPrediction 记录一次预测结果并返回日志 ID。
func (s *gatewayService) LogPrediction(ctx context.Context, conn *database.ConnectionParams, in model.PredictionInput) (uint, error) {
	if strings.TrimSpace(in.Text) == "" {
		return 0, errs.Validation("log_prediction", "prediction text is required")
	}
	if strings.TrimSpace(in.Class) == "" {
		return 0, errs.Validation("log_prediction", "prediction class is required")
	}

	db, err := s.connector.Conn(ctx, conn)
	if err != nil {
		return 0, err
	}
	entry := &model.PredictionLog{
		Text:           in.Text,
		PredictedClass: in.Class,
		Confidence:     in.Confidence,
		UserID:         in.UserID,
	}
	if err := s.predictionLog.Create(db, entry); err != nil {
		return 0, err
	}
	return entry.ID, nil
}

// HeuristicPredict 走关键词基线，不会用到训练得到的模型。
func (s *gatewayService) HeuristicPredict(text string) (heuristic.Result, error) {
	if strings.TrimSpace(text) == "" {
		return heuristic.Result{}, errs.Validation("predict", "text is required")
	}
	return s.baseline.Predict(text), nil
}

// Dispatch 是动作接口的边界：任何错误（包括 panic）都被转换为 status=error 的结果。
func (s *gatewayService) Dispatch(ctx context.Context, req ActionRequest) (resp ActionResponse) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[Gateway] 动作 %q 发生 panic: %v", req.Action, r)
			resp = Failure(fmt.Errorf("internal error: %v", r))
		}
	}()

	payload, err := s.dispatch(ctx, req)
	if err != nil {
		log.Warnw("[Gateway] 动作执行失败", "action", req.Action, "kind", errs.KindOf(err), "error", err)
		return Failure(err)
	}
	return Success(payload)
}

func (s *gatewayService) dispatch(ctx context.Context, req ActionRequest) (map[string]any, error) {
	switch req.Action {
	case ActionGetSchema:
		schema, err := s.Schema(ctx, req.Connection)
		if err != nil {
			return nil, err
		}
		return map[string]any{"schema": schema}, nil

	case ActionGetCount:
		n, err := s.Count(ctx, req.Connection)
		if err != nil {
			return nil, err
		}
		return map[string]any{"count": n}, nil

	case ActionGetBatch:
		offset, limit := 0, min(DefaultBatchLimit, s.maxBatchLimit)
		if req.Offset != nil {
			offset = *req.Offset
		}
		if req.Limit != nil {
			limit = *req.Limit
		}
		rows, err := s.Batch(ctx, req.Connection, offset, limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"data": rows, "count": len(rows)}, nil

	case ActionSaveModel:
		if req.Model == nil {
			return nil, errs.Validation("save_model", "model is required")
		}
		id, err := s.SaveMetadata(ctx, req.Connection, *req.Model)
		if err != nil {
			return nil, err
		}
		return map[string]any{"id": id}, nil

	case ActionGetModelMetadata:
		view, err := s.LatestMetadata(ctx, req.Connection)
		if errs.KindOf(err) == errs.KindNotFound {
			return map[string]any{"metadata": nil, "message": "No model metadata found"}, nil
		}
		if err != nil {
			return nil, err
		}
		return map[string]any{"metadata": view}, nil

	case ActionGetWordTableStats:
		stats, err := s.WordTableStats(ctx, req.Connection)
		if err != nil {
			return nil, err
		}
		payload := map[string]any{"totalRecords": stats.TotalRecords}
		if stats.CategoryDistribution != nil {
			payload["categoryDistribution"] = stats.CategoryDistribution
		}
		return payload, nil

	case ActionLogPrediction:
		if req.Prediction == nil {
			return nil, errs.Validation("log_prediction", "prediction is required")
		}
		id, err := s.LogPrediction(ctx, req.Connection, *req.Prediction)
		if err != nil {
			return nil, err
		}
		return map[string]any{"id": id}, nil

	case ActionPredict:
		text := ""
		if req.Text != nil {
			text = *req.Text
		}
		res, err := s.HeuristicPredict(text)
		if err != nil {
			return nil, err
		}
		return map[string]any{"predictedCategory": res.Category, "confidence": res.Confidence}, nil
	}
	return nil, errUnknownAction
}
