package service

import (
	"wordclass-go/internal/model"
	"wordclass-go/pkg/database"
	"wordclass-go/pkg/errs"
)

// 动作接口支持的 action 取值。
const (
	ActionGetSchema         = "get_schema"
	ActionGetCount          = "get_count"
	ActionGetBatch          = "get_batch"
	ActionSaveModel         = "save_model"
	ActionGetModelMetadata  = "get_model_metadata"
	ActionGetWordTableStats = "get_word_table_stats"
	ActionLogPrediction     = "log_prediction"
	ActionPredict           = "predict"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ActionRequest 是动作接口的请求体，除 action 外的字段按动作取用。
type ActionRequest struct {
	Action     string                     `json:"action"`
	Connection *database.ConnectionParams `json:"connection,omitempty"`
	Offset     *int                       `json:"offset,omitempty"`
	Limit      *int                       `json:"limit,omitempty"`
	Model      *model.MetadataInput       `json:"model,omitempty"`
	Prediction *model.PredictionInput     `json:"prediction,omitempty"`
	Text       *string                    `json:"text,omitempty"`
}

// ActionResponse 是带 status 标签的扁平结果，成功时载荷字段与 status 同级。
type ActionResponse map[string]any

// Success 为载荷打上成功标签。
func Success(payload map[string]any) ActionResponse {
	resp := ActionResponse{}
	for k, v := range payload {
		resp[k] = v
	}
	resp["status"] = StatusSuccess
	return resp
}

// Failure 把错误转换为可读的错误结果，errorType 携带错误类别。
func Failure(err error) ActionResponse {
	resp := ActionResponse{"status": StatusError, "message": err.Error()}
	if kind := errs.KindOf(err); kind != "" {
		resp["errorType"] = string(kind)
	}
	return resp
}

// OK 报告结果是否为成功。
func (r ActionResponse) OK() bool {
	return r["status"] == StatusSuccess
}
