// Package gatewayclient 通过 HTTP 调用网关的动作接口，供独立运行的训练进程使用。
package gatewayclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"wordclass-go/internal/heuristic"
	"wordclass-go/internal/model"
	"wordclass-go/pkg/database"
	"wordclass-go/pkg/errs"
)

const actionPath = "/api"

// Client 实现了 pipeline.Source 和 classifier.MetadataSink。
type Client struct {
	client *resty.Client
	conn   *database.ConnectionParams
}

// Option 调整 Client 的行为。
type Option func(*Client)

// WithConnection 让每个请求都带上调用方的连接参数。
func WithConnection(conn *database.ConnectionParams) Option {
	return func(c *Client) { c.conn = conn }
}

// WithTimeout 设置单个请求的超时时间。
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.client.SetTimeout(d) }
}

// WithRetry 在传输失败时重试 count 次。
func WithRetry(count int) Option {
	return func(c *Client) {
		c.client.SetRetryCount(count).SetRetryWaitTime(200 * time.Millisecond)
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		client: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Content-Type", "application/json").
			SetTimeout(30 * time.Second),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type request struct {
	Action     string                     `json:"action"`
	Connection *database.ConnectionParams `json:"connection,omitempty"`
	Offset     *int                       `json:"offset,omitempty"`
	Limit      *int                       `json:"limit,omitempty"`
	Model      *model.MetadataInput       `json:"model,omitempty"`
	Prediction *model.PredictionInput     `json:"prediction,omitempty"`
	Text       *string                    `json:"text,omitempty"`
}

// envelope 是动作接口的扁平响应，载荷字段按动作各自解析。
type envelope struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	ErrorType string `json:"errorType"`
}

// call 发送一个动作并把响应解析进 out。status=error 时按 errorType 还原错误类别。
func (c *Client) call(ctx context.Context, req request, out any) error {
	req.Connection = c.conn
	res, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		Post(actionPath)
	if err != nil {
		return errs.Connection(req.Action, err)
	}

	var env envelope
	if jsonErr := json.Unmarshal(res.Body(), &env); jsonErr != nil {
		if res.StatusCode() != http.StatusOK {
			return errs.Connection(req.Action, fmt.Errorf("gateway returned %s", res.Status()))
		}
		return errs.Query(req.Action, fmt.Errorf("malformed gateway response: %w", jsonErr))
	}
	if env.Status != "success" {
		return remoteError(env)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(res.Body(), out); err != nil {
		return errs.Query(req.Action, fmt.Errorf("malformed gateway payload: %w", err))
	}
	return nil
}

func remoteError(env envelope) error {
	kind := errs.Kind(env.ErrorType)
	switch kind {
	case errs.KindConnection, errs.KindQuery, errs.KindConfiguration,
		errs.KindModelNotTrained, errs.KindValidation, errs.KindNotFound:
	default:
		kind = errs.KindQuery
	}
	msg := env.Message
	if msg == "" {
		msg = "gateway reported an error"
	}
	return &errs.Error{Kind: kind, Msg: msg}
}

func (c *Client) Schema(ctx context.Context) ([]model.Column, error) {
	var out struct {
		Schema []model.Column `json:"schema"`
	}
	if err := c.call(ctx, request{Action: "get_schema"}, &out); err != nil {
		return nil, err
	}
	for i := range out.Schema {
		out.Schema[i].Kind = model.KindForType(out.Schema[i].Type)
	}
	return out.Schema, nil
}

func (c *Client) Count(ctx context.Context) (int64, error) {
	var out struct {
		Count int64 `json:"count"`
	}
	if err := c.call(ctx, request{Action: "get_count"}, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (c *Client) Batch(ctx context.Context, offset, limit int) ([]model.Row, error) {
	var out struct {
		Data []model.Row `json:"data"`
	}
	if err := c.call(ctx, request{Action: "get_batch", Offset: &offset, Limit: &limit}, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) SaveMetadata(ctx context.Context, in model.MetadataInput) (uint, error) {
	var out struct {
		ID uint `json:"id"`
	}
	if err := c.call(ctx, request{Action: "save_model", Model: &in}, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// LatestMetadata 返回最新的模型元数据，没有记录时返回 (nil, nil)。
func (c *Client) LatestMetadata(ctx context.Context) (*model.MetadataView, error) {
	var out struct {
		Metadata *model.MetadataView `json:"metadata"`
	}
	if err := c.call(ctx, request{Action: "get_model_metadata"}, &out); err != nil {
		return nil, err
	}
	return out.Metadata, nil
}

// Stats 对应 get_word_table_stats 的结果。
type Stats struct {
	TotalRecords         int64            `json:"totalRecords"`
	CategoryDistribution map[string]int64 `json:"categoryDistribution,omitempty"`
}

func (c *Client) WordTableStats(ctx context.Context) (*Stats, error) {
	var out Stats
	if err := c.call(ctx, request{Action: "get_word_table_stats"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) LogPrediction(ctx context.Context, in model.PredictionInput) (uint, error) {
	var out struct {
		ID uint `json:"id"`
	}
	if err := c.call(ctx, request{Action: "log_prediction", Prediction: &in}, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// HeuristicPredict 调用网关的关键词基线预测。
func (c *Client) HeuristicPredict(ctx context.Context, text string) (heuristic.Result, error) {
	var out heuristic.Result
	if err := c.call(ctx, request{Action: "predict", Text: &text}, &out); err != nil {
		return heuristic.Result{}, err
	}
	return out, nil
}
