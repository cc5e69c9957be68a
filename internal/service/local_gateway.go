package service

import (
	"context"

	"wordclass-go/internal/model"
	"wordclass-go/pkg/database"
)

// LocalGateway 让进程内的分类器会话直接调用网关服务，不经过 HTTP。
// 它同时满足 pipeline.Source 和 classifier.MetadataSink。
type LocalGateway struct {
	gateway GatewayService
	conn    *database.ConnectionParams
}

// NewLocalGateway 创建适配器，conn 为 nil 时使用服务默认连接。
func NewLocalGateway(gateway GatewayService, conn *database.ConnectionParams) *LocalGateway {
	return &LocalGateway{gateway: gateway, conn: conn}
}

func (g *LocalGateway) Schema(ctx context.Context) ([]model.Column, error) {
	return g.gateway.Schema(ctx, g.conn)
}

func (g *LocalGateway) Count(ctx context.Context) (int64, error) {
	return g.gateway.Count(ctx, g.conn)
}

func (g *LocalGateway) Batch(ctx context.Context, offset, limit int) ([]model.Row, error) {
	return g.gateway.Batch(ctx, g.conn, offset, limit)
}

func (g *LocalGateway) SaveMetadata(ctx context.Context, in model.MetadataInput) (uint, error) {
	return g.gateway.SaveMetadata(ctx, g.conn, in)
}

func (g *LocalGateway) LogPrediction(ctx context.Context, in model.PredictionInput) (uint, error) {
	return g.gateway.LogPrediction(ctx, g.conn, in)
}
