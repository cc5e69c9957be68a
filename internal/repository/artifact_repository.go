package repository

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"wordclass-go/internal/model"
	"wordclass-go/pkg/errs"
)

// ArtifactRepository 以 Redis 作为本地键值缓存保存模型产物。
// 三个块在一个 MULTI/EXEC 事务中写入，读取时用一次 MGET 取回。
type ArtifactRepository struct {
	redisClient *redis.Client
	prefix      string
}

// NewArtifactRepository 创建一个新的 ArtifactRepository 实例。
func NewArtifactRepository(redisClient *redis.Client, prefix string) *ArtifactRepository {
	if prefix == "" {
		prefix = "wordclass"
	}
	return &ArtifactRepository{redisClient: redisClient, prefix: prefix}
}

func (r *ArtifactRepository) keys(key string) (weights, vocab, labels string) {
	base := fmt.Sprintf("%s:artifact:%s", r.prefix, key)
	return base + ":weights", base + ":vocabularies", base + ":labels"
}

// Put 原子地覆盖三个块。
func (r *ArtifactRepository) Put(ctx context.Context, key string, blobs model.ArtifactBlobs) error {
	if !blobs.Complete() {
		return errs.Validation("save_artifact", "artifact %s is missing a blob", key)
	}
	wk, vk, lk := r.keys(key)
	_, err := r.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, wk, blobs.Weights, 0)
		pipe.Set(ctx, vk, blobs.Vocabularies, 0)
		pipe.Set(ctx, lk, blobs.Labels, 0)
		return nil
	})
	if err != nil {
		return errs.Connection("save_artifact", err)
	}
	return nil
}

// Get 读取三个块，任一缺失都视为产物不存在。
func (r *ArtifactRepository) Get(ctx context.Context, key string) (model.ArtifactBlobs, error) {
	wk, vk, lk := r.keys(key)
	vals, err := r.redisClient.MGet(ctx, wk, vk, lk).Result()
	if err != nil {
		return model.ArtifactBlobs{}, errs.Connection("load_artifact", err)
	}

	parts := make([][]byte, len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			return model.ArtifactBlobs{}, errs.NotFound("load_artifact", "artifact %s not found", key)
		}
		parts[i] = []byte(s)
	}
	return model.ArtifactBlobs{Weights: parts[0], Vocabularies: parts[1], Labels: parts[2]}, nil
}

// Location 返回写入元数据 path 字段的位置描述。
func (r *ArtifactRepository) Location(key string) string {
	return fmt.Sprintf("redis://%s:artifact:%s", r.prefix, key)
}
