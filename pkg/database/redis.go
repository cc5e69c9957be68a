package database

import (
	"context"

	"github.com/go-redis/redis/v8"
	"wordclass-go/pkg/log"
)

var RDB *redis.Client

// InitRedis 初始化 Redis 客户端连接，模型产物缓存在这里。
func InitRedis(addr, password string, db int) {
	RDB = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := RDB.Ping(context.Background()).Err(); err != nil {
		log.Fatal("failed to connect to redis", err)
	}

	log.Info("Redis client connected successfully")
}
