// Package main 是应用程序的入口点。
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"wordclass-go/internal/classifier"
	"wordclass-go/internal/config"
	"wordclass-go/internal/handler"
	"wordclass-go/internal/heuristic"
	"wordclass-go/internal/repository"
	"wordclass-go/internal/service"
	"wordclass-go/pkg/database"
	"wordclass-go/pkg/kafka"
	"wordclass-go/pkg/log"
	"wordclass-go/pkg/storage"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 1. 初始化配置
	config.Init(*configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库和 Redis
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)

	// 后台任务共享的上下文，停机时取消
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	// 4. 初始化 Repository 和网关服务
	keywords := cfg.Heuristic.Keywords
	if len(keywords) == 0 {
		keywords = heuristic.DefaultKeywords
	}
	gatewayService := service.NewGatewayService(
		database.NewConnector(database.DB),
		repository.NewTableRepository(cfg.Gateway.Table),
		repository.NewMetadataRepository(),
		repository.NewPredictionLogRepository(),
		heuristic.NewPredictor(keywords),
		cfg.Gateway.MaxBatchLimit,
	)
	local := service.NewLocalGateway(gatewayService, nil)

	// 5. 模型产物存储：Redis 或 MinIO
	var store classifier.ArtifactStore
	switch cfg.Artifact.Backend {
	case "minio":
		storage.InitMinIO(cfg.MinIO)
		store = storage.NewMinioArtifactStore(storage.MinioClient, cfg.MinIO.BucketName)
	default:
		store = repository.NewArtifactRepository(database.RDB, "wordclass")
	}

	session := classifier.NewSession(classifier.SessionConfig{
		Source:      local,
		Store:       store,
		Metadata:    local,
		PageSize:    cfg.Trainer.PageSize,
		ArtifactKey: cfg.Artifact.Key,
		ModelName:   cfg.Trainer.ModelName,
	})
	if runID, err := session.Load(baseCtx); err == nil {
		log.Infof("已加载模型产物, run_id=%s", runID)
	} else {
		log.Warnf("启动时未加载模型产物: %v", err)
	}

	// 6. 训练任务分发：本地 goroutine 或 Kafka
	defaults := defaultHyperparams(cfg.Trainer)
	var producer service.TaskProducer
	var kafkaProducer *kafka.Producer
	if cfg.Trainer.Dispatch == "kafka" {
		kafkaProducer = kafka.InitProducer(cfg.Kafka)
		producer = kafkaProducer
	}
	classifierService := service.NewClassifierService(baseCtx, session, defaults, producer, local, nil)
	if kafkaProducer != nil {
		// 7. 启动后台 Kafka 消费者
		go kafka.StartConsumer(baseCtx, cfg.Kafka, classifierService, database.RDB)
	}

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := handler.NewRouter(gatewayService, classifierService)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	// 停止训练和 Kafka 消费者
	cancelBase()
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Error("关闭 Kafka 生产者失败", err)
		}
	}
	log.Info("服务已优雅关闭")
}

func defaultHyperparams(tc config.TrainerConfig) classifier.Hyperparams {
	hp := classifier.DefaultHyperparams()
	hp.Epochs = tc.Epochs
	hp.BatchSize = tc.BatchSize
	hp.ValidationSplit = tc.ValidationSplit
	hp.LearningRate = tc.LearningRate
	hp.DropoutRate = tc.DropoutRate
	hp.Seed = tc.Seed
	return hp
}
