// Package cli 实现独立训练进程 wordclass-trainer 的命令行。
// 训练进程通过 HTTP 读取网关数据，模型产物写入与服务端相同的存储。
package cli

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"wordclass-go/internal/classifier"
	"wordclass-go/internal/config"
	"wordclass-go/internal/repository"
	"wordclass-go/pkg/gatewayclient"
	"wordclass-go/pkg/log"
	"wordclass-go/pkg/storage"
)

// Version 在构建时通过 -ldflags 注入。
var Version = "0.1.0"

type options struct {
	configFile string
	gatewayURL string
	redisAddr  string
	verbose    bool
}

// env 是 PersistentPreRunE 组装好的运行环境，各子命令共用。
type env struct {
	cfg     *config.Config
	client  *gatewayclient.Client
	session *classifier.Session
	rdb     *redis.Client
	closers []func() error
}

func (e *env) Close() {
	for _, c := range e.closers {
		_ = c()
	}
}

type envKey struct{}

func envFrom(cmd *cobra.Command) *env {
	e, _ := cmd.Context().Value(envKey{}).(*env)
	return e
}

// NewRootCmd 创建根命令。
func NewRootCmd() *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:     "wordclass-trainer",
		Short:   "Train and query the word classifier against a running gateway",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			e, err := newEnv(cmd.Context(), opts)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), envKey{}, e))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if e := envFrom(cmd); e != nil {
				e.Close()
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default: built-in defaults and WORDCLASS_* env)")
	rootCmd.PersistentFlags().StringVar(&opts.gatewayURL, "gateway", "", "gateway base URL, overrides trainer.gateway_url")
	rootCmd.PersistentFlags().StringVar(&opts.redisAddr, "redis", "", "redis address, overrides database.redis.addr")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose logging")

	rootCmd.AddCommand(newTrainCommand())
	rootCmd.AddCommand(newEvaluateCommand())
	rootCmd.AddCommand(newPredictCommand())
	rootCmd.AddCommand(newStatsCommand())
	rootCmd.AddCommand(newWorkerCommand())
	return rootCmd
}

func newEnv(ctx context.Context, opts *options) (*env, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}
	if opts.gatewayURL != "" {
		cfg.Trainer.GatewayURL = opts.gatewayURL
	}
	if opts.redisAddr != "" {
		cfg.Database.Redis.Addr = opts.redisAddr
	}
	if opts.verbose {
		log.Init("debug", "console", "")
	}

	e := &env{cfg: cfg}
	e.client = gatewayclient.New(cfg.Trainer.GatewayURL, gatewayclient.WithRetry(2))

	store, err := e.openStore(ctx)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.session = classifier.NewSession(classifier.SessionConfig{
		Source:      e.client,
		Store:       store,
		Metadata:    e.client,
		PageSize:    cfg.Trainer.PageSize,
		ArtifactKey: cfg.Artifact.Key,
		ModelName:   cfg.Trainer.ModelName,
	})
	return e, nil
}

func (e *env) openStore(ctx context.Context) (classifier.ArtifactStore, error) {
	if e.cfg.Artifact.Backend == "minio" {
		client, err := storage.NewMinIO(ctx, e.cfg.MinIO)
		if err != nil {
			return nil, err
		}
		return storage.NewMinioArtifactStore(client, e.cfg.MinIO.BucketName), nil
	}

	rdb, err := e.redis(ctx)
	if err != nil {
		return nil, err
	}
	return repository.NewArtifactRepository(rdb, "wordclass"), nil
}

// redis 按需创建 Redis 客户端，同一个 env 内只连接一次。
func (e *env) redis(ctx context.Context) (*redis.Client, error) {
	if e.rdb != nil {
		return e.rdb, nil
	}
	rc := e.cfg.Database.Redis
	rdb := redis.NewClient(&redis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
	e.closers = append(e.closers, rdb.Close)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	e.rdb = rdb
	return rdb, nil
}
