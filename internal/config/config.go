// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// 全局配置变量，由 Init 从配置文件加载。
var Conf Config

// Config 与 configs/config.yaml 的结构一一对应。
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	MinIO     MinIOConfig     `mapstructure:"minio"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Trainer   TrainerConfig   `mapstructure:"trainer"`
	Artifact  ArtifactConfig  `mapstructure:"artifact"`
	Heuristic HeuristicConfig `mapstructure:"heuristic"`
}

// ServerConfig 存储 HTTP 服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储训练任务队列的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// MinIOConfig 存储 MinIO 对象存储的配置，artifact.backend=minio 时使用。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// GatewayConfig 描述网关读取的数据表。
type GatewayConfig struct {
	Table         string `mapstructure:"table"`
	MaxBatchLimit int    `mapstructure:"max_batch_limit"`
}

// TrainerConfig 存储语料加载与训练的超参数。
type TrainerConfig struct {
	GatewayURL      string  `mapstructure:"gateway_url"`
	PageSize        int     `mapstructure:"page_size"`
	Epochs          int     `mapstructure:"epochs"`
	BatchSize       int     `mapstructure:"batch_size"`
	ValidationSplit float64 `mapstructure:"validation_split"`
	LearningRate    float64 `mapstructure:"learning_rate"`
	DropoutRate     float64 `mapstructure:"dropout_rate"`
	Seed            int64   `mapstructure:"seed"`
	ModelName       string  `mapstructure:"model_name"`
	// Dispatch 为 "local"（进程内 goroutine）或 "kafka"。
	Dispatch string `mapstructure:"dispatch"`
}

// ArtifactConfig 决定模型文件保存到哪里。
type ArtifactConfig struct {
	Backend string `mapstructure:"backend"`
	Key     string `mapstructure:"key"`
}

// HeuristicConfig 配置关键词基线预测器，键为类别名。
type HeuristicConfig struct {
	Keywords map[string][]string `mapstructure:"keywords"`
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Init 从指定路径读取 YAML 配置到 Conf，失败时直接 panic。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = *cfg
}

// Load 读取配置文件（可为空）并叠加 WORDCLASS_* 环境变量。
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("WORDCLASS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查会被拼进 SQL 或决定运行路径的配置项。
func (c *Config) Validate() error {
	if !identifierPattern.MatchString(c.Gateway.Table) {
		return fmt.Errorf("gateway.table %q 不是合法的表名", c.Gateway.Table)
	}
	if c.Gateway.MaxBatchLimit <= 0 {
		return fmt.Errorf("gateway.max_batch_limit 必须为正数")
	}
	switch c.Artifact.Backend {
	case "redis", "minio":
	default:
		return fmt.Errorf("artifact.backend 必须是 redis 或 minio, 实际为 %q", c.Artifact.Backend)
	}
	switch c.Trainer.Dispatch {
	case "local", "kafka":
	default:
		return fmt.Errorf("trainer.dispatch 必须是 local 或 kafka, 实际为 %q", c.Trainer.Dispatch)
	}
	if c.Trainer.PageSize <= 0 {
		return fmt.Errorf("trainer.page_size 必须为正数")
	}
	if c.Trainer.PageSize > c.Gateway.MaxBatchLimit {
		return fmt.Errorf("trainer.page_size (%d) 不能超过 gateway.max_batch_limit (%d)", c.Trainer.PageSize, c.Gateway.MaxBatchLimit)
	}
	if c.Trainer.ValidationSplit < 0 || c.Trainer.ValidationSplit >= 1 {
		return fmt.Errorf("trainer.validation_split 必须在 [0, 1) 内")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.mysql.dsn", "root:root@tcp(127.0.0.1:3306)/wordclass?charset=utf8mb4&parseTime=True&loc=Local")
	v.SetDefault("database.redis.addr", "127.0.0.1:6379")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "")

	v.SetDefault("kafka.brokers", "127.0.0.1:9092")
	v.SetDefault("kafka.topic", "wordclass-training")
	v.SetDefault("kafka.group_id", "wordclass-trainer")

	v.SetDefault("minio.endpoint", "127.0.0.1:9000")
	v.SetDefault("minio.access_key_id", "")
	v.SetDefault("minio.secret_access_key", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket_name", "wordclass-models")

	v.SetDefault("gateway.table", "word_table")
	v.SetDefault("gateway.max_batch_limit", 1000)

	v.SetDefault("trainer.gateway_url", "http://127.0.0.1:8080")
	v.SetDefault("trainer.page_size", 100)
	v.SetDefault("trainer.epochs", 10)
	v.SetDefault("trainer.batch_size", 32)
	v.SetDefault("trainer.validation_split", 0.2)
	v.SetDefault("trainer.learning_rate", 0.001)
	v.SetDefault("trainer.dropout_rate", 0.2)
	v.SetDefault("trainer.seed", 42)
	v.SetDefault("trainer.model_name", "word-classifier")
	v.SetDefault("trainer.dispatch", "local")

	v.SetDefault("artifact.backend", "redis")
	v.SetDefault("artifact.key", "word-classifier")

	v.SetDefault("heuristic.keywords", map[string][]string{})
}
