package database

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"wordclass-go/pkg/errs"
)

// ConnectionParams 是调用方随请求提供的连接参数。为空时使用服务默认连接。
type ConnectionParams struct {
	Host     string `json:"host"`
	Port     int    `json:"port,omitempty"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
}

// IsZero 报告参数是否为空（即应使用默认连接）。
func (p *ConnectionParams) IsZero() bool {
	return p == nil || (p.Host == "" && p.User == "" && p.Database == "")
}

// DSN 生成 go-sql-driver 格式的连接串。
func (p ConnectionParams) DSN() string {
	port := p.Port
	if port == 0 {
		port = 3306
	}
	cfg := mysql.NewConfig()
	cfg.User = p.User
	cfg.Passwd = p.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(p.Host, strconv.Itoa(port))
	cfg.DBName = p.Database
	cfg.ParseTime = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// Connector 为一次网关操作解析出数据库句柄，没有会话状态。
type Connector interface {
	Conn(ctx context.Context, params *ConnectionParams) (*gorm.DB, error)
}

type poolingConnector struct {
	defaultDB *gorm.DB
	open      func(dsn string) (*gorm.DB, error)

	mu    sync.Mutex
	pools map[string]*gorm.DB
}

// NewConnector 创建一个按 DSN 复用连接池的 Connector，defaultDB 可以为 nil。
func NewConnector(defaultDB *gorm.DB) Connector {
	return &poolingConnector{
		defaultDB: defaultDB,
		open:      OpenMySQL,
		pools:     make(map[string]*gorm.DB),
	}
}

func (c *poolingConnector) Conn(ctx context.Context, params *ConnectionParams) (*gorm.DB, error) {
	if params.IsZero() {
		if c.defaultDB == nil {
			return nil, errs.Connection("connect", errors.New("no default database configured"))
		}
		return c.defaultDB.WithContext(ctx), nil
	}

	dsn := params.DSN()
	c.mu.Lock()
	db, ok := c.pools[dsn]
	c.mu.Unlock()
	if ok {
		return db.WithContext(ctx), nil
	}

	db, err := c.open(dsn)
	if err != nil {
		return nil, errs.Connection("connect", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errs.Connection("connect", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, errs.Connection("connect", err)
	}

	c.mu.Lock()
	if existing, ok := c.pools[dsn]; ok {
		c.mu.Unlock()
		_ = sqlDB.Close()
		return existing.WithContext(ctx), nil
	}
	c.pools[dsn] = db
	c.mu.Unlock()
	return db.WithContext(ctx), nil
}

type staticConnector struct {
	db *gorm.DB
}

// NewStaticConnector 总是返回同一个句柄，忽略连接参数。用于单库部署和测试。
func NewStaticConnector(db *gorm.DB) Connector {
	return &staticConnector{db: db}
}

func (c *staticConnector) Conn(ctx context.Context, _ *ConnectionParams) (*gorm.DB, error) {
	if c.db == nil {
		return nil, errs.Connection("connect", errors.New("no database configured"))
	}
	return c.db.WithContext(ctx), nil
}
