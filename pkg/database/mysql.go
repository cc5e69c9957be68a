// Package database 负责 MySQL 与 Redis 的连接初始化。
package database

import (
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"wordclass-go/pkg/log"
)

var DB *gorm.DB

// InitMySQL 初始化默认的 MySQL 连接。网关请求未携带连接参数时使用它。
func InitMySQL(dsn string) {
	var err error
	DB, err = OpenMySQL(dsn)
	if err != nil {
		log.Fatal("failed to connect database", err)
	}
	log.Info("MySQL database connected successfully")
}

// OpenMySQL 打开一个 MySQL 连接并配置连接池。
func OpenMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)           // 设置空闲连接池中连接的最大数量
	sqlDB.SetMaxOpenConns(100)          // 设置打开数据库连接的最大数量
	sqlDB.SetConnMaxLifetime(time.Hour) // 设置了连接可复用的最大时间
	return db, nil
}
