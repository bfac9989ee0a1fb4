package resource

import (
	"fmt"
	"sync"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"transcode-orchestrator/ddd/infrastructure/database/persistence"
	"transcode-orchestrator/pkg/assert"
	"transcode-orchestrator/pkg/config"
	"transcode-orchestrator/pkg/logger"
	"transcode-orchestrator/pkg/manager"
)

var (
	mysqlResourceOnce sync.Once
	mysqlSingleton    *MySqlResource
)

// MySqlResource 共享的 gorm 连接
type MySqlResource struct {
	db *gorm.DB
}

// DefaultMySqlResource 获取数据库资源单例
func DefaultMySqlResource() *MySqlResource {
	assert.NotCircular()
	mysqlResourceOnce.Do(func() {
		mysqlSingleton = &MySqlResource{}
	})
	assert.NotNil(mysqlSingleton)
	return mysqlSingleton
}

// MustOpen 建立连接并按配置迁移表结构
func (r *MySqlResource) MustOpen() {
	if r.db != nil {
		return
	}
	cfg := config.GetGlobalConfig()
	if cfg == nil {
		panic("global config not initialized before MySqlResource")
	}

	db, err := gorm.Open(mysql.Open(dsn(cfg.Database)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		panic(fmt.Sprintf("failed to connect mysql: %v", err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		panic(fmt.Sprintf("failed to get sql.DB: %v", err))
	}
	if cfg.Database.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}
	if cfg.Database.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	}

	if cfg.Database.AutoMigrate {
		if err := persistence.AutoMigrate(db); err != nil {
			panic(fmt.Sprintf("failed to migrate schema: %v", err))
		}
	}
	r.db = db

	logger.Info("MySQL resource initialized", map[string]interface{}{
		"host":     cfg.Database.Host,
		"database": cfg.Database.Database,
	})
}

func dsn(c config.DatabaseConfig) string {
	charset := c.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database, charset)
}

// DB 获取 gorm 连接
func (r *MySqlResource) DB() *gorm.DB {
	return r.db
}

// Close 关闭连接池
func (r *MySqlResource) Close() {
	if r.db == nil {
		return
	}
	if sqlDB, err := r.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// MySqlResourcePlugin 数据库资源插件
type MySqlResourcePlugin struct{}

func (p *MySqlResourcePlugin) Name() string {
	return "mysql"
}

func (p *MySqlResourcePlugin) MustCreateResource() manager.Resource {
	return DefaultMySqlResource()
}
