package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/glebarez/sqlite"
	"github.com/nat-prohmpiriya/talelingo-studio/config"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/model"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"k8s.io/klog/v2"
)

// DB 数据库句柄，由 main 持有并显式关闭
type DB struct {
	*gorm.DB
}

// Open 打开数据库连接并迁移表结构，连接失败按配置重试
func Open(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	dialector, err := newDialector(cfg)
	if err != nil {
		return nil, err
	}

	tries := cfg.ConnectTries
	if tries == 0 {
		tries = 1
	}

	var gdb *gorm.DB
	err = retry.Do(
		func() error {
			db, err := gorm.Open(dialector, &gorm.Config{
				Logger:         newLogger(cfg.SlowThreshold),
				TranslateError: true,
			})
			if err != nil {
				return err
			}
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			if err := sqlDB.PingContext(ctx); err != nil {
				_ = sqlDB.Close()
				return err
			}
			gdb = db
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(tries),
		retry.Delay(cfg.ConnectDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			klog.Warningf("[Database] 第 %d 次连接失败: type=%s, error=%v", n+1, cfg.Type, err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect %s database: %w", cfg.Type, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	// 内存库每个连接都是独立的数据库
	if strings.Contains(cfg.DSN, ":memory:") {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(gdb); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	klog.V(6).Infof("[Database] 数据库已连接: type=%s", cfg.Type)
	return &DB{DB: gdb}, nil
}

// Migrate 迁移全部表结构
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.Story{}, &model.Episode{}, &model.Job{})
}

// Ping 检查数据库是否可用
func (d *DB) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (d *DB) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func newDialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Type {
	case "mysql":
		return mysql.Open(cfg.DSN), nil
	case "postgres":
		return postgres.Open(cfg.DSN), nil
	case "sqlite", "":
		if err := ensureSQLiteDir(cfg.DSN); err != nil {
			return nil, err
		}
		// 使用 github.com/glebarez/sqlite 驱动
		return sqlite.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

func ensureSQLiteDir(dsn string) error {
	if dsn == "" || strings.HasPrefix(dsn, ":memory:") || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}

// klogWriter 将 gorm 日志输出到 klog
type klogWriter struct{}

func (klogWriter) Printf(format string, args ...interface{}) {
	klog.InfofDepth(2, format, args...)
}

func newLogger(slowThreshold time.Duration) logger.Interface {
	return logger.New(klogWriter{}, logger.Config{
		SlowThreshold:             slowThreshold,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
