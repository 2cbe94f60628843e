package db

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB 是一个全局的数据库连接实例
var DB *gorm.DB

// Options 描述数据库连接参数。
// URL 非空时使用 Postgres，否则使用 Path 指向的 SQLite 文件。
type Options struct {
	Path     string
	URL      string
	LogLevel logger.LogLevel
}

// Init 初始化数据库连接并执行自动迁移。
// Path 为空时将回退到默认值 activitylog.db。
func Init(opts Options) error {
	gdb, err := Open(opts)
	if err != nil {
		return err
	}

	if err := Migrate(gdb); err != nil {
		return err
	}

	DB = gdb
	return nil
}

// Open 仅建立连接，不做迁移
func Open(opts Options) (*gorm.DB, error) {
	level := opts.LogLevel
	if level == 0 {
		level = logger.Warn
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(level)}

	if url := strings.TrimSpace(opts.URL); url != "" {
		return gorm.Open(postgres.Open(url), cfg)
	}

	path := strings.TrimSpace(opts.Path)
	if path == "" {
		path = "activitylog.db"
	}

	if err := ensureParentDir(path); err != nil {
		return nil, err
	}

	return gorm.Open(sqlite.Open(path), cfg)
}

// Migrate 为核心模型创建表，并修正旧版本遗留的数据。
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&User{},
		&CalendarEntry{},
		&DrinkingDetail{},
		&GamblingDetail{},
	); err != nil {
		return err
	}

	// 旧版本按活动类型写 entry_type，统一成一天一条后该列仅作记录
	if err := gdb.Model(&CalendarEntry{}).
		Where("entry_type IS NULL").
		Update("entry_type", "").Error; err != nil {
		return err
	}

	return nil
}

func ensureParentDir(path string) error {
	if strings.HasPrefix(path, "file:") {
		return nil
	}

	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
