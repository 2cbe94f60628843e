package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// AppConfig 汇总运行服务所需的基础配置。
// 字段可以来自 CONFIG_FILE 指向的 TOML 文件，环境变量优先级更高。
type AppConfig struct {
	ListenAddr    string `toml:"listen_addr"`
	Port          string `toml:"port"`
	DatabasePath  string `toml:"database_path"`
	DatabaseURL   string `toml:"database_url"`
	SessionSecret string `toml:"session_secret"`
	GinMode       string `toml:"gin_mode"`

	QuestionsPath   string `toml:"questions_path"`
	ReportDir       string `toml:"report_dir"`
	InstructionsDir string `toml:"instructions_dir"`

	// DefaultUserID 在没有会话身份时使用，AllowAnonymous=false 时不生效
	DefaultUserID  uint `toml:"default_user_id"`
	AllowAnonymous bool `toml:"allow_anonymous"`
	StrictPayload  bool `toml:"strict_payload"`

	LogLevel   string `toml:"log_level"`
	LogFormat  string `toml:"log_format"`
	DBLogLevel string `toml:"db_log_level"`

	SentryDSN         string `toml:"sentry_dsn"`
	SentryEnvironment string `toml:"sentry_environment"`

	AdminEmail    string `toml:"admin_email"`
	AdminUsername string `toml:"admin_username"`
	AdminPassword string `toml:"admin_password"`
}

// Default 返回未读取任何外部配置时的默认值。
func Default() AppConfig {
	return AppConfig{
		Port:            "8080",
		DatabasePath:    "activitylog.db",
		SessionSecret:   "activitylog-dev-secret",
		GinMode:         "release",
		QuestionsPath:   "config/questions.json",
		ReportDir:       "reports",
		InstructionsDir: "content/instructions",
		DefaultUserID:   1,
		AllowAnonymous:  true,
		LogLevel:        "info",
		LogFormat:       "json",
		DBLogLevel:      "warn",
	}
}

// Load 先读取 CONFIG_FILE（可选），再用环境变量覆盖，并为缺失项提供安全的默认值。
func Load() (AppConfig, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return AppConfig{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return AppConfig{}, err
	}

	if strings.TrimSpace(cfg.Port) == "" {
		cfg.Port = "8080"
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		cfg.ListenAddr = fmt.Sprintf(":%s", cfg.Port)
	}
	if cfg.DefaultUserID == 0 {
		cfg.DefaultUserID = 1
	}

	return cfg, nil
}

// LoadFile 将 TOML 文件内容解码到 cfg 上，文件中未出现的键保持原值。
func LoadFile(path string, cfg *AppConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *AppConfig) error {
	envString("PORT", &cfg.Port)
	envString("LISTEN_ADDR", &cfg.ListenAddr)
	envString("DATABASE_PATH", &cfg.DatabasePath)
	envString("DATABASE_URL", &cfg.DatabaseURL)
	envString("SESSION_SECRET", &cfg.SessionSecret)
	envString("GIN_MODE", &cfg.GinMode)
	envString("QUESTIONS_PATH", &cfg.QuestionsPath)
	envString("REPORT_DIR", &cfg.ReportDir)
	envString("INSTRUCTIONS_DIR", &cfg.InstructionsDir)
	envString("LOG_LEVEL", &cfg.LogLevel)
	envString("LOG_FORMAT", &cfg.LogFormat)
	envString("DB_LOG_LEVEL", &cfg.DBLogLevel)
	envString("SENTRY_DSN", &cfg.SentryDSN)
	envString("SENTRY_ENVIRONMENT", &cfg.SentryEnvironment)
	envString("ADMIN_EMAIL", &cfg.AdminEmail)
	envString("ADMIN_USERNAME", &cfg.AdminUsername)
	envString("ADMIN_PASSWORD", &cfg.AdminPassword)

	if raw := strings.TrimSpace(os.Getenv("DEFAULT_USER_ID")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || id == 0 {
			return fmt.Errorf("invalid DEFAULT_USER_ID %q", raw)
		}
		cfg.DefaultUserID = uint(id)
	}
	if err := envBool("ALLOW_ANONYMOUS", &cfg.AllowAnonymous); err != nil {
		return err
	}
	if err := envBool("STRICT_PAYLOAD", &cfg.StrictPayload); err != nil {
		return err
	}

	return nil
}

func envString(key string, dst *string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		*dst = value
	}
}

func envBool(key string, dst *bool) error {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q", key, raw)
	}
	*dst = value
	return nil
}
