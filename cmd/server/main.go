package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/activitylog/internal/config"
	"github.com/activitylog/internal/db"
	"github.com/activitylog/internal/handler"
	"github.com/activitylog/internal/logging"
	"github.com/activitylog/internal/router"
	"github.com/activitylog/internal/schema"
	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	sentryEnabled := cfg.SentryDSN != ""
	if sentryEnabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.SentryEnvironment,
		}); err != nil {
			slog.Error("failed to initialize sentry", "error", err)
			sentryEnabled = false
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// 初始化数据库
	if err := db.Init(db.Options{
		Path:     cfg.DatabasePath,
		URL:      cfg.DatabaseURL,
		LogLevel: logging.GormLevel(cfg.DBLogLevel),
	}); err != nil {
		fatal("failed to initialize database", err)
	}

	if admin, err := db.EnsureAdmin(db.DB, cfg.AdminEmail, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		fatal("failed to ensure admin user", err)
	} else if admin != nil {
		slog.Info("admin user ready", "user_id", admin.ID, "username", admin.Username)
	}

	questions, err := schema.Load(cfg.QuestionsPath)
	if err != nil {
		fatal("failed to load questions", err, "path", cfg.QuestionsPath)
	}

	api := handler.NewAPI(db.DB, questions, handler.Options{
		DefaultUserID:   cfg.DefaultUserID,
		AllowAnonymous:  cfg.AllowAnonymous,
		StrictPayload:   cfg.StrictPayload,
		ReportDir:       cfg.ReportDir,
		InstructionsDir: cfg.InstructionsDir,
	})

	gin.SetMode(cfg.GinMode)

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(api, router.Options{
		SessionSecret: cfg.SessionSecret,
		SentryEnabled: sentryEnabled,
	})

	slog.Info("server starting", "addr", cfg.ListenAddr, "anonymous", cfg.AllowAnonymous)
	if err := r.Run(cfg.ListenAddr); err != nil {
		fatal("failed to run server", err)
	}
}

func fatal(msg string, err error, attrs ...any) {
	slog.Error(msg, append([]any{"error", err}, attrs...)...)
	sentry.CaptureException(err)
	sentry.Flush(2 * time.Second)
	os.Exit(1)
}
