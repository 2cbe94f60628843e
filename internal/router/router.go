package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/activitylog/internal/handler"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	sessionName     = "activitylog_session"
	requestIDHeader = "X-Request-ID"
)

// Options 描述路由层需要的配置
type Options struct {
	SessionSecret string
	// SentryEnabled 为 true 时挂载 sentry 中间件，需在此之前调用 sentry.Init
	SentryEnabled bool
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), requestLogger())

	if opts.SentryEnabled {
		r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}

	// 配置会话中间件
	secret := opts.SessionSecret
	if secret == "" {
		secret = "activitylog-dev-secret"
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 7 * 24 * 60 * 60, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions(sessionName, store))

	r.GET("/ping", func(c *gin.Context) {
		status := http.StatusOK
		message := "pong"
		if sqlDB, err := api.DB().DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status = http.StatusServiceUnavailable
			message = "database unavailable"
		}
		c.JSON(status, gin.H{"message": message})
	})

	r.POST("/create-account", api.CreateAccount)
	r.POST("/login", api.Login)
	r.GET("/logout", api.Logout)
	r.POST("/logout", api.Logout)

	r.GET("/instructions/:topic", api.ShowInstructions)

	// 打卡接口同时挂在根路径与 /api 下，兼容旧前端
	for _, group := range []*gin.RouterGroup{&r.RouterGroup, r.Group("/api")} {
		group.GET("/questions", api.GetQuestions)
		group.POST("/log-activity", api.LogActivity)
		group.GET("/calendar-events", api.GetCalendarEvents)
		group.PUT("/activity/:id", api.UpdateActivity)
		group.DELETE("/activity/:id", api.DeleteActivity)
		group.POST("/delete-activity", api.DeleteActivityByType)
	}

	// 后台管理路由
	admin := r.Group("/admin")
	admin.Use(api.AdminRequired())
	{
		admin.GET("/users", api.ListUsers)
		admin.GET("/report", api.DownloadReport)
		admin.GET("/report/file", api.DownloadReportFile)
	}

	return r
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		slog.InfoContext(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", c.GetString("request_id"),
		)
	}
}
