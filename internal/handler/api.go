package handler

import (
	"github.com/activitylog/internal/schema"
	"github.com/activitylog/internal/service"
	"gorm.io/gorm"
)

// Options 控制 handler 层的行为
type Options struct {
	// DefaultUserID 在没有会话身份时使用
	DefaultUserID uint
	// AllowAnonymous=false 时没有会话直接返回 401
	AllowAnonymous  bool
	StrictPayload   bool
	ReportDir       string
	InstructionsDir string
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db         *gorm.DB
	questions  *schema.Schema
	activities *service.ActivityService
	calendar   *service.CalendarService
	reports    *service.ReportService
	users      *service.UserService
	opts       Options
}

// NewAPI constructs a handler set with shared services.
func NewAPI(db *gorm.DB, questions *schema.Schema, opts Options) *API {
	if opts.DefaultUserID == 0 {
		opts.DefaultUserID = 1
	}
	if opts.ReportDir == "" {
		opts.ReportDir = "reports"
	}
	if opts.InstructionsDir == "" {
		opts.InstructionsDir = "content/instructions"
	}

	return &API{
		db:         db,
		questions:  questions,
		activities: service.NewActivityService(db, questions).WithStrictPayload(opts.StrictPayload),
		calendar:   service.NewCalendarService(db, questions),
		reports:    service.NewReportService(db, questions),
		users:      service.NewUserService(db),
		opts:       opts,
	}
}

// DB exposes the underlying gorm instance for health checks.
func (a *API) DB() *gorm.DB {
	return a.db
}
