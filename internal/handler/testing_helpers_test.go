package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/activitylog/internal/db"
	"github.com/activitylog/internal/schema"
	"github.com/activitylog/internal/service"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const handlerTestQuestions = `{
  "drinking": [
    {"id": "drinks", "type": "number"},
    {"id": "drink_type", "type": "select"}
  ],
  "gambling": [
    {"id": "gambling_type", "type": "select"},
    {"id": "money_spent", "type": "number"}
  ]
}`

const testPassword = "Passw0rd!"

type testServer struct {
	db     *gorm.DB
	api    *API
	engine *gin.Engine
}

func setupHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:handler-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return gdb
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb := setupHandlerTestDB(t)
	questions, err := schema.Parse([]byte(handlerTestQuestions))
	if err != nil {
		t.Fatalf("failed to parse questions: %v", err)
	}

	api := NewAPI(gdb, questions, opts)

	r := gin.New()
	r.Use(sessions.Sessions("test_session", cookie.NewStore([]byte("test-secret"))))
	r.POST("/create-account", api.CreateAccount)
	r.POST("/login", api.Login)
	r.POST("/logout", api.Logout)
	r.GET("/instructions/:topic", api.ShowInstructions)
	r.GET("/questions", api.GetQuestions)
	r.POST("/log-activity", api.LogActivity)
	r.GET("/calendar-events", api.GetCalendarEvents)
	r.PUT("/activity/:id", api.UpdateActivity)
	r.DELETE("/activity/:id", api.DeleteActivity)
	r.POST("/delete-activity", api.DeleteActivityByType)

	admin := r.Group("/admin", api.AdminRequired())
	admin.GET("/users", api.ListUsers)
	admin.GET("/report", api.DownloadReport)
	admin.GET("/report/file", api.DownloadReportFile)

	return &testServer{db: gdb, api: api, engine: r}
}

func (s *testServer) request(t *testing.T, method, path string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rr := httptest.NewRecorder()
	s.engine.ServeHTTP(rr, req)
	return rr
}

// createUser 直接写库并返回登录后的会话 cookie
func (s *testServer) createUser(t *testing.T, username string, admin bool) (db.User, []*http.Cookie) {
	t.Helper()

	user, err := s.api.users.Register(registerInputFor(username))
	if err != nil {
		t.Fatalf("failed to register %s: %v", username, err)
	}
	if admin {
		if err := s.db.Model(user).Update("is_admin", true).Error; err != nil {
			t.Fatalf("failed to promote %s: %v", username, err)
		}
		user.IsAdmin = true
	}

	rr := s.request(t, http.MethodPost, "/login", gin.H{"email": user.Email, "password": testPassword}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("login for %s failed: %d %s", username, rr.Code, rr.Body.String())
	}
	return *user, rr.Result().Cookies()
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
}

func registerInputFor(username string) service.RegisterInput {
	return service.RegisterInput{
		FirstName:       "Test",
		LastName:        "User",
		Email:           username + "@example.com",
		Username:        username,
		Password:        testPassword,
		ConfirmPassword: testPassword,
	}
}
