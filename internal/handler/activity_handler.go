package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/activitylog/internal/service"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type deleteByTypePayload struct {
	Date string `json:"date"`
	Type string `json:"type"`
}

// LogActivity 按日期写入打卡
func (a *API) LogActivity(c *gin.Context) {
	rc, ok := a.requestContext(c)
	if !ok {
		return
	}

	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil || len(body) == 0 {
		respondError(c, http.StatusBadRequest, "No data received")
		return
	}

	input := service.ParseActivityRequest(body)
	entry, err := a.activities.LogActivity(c.Request.Context(), rc, input)
	if err != nil {
		a.handleActivityError(c, rc, err, "Failed to save activity. Check server logs for details.", "date", input.Date)
		return
	}

	a.respondWithDay(c, rc.UserID, entry.EntryDate, "Activity saved successfully")
}

// UpdateActivity 按条目 ID 更新打卡
func (a *API) UpdateActivity(c *gin.Context) {
	rc, ok := a.requestContext(c)
	if !ok {
		return
	}

	entryID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid entry id")
		return
	}

	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil || len(body) == 0 {
		respondError(c, http.StatusBadRequest, "No data received")
		return
	}

	entry, err := a.activities.UpdateActivity(c.Request.Context(), rc, entryID, service.ParseActivityRequest(body))
	if err != nil {
		a.handleActivityError(c, rc, err, "Failed to update activity", "entry_id", entryID)
		return
	}

	a.respondWithDay(c, rc.UserID, entry.EntryDate, "Activity updated successfully")
}

// DeleteActivity 删除条目所在的整天
func (a *API) DeleteActivity(c *gin.Context) {
	rc, ok := a.requestContext(c)
	if !ok {
		return
	}

	entryID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid entry id")
		return
	}

	date, err := a.activities.DeleteActivity(c.Request.Context(), rc, entryID)
	if err != nil {
		a.handleActivityError(c, rc, err, "Failed to delete entry", "entry_id", entryID)
		return
	}

	a.respondWithDay(c, rc.UserID, date, "Activity deleted")
}

// DeleteActivityByType 删除某天某类活动，兼容旧前端的 /delete-activity
func (a *API) DeleteActivityByType(c *gin.Context) {
	rc, ok := a.requestContext(c)
	if !ok {
		return
	}

	var payload deleteByTypePayload
	if !bindJSON(c, &payload, "No data received") {
		return
	}

	date, err := a.activities.DeleteActivityType(c.Request.Context(), rc, payload.Date, payload.Type)
	if err != nil {
		a.handleActivityError(c, rc, err, "Failed to delete entry", "date", payload.Date)
		return
	}

	a.respondWithDay(c, rc.UserID, date, "Entry deleted")
}

// GetCalendarEvents 返回日历事件；管理员可通过 user_id 查看其他用户
func (a *API) GetCalendarEvents(c *gin.Context) {
	rc, ok := a.requestContext(c)
	if !ok {
		return
	}

	userID := rc.UserID
	requested, present, err := parseUintQuery(c, "user_id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid user_id")
		return
	}
	if present && requested != userID {
		if !a.sessionIsAdmin(c) {
			respondError(c, http.StatusForbidden, "Forbidden")
			return
		}
		userID = requested
	}

	events, err := a.calendar.Events(c.Request.Context(), userID)
	if err != nil {
		reportInternalError(c, err, "retrieve calendar events failed", "user_id", userID)
		respondError(c, http.StatusInternalServerError, "Failed to retrieve events")
		return
	}

	c.JSON(http.StatusOK, events)
}

// GetQuestions 返回问卷配置，前端据此渲染表单
func (a *API) GetQuestions(c *gin.Context) {
	c.JSON(http.StatusOK, a.questions)
}

func (a *API) respondWithDay(c *gin.Context, userID uint, date time.Time, message string) {
	event, err := a.calendar.EventForDate(c.Request.Context(), userID, date)
	if err != nil {
		// 写入已提交，读取失败只记录日志
		reportInternalError(c, err, "reload calendar day failed", "user_id", userID)
	}
	respondSuccess(c, http.StatusOK, message, gin.H{"entry": event})
}

// handleActivityError 把服务层错误映射为状态码；500 时记录身份来源（会话或默认用户）
func (a *API) handleActivityError(c *gin.Context, rc service.RequestContext, err error, failure string, attrs ...any) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNoActivitySelected):
		respondError(c, http.StatusBadRequest, "No activity selected")
	case errors.Is(err, service.ErrEntryNotFound):
		respondError(c, http.StatusNotFound, "Entry not found")
	default:
		attrs = append([]any{"user_id", rc.UserID, "anonymous", rc.Anonymous}, attrs...)
		reportInternalError(c, err, failure, attrs...)
		respondError(c, http.StatusInternalServerError, failure)
	}
}

func (a *API) sessionIsAdmin(c *gin.Context) bool {
	session := sessions.Default(c)
	userID, ok := sessionUserID(session.Get(sessionUserIDKey))
	if !ok {
		return false
	}
	user, err := a.users.Get(userID)
	return err == nil && user.IsAdmin
}
