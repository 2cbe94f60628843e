package handler

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/activitylog/internal/service"
	"github.com/gin-gonic/gin"
)

// ListUsers 返回可导出报表的普通用户
func (a *API) ListUsers(c *gin.Context) {
	users, err := a.users.ListParticipants()
	if err != nil {
		reportInternalError(c, err, "list users failed")
		respondError(c, http.StatusInternalServerError, "Failed to list users")
		return
	}

	items := make([]gin.H, 0, len(users))
	for _, user := range users {
		items = append(items, gin.H{
			"id":         user.ID,
			"username":   user.Username,
			"email":      user.Email,
			"first_name": user.FirstName,
			"last_name":  user.LastName,
		})
	}

	c.JSON(http.StatusOK, gin.H{"users": items})
}

// DownloadReport 直接以附件形式返回 CSV；不带 user_id 时导出全部用户
func (a *API) DownloadReport(c *gin.Context) {
	filter, ok := parseReportFilter(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := a.reports.Generate(c.Request.Context(), &buf, filter); err != nil {
		handleReportError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filter.FileName()))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// DownloadReportFile 先把报表落盘到 ReportDir，再以文件形式返回
func (a *API) DownloadReportFile(c *gin.Context) {
	filter, ok := parseReportFilter(c)
	if !ok {
		return
	}

	path, err := a.reports.WriteFile(c.Request.Context(), a.opts.ReportDir, filter)
	if err != nil {
		handleReportError(c, err)
		return
	}

	c.FileAttachment(path, filter.FileName())
}

func parseReportFilter(c *gin.Context) (service.ReportFilter, bool) {
	userID, _, err := parseUintQuery(c, "user_id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid user_id")
		return service.ReportFilter{}, false
	}

	return service.ReportFilter{
		UserID:    userID,
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
	}, true
}

func handleReportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		respondError(c, http.StatusNotFound, "User not found")
	default:
		reportInternalError(c, err, "generate report failed")
		respondError(c, http.StatusInternalServerError, "Failed to generate report")
	}
}
