package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"status": "error", "message": message})
}

func respondSuccess(c *gin.Context, status int, message string, extra gin.H) {
	payload := gin.H{"status": "success", "message": message}
	for key, value := range extra {
		payload[key] = value
	}
	c.JSON(status, payload)
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

func isJSONRequest(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Content-Type"), "application/json")
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	raw := c.Param(key)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(id), nil
}

func parseUintQuery(c *gin.Context, key string) (uint, bool, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, false, nil
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, true, fmt.Errorf("invalid %s", key)
	}
	return uint(id), true, nil
}

// reportInternalError 记录服务端错误并上报 Sentry（若已启用），客户端只拿到通用提示
func reportInternalError(c *gin.Context, err error, msg string, attrs ...any) {
	args := append([]any{"error", err, "path", c.FullPath()}, attrs...)
	slog.ErrorContext(c.Request.Context(), msg, args...)

	if hub := sentrygin.GetHubFromContext(c); hub != nil {
		hub.CaptureException(err)
	}
}
