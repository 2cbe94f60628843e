package handler

import (
	"errors"
	"net/http"

	"github.com/activitylog/internal/service"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	sessionUserIDKey   = "user_id"
	sessionUsernameKey = "username"
	sessionIsAdminKey  = "is_admin"
)

type registerPayload struct {
	FirstName       string `json:"first_name" form:"first_name"`
	LastName        string `json:"last_name" form:"last_name"`
	Email           string `json:"email" form:"email"`
	Username        string `json:"username" form:"username"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
}

type loginPayload struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// requestContext 从会话解析当前用户；没有会话时按配置回退到默认用户或返回 401
func (a *API) requestContext(c *gin.Context) (service.RequestContext, bool) {
	session := sessions.Default(c)
	if id, ok := sessionUserID(session.Get(sessionUserIDKey)); ok {
		return service.RequestContext{UserID: id}, true
	}

	if a.opts.AllowAnonymous {
		return service.RequestContext{UserID: a.opts.DefaultUserID, Anonymous: true}, true
	}

	respondError(c, http.StatusUnauthorized, "Login required")
	return service.RequestContext{}, false
}

func sessionUserID(value interface{}) (uint, bool) {
	switch v := value.(type) {
	case uint:
		return v, v != 0
	case int:
		return uint(v), v > 0
	case int64:
		return uint(v), v > 0
	case float64:
		return uint(v), v > 0
	default:
		return 0, false
	}
}

// CreateAccount 处理注册，字段错误以 400 + errors 列表返回
func (a *API) CreateAccount(c *gin.Context) {
	var payload registerPayload
	if isJSONRequest(c) {
		if !bindJSON(c, &payload, "Invalid request body") {
			return
		}
	} else if err := c.ShouldBind(&payload); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := a.users.Register(service.RegisterInput{
		FirstName:       payload.FirstName,
		LastName:        payload.LastName,
		Email:           payload.Email,
		Username:        payload.Username,
		Password:        payload.Password,
		ConfirmPassword: payload.ConfirmPassword,
	})
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"status":  "error",
				"message": "Please correct the highlighted fields.",
				"errors":  verr.Errors,
			})
			return
		}
		reportInternalError(c, err, "create account failed")
		respondError(c, http.StatusInternalServerError, "An unexpected error occurred. Please try again.")
		return
	}

	respondSuccess(c, http.StatusCreated, "Account created", gin.H{
		"user": gin.H{"id": user.ID, "username": user.Username},
	})
}

// Login 校验邮箱密码并写入会话
func (a *API) Login(c *gin.Context) {
	var payload loginPayload
	if isJSONRequest(c) {
		if !bindJSON(c, &payload, "Invalid request body") {
			return
		}
	} else {
		payload.Email = c.PostForm("email")
		payload.Password = c.PostForm("password")
	}

	if payload.Email == "" || payload.Password == "" {
		respondError(c, http.StatusBadRequest, "Email and password are required.")
		return
	}

	user, err := a.users.Authenticate(payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			respondError(c, http.StatusUnauthorized, "Invalid email or password.")
			return
		}
		reportInternalError(c, err, "login failed")
		respondError(c, http.StatusInternalServerError, "Login failed")
		return
	}

	session := sessions.Default(c)
	session.Set(sessionUserIDKey, user.ID)
	session.Set(sessionUsernameKey, user.Username)
	session.Set(sessionIsAdminKey, user.IsAdmin)
	if err := session.Save(); err != nil {
		reportInternalError(c, err, "save session failed")
		respondError(c, http.StatusInternalServerError, "Failed to save session")
		return
	}

	respondSuccess(c, http.StatusOK, "Logged in", gin.H{
		"user": gin.H{"id": user.ID, "username": user.Username, "is_admin": user.IsAdmin},
	})
}

// Logout 清空会话
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		reportInternalError(c, err, "clear session failed")
	}
	respondSuccess(c, http.StatusOK, "Logged out", nil)
}

// AdminRequired 要求会话用户存在且在库中仍是管理员
func (a *API) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID, ok := sessionUserID(session.Get(sessionUserIDKey))
		if !ok {
			respondError(c, http.StatusUnauthorized, "Login required")
			c.Abort()
			return
		}

		user, err := a.users.Get(userID)
		if err != nil || !user.IsAdmin {
			respondError(c, http.StatusForbidden, "Forbidden")
			c.Abort()
			return
		}

		c.Next()
	}
}
