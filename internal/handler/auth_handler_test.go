package handler

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestCreateAccountValidation(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := srv.request(t, http.MethodPost, "/create-account", gin.H{
		"first_name":       "Ann",
		"last_name":        "Lee",
		"email":            "ann@example.com",
		"username":         "ann",
		"password":         "short",
		"confirm_password": "different",
	}, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Status string   `json:"status"`
		Errors []string `json:"errors"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Status != "error" || len(resp.Errors) != 2 {
		t.Fatalf("expected two field errors, got %+v", resp)
	}
	if resp.Errors[0] != "Passwords do not match." {
		t.Fatalf("unexpected first error %q", resp.Errors[0])
	}
}

func TestCreateAccountThenLoginAndLogout(t *testing.T) {
	srv := newTestServer(t, Options{AllowAnonymous: false})

	rr := srv.request(t, http.MethodPost, "/create-account", gin.H{
		"first_name":       "Ann",
		"last_name":        "Lee",
		"email":            "Ann@Example.com",
		"username":         "ann",
		"password":         testPassword,
		"confirm_password": testPassword,
	}, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = srv.request(t, http.MethodPost, "/create-account", gin.H{
		"first_name":       "Ann",
		"last_name":        "Lee",
		"email":            "ann@example.com",
		"username":         "ann2",
		"password":         testPassword,
		"confirm_password": testPassword,
	}, nil)
	if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), "already exists") {
		t.Fatalf("expected duplicate email error, got %d: %s", rr.Code, rr.Body.String())
	}

	if rr := srv.request(t, http.MethodPost, "/login", gin.H{"email": "ann@example.com", "password": "wrong"}, nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", rr.Code)
	}

	rr = srv.request(t, http.MethodPost, "/login", gin.H{"email": "ann@example.com", "password": testPassword}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 on login, got %d: %s", rr.Code, rr.Body.String())
	}
	cookies := rr.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected session cookie after login")
	}

	if rr := srv.request(t, http.MethodGet, "/calendar-events", nil, cookies); rr.Code != http.StatusOK {
		t.Fatalf("expected authenticated calendar access, got %d", rr.Code)
	}

	rr = srv.request(t, http.MethodPost, "/logout", nil, cookies)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 on logout, got %d", rr.Code)
	}
	if rr := srv.request(t, http.MethodGet, "/calendar-events", nil, rr.Result().Cookies()); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", rr.Code)
	}
}

func TestLoginAcceptsFormBody(t *testing.T) {
	srv := newTestServer(t, Options{})
	if _, err := srv.api.users.Register(registerInputFor("carol")); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	form := url.Values{"email": {"carol@example.com"}, "password": {testPassword}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	srv.engine.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestAdminRequired(t *testing.T) {
	srv := newTestServer(t, Options{})
	_, userCookies := srv.createUser(t, "dave", false)

	if rr := srv.request(t, http.MethodGet, "/admin/users", nil, nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", rr.Code)
	}
	if rr := srv.request(t, http.MethodGet, "/admin/users", nil, userCookies); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", rr.Code)
	}
}
