package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

func TestAuthHandler_Login_Success(t *testing.T) {
	sm := middleware.NewSessionManager("test-secret", nil)
	defer sm.Stop()
	handler := NewAuthHandler(testConfig(), sm)

	body := bytes.NewBufferString(`{"password": "secret"}`)
	req := httptest.NewRequest("POST", "/api/v1/auth/login", body)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()

	handler.Login(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "application/json")

	var response LoginResponse
	parseJSONResponse(t, recorder, &response)

	if !response.Success {
		t.Error("expected success to be true")
	}
	if response.SessionID == "" {
		t.Error("expected session_id to be set")
	}
	if response.ExpiresAt.IsZero() {
		t.Error("expected expires_at to be set")
	}
	if sm.GetSession(response.SessionID) == nil {
		t.Error("expected session to be registered in the manager")
	}

	cookies := recorder.Result().Cookies()
	if len(cookies) == 0 {
		t.Error("expected session cookie to be set")
	}
}

func TestAuthHandler_Login_WrongPassword(t *testing.T) {
	sm := middleware.NewSessionManager("test-secret", nil)
	defer sm.Stop()
	handler := NewAuthHandler(testConfig(), sm)

	body := bytes.NewBufferString(`{"password": "guess"}`)
	req := httptest.NewRequest("POST", "/api/v1/auth/login", body)
	recorder := httptest.NewRecorder()

	handler.Login(recorder, req)

	assertStatusCode(t, recorder, http.StatusUnauthorized)

	var response LoginResponse
	parseJSONResponse(t, recorder, &response)
	if response.Success {
		t.Error("expected success to be false")
	}
	if response.Error != "invalid credentials" {
		t.Errorf("expected 'invalid credentials', got %q", response.Error)
	}
}

func TestAuthHandler_Login_AdminDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Admin.Password = ""
	sm := middleware.NewSessionManager("test-secret", nil)
	defer sm.Stop()
	handler := NewAuthHandler(cfg, sm)

	body := bytes.NewBufferString(`{"password": "anything"}`)
	req := httptest.NewRequest("POST", "/api/v1/auth/login", body)
	recorder := httptest.NewRecorder()

	handler.Login(recorder, req)

	assertStatusCode(t, recorder, http.StatusUnauthorized)
}

func TestAuthHandler_Login_BadRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"missing password", `{"password": ""}`, "password is required"},
		{"empty object", `{}`, "password is required"},
		{"invalid json", `{invalid`, errInvalidRequestBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := middleware.NewSessionManager("test-secret", nil)
			defer sm.Stop()
			handler := NewAuthHandler(testConfig(), sm)

			req := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewBufferString(tt.body))
			recorder := httptest.NewRecorder()

			handler.Login(recorder, req)

			assertStatusCode(t, recorder, http.StatusBadRequest)
			assertJSONError(t, recorder, tt.message)
		})
	}
}

func TestAuthHandler_Logout_Success(t *testing.T) {
	sm := middleware.NewSessionManager("test-secret", nil)
	defer sm.Stop()
	handler := NewAuthHandler(testConfig(), sm)

	session, err := sm.CreateSession()
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	req := httptest.NewRequest("POST", "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+session.ID)
	recorder := httptest.NewRecorder()

	handler.Logout(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var response map[string]bool
	parseJSONResponse(t, recorder, &response)
	if !response["success"] {
		t.Error("expected success to be true")
	}
	if sm.GetSession(session.ID) != nil {
		t.Error("expected session to be deleted")
	}
}

func TestAuthHandler_Logout_NoSession(t *testing.T) {
	sm := middleware.NewSessionManager("test-secret", nil)
	defer sm.Stop()
	handler := NewAuthHandler(testConfig(), sm)

	req := httptest.NewRequest("POST", "/api/v1/auth/logout", nil)
	recorder := httptest.NewRecorder()

	handler.Logout(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
}

func TestAuthHandler_Status_Authenticated(t *testing.T) {
	sm := middleware.NewSessionManager("test-secret", nil)
	defer sm.Stop()
	handler := NewAuthHandler(testConfig(), sm)

	session, _ := sm.CreateSession()

	req := httptest.NewRequest("GET", "/api/v1/auth/status", nil)
	req.Header.Set("Authorization", "Bearer "+session.ID)
	recorder := httptest.NewRecorder()

	handler.Status(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var response StatusResponse
	parseJSONResponse(t, recorder, &response)
	if !response.Authenticated {
		t.Error("expected authenticated to be true")
	}
	if response.ExpiresAt.IsZero() {
		t.Error("expected expires_at to be set")
	}
}

func TestAuthHandler_Status_Unauthenticated(t *testing.T) {
	sm := middleware.NewSessionManager("test-secret", nil)
	defer sm.Stop()
	handler := NewAuthHandler(testConfig(), sm)

	req := httptest.NewRequest("GET", "/api/v1/auth/status", nil)
	recorder := httptest.NewRecorder()

	handler.Status(recorder, req)

	var response StatusResponse
	parseJSONResponse(t, recorder, &response)
	if response.Authenticated {
		t.Error("expected authenticated to be false")
	}
}

func TestAuthHandler_Status_ExpiredSession(t *testing.T) {
	sm := middleware.NewSessionManager("test-secret", nil)
	defer sm.Stop()
	handler := NewAuthHandler(testConfig(), sm)

	session, _ := sm.CreateSession()
	session.ExpiresAt = time.Now().Add(-time.Hour)

	req := httptest.NewRequest("GET", "/api/v1/auth/status", nil)
	req.Header.Set("Authorization", "Bearer "+session.ID)
	recorder := httptest.NewRecorder()

	handler.Status(recorder, req)

	var response StatusResponse
	parseJSONResponse(t, recorder, &response)
	if response.Authenticated {
		t.Error("expected expired session to be unauthenticated")
	}
}
