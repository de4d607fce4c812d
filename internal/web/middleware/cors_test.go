package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCORS(t *testing.T) {
	handler := CORS([]string{"https://school.example.com", " "})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	tests := []struct {
		name       string
		method     string
		origin     string
		wantOrigin string
		wantStatus int
	}{
		{"allowed origin", "GET", "https://school.example.com", "https://school.example.com", http.StatusTeapot},
		{"localhost", "GET", "http://localhost:5173", "http://localhost:5173", http.StatusTeapot},
		{"loopback ip", "GET", "http://127.0.0.1:5000", "http://127.0.0.1:5000", http.StatusTeapot},
		{"localhost lookalike", "GET", "http://localhost.evil.example.com", "", http.StatusTeapot},
		{"unknown origin", "GET", "https://evil.example.com", "", http.StatusTeapot},
		{"no origin", "GET", "", "", http.StatusTeapot},
		{"preflight", "OPTIONS", "https://school.example.com", "https://school.example.com", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/health", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if w.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	if w.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("expected X-Frame-Options DENY")
	}
	if w.Header().Get("Content-Security-Policy") == "" {
		t.Error("expected a Content-Security-Policy header")
	}
	if got := w.Header().Get("Permissions-Policy"); got == "" || !strings.Contains(got, "camera=(self)") {
		t.Errorf("expected camera access for the page itself, got %q", got)
	}
}
