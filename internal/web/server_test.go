package web

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/recognition"
	"github.com/prometheus/client_golang/prometheus"
)

func newTestServer(t *testing.T, adminPassword string) *Server {
	t.Helper()
	cfg := config.Defaults()
	cfg.Admin.Password = adminPassword

	reg := prometheus.NewRegistry()
	tracker := attendance.NewTracker(attendance.WithMetrics(attendance.NewMetrics(reg)))
	matcher := facematch.NewMatcher(cfg.Attendance.Tolerance, []facematch.KnownIdentity{
		{ID: "s1", DisplayName: "Alice", Embedding: []float32{0, 0}},
	})
	store := gallery.NewStore(filepath.Join(t.TempDir(), "students.json"))
	registrar := recognition.NewRegistrar(nil, store, matcher)

	s := NewServer(cfg, Services{
		Tracker:   tracker,
		Matcher:   matcher,
		Pipeline:  recognition.NewPipeline(nil, matcher, tracker, cfg.Embedding.FrameMaxSize),
		Registrar: registrar,
		Gatherer:  reg,
	})
	t.Cleanup(s.sessionManager.Stop)
	return s
}

func serve(s *Server, method, path string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	recorder := httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, req)
	return recorder
}

func TestServer_PublicRoutes(t *testing.T) {
	s := newTestServer(t, "")

	tests := []struct {
		method string
		path   string
		status int
	}{
		{"GET", "/api/v1/health", http.StatusOK},
		{"GET", "/api/v1/attendance", http.StatusOK},
		{"GET", "/api/v1/attendance/unknown", http.StatusNotFound},
		{"GET", "/api/v1/students", http.StatusOK},
		{"GET", "/api/v1/config", http.StatusOK},
		{"GET", "/api/v1/stats", http.StatusOK},
		{"POST", "/api/v1/process-frame", http.StatusBadRequest},
		{"GET", "/api/v1/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			recorder := serve(s, tt.method, tt.path, "")
			if recorder.Code != tt.status {
				t.Errorf("expected status %d, got %d: %s", tt.status, recorder.Code, recorder.Body.String())
			}
		})
	}
}

func TestServer_AdminDisabled(t *testing.T) {
	s := newTestServer(t, "")

	for _, path := range []string{"/api/v1/auth/login", "/api/v1/students/reload"} {
		recorder := serve(s, "POST", path, `{"password":"x"}`)
		if recorder.Code != http.StatusForbidden {
			t.Errorf("%s: expected 403 with admin disabled, got %d", path, recorder.Code)
		}
	}
}

func TestServer_AdminRequiresSession(t *testing.T) {
	s := newTestServer(t, "secret")

	recorder := serve(s, "DELETE", "/api/v1/attendance", "")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a session, got %d", recorder.Code)
	}

	recorder = serve(s, "GET", "/api/v1/attendance/history", "")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("history must not be read as a student id, got %d", recorder.Code)
	}

	login := serve(s, "POST", "/api/v1/auth/login", `{"password":"secret"}`)
	if login.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", login.Code, login.Body.String())
	}

	req := httptest.NewRequest("DELETE", "/api/v1/attendance", nil)
	for _, c := range login.Result().Cookies() {
		req.AddCookie(c)
	}
	recorder = httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Errorf("expected 200 with a session cookie, got %d", recorder.Code)
	}
}

func TestServer_KioskPage(t *testing.T) {
	s := newTestServer(t, "")

	for _, path := range []string{"/", "/some/client/route"} {
		recorder := serve(s, "GET", path, "")
		if recorder.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, recorder.Code)
		}
		if !strings.Contains(recorder.Body.String(), "Face Attendance") {
			t.Errorf("%s: expected the kiosk page", path)
		}
	}

	recorder := serve(s, "GET", "/app.js", "")
	if recorder.Code != http.StatusOK || !strings.Contains(recorder.Body.String(), "process-frame") {
		t.Errorf("expected app.js to be served, got %d", recorder.Code)
	}
	if csp := recorder.Header().Get("Content-Security-Policy"); csp == "" {
		t.Error("expected security headers on static files")
	}
}

func TestServer_Metrics(t *testing.T) {
	s := newTestServer(t, "")
	s.services.Tracker.MarkLogin("s1", "Alice", time.Now())

	recorder := serve(s, "GET", "/metrics", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	body := recorder.Body.String()
	if !strings.Contains(body, "face_attendance_sessions_logged_in 1") {
		t.Errorf("expected logged_in gauge in metrics output:\n%s", body)
	}
	if !strings.Contains(body, `face_attendance_sessions_transitions_total{kind="login"} 1`) {
		t.Errorf("expected login transition counter in metrics output")
	}
}
