package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/fingerprint"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// testConfig creates a config with defaults and an admin password
func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Admin.Password = "secret"
	return cfg
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// stubEmbedder returns a fixed set of faces for every image
type stubEmbedder struct {
	mu       sync.Mutex
	response *fingerprint.FaceResponse
	err      error
}

func (s *stubEmbedder) ComputeFaceEmbeddings(ctx context.Context, imageData []byte) (*fingerprint.FaceResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}

func (s *stubEmbedder) set(resp *fingerprint.FaceResponse, err error) {
	s.mu.Lock()
	s.response = resp
	s.err = err
	s.mu.Unlock()
}

// faceResponse builds an embedding service response with one face per embedding
func faceResponse(embeddings ...[]float32) *fingerprint.FaceResponse {
	resp := &fingerprint.FaceResponse{FacesCount: len(embeddings)}
	for i, e := range embeddings {
		resp.Faces = append(resp.Faces, fingerprint.FaceDetection{
			FaceIndex: i,
			Dim:       len(e),
			Embedding: e,
			BBox:      []float64{0, 0, 10, 10},
			DetScore:  0.9,
		})
	}
	return resp
}

// testPNG encodes a small gray image
func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 20, 20))
	for x := range 20 {
		img.Set(x, x, color.Gray{Y: 200})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

// newTestRegistrar creates a registrar over an empty gallery in a temp dir
func newTestRegistrar(t *testing.T, embedder recognition.FaceEmbedder, identities ...facematch.KnownIdentity) (*recognition.Registrar, *facematch.Matcher) {
	t.Helper()
	store := gallery.NewStore(filepath.Join(t.TempDir(), "students.json"))
	if len(identities) > 0 {
		if err := store.Save(identities); err != nil {
			t.Fatalf("failed to seed gallery: %v", err)
		}
	}
	matcher := facematch.NewMatcher(0.5, nil)
	registrar := recognition.NewRegistrar(embedder, store, matcher)
	if _, err := registrar.Reload(); err != nil {
		t.Fatalf("failed to load gallery: %v", err)
	}
	return registrar, matcher
}

// multipartRequest builds a registration upload
func multipartRequest(t *testing.T, fields map[string]string, image []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	if image != nil {
		part, err := writer.CreateFormFile("image", "face.png")
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		part.Write(image)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/students", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
