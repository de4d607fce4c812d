package fingerprint

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestComputeFaceEmbeddings(t *testing.T) {
	var gotContentType, gotPartType string
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/face" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotContentType = r.Header.Get("Content-Type")

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		gotPartType = header.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(file)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"faces_count": 2,
			"faces": [
				{"face_index": 0, "dim": 2, "embedding": [0.1, 0.2], "bbox": [10, 20, 30, 40], "det_score": 0.9},
				{"face_index": 1, "dim": 2, "embedding": [0.3, 0.4], "bbox": [50, 60, 70, 80], "det_score": 0.95}
			],
			"model": "buffalo_l"
		}`)
	}))
	defer server.Close()

	client := NewEmbeddingClient(server.URL+"/", time.Second)
	jpegHeader := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0, 1, 2, 3}

	resp, err := client.ComputeFaceEmbeddings(context.Background(), jpegHeader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(gotContentType, "multipart/form-data") {
		t.Errorf("expected multipart request, got %q", gotContentType)
	}
	if gotPartType != "image/jpeg" {
		t.Errorf("expected image/jpeg part, got %q", gotPartType)
	}
	if string(gotBody) != string(jpegHeader) {
		t.Error("image bytes were not forwarded unchanged")
	}

	if resp.FacesCount != 2 || len(resp.Faces) != 2 || resp.Model != "buffalo_l" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	embeddings := resp.Embeddings()
	if len(embeddings) != 2 || embeddings[1][1] != 0.4 {
		t.Errorf("unexpected embeddings: %v", embeddings)
	}

	best, err := resp.BestFace()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if best.FaceIndex != 1 {
		t.Errorf("expected face with highest det_score, got index %d", best.FaceIndex)
	}
}

func TestComputeFaceEmbeddingsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewEmbeddingClient(server.URL, time.Second)
	_, err := client.ComputeFaceEmbeddings(context.Background(), []byte("data"))
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("error should mention status code, got %v", err)
	}
}

func TestComputeFaceEmbeddingsInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "{broken")
	}))
	defer server.Close()

	client := NewEmbeddingClient(server.URL, time.Second)
	if _, err := client.ComputeFaceEmbeddings(context.Background(), []byte("data")); err == nil {
		t.Error("expected a parse error")
	}
}

func TestBestFaceNoFaces(t *testing.T) {
	tests := []struct {
		name string
		resp FaceResponse
	}{
		{"no faces", FaceResponse{}},
		{"face without embedding", FaceResponse{FacesCount: 1, Faces: []FaceDetection{{DetScore: 0.99}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.resp.BestFace(); !errors.Is(err, ErrNoFace) {
				t.Errorf("expected ErrNoFace, got %v", err)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		io.WriteString(w, `{"status":"ok"}`)
	}))
	defer server.Close()

	client := NewEmbeddingClient(server.URL, time.Second)
	if err := client.Health(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	healthy.Store(false)
	if err := client.Health(context.Background()); err == nil {
		t.Error("expected an error from an unhealthy server")
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0}, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"gif", []byte("GIF89a\x00\x00"), "image/gif"},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBP"), "image/webp"},
		{"short", []byte{0xFF, 0xD8}, "application/octet-stream"},
		{"unknown", []byte("plain text data"), "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectMIMEType(tt.data); got != tt.expected {
				t.Errorf("detectMIMEType() = %q, want %q", got, tt.expected)
			}
		})
	}
}
