package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

type fakeProcessor struct {
	result *recognition.FrameResult
	err    error
	frame  string
}

func (f *fakeProcessor) ProcessFrame(ctx context.Context, frame string) (*recognition.FrameResult, error) {
	f.frame = frame
	return f.result, f.err
}

func postFrame(handler *FramesHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/v1/process-frame", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	handler.Process(recorder, req)
	return recorder
}

func TestFramesHandler_Process_Success(t *testing.T) {
	processor := &fakeProcessor{result: &recognition.FrameResult{
		FacesDetected: 2,
		Recognized: []recognition.RecognizedFace{
			{StudentID: "s1", Name: "Alice", Distance: 0.2, LoggedIn: true},
		},
	}}
	handler := NewFramesHandler(processor)

	recorder := postFrame(handler, `{"frame": "abc"}`)

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "application/json")
	if processor.frame != "abc" {
		t.Errorf("expected frame 'abc' to be forwarded, got %q", processor.frame)
	}

	var response FrameResponse
	parseJSONResponse(t, recorder, &response)
	if !response.Success {
		t.Error("expected success to be true")
	}
	if response.FacesDetected != 2 {
		t.Errorf("expected 2 faces detected, got %d", response.FacesDetected)
	}
	if len(response.Recognized) != 1 || response.Recognized[0].Name != "Alice" {
		t.Errorf("unexpected recognized faces: %+v", response.Recognized)
	}
}

func TestFramesHandler_Process_EmptyResultKeepsArray(t *testing.T) {
	handler := NewFramesHandler(&fakeProcessor{result: &recognition.FrameResult{
		Recognized: []recognition.RecognizedFace{},
	}})

	recorder := postFrame(handler, `{"frame": "abc"}`)

	assertStatusCode(t, recorder, http.StatusOK)
	if !strings.Contains(recorder.Body.String(), `"recognized_faces":[]`) {
		t.Errorf("expected an empty recognized_faces array, got %s", recorder.Body.String())
	}
}

func TestFramesHandler_Process_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		err     error
		message string
	}{
		{"invalid json", `{bad`, nil, errInvalidRequestBody},
		{"missing frame", `{}`, nil, "no frame data provided"},
		{"invalid frame", `{"frame": "x"}`, recognition.ErrInvalidFrame, "invalid frame"},
		{"wrapped invalid frame", `{"frame": "x"}`, errors.Join(recognition.ErrInvalidFrame, errors.New("eof")), "invalid frame"},
		{"embedding failure", `{"frame": "x"}`, errors.New("connection refused"), "face recognition failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewFramesHandler(&fakeProcessor{err: tt.err})

			recorder := postFrame(handler, tt.body)

			assertStatusCode(t, recorder, http.StatusBadRequest)

			var response FrameResponse
			parseJSONResponse(t, recorder, &response)
			if response.Success {
				t.Error("expected success to be false")
			}
			if response.Error != tt.message {
				t.Errorf("expected error %q, got %q", tt.message, response.Error)
			}
		})
	}
}

func TestFramesHandler_Process_TooLarge(t *testing.T) {
	handler := NewFramesHandler(&fakeProcessor{})

	body := `{"frame": "` + strings.Repeat("A", constants.MaxFrameBodySize) + `"}`
	recorder := postFrame(handler, body)

	assertStatusCode(t, recorder, http.StatusBadRequest)

	var response FrameResponse
	parseJSONResponse(t, recorder, &response)
	if response.Error != "frame too large" {
		t.Errorf("expected 'frame too large', got %q", response.Error)
	}
}

func TestFramesHandler_Process_LogsStudentIn(t *testing.T) {
	embedder := &stubEmbedder{response: faceResponse([]float32{0.1, 0})}
	matcher := facematch.NewMatcher(0.5, []facematch.KnownIdentity{
		{ID: "s1", DisplayName: "Alice", Embedding: []float32{0, 0}},
	})
	tracker := attendance.NewTracker()
	pipeline := recognition.NewPipeline(embedder, matcher, tracker, 0)
	handler := NewFramesHandler(pipeline)

	frame := base64.StdEncoding.EncodeToString(testPNG(t))
	recorder := postFrame(handler, `{"frame": "data:image/png;base64,`+frame+`"}`)

	assertStatusCode(t, recorder, http.StatusOK)

	session, ok := tracker.Get("s1")
	if !ok || !session.LoggedIn() {
		t.Fatalf("expected s1 to be logged in, got %+v (ok=%v)", session, ok)
	}
	if session.DisplayName != "Alice" {
		t.Errorf("expected name Alice, got %q", session.DisplayName)
	}
}
