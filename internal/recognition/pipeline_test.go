package recognition

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/fingerprint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var t0 = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

// fakeEmbedder returns a canned response and remembers what it received.
type fakeEmbedder struct {
	mu       sync.Mutex
	response *fingerprint.FaceResponse
	err      error
	calls    int
	lastSize int
}

func (f *fakeEmbedder) ComputeFaceEmbeddings(ctx context.Context, imageData []byte) (*fingerprint.FaceResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastSize = len(imageData)
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func testImage(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := range width {
		for y := range height {
			img.Set(x, y, color.Gray{Y: uint8((x + y) % 256)})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func testFrame(t *testing.T) string {
	t.Helper()
	return base64.StdEncoding.EncodeToString(testImage(t, 100, 50))
}

func faces(embeddings ...[]float32) *fingerprint.FaceResponse {
	resp := &fingerprint.FaceResponse{FacesCount: len(embeddings)}
	for i, e := range embeddings {
		resp.Faces = append(resp.Faces, fingerprint.FaceDetection{
			FaceIndex: i,
			Dim:       len(e),
			Embedding: e,
			BBox:      []float64{10, 5, 30, 25},
			DetScore:  0.9,
		})
	}
	return resp
}

func newTestPipeline(embedder FaceEmbedder, now *time.Time) (*Pipeline, *attendance.Tracker) {
	matcher := facematch.NewMatcher(0.5, []facematch.KnownIdentity{
		{ID: "s1", DisplayName: "Alice", Embedding: []float32{0, 0}},
		{ID: "s2", DisplayName: "Bob", Embedding: []float32{1, 1}},
	})
	tracker := attendance.NewTracker()
	p := NewPipeline(embedder, matcher, tracker, 640).WithClock(func() time.Time { return *now })
	return p, tracker
}

func TestPipeline_ProcessFrameLogsIn(t *testing.T) {
	now := t0
	embedder := &fakeEmbedder{response: faces([]float32{0.1, 0}, []float32{5, 5}, []float32{1, 1.1})}
	p, tracker := newTestPipeline(embedder, &now)

	result, err := p.ProcessFrame(context.Background(), testFrame(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.FacesDetected != 3 {
		t.Errorf("expected 3 detected faces, got %d", result.FacesDetected)
	}
	if len(result.Recognized) != 2 {
		t.Fatalf("expected 2 recognized faces, got %d", len(result.Recognized))
	}
	if result.Recognized[0].StudentID != "s1" || result.Recognized[1].StudentID != "s2" {
		t.Errorf("unexpected recognized faces: %+v", result.Recognized)
	}
	if !result.Recognized[0].LoggedIn {
		t.Error("first recognition should log the student in")
	}

	bbox := result.Recognized[0].BBox
	if len(bbox) != 4 || bbox[0] != 0.1 || bbox[1] != 0.1 || bbox[2] != 0.3 || bbox[3] != 0.5 {
		t.Errorf("expected bbox relative to the 100x50 frame, got %v", bbox)
	}

	for _, id := range []string{"s1", "s2"} {
		s, ok := tracker.Get(id)
		if !ok || s.State != attendance.StateLoggedIn {
			t.Errorf("expected %s to be logged in, got %+v", id, s)
		}
		if !s.LoginTime.Equal(t0) || !s.LastSeenTime.Equal(t0) {
			t.Errorf("unexpected times for %s: %+v", id, s)
		}
	}
}

func TestPipeline_RepeatedFrameKeepsLoginTime(t *testing.T) {
	now := t0
	embedder := &fakeEmbedder{response: faces([]float32{0, 0})}
	p, tracker := newTestPipeline(embedder, &now)

	if _, err := p.ProcessFrame(context.Background(), testFrame(t)); err != nil {
		t.Fatal(err)
	}
	now = t0.Add(2 * time.Minute)
	result, err := p.ProcessFrame(context.Background(), testFrame(t))
	if err != nil {
		t.Fatal(err)
	}

	if result.Recognized[0].LoggedIn {
		t.Error("second frame must not report a new login")
	}
	s, _ := tracker.Get("s1")
	if !s.LoginTime.Equal(t0) {
		t.Errorf("login time changed to %s", s.LoginTime)
	}
	if !s.LastSeenTime.Equal(now) {
		t.Errorf("expected last seen %s, got %s", now, s.LastSeenTime)
	}
}

func TestPipeline_NoFaces(t *testing.T) {
	now := t0
	embedder := &fakeEmbedder{response: &fingerprint.FaceResponse{}}
	p, tracker := newTestPipeline(embedder, &now)

	result, err := p.ProcessFrame(context.Background(), testFrame(t))
	if err != nil {
		t.Fatalf("a frame without faces is not an error: %v", err)
	}
	if len(result.Recognized) != 0 {
		t.Errorf("expected no recognized faces, got %+v", result.Recognized)
	}
	if len(tracker.Snapshot()) != 0 {
		t.Error("tracker must not change when nobody is recognized")
	}
}

func TestPipeline_InvalidFrame(t *testing.T) {
	now := t0
	embedder := &fakeEmbedder{response: faces([]float32{0, 0})}
	p, _ := newTestPipeline(embedder, &now)

	tests := []struct {
		name  string
		frame string
	}{
		{"empty", ""},
		{"not base64", "%%%"},
		{"not an image", base64.StdEncoding.EncodeToString([]byte("hello world"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.ProcessFrame(context.Background(), tt.frame)
			if !errors.Is(err, ErrInvalidFrame) {
				t.Errorf("expected ErrInvalidFrame, got %v", err)
			}
		})
	}
	if embedder.calls != 0 {
		t.Errorf("embedding server must not be called for invalid frames, got %d calls", embedder.calls)
	}
}

func TestPipeline_EmbedderError(t *testing.T) {
	now := t0
	embedder := &fakeEmbedder{err: errors.New("connection refused")}
	p, _ := newTestPipeline(embedder, &now)

	_, err := p.ProcessFrame(context.Background(), testFrame(t))
	if err == nil {
		t.Fatal("expected an error")
	}
	if errors.Is(err, ErrInvalidFrame) {
		t.Error("embedding failures are not invalid frames")
	}
}

func TestPipeline_Metrics(t *testing.T) {
	now := t0
	reg := prometheus.NewRegistry()
	embedder := &fakeEmbedder{response: faces([]float32{0, 0}, []float32{9, 9})}
	p, _ := newTestPipeline(embedder, &now)
	m := NewMetrics(reg)
	p.WithMetrics(m)

	p.ProcessFrame(context.Background(), testFrame(t))
	p.ProcessFrame(context.Background(), "")

	if got := testutil.ToFloat64(m.frames.WithLabelValues(resultOK)); got != 1 {
		t.Errorf("expected 1 ok frame, got %v", got)
	}
	if got := testutil.ToFloat64(m.frames.WithLabelValues(resultInvalid)); got != 1 {
		t.Errorf("expected 1 invalid frame, got %v", got)
	}
	if got := testutil.ToFloat64(m.faces.WithLabelValues("true")); got != 1 {
		t.Errorf("expected 1 matched face, got %v", got)
	}
	if got := testutil.ToFloat64(m.faces.WithLabelValues("false")); got != 1 {
		t.Errorf("expected 1 unmatched face, got %v", got)
	}
}

func TestPipeline_ResizesLargeFrames(t *testing.T) {
	now := t0
	embedder := &fakeEmbedder{response: &fingerprint.FaceResponse{}}
	matcher := facematch.NewMatcher(0.5, nil)
	p := NewPipeline(embedder, matcher, attendance.NewTracker(), 20).WithClock(func() time.Time { return now })

	large := testImage(t, 200, 100)
	if _, err := p.ProcessImage(context.Background(), large); err != nil {
		t.Fatal(err)
	}
	if embedder.lastSize == len(large) {
		t.Error("expected the frame to be re-encoded at a smaller size")
	}
}
