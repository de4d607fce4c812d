// Package recognition turns camera frames into attendance updates and
// registers new students in the gallery.
package recognition

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/fingerprint"
	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger().Output(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: "15:04:05",
})

// ErrInvalidFrame is returned when a frame cannot be decoded as an image.
var ErrInvalidFrame = errors.New("invalid frame")

// FaceEmbedder detects faces in an image and returns their embeddings.
type FaceEmbedder interface {
	ComputeFaceEmbeddings(ctx context.Context, imageData []byte) (*fingerprint.FaceResponse, error)
}

// RecognizedFace is a detected face matched to a registered student.
type RecognizedFace struct {
	StudentID string    `json:"student_id"`
	Name      string    `json:"name"`
	Distance  float64   `json:"distance"`
	BBox      []float64 `json:"bbox,omitempty"` // [x1, y1, x2, y2] relative to the frame
	LoggedIn  bool      `json:"logged_in"`      // this frame started the student's session
}

// FrameResult is the outcome of processing one frame.
type FrameResult struct {
	FacesDetected int              `json:"faces_detected"`
	Recognized    []RecognizedFace `json:"recognized_faces"`
}

// Pipeline recognizes students in frames and updates their sessions.
type Pipeline struct {
	embedder FaceEmbedder
	matcher  *facematch.Matcher
	tracker  *attendance.Tracker
	maxSize  int
	now      func() time.Time
	metrics  *Metrics
}

// NewPipeline creates a frame pipeline. Frames larger than maxSize on either
// edge are shrunk before embedding.
func NewPipeline(embedder FaceEmbedder, matcher *facematch.Matcher, tracker *attendance.Tracker, maxSize int) *Pipeline {
	return &Pipeline{
		embedder: embedder,
		matcher:  matcher,
		tracker:  tracker,
		maxSize:  maxSize,
		now:      time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// WithMetrics enables Prometheus metrics for the pipeline.
func (p *Pipeline) WithMetrics(m *Metrics) *Pipeline {
	p.metrics = m
	return p
}

// ProcessFrame decodes a base64 frame and processes it.
func (p *Pipeline) ProcessFrame(ctx context.Context, frame string) (*FrameResult, error) {
	data, err := fingerprint.DecodeFrame(frame)
	if err != nil {
		p.metrics.frame(resultInvalid, 0)
		return nil, fmt.Errorf("%w: %w", ErrInvalidFrame, err)
	}
	return p.ProcessImage(ctx, data)
}

// ProcessImage recognizes every face in an encoded image. Each recognized
// student is marked as seen and then logged in; logging in an already
// logged-in student changes nothing.
func (p *Pipeline) ProcessImage(ctx context.Context, data []byte) (*FrameResult, error) {
	start := time.Now()

	img, err := fingerprint.PrepareImage(data, p.maxSize)
	if err != nil {
		p.metrics.frame(resultInvalid, time.Since(start))
		return nil, fmt.Errorf("%w: %w", ErrInvalidFrame, err)
	}

	resp, err := p.embedder.ComputeFaceEmbeddings(ctx, img.Data)
	if err != nil {
		p.metrics.frame(resultError, time.Since(start))
		return nil, fmt.Errorf("computing face embeddings: %w", err)
	}

	matches := p.matcher.MatchAll(resp.Embeddings())
	now := p.now()

	result := &FrameResult{
		FacesDetected: len(resp.Faces),
		Recognized:    make([]RecognizedFace, 0, len(matches)),
	}
	for _, m := range matches {
		p.tracker.MarkSeen(m.ID, now)
		loggedIn := p.tracker.MarkLogin(m.ID, m.DisplayName, now)

		result.Recognized = append(result.Recognized, RecognizedFace{
			StudentID: m.ID,
			Name:      m.DisplayName,
			Distance:  m.Distance,
			BBox:      facematch.RelativeBBox(resp.Faces[m.Query].BBox, img.Width, img.Height),
			LoggedIn:  loggedIn,
		})
	}

	p.metrics.frame(resultOK, time.Since(start))
	p.metrics.countFaces(len(resp.Faces), len(matches))
	if len(matches) > 0 {
		logger.Debug().Int("faces", len(resp.Faces)).Int("recognized", len(matches)).Msg("frame processed")
	}
	return result, nil
}
