package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// FrameProcessor recognizes students in a base64 encoded camera frame.
type FrameProcessor interface {
	ProcessFrame(ctx context.Context, frame string) (*recognition.FrameResult, error)
}

// FramesHandler handles camera frames posted by the kiosk page.
type FramesHandler struct {
	processor FrameProcessor
}

// NewFramesHandler creates a new frames handler
func NewFramesHandler(processor FrameProcessor) *FramesHandler {
	return &FramesHandler{processor: processor}
}

type frameRequest struct {
	Frame string `json:"frame"`
}

// FrameResponse is the result of a processed frame.
type FrameResponse struct {
	Success       bool                         `json:"success"`
	Recognized    []recognition.RecognizedFace `json:"recognized_faces"`
	FacesDetected int                          `json:"faces_detected"`
	Error         string                       `json:"error,omitempty"`
}

func respondFrameError(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusBadRequest, FrameResponse{Success: false, Error: message})
}

// Process handles POST /process-frame.
func (h *FramesHandler) Process(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxFrameBodySize)

	var req frameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondFrameError(w, "frame too large")
			return
		}
		respondFrameError(w, errInvalidRequestBody)
		return
	}
	if req.Frame == "" {
		respondFrameError(w, "no frame data provided")
		return
	}

	result, err := h.processor.ProcessFrame(r.Context(), req.Frame)
	if err != nil {
		if errors.Is(err, recognition.ErrInvalidFrame) {
			respondFrameError(w, "invalid frame")
			return
		}
		logger.Err(err).Msg("frame processing failed")
		respondFrameError(w, "face recognition failed")
		return
	}

	respondJSON(w, http.StatusOK, FrameResponse{
		Success:       true,
		Recognized:    result.Recognized,
		FacesDetected: result.FacesDetected,
	})
}
