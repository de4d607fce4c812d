package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/fingerprint"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// StudentsHandler manages the gallery of registered students.
type StudentsHandler struct {
	matcher   *facematch.Matcher
	registrar *recognition.Registrar
}

// NewStudentsHandler creates a new students handler
func NewStudentsHandler(matcher *facematch.Matcher, registrar *recognition.Registrar) *StudentsHandler {
	return &StudentsHandler{
		matcher:   matcher,
		registrar: registrar,
	}
}

// StudentResponse is a registered student without the face embedding.
type StudentResponse struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
}

// List returns the gallery in match order.
func (h *StudentsHandler) List(w http.ResponseWriter, r *http.Request) {
	identities := h.matcher.Identities()
	out := make([]StudentResponse, 0, len(identities))
	for _, id := range identities {
		out = append(out, StudentResponse{StudentID: id.ID, Name: id.DisplayName})
	}
	respondJSON(w, http.StatusOK, out)
}

// Register handles multipart student registration with a face photo.
func (h *StudentsHandler) Register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "image is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read image")
		return
	}

	reg, err := h.registrar.Register(r.Context(), r.FormValue("student_id"), r.FormValue("name"), data)
	switch {
	case err == nil:
	case errors.Is(err, recognition.ErrInvalidStudent):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, fingerprint.ErrInvalidImage):
		respondError(w, http.StatusBadRequest, "invalid image")
		return
	case errors.Is(err, fingerprint.ErrNoFace):
		respondError(w, http.StatusUnprocessableEntity, "no face detected in image")
		return
	default:
		logger.Err(err).Str("student", sanitizeForLog(r.FormValue("student_id"))).Msg("registration failed")
		respondError(w, http.StatusBadGateway, "failed to compute face embedding")
		return
	}

	status := http.StatusCreated
	if reg.Replaced {
		status = http.StatusOK
	}
	respondJSON(w, status, reg)
}

// Reload re-reads the gallery file from disk.
func (h *StudentsHandler) Reload(w http.ResponseWriter, r *http.Request) {
	n, err := h.registrar.Reload()
	if err != nil {
		logger.Err(err).Msg("gallery reload failed")
		respondError(w, http.StatusInternalServerError, "failed to reload students")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"students": n,
	})
}

// Delete removes a student from the gallery.
func (h *StudentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	removed, err := h.registrar.Remove(r.Context(), id)
	if err != nil {
		logger.Err(err).Str("student", sanitizeForLog(id)).Msg("failed to remove student")
		respondError(w, http.StatusInternalServerError, "failed to remove student")
		return
	}
	if !removed {
		respondError(w, http.StatusNotFound, "student not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Similar lists the registered students whose faces are closest to a student.
func (h *StudentsHandler) Similar(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(r, constants.DefaultSimilarLimit)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	id := chi.URLParam(r, "id")
	similar, found := h.registrar.Similar(id, limit)
	if !found {
		respondError(w, http.StatusNotFound, "student not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"student_id": id,
		"tolerance":  h.matcher.Tolerance(),
		"similar":    similar,
	})
}
