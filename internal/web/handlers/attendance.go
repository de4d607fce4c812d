package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// AttendanceHandler exposes the live session table and the persisted history.
type AttendanceHandler struct {
	tracker     *attendance.Tracker
	events      database.AttendanceLog
	broadcaster *EventBroadcaster
	now         func() time.Time
}

// NewAttendanceHandler creates a new attendance handler. events may be nil
// when no database is configured, broadcaster when nothing streams.
func NewAttendanceHandler(tracker *attendance.Tracker, events database.AttendanceLog, broadcaster *EventBroadcaster) *AttendanceHandler {
	return &AttendanceHandler{
		tracker:     tracker,
		events:      events,
		broadcaster: broadcaster,
		now:         time.Now,
	}
}

// AttendanceResponse lists all known sessions.
type AttendanceResponse struct {
	Sessions []attendance.Session `json:"sessions"`
	LoggedIn int                  `json:"logged_in"`
	Total    int                  `json:"total"`
}

// List returns every session, sorted by student id.
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions := h.tracker.Snapshot()
	loggedIn := 0
	for _, s := range sessions {
		if s.LoggedIn() {
			loggedIn++
		}
	}
	respondJSON(w, http.StatusOK, AttendanceResponse{
		Sessions: sessions,
		LoggedIn: loggedIn,
		Total:    len(sessions),
	})
}

// Get returns the session of one student.
func (h *AttendanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, ok := h.tracker.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// Logout logs a student out explicitly.
func (h *AttendanceHandler) Logout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	loggedOut := h.tracker.Logout(id, h.now())
	if loggedOut {
		logger.Info().Str("student", sanitizeForLog(id)).Msg("admin logged out student")
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"logged_out": loggedOut,
	})
}

// Reset clears every session and pushes the emptied list to stream listeners.
func (h *AttendanceHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.tracker.Reset()
	if h.broadcaster != nil {
		h.broadcaster.SendSnapshot(h.tracker.Snapshot())
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HistoryEvent is one persisted session transition.
type HistoryEvent struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"student_id"`
	Name       string    `json:"name"`
	Kind       string    `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
}

// History returns persisted transitions, newest first.
func (h *AttendanceHandler) History(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		respondError(w, http.StatusServiceUnavailable, "attendance history requires a database")
		return
	}

	limit, ok := queryLimit(r, constants.DefaultHistoryLimit)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	filter := database.EventFilter{
		StudentID: r.URL.Query().Get("student_id"),
		Limit:     limit,
	}
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid since, expected RFC 3339")
			return
		}
		filter.Since = since
	}

	events, err := h.events.ListEvents(r.Context(), filter)
	if err != nil {
		logger.Err(err).Msg("failed to list attendance events")
		respondError(w, http.StatusInternalServerError, "failed to list attendance history")
		return
	}

	out := make([]HistoryEvent, 0, len(events))
	for _, e := range events {
		out = append(out, HistoryEvent{
			ID:         e.ID.String(),
			StudentID:  e.StudentID,
			Name:       e.Name,
			Kind:       e.Kind,
			OccurredAt: e.OccurredAt,
		})
	}
	respondJSON(w, http.StatusOK, out)
}
