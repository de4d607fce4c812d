package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// StatsHandler handles statistics endpoints
type StatsHandler struct {
	tracker *attendance.Tracker
	matcher *facematch.Matcher
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(tracker *attendance.Tracker, matcher *facematch.Matcher) *StatsHandler {
	return &StatsHandler{
		tracker: tracker,
		matcher: matcher,
	}
}

// StatsResponse represents the statistics response
type StatsResponse struct {
	Students         int  `json:"students"`
	Sessions         int  `json:"sessions"`
	LoggedIn         int  `json:"logged_in"`
	MirroredStudents *int `json:"mirrored_students,omitempty"`
}

// Get returns gallery and session counts. The mirror count is included when
// a database is configured.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	loggedIn, total := h.tracker.Counts()
	resp := StatsResponse{
		Students: h.matcher.Len(),
		Sessions: total,
		LoggedIn: loggedIn,
	}

	if database.IsInitialized() {
		store, err := database.GetStudentStore(r.Context())
		if err == nil {
			count, err := store.CountStudents(r.Context())
			if err != nil {
				logger.Err(err).Msg("failed to count mirrored students")
			} else {
				resp.MirroredStudents = &count
			}
		}
	}

	respondJSON(w, http.StatusOK, resp)
}
