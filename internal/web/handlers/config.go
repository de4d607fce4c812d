package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse is the public part of the server configuration
type ConfigResponse struct {
	Tolerance            float64 `json:"tolerance"`
	IdleTimeoutSeconds   int     `json:"idle_timeout_seconds"`
	SweepIntervalSeconds int     `json:"sweep_interval_seconds"`
	FrameMaxSize         int     `json:"frame_max_size"`
	AdminEnabled         bool    `json:"admin_enabled"`
	HistoryEnabled       bool    `json:"history_enabled"`
}

// Get returns the configuration the kiosk page needs
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ConfigResponse{
		Tolerance:            h.config.Attendance.Tolerance,
		IdleTimeoutSeconds:   int(h.config.Attendance.IdleTimeout.Seconds()),
		SweepIntervalSeconds: int(h.config.Attendance.SweepInterval.Seconds()),
		FrameMaxSize:         h.config.Embedding.FrameMaxSize,
		AdminEnabled:         h.config.Admin.Enabled(),
		HistoryEnabled:       database.IsInitialized(),
	})
}
