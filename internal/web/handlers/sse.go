package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/attendance"
)

// StreamHandler streams session transitions to the browser.
type StreamHandler struct {
	tracker     *attendance.Tracker
	broadcaster *EventBroadcaster
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(tracker *attendance.Tracker, broadcaster *EventBroadcaster) *StreamHandler {
	return &StreamHandler{
		tracker:     tracker,
		broadcaster: broadcaster,
	}
}

// Stream sends a "snapshot" event with all sessions, then one event per
// transition named after its kind, until the client disconnects. A later
// "snapshot" replaces the whole list, for example after a reset.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Subscribe before the snapshot so no transition falls between the two.
	eventCh := h.broadcaster.AddListener()
	defer h.broadcaster.RemoveListener(eventCh)

	sendSSEEvent(w, flusher, "snapshot", h.tracker.Snapshot())

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, msg.Name, msg.Data)
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}
