package handlers

import (
	"context"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
)

// StreamMessage is one server-sent event: Name is the SSE event type.
type StreamMessage struct {
	Name string
	Data any
}

// EventBroadcaster fans session transitions and snapshots out to stream
// listeners. It implements attendance.EventRecorder.
type EventBroadcaster struct {
	listeners []chan StreamMessage
	mu        sync.RWMutex
}

// NewEventBroadcaster creates a broadcaster without listeners.
func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{}
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan StreamMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan StreamMessage, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan StreamMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// Listeners returns the number of connected listeners.
func (b *EventBroadcaster) Listeners() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// RecordEvent sends a transition to all listeners as an event named after its kind.
func (b *EventBroadcaster) RecordEvent(ctx context.Context, event attendance.Event) error {
	b.publish(StreamMessage{Name: string(event.Kind), Data: event})
	return nil
}

// SendSnapshot replaces the session list of every listener.
func (b *EventBroadcaster) SendSnapshot(sessions []attendance.Session) {
	b.publish(StreamMessage{Name: "snapshot", Data: sessions})
}

// publish never blocks: slow listeners miss messages instead of stalling the tracker.
func (b *EventBroadcaster) publish(msg StreamMessage) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- msg:
		default:
			// Listener buffer full, skip.
		}
	}
}

var _ attendance.EventRecorder = (*EventBroadcaster)(nil)
