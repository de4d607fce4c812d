// Package attendance tracks which students are currently present.
//
// Every student has at most one Session. A recognition logs the student in,
// every further recognition refreshes LastSeenTime, and a periodic sweep logs
// out sessions that have been idle for longer than the configured duration.
package attendance

import (
	"time"

	"github.com/google/uuid"
)

// State is the login state of a session.
type State string

// Session states. A student without a session is implicitly logged out.
const (
	StateLoggedOut State = "logged_out"
	StateLoggedIn  State = "logged_in"
)

// Session is the attendance record of one student.
// Zero timestamps mean the value has never been set.
type Session struct {
	IdentityID   string    `json:"student_id"`
	DisplayName  string    `json:"name"`
	State        State     `json:"state"`
	LoginTime    time.Time `json:"login_time,omitzero"`
	LastSeenTime time.Time `json:"last_seen_time,omitzero"`
	LogoutTime   time.Time `json:"logout_time,omitzero"`
}

// LoggedIn reports whether the session is in the logged-in state.
func (s Session) LoggedIn() bool {
	return s.State == StateLoggedIn
}

// EventKind identifies a session transition.
type EventKind string

// Transition kinds.
const (
	EventLogin   EventKind = "login"
	EventLogout  EventKind = "logout"  // explicit logout
	EventTimeout EventKind = "timeout" // logged out by the sweep
)

// Event describes a single session transition.
type Event struct {
	ID          uuid.UUID `json:"id"`
	IdentityID  string    `json:"student_id"`
	DisplayName string    `json:"name"`
	Kind        EventKind `json:"kind"`
	At          time.Time `json:"at"`
}

func newEvent(s *Session, kind EventKind, at time.Time) Event {
	return Event{
		ID:          uuid.New(),
		IdentityID:  s.IdentityID,
		DisplayName: s.DisplayName,
		Kind:        kind,
		At:          at,
	}
}
