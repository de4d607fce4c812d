package attendance

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger().Output(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: "15:04:05",
})

// recordTimeout bounds a single EventRecorder call.
const recordTimeout = 5 * time.Second

// EventRecorder persists session transitions. It is called after the tracker
// lock is released, in transition order; errors are logged and never affect
// the session state.
type EventRecorder interface {
	RecordEvent(ctx context.Context, event Event) error
}

// Tracker holds one Session per student. All methods are safe for concurrent use.
// A single mutex guards the whole map: critical sections are short map updates.
type Tracker struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	recorders []EventRecorder
	metrics   *Metrics

	// next is the dispatch ticket of the next transition. It is taken under mu.
	next     uint64
	dispatch dispatchQueue
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithRecorder adds a recorder that receives every transition. Recorders are
// called in the order they were added.
func WithRecorder(r EventRecorder) Option {
	return func(t *Tracker) {
		t.recorders = append(t.recorders, r)
	}
}

// WithMetrics enables Prometheus metrics for the tracker.
func WithMetrics(m *Metrics) Option {
	return func(t *Tracker) {
		t.metrics = m
	}
}

// NewTracker creates an empty tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.dispatch.turn = sync.NewCond(&t.dispatch.mu)
	t.metrics.bind(t)
	return t
}

// MarkSeen records that a student was seen at now. It never changes the state:
// an unknown student gets a logged-out record holding only LastSeenTime.
// While logged in, LastSeenTime never moves before LoginTime.
func (t *Tracker) MarkSeen(id string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[id]
	if !ok {
		s = &Session{IdentityID: id, State: StateLoggedOut}
		t.sessions[id] = s
	}
	if s.State == StateLoggedIn && now.Before(s.LoginTime) {
		now = s.LoginTime
	}
	s.LastSeenTime = now
}

// MarkLogin logs a student in at now. It is a no-op when the student is
// already logged in, so LoginTime keeps the time of the first recognition.
// Returns true if the call logged the student in.
func (t *Tracker) MarkLogin(id, name string, now time.Time) bool {
	t.mu.Lock()
	s, ok := t.sessions[id]
	if !ok {
		s = &Session{IdentityID: id, State: StateLoggedOut}
		t.sessions[id] = s
	}
	if s.State == StateLoggedIn {
		t.mu.Unlock()
		return false
	}

	s.DisplayName = name
	s.State = StateLoggedIn
	s.LoginTime = now
	s.LastSeenTime = now
	if !s.LogoutTime.Before(now) {
		// A logout at or after this login would break the state invariant.
		s.LogoutTime = time.Time{}
	}
	event := newEvent(s, EventLogin, now)
	ticket := t.ticket()
	t.mu.Unlock()

	logger.Info().Str("student", id).Str("name", name).Msg("student logged in")
	t.metrics.transition(EventLogin)
	t.dispatch.wait(ticket)
	defer t.dispatch.done()
	t.record(event)
	return true
}

// Logout logs a student out explicitly. Returns false if the student was not logged in.
func (t *Tracker) Logout(id string, now time.Time) bool {
	t.mu.Lock()
	s, ok := t.sessions[id]
	if !ok || s.State != StateLoggedIn {
		t.mu.Unlock()
		return false
	}
	if now.Before(s.LoginTime) {
		now = s.LoginTime
	}
	s.State = StateLoggedOut
	s.LogoutTime = now
	event := newEvent(s, EventLogout, now)
	ticket := t.ticket()
	t.mu.Unlock()

	logger.Info().Str("student", id).Msg("student logged out")
	t.metrics.transition(EventLogout)
	t.dispatch.wait(ticket)
	defer t.dispatch.done()
	t.record(event)
	return true
}

// SweepTimeouts logs out every logged-in session whose LastSeenTime is more
// than idle before now. A session that cannot be evaluated is reported in the
// returned error and left untouched; the sweep always processes every session.
// Returns the ids that were logged out, sorted.
func (t *Tracker) SweepTimeouts(now time.Time, idle time.Duration) ([]string, error) {
	var (
		loggedOut []string
		events    []Event
		errs      []error
	)

	t.mu.Lock()
	for id, s := range t.sessions {
		expired, err := sessionExpired(s, now, idle)
		if err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", id, err))
			continue
		}
		if !expired {
			continue
		}
		s.State = StateLoggedOut
		s.LogoutTime = now
		loggedOut = append(loggedOut, id)
		events = append(events, newEvent(s, EventTimeout, now))
	}
	var ticket uint64
	if len(events) > 0 {
		ticket = t.ticket()
	}
	t.mu.Unlock()

	if len(events) > 0 {
		t.dispatch.wait(ticket)
		defer t.dispatch.done()
	}
	for _, event := range events {
		logger.Info().Str("student", event.IdentityID).Dur("idle", idle).Msg("session timed out")
		t.metrics.transition(EventTimeout)
		if err := t.safeRecord(event); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", event.IdentityID, err))
		}
	}

	sort.Strings(loggedOut)
	err := errors.Join(errs...)
	t.metrics.sweep(err)
	return loggedOut, err
}

// ErrMissingLastSeen is reported for a logged-in session without LastSeenTime.
var ErrMissingLastSeen = errors.New("logged-in session has no last seen time")

func sessionExpired(s *Session, now time.Time, idle time.Duration) (bool, error) {
	if s.State != StateLoggedIn {
		return false, nil
	}
	if s.LastSeenTime.IsZero() {
		return false, ErrMissingLastSeen
	}
	return now.Sub(s.LastSeenTime) > idle, nil
}

// Get returns a copy of the session for a student.
func (t *Tracker) Get(id string) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Snapshot returns copies of all sessions sorted by student id.
func (t *Tracker) Snapshot() []Session {
	t.mu.Lock()
	out := make([]Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, *s)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].IdentityID < out[j].IdentityID
	})
	return out
}

// Counts returns the number of logged-in sessions and the total number of sessions.
func (t *Tracker) Counts() (loggedIn, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, s := range t.sessions {
		if s.State == StateLoggedIn {
			loggedIn++
		}
	}
	return loggedIn, len(t.sessions)
}

// Reset forgets all sessions without recording logouts.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.sessions = make(map[string]*Session)
	t.mu.Unlock()

	logger.Warn().Msg("all sessions cleared")
}

// ticket reserves the next dispatch slot. Must be called with t.mu held.
func (t *Tracker) ticket() uint64 {
	n := t.next
	t.next++
	return n
}

// dispatchQueue lets recorder calls run outside the tracker lock while still
// delivering events in the order the transitions happened.
type dispatchQueue struct {
	mu      sync.Mutex
	turn    *sync.Cond
	serving uint64
}

// wait blocks until it is the turn of ticket.
func (q *dispatchQueue) wait(ticket uint64) {
	q.mu.Lock()
	for q.serving != ticket {
		q.turn.Wait()
	}
	q.mu.Unlock()
}

// done hands the turn to the next ticket.
func (q *dispatchQueue) done() {
	q.mu.Lock()
	q.serving++
	q.mu.Unlock()
	q.turn.Broadcast()
}

// record forwards an event to the recorder and logs failures.
func (t *Tracker) record(event Event) {
	if err := t.safeRecord(event); err != nil {
		logger.Err(err).Str("student", event.IdentityID).Str("kind", string(event.Kind)).Msg("failed to record session event")
	}
}

// safeRecord calls every recorder, converting panics into errors.
// A failing recorder does not stop the others.
func (t *Tracker) safeRecord(event Event) error {
	var errs []error
	for _, r := range t.recorders {
		if err := callRecorder(r, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func callRecorder(r EventRecorder, event Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("recorder panic: %v", p)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := r.RecordEvent(ctx, event); err != nil {
		return fmt.Errorf("recording %s event: %w", event.Kind, err)
	}
	return nil
}
