// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// MockStudentStore is a mock implementation of database.StudentStore
type MockStudentStore struct {
	mu       sync.RWMutex
	students map[string]database.StoredStudent

	// Error injection
	GetError         error
	ListError        error
	CountError       error
	FindSimilarError error
	SaveError        error
	DeleteError      error
}

// NewMockStudentStore creates a new mock student store
func NewMockStudentStore() *MockStudentStore {
	return &MockStudentStore{
		students: make(map[string]database.StoredStudent),
	}
}

// GetStudent retrieves a student by id
func (m *MockStudentStore) GetStudent(ctx context.Context, studentID string) (*database.StoredStudent, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.students[studentID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// ListStudents returns all students ordered by id
func (m *MockStudentStore) ListStudents(ctx context.Context) ([]database.StoredStudent, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.StoredStudent, 0, len(m.students))
	for _, s := range m.students {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

// CountStudents returns the number of stored students
func (m *MockStudentStore) CountStudents(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.students), nil
}

// FindSimilarStudents returns the closest students by Euclidean distance
func (m *MockStudentStore) FindSimilarStudents(ctx context.Context, embedding []float32, limit int) ([]database.SimilarStudent, error) {
	if m.FindSimilarError != nil {
		return nil, m.FindSimilarError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []database.SimilarStudent
	for _, s := range m.students {
		if len(s.Embedding) != len(embedding) {
			continue
		}
		results = append(results, database.SimilarStudent{
			StoredStudent: s,
			Distance:      facematch.EuclideanDistance(s.Embedding, embedding),
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// SaveStudent inserts or replaces a student
func (m *MockStudentStore) SaveStudent(ctx context.Context, student database.StoredStudent) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if existing, ok := m.students[student.StudentID]; ok {
		student.CreatedAt = existing.CreatedAt
	} else {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	student.Embedding = slices.Clone(student.Embedding)
	m.students[student.StudentID] = student
	return nil
}

// DeleteStudent removes a student
func (m *MockStudentStore) DeleteStudent(ctx context.Context, studentID string) (bool, error) {
	if m.DeleteError != nil {
		return false, m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.students[studentID]
	delete(m.students, studentID)
	return ok, nil
}

// MockAttendanceLog is a mock implementation of database.AttendanceLog.
// It also implements attendance.EventRecorder.
type MockAttendanceLog struct {
	mu     sync.RWMutex
	events []database.AttendanceEvent

	// Error injection
	SaveError   error
	ListError   error
	DeleteError error
}

// NewMockAttendanceLog creates a new mock attendance log
func NewMockAttendanceLog() *MockAttendanceLog {
	return &MockAttendanceLog{}
}

// RecordEvent implements attendance.EventRecorder
func (m *MockAttendanceLog) RecordEvent(ctx context.Context, event attendance.Event) error {
	return m.SaveEvent(ctx, database.AttendanceEvent{
		ID:         event.ID,
		StudentID:  event.IdentityID,
		Name:       event.DisplayName,
		Kind:       string(event.Kind),
		OccurredAt: event.At,
	})
}

// SaveEvent appends an event, ignoring duplicate ids
func (m *MockAttendanceLog) SaveEvent(ctx context.Context, event database.AttendanceEvent) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ID == event.ID {
			return nil
		}
	}
	m.events = append(m.events, event)
	return nil
}

// ListEvents returns matching events newest first
func (m *MockAttendanceLog) ListEvents(ctx context.Context, filter database.EventFilter) ([]database.AttendanceEvent, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []database.AttendanceEvent
	for _, e := range m.events {
		if filter.StudentID != "" && e.StudentID != filter.StudentID {
			continue
		}
		if !filter.Since.IsZero() && e.OccurredAt.Before(filter.Since) {
			continue
		}
		if !filter.Until.IsZero() && !e.OccurredAt.Before(filter.Until) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	if limit := database.ClampLimit(filter.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteEventsBefore removes events older than cutoff
func (m *MockAttendanceLog) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.DeleteError != nil {
		return 0, m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.events[:0]
	var deleted int64
	for _, e := range m.events {
		if e.OccurredAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	m.events = kept
	return deleted, nil
}

// Events returns a copy of all stored events in insertion order
func (m *MockAttendanceLog) Events() []database.AttendanceEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.events)
}

// MockSessionStore is a mock implementation of database.SessionStore
type MockSessionStore struct {
	mu       sync.RWMutex
	sessions map[string]database.StoredSession

	// Error injection
	SaveError error
	GetError  error
}

// NewMockSessionStore creates a new mock session store
func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{
		sessions: make(map[string]database.StoredSession),
	}
}

// Save stores a session
func (m *MockSessionStore) Save(ctx context.Context, session database.StoredSession) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return nil
}

// Get returns a live session or nil
func (m *MockSessionStore) Get(ctx context.Context, sessionID string) (*database.StoredSession, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok || !time.Now().Before(s.ExpiresAt) {
		return nil, nil
	}
	return &s, nil
}

// Delete removes a session
func (m *MockSessionStore) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

// DeleteExpired removes expired sessions
func (m *MockSessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	now := time.Now()
	for id, s := range m.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(m.sessions, id)
			count++
		}
	}
	return count, nil
}

var (
	_ database.StudentStore    = (*MockStudentStore)(nil)
	_ database.AttendanceLog   = (*MockAttendanceLog)(nil)
	_ database.SessionStore    = (*MockSessionStore)(nil)
	_ attendance.EventRecorder = (*MockAttendanceLog)(nil)
)
