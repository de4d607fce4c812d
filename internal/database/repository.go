package database

import (
	"context"
	"time"
)

// StudentReader provides read-only access to the student mirror
type StudentReader interface {
	// GetStudent retrieves a student by id, returns nil if not found
	GetStudent(ctx context.Context, studentID string) (*StoredStudent, error)
	// ListStudents returns all students ordered by id
	ListStudents(ctx context.Context) ([]StoredStudent, error)
	// CountStudents returns the number of stored students
	CountStudents(ctx context.Context) (int, error)
	// FindSimilarStudents returns the students closest to embedding by Euclidean distance
	FindSimilarStudents(ctx context.Context, embedding []float32, limit int) ([]SimilarStudent, error)
}

// StudentWriter provides write access to the student mirror
type StudentWriter interface {
	// SaveStudent inserts or replaces a student
	SaveStudent(ctx context.Context, student StoredStudent) error
	// DeleteStudent removes a student, returns false if it did not exist
	DeleteStudent(ctx context.Context, studentID string) (bool, error)
}

// StudentStore combines read and write access to students
type StudentStore interface {
	StudentReader
	StudentWriter
}

// AttendanceLog stores session transitions
type AttendanceLog interface {
	// SaveEvent appends an event; saving the same event id twice is a no-op
	SaveEvent(ctx context.Context, event AttendanceEvent) error
	// ListEvents returns events newest first
	ListEvents(ctx context.Context, filter EventFilter) ([]AttendanceEvent, error)
	// DeleteEventsBefore removes events older than cutoff and returns the count
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SessionStore persists admin web sessions
type SessionStore interface {
	Save(ctx context.Context, session StoredSession) error
	// Get returns nil if the session does not exist or has expired
	Get(ctx context.Context, sessionID string) (*StoredSession, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}
