package database

import (
	"time"

	"github.com/google/uuid"
)

// StoredStudent is a registered student mirrored into the database.
type StoredStudent struct {
	StudentID string
	Name      string
	Embedding []float32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SimilarStudent is a student returned by a nearest-neighbour query.
type SimilarStudent struct {
	StoredStudent
	Distance float64
}

// AttendanceEvent is one persisted session transition.
type AttendanceEvent struct {
	ID         uuid.UUID
	StudentID  string
	Name       string
	Kind       string // login, logout or timeout
	OccurredAt time.Time
}

// EventFilter narrows an attendance history query. Zero values mean no filter.
type EventFilter struct {
	StudentID string
	Since     time.Time
	Until     time.Time
	Limit     int
}

// StoredSession is a persisted admin web session.
type StoredSession struct {
	ID        string
	CreatedAt time.Time
	ExpiresAt time.Time
}
