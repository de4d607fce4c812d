package database

import (
	"context"
	"errors"
	"sync"
)

// ErrNotInitialized is returned when no database backend has been registered.
var ErrNotInitialized = errors.New("PostgreSQL backend not initialized: DATABASE_URL is required")

var (
	providerMu       sync.RWMutex
	postgresStudents func() StudentStore
	postgresEvents   func() AttendanceLog
	postgresSessions func() SessionStore
)

// RegisterPostgresBackend registers PostgreSQL repository constructors.
// This is called by the postgres package to avoid import cycles.
func RegisterPostgresBackend(
	students func() StudentStore,
	events func() AttendanceLog,
	sessions func() SessionStore,
) {
	providerMu.Lock()
	defer providerMu.Unlock()
	postgresStudents = students
	postgresEvents = events
	postgresSessions = sessions
}

// ResetBackend forgets the registered backend.
func ResetBackend() {
	RegisterPostgresBackend(nil, nil, nil)
}

// IsInitialized returns whether the PostgreSQL backend has been initialized.
func IsInitialized() bool {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return postgresStudents != nil
}

// GetStudentStore returns a StudentStore from the PostgreSQL backend
func GetStudentStore(ctx context.Context) (StudentStore, error) {
	providerMu.RLock()
	defer providerMu.RUnlock()
	if postgresStudents == nil {
		return nil, ErrNotInitialized
	}
	return postgresStudents(), nil
}

// GetAttendanceLog returns an AttendanceLog from the PostgreSQL backend
func GetAttendanceLog(ctx context.Context) (AttendanceLog, error) {
	providerMu.RLock()
	defer providerMu.RUnlock()
	if postgresEvents == nil {
		return nil, ErrNotInitialized
	}
	return postgresEvents(), nil
}

// GetSessionStore returns a SessionStore from the PostgreSQL backend
func GetSessionStore(ctx context.Context) (SessionStore, error) {
	providerMu.RLock()
	defer providerMu.RUnlock()
	if postgresSessions == nil {
		return nil, ErrNotInitialized
	}
	return postgresSessions(), nil
}
