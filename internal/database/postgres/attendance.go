package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// AttendanceRepository stores session transitions in PostgreSQL.
// It also serves as the tracker's event recorder.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

var _ attendance.EventRecorder = (*AttendanceRepository)(nil)

// RecordEvent implements attendance.EventRecorder.
func (r *AttendanceRepository) RecordEvent(ctx context.Context, event attendance.Event) error {
	return r.SaveEvent(ctx, database.AttendanceEvent{
		ID:         event.ID,
		StudentID:  event.IdentityID,
		Name:       event.DisplayName,
		Kind:       string(event.Kind),
		OccurredAt: event.At,
	})
}

// SaveEvent appends an event. Saving the same event id twice is a no-op.
func (r *AttendanceRepository) SaveEvent(ctx context.Context, event database.AttendanceEvent) error {
	query := `
		INSERT INTO attendance_events (id, student_id, name, kind, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query, event.ID, event.StudentID, event.Name, event.Kind, event.OccurredAt)
	if err != nil {
		return fmt.Errorf("save attendance event: %w", err)
	}
	return nil
}

// ListEvents returns events newest first.
func (r *AttendanceRepository) ListEvents(ctx context.Context, filter database.EventFilter) ([]database.AttendanceEvent, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		conditions = append(conditions, fmt.Sprintf("occurred_at >= $%d", len(args)))
	}
	if !filter.Until.IsZero() {
		args = append(args, filter.Until)
		conditions = append(conditions, fmt.Sprintf("occurred_at < $%d", len(args)))
	}

	query := "SELECT id, student_id, name, kind, occurred_at FROM attendance_events"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, database.ClampLimit(filter.Limit))
	query += fmt.Sprintf(" ORDER BY occurred_at DESC, id LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attendance events: %w", err)
	}
	defer rows.Close()

	var events []database.AttendanceEvent
	for rows.Next() {
		var e database.AttendanceEvent
		if err := rows.Scan(&e.ID, &e.StudentID, &e.Name, &e.Kind, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan attendance event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance events: %w", err)
	}
	return events, nil
}

// DeleteEventsBefore removes events older than cutoff and returns the count deleted.
func (r *AttendanceRepository) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, "DELETE FROM attendance_events WHERE occurred_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete attendance events: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return count, nil
}
