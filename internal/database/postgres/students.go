package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/pgvector/pgvector-go"
)

// StudentRepository mirrors the student gallery into PostgreSQL.
type StudentRepository struct {
	pool *Pool
}

// NewStudentRepository creates a new PostgreSQL student repository.
func NewStudentRepository(pool *Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

// GetStudent retrieves a student by id, returns nil if not found.
func (r *StudentRepository) GetStudent(ctx context.Context, studentID string) (*database.StoredStudent, error) {
	query := `
		SELECT student_id, name, embedding, created_at, updated_at
		FROM students
		WHERE student_id = $1
	`

	student, err := scanStudent(r.pool.QueryRow(ctx, query, studentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	return &student, nil
}

// ListStudents returns all students ordered by id.
func (r *StudentRepository) ListStudents(ctx context.Context) ([]database.StoredStudent, error) {
	query := `
		SELECT student_id, name, embedding, created_at, updated_at
		FROM students
		ORDER BY student_id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	var students []database.StoredStudent
	for rows.Next() {
		student, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, student)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return students, nil
}

// CountStudents returns the number of stored students.
func (r *StudentRepository) CountStudents(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM students").Scan(&count); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return count, nil
}

// FindSimilarStudents returns the students closest to embedding by L2 distance.
// Students whose embedding has a different dimension are skipped.
func (r *StudentRepository) FindSimilarStudents(
	ctx context.Context, embedding []float32, limit int,
) ([]database.SimilarStudent, error) {
	if len(embedding) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	query := `
		SELECT student_id, name, embedding, created_at, updated_at, embedding <-> $1 AS distance
		FROM students
		WHERE vector_dims(embedding) = $2
		ORDER BY embedding <-> $1
		LIMIT $3
	`

	vec := pgvector.NewVector(embedding)
	rows, err := r.pool.Query(ctx, query, vec, len(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("find similar students: %w", err)
	}
	defer rows.Close()

	var results []database.SimilarStudent
	for rows.Next() {
		var s database.SimilarStudent
		var stored pgvector.Vector
		if err := rows.Scan(&s.StudentID, &s.Name, &stored, &s.CreatedAt, &s.UpdatedAt, &s.Distance); err != nil {
			return nil, fmt.Errorf("scan similar student: %w", err)
		}
		s.Embedding = stored.Slice()
		results = append(results, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate similar students: %w", err)
	}
	return results, nil
}

// SaveStudent inserts or replaces a student.
func (r *StudentRepository) SaveStudent(ctx context.Context, student database.StoredStudent) error {
	if student.StudentID == "" {
		return errors.New("student id is required")
	}

	query := `
		INSERT INTO students (student_id, name, embedding, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (student_id) DO UPDATE SET
			name = EXCLUDED.name,
			embedding = EXCLUDED.embedding,
			updated_at = NOW()
	`

	if _, err := r.pool.Exec(ctx, query, student.StudentID, student.Name, pgvector.NewVector(student.Embedding)); err != nil {
		return fmt.Errorf("save student: %w", err)
	}
	return nil
}

// DeleteStudent removes a student, returns false if it did not exist.
func (r *StudentRepository) DeleteStudent(ctx context.Context, studentID string) (bool, error) {
	result, err := r.pool.Exec(ctx, "DELETE FROM students WHERE student_id = $1", studentID)
	if err != nil {
		return false, fmt.Errorf("delete student: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}
	return count > 0, nil
}

func scanStudent(scanner interface{ Scan(...any) error }) (database.StoredStudent, error) {
	var s database.StoredStudent
	var vec pgvector.Vector
	if err := scanner.Scan(&s.StudentID, &s.Name, &vec, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return database.StoredStudent{}, err
	}
	s.Embedding = vec.Slice()
	return s, nil
}
