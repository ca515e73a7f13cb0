package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/facemark/facemark/internal/database"
)

// AttendanceRepository is the PostgreSQL-backed attendance ledger.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// UpsertPresence creates or overwrites the fact for the compound key
// in a single statement. ON CONFLICT makes the write atomic per key;
// concurrent writers serialize on the row and the last one wins.
func (r *AttendanceRepository) UpsertPresence(ctx context.Context, classroomID, studentID, day string, present bool, at time.Time) error {
	query := `
		INSERT INTO attendance_facts (classroom_id, student_id, day, present, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (classroom_id, student_id, day) DO UPDATE SET
			present = EXCLUDED.present,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.pool.Exec(ctx, query, classroomID, studentID, day, present, at.UTC())
	if err != nil {
		return fmt.Errorf("upsert attendance fact: %w", err)
	}
	return nil
}

// Get returns the fact for the key, or nil if never evaluated.
func (r *AttendanceRepository) Get(ctx context.Context, classroomID, studentID, day string) (*database.AttendanceFact, error) {
	query := `
		SELECT classroom_id, student_id, day, present, updated_at
		FROM attendance_facts
		WHERE classroom_id = $1 AND student_id = $2 AND day = $3
	`

	f, err := scanFact(r.pool.QueryRow(ctx, query, classroomID, studentID, day))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get attendance fact: %w", err)
	}
	return f, nil
}

// ListForDay returns all facts for a classroom and day.
func (r *AttendanceRepository) ListForDay(ctx context.Context, classroomID, day string) ([]database.AttendanceFact, error) {
	query := `
		SELECT classroom_id, student_id, day, present, updated_at
		FROM attendance_facts
		WHERE classroom_id = $1 AND day = $2
		ORDER BY student_id
	`

	rows, err := r.pool.Query(ctx, query, classroomID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facts []database.AttendanceFact
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendance fact: %w", err)
		}
		facts = append(facts, *f)
	}
	return facts, rows.Err()
}

// CountPresent counts present facts for the student in the classroom.
func (r *AttendanceRepository) CountPresent(ctx context.Context, classroomID, studentID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM attendance_facts
		WHERE classroom_id = $1 AND student_id = $2 AND present
	`, classroomID, studentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count present facts: %w", err)
	}
	return count, nil
}

// CountDays counts distinct days with any fact for the classroom.
func (r *AttendanceRepository) CountDays(ctx context.Context, classroomID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT day) FROM attendance_facts
		WHERE classroom_id = $1
	`, classroomID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count session days: %w", err)
	}
	return count, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanFact(s scanner) (*database.AttendanceFact, error) {
	var f database.AttendanceFact
	var day time.Time
	if err := s.Scan(&f.ClassroomID, &f.StudentID, &day, &f.Present, &f.UpdatedAt); err != nil {
		return nil, err
	}
	f.Day = day.Format(database.DayLayout)
	return &f, nil
}
