package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/facemark/facemark/internal/roster"
)

// ClassroomRepository persists classrooms and roster membership.
type ClassroomRepository struct {
	pool *Pool
}

// NewClassroomRepository creates a new classroom repository.
func NewClassroomRepository(pool *Pool) *ClassroomRepository {
	return &ClassroomRepository{pool: pool}
}

// Create stores a classroom.
func (r *ClassroomRepository) Create(ctx context.Context, c *roster.Classroom) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO classrooms (id, name, subject, code, owner_id, min_attendance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, c.ID, c.Name, c.Subject, c.Code, c.OwnerID, c.MinAttendance)
	if err != nil {
		return fmt.Errorf("insert classroom: %w", err)
	}
	return nil
}

// Get returns the classroom by ID, or nil if unknown.
func (r *ClassroomRepository) Get(ctx context.Context, id string) (*roster.Classroom, error) {
	return r.getBy(ctx, "id = $1", id)
}

// GetByCode returns the classroom with the given join code, or nil.
func (r *ClassroomRepository) GetByCode(ctx context.Context, code string) (*roster.Classroom, error) {
	return r.getBy(ctx, "code = $1", code)
}

func (r *ClassroomRepository) getBy(ctx context.Context, where string, arg any) (*roster.Classroom, error) {
	query := `
		SELECT id, name, subject, code, owner_id, min_attendance, created_at
		FROM classrooms
		WHERE ` + where

	var c roster.Classroom
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&c.ID, &c.Name, &c.Subject, &c.Code, &c.OwnerID, &c.MinAttendance, &c.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get classroom: %w", err)
	}
	return &c, nil
}

// AddStudent adds a student to the roster. Adding twice is a no-op;
// membership never shrinks through this repository.
func (r *ClassroomRepository) AddStudent(ctx context.Context, classroomID, studentID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO classroom_students (classroom_id, student_id, joined_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (classroom_id, student_id) DO NOTHING
	`, classroomID, studentID)
	if err != nil {
		return fmt.Errorf("add student to classroom: %w", err)
	}
	return nil
}

// ListStudents returns the roster with enrolled embeddings in stable
// order (ascending USN, then name).
func (r *ClassroomRepository) ListStudents(ctx context.Context, classroomID string) ([]roster.Student, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.name, s.usn, s.email
		FROM students s
		JOIN classroom_students cs ON cs.student_id = s.id
		WHERE cs.classroom_id = $1
		ORDER BY s.usn, s.name
	`, classroomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []roster.Student
	for rows.Next() {
		var s roster.Student
		if err := rows.Scan(&s.ID, &s.Name, &s.USN, &s.Email); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	embeddings, err := r.loadRosterEmbeddings(ctx, classroomID)
	if err != nil {
		return nil, err
	}
	for i := range students {
		students[i].Face.Embeddings = embeddings[students[i].ID]
	}
	return students, nil
}

// loadRosterEmbeddings fetches all enrolled embeddings for a
// classroom in one query, keyed by student ID.
func (r *ClassroomRepository) loadRosterEmbeddings(ctx context.Context, classroomID string) (map[string][][]float64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ef.student_id, ef.embedding
		FROM enrolled_faces ef
		JOIN classroom_students cs ON cs.student_id = ef.student_id
		WHERE cs.classroom_id = $1
		ORDER BY ef.student_id, ef.face_index
	`, classroomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][][]float64)
	for rows.Next() {
		var studentID string
		var vec pgvector.Vector
		if err := rows.Scan(&studentID, &vec); err != nil {
			return nil, fmt.Errorf("scan enrolled face: %w", err)
		}
		out[studentID] = append(out[studentID], toFloat64(vec.Slice()))
	}
	return out, rows.Err()
}

// ListOwnedBy returns classrooms created by the given user.
func (r *ClassroomRepository) ListOwnedBy(ctx context.Context, ownerID string) ([]roster.Classroom, error) {
	return r.list(ctx, `
		SELECT id, name, subject, code, owner_id, min_attendance, created_at
		FROM classrooms
		WHERE owner_id = $1
		ORDER BY created_at
	`, ownerID)
}

// ListJoinedBy returns classrooms whose roster contains the student.
func (r *ClassroomRepository) ListJoinedBy(ctx context.Context, studentID string) ([]roster.Classroom, error) {
	return r.list(ctx, `
		SELECT c.id, c.name, c.subject, c.code, c.owner_id, c.min_attendance, c.created_at
		FROM classrooms c
		JOIN classroom_students cs ON cs.classroom_id = c.id
		WHERE cs.student_id = $1
		ORDER BY c.created_at
	`, studentID)
}

func (r *ClassroomRepository) list(ctx context.Context, query string, arg any) ([]roster.Classroom, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []roster.Classroom
	for rows.Next() {
		var c roster.Classroom
		if err := rows.Scan(&c.ID, &c.Name, &c.Subject, &c.Code, &c.OwnerID, &c.MinAttendance, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan classroom: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
