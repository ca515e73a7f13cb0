package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/facemark/facemark/internal/database"
)

// StudentRepository persists student accounts and their enrolled
// face embeddings (pgvector column, one row per pose).
type StudentRepository struct {
	pool *Pool
}

// NewStudentRepository creates a new student repository.
func NewStudentRepository(pool *Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

// Create stores a new student account together with any enrolled
// embeddings, in one transaction.
func (r *StudentRepository) Create(ctx context.Context, s *database.StoredStudent) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO students (id, name, usn, email, password_hash, enrolled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, s.ID, s.Name, s.USN, s.Email, s.PasswordHash, nullableTime(s.Face.EnrolledAt))
	if err != nil {
		return fmt.Errorf("insert student: %w", err)
	}

	if err := insertEmbeddings(ctx, tx, s.ID, s.Face.Embeddings); err != nil {
		return err
	}

	return tx.Commit()
}

// Get returns the student by ID with embeddings, or nil if unknown.
func (r *StudentRepository) Get(ctx context.Context, id string) (*database.StoredStudent, error) {
	return r.getBy(ctx, "id = $1", id)
}

// GetByEmail returns the student by email, or nil if unknown.
func (r *StudentRepository) GetByEmail(ctx context.Context, email string) (*database.StoredStudent, error) {
	return r.getBy(ctx, "email = $1", email)
}

func (r *StudentRepository) getBy(ctx context.Context, where string, arg any) (*database.StoredStudent, error) {
	query := `
		SELECT id, name, usn, email, password_hash, enrolled_at, created_at
		FROM students
		WHERE ` + where

	var s database.StoredStudent
	var enrolledAt sql.NullTime
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&s.ID, &s.Name, &s.USN, &s.Email, &s.PasswordHash, &enrolledAt, &s.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	if enrolledAt.Valid {
		s.Face.EnrolledAt = enrolledAt.Time
	}

	embeddings, err := r.loadEmbeddings(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	s.Face.Embeddings = embeddings
	return &s, nil
}

// ReplaceEmbeddings swaps the student's enrolled sequence wholesale.
// The delete and inserts share one transaction so readers never see a
// partially replaced sequence.
func (r *StudentRepository) ReplaceEmbeddings(ctx context.Context, studentID string, embeddings [][]float64) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM enrolled_faces WHERE student_id = $1", studentID); err != nil {
		return fmt.Errorf("delete enrolled faces: %w", err)
	}

	if err := insertEmbeddings(ctx, tx, studentID, embeddings); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "UPDATE students SET enrolled_at = NOW() WHERE id = $1", studentID); err != nil {
		return fmt.Errorf("update enrollment time: %w", err)
	}

	return tx.Commit()
}

func insertEmbeddings(ctx context.Context, tx *sql.Tx, studentID string, embeddings [][]float64) error {
	for i, emb := range embeddings {
		vec := pgvector.NewVector(toFloat32(emb))
		_, err := tx.ExecContext(ctx, `
			INSERT INTO enrolled_faces (student_id, face_index, embedding, created_at)
			VALUES ($1, $2, $3, NOW())
		`, studentID, i, vec)
		if err != nil {
			return fmt.Errorf("insert enrolled face %d: %w", i, err)
		}
	}
	return nil
}

func (r *StudentRepository) loadEmbeddings(ctx context.Context, studentID string) ([][]float64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT embedding FROM enrolled_faces
		WHERE student_id = $1
		ORDER BY face_index
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var embeddings [][]float64
	for rows.Next() {
		var vec pgvector.Vector
		if err := rows.Scan(&vec); err != nil {
			return nil, fmt.Errorf("scan enrolled face: %w", err)
		}
		embeddings = append(embeddings, toFloat64(vec.Slice()))
	}
	return embeddings, rows.Err()
}

func nullableTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
