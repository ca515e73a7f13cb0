package database

import (
	"context"
	"time"

	"github.com/facemark/facemark/internal/roster"
)

// FactStore is the attendance ledger. Upserts must be atomic per
// (classroom, student, day) key under concurrent writers; the
// expected implementation is a single conflict-resolving write, not
// read-then-write. Lookups return nil (not an error) when no fact was
// ever recorded for the key.
type FactStore interface {
	UpsertPresence(ctx context.Context, classroomID, studentID, day string, present bool, at time.Time) error
	Get(ctx context.Context, classroomID, studentID, day string) (*AttendanceFact, error)
	ListForDay(ctx context.Context, classroomID, day string) ([]AttendanceFact, error)

	// CountPresent counts facts for the student with present=true.
	CountPresent(ctx context.Context, classroomID, studentID string) (int, error)
	// CountDays counts distinct days with any fact for the classroom,
	// which is the shared "total sessions" denominator.
	CountDays(ctx context.Context, classroomID string) (int, error)
}

// StudentStore manages student accounts and their enrolled
// embeddings. Lookups return nil when the student does not exist.
type StudentStore interface {
	Create(ctx context.Context, s *StoredStudent) error
	Get(ctx context.Context, id string) (*StoredStudent, error)
	GetByEmail(ctx context.Context, email string) (*StoredStudent, error)
	// ReplaceEmbeddings swaps the student's enrolled sequence
	// wholesale. Enrollment never merges.
	ReplaceEmbeddings(ctx context.Context, studentID string, embeddings [][]float64) error
}

// ClassroomStore manages classrooms and roster membership. Membership
// only grows; nothing here removes a student from a roster.
type ClassroomStore interface {
	Create(ctx context.Context, c *roster.Classroom) error
	Get(ctx context.Context, id string) (*roster.Classroom, error)
	GetByCode(ctx context.Context, code string) (*roster.Classroom, error)
	AddStudent(ctx context.Context, classroomID, studentID string) error
	// ListStudents returns the roster with enrolled embeddings in
	// stable order (ascending USN, then name).
	ListStudents(ctx context.Context, classroomID string) ([]roster.Student, error)
	ListOwnedBy(ctx context.Context, ownerID string) ([]roster.Classroom, error)
	ListJoinedBy(ctx context.Context, studentID string) ([]roster.Classroom, error)
}
