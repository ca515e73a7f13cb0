// Package mock provides in-memory implementations of the database
// interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/facemark/facemark/internal/database"
	"github.com/facemark/facemark/internal/roster"
)

// FactStore is an in-memory implementation of database.FactStore.
type FactStore struct {
	mu    sync.RWMutex
	facts map[string]database.AttendanceFact // compound key -> fact

	// Error injection
	UpsertError error
	GetError    error
	ListError   error
	CountError  error
}

// NewFactStore creates an empty in-memory fact store.
func NewFactStore() *FactStore {
	return &FactStore{facts: make(map[string]database.AttendanceFact)}
}

func factKey(classroomID, studentID, day string) string {
	return classroomID + "|" + studentID + "|" + day
}

// UpsertPresence creates or overwrites the fact for the compound key.
func (s *FactStore) UpsertPresence(ctx context.Context, classroomID, studentID, day string, present bool, at time.Time) error {
	if s.UpsertError != nil {
		return s.UpsertError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facts[factKey(classroomID, studentID, day)] = database.AttendanceFact{
		ClassroomID: classroomID,
		StudentID:   studentID,
		Day:         day,
		Present:     present,
		UpdatedAt:   at,
	}
	return nil
}

// Get returns the fact for the key, or nil if never evaluated.
func (s *FactStore) Get(ctx context.Context, classroomID, studentID, day string) (*database.AttendanceFact, error) {
	if s.GetError != nil {
		return nil, s.GetError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.facts[factKey(classroomID, studentID, day)]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

// ListForDay returns all facts for a classroom and day.
func (s *FactStore) ListForDay(ctx context.Context, classroomID, day string) ([]database.AttendanceFact, error) {
	if s.ListError != nil {
		return nil, s.ListError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []database.AttendanceFact
	for _, f := range s.facts {
		if f.ClassroomID == classroomID && f.Day == day {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

// CountPresent counts present facts for the student in the classroom.
func (s *FactStore) CountPresent(ctx context.Context, classroomID, studentID string) (int, error) {
	if s.CountError != nil {
		return 0, s.CountError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, f := range s.facts {
		if f.ClassroomID == classroomID && f.StudentID == studentID && f.Present {
			count++
		}
	}
	return count, nil
}

// CountDays counts distinct days with any fact for the classroom.
func (s *FactStore) CountDays(ctx context.Context, classroomID string) (int, error) {
	if s.CountError != nil {
		return 0, s.CountError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	days := make(map[string]bool)
	for _, f := range s.facts {
		if f.ClassroomID == classroomID {
			days[f.Day] = true
		}
	}
	return len(days), nil
}

// StudentStore is an in-memory implementation of database.StudentStore.
type StudentStore struct {
	mu       sync.RWMutex
	students map[string]database.StoredStudent

	CreateError error
	GetError    error
}

// NewStudentStore creates an empty in-memory student store.
func NewStudentStore() *StudentStore {
	return &StudentStore{students: make(map[string]database.StoredStudent)}
}

// Create stores a new student account.
func (s *StudentStore) Create(ctx context.Context, st *database.StoredStudent) error {
	if s.CreateError != nil {
		return s.CreateError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students[st.ID] = *st
	return nil
}

// Get returns the student by ID, or nil if unknown.
func (s *StudentStore) Get(ctx context.Context, id string) (*database.StoredStudent, error) {
	if s.GetError != nil {
		return nil, s.GetError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.students[id]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

// GetByEmail returns the student by email, or nil if unknown.
func (s *StudentStore) GetByEmail(ctx context.Context, email string) (*database.StoredStudent, error) {
	if s.GetError != nil {
		return nil, s.GetError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.students {
		if st.Email == email {
			return &st, nil
		}
	}
	return nil, nil
}

// ReplaceEmbeddings swaps the student's enrolled sequence wholesale.
func (s *StudentStore) ReplaceEmbeddings(ctx context.Context, studentID string, embeddings [][]float64) error {
	if s.CreateError != nil {
		return s.CreateError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.students[studentID]
	if !ok {
		return nil
	}
	st.Face = roster.EnrolledFace{Embeddings: embeddings, EnrolledAt: time.Now().UTC()}
	s.students[studentID] = st
	return nil
}

// ClassroomStore is an in-memory implementation of database.ClassroomStore.
type ClassroomStore struct {
	mu         sync.RWMutex
	classrooms map[string]roster.Classroom
	members    map[string][]string // classroom ID -> student IDs in join order
	students   *StudentStore       // source of student records for ListStudents

	CreateError error
	GetError    error
	ListError   error
}

// NewClassroomStore creates an empty in-memory classroom store backed
// by the given student store.
func NewClassroomStore(students *StudentStore) *ClassroomStore {
	return &ClassroomStore{
		classrooms: make(map[string]roster.Classroom),
		members:    make(map[string][]string),
		students:   students,
	}
}

// Create stores a classroom.
func (s *ClassroomStore) Create(ctx context.Context, c *roster.Classroom) error {
	if s.CreateError != nil {
		return s.CreateError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classrooms[c.ID] = *c
	return nil
}

// Get returns the classroom by ID, or nil if unknown.
func (s *ClassroomStore) Get(ctx context.Context, id string) (*roster.Classroom, error) {
	if s.GetError != nil {
		return nil, s.GetError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.classrooms[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// GetByCode returns the classroom with the given join code, or nil.
func (s *ClassroomStore) GetByCode(ctx context.Context, code string) (*roster.Classroom, error) {
	if s.GetError != nil {
		return nil, s.GetError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.classrooms {
		if c.Code == code {
			return &c, nil
		}
	}
	return nil, nil
}

// AddStudent adds a student to the roster. Adding twice is a no-op.
func (s *ClassroomStore) AddStudent(ctx context.Context, classroomID, studentID string) error {
	if s.CreateError != nil {
		return s.CreateError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.members[classroomID] {
		if id == studentID {
			return nil
		}
	}
	s.members[classroomID] = append(s.members[classroomID], studentID)
	return nil
}

// ListStudents returns the roster in stable order (USN, then name).
func (s *ClassroomStore) ListStudents(ctx context.Context, classroomID string) ([]roster.Student, error) {
	if s.ListError != nil {
		return nil, s.ListError
	}
	s.mu.RLock()
	ids := append([]string(nil), s.members[classroomID]...)
	s.mu.RUnlock()

	var out []roster.Student
	for _, id := range ids {
		st, err := s.students.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if st != nil {
			out = append(out, st.Student)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].USN != out[j].USN {
			return out[i].USN < out[j].USN
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// ListOwnedBy returns classrooms created by the given user.
func (s *ClassroomStore) ListOwnedBy(ctx context.Context, ownerID string) ([]roster.Classroom, error) {
	if s.ListError != nil {
		return nil, s.ListError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []roster.Classroom
	for _, c := range s.classrooms {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListJoinedBy returns classrooms whose roster contains the student.
func (s *ClassroomStore) ListJoinedBy(ctx context.Context, studentID string) ([]roster.Classroom, error) {
	if s.ListError != nil {
		return nil, s.ListError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []roster.Classroom
	for id, members := range s.members {
		for _, m := range members {
			if m == studentID {
				if c, ok := s.classrooms[id]; ok {
					out = append(out, c)
				}
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
