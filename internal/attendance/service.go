// Package attendance implements the session engine: matching a
// photo's detected faces against a classroom roster, recording the
// outcome as per-day ledger facts, and aggregating those facts into
// percentages, eligibility and report rows.
package attendance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/facemark/facemark/internal/database"
	"github.com/facemark/facemark/internal/roster"
)

// SessionResult is the outcome of one evaluated classroom photo. It
// is returned to the caller and never persisted; the ledger facts are
// the durable record.
type SessionResult struct {
	Present []string `json:"present"`
	Count   int      `json:"count"`
}

// TodayEntry is one roster member's status for the current day. At
// is the timestamp of the day's fact; nil means the student was
// never evaluated today, which is distinct from evaluated-and-absent.
type TodayEntry struct {
	StudentID string     `json:"student_id"`
	Name      string     `json:"name"`
	USN       string     `json:"usn"`
	Status    string     `json:"status"` // "present" or "absent"
	At        *time.Time `json:"at,omitempty"`
}

const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
)

// Service wires the matcher to the stores. All dependencies are
// injected; the service holds no ambient state.
type Service struct {
	classrooms database.ClassroomStore
	facts      database.FactStore
	matcher    *roster.Matcher
	now        func() time.Time
}

// NewService creates the attendance service.
func NewService(classrooms database.ClassroomStore, facts database.FactStore, matcher *roster.Matcher) *Service {
	return &Service{
		classrooms: classrooms,
		facts:      facts,
		matcher:    matcher,
		now:        time.Now,
	}
}

// resolveClassroom loads a classroom or fails with ErrClassroomNotFound.
func (s *Service) resolveClassroom(ctx context.Context, classroomID string) (*roster.Classroom, error) {
	c, err := s.classrooms.Get(ctx, classroomID)
	if err != nil {
		return nil, fmt.Errorf("load classroom: %w", err)
	}
	if c == nil {
		return nil, ErrClassroomNotFound
	}
	return c, nil
}

// RunSession evaluates one photo's detected embeddings against the
// classroom roster and upserts a fact for every roster member.
// Unmatched members are written as absent so the day counts as a
// session for the whole class. Zero detected faces is a valid
// session that marks everyone absent.
//
// Upserts for different students are key-disjoint and run
// concurrently; each is atomic in the store. On store failure the
// session returns an error, but facts already written stay written.
// A re-run upserts the same keys, so partial success is safe.
func (s *Service) RunSession(ctx context.Context, classroomID string, detected [][]float64) (*SessionResult, error) {
	_, err := s.resolveClassroom(ctx, classroomID)
	if err != nil {
		return nil, err
	}

	students, err := s.classrooms.ListStudents(ctx, classroomID)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}

	present := s.matcher.Match(detected, students)
	presentSet := make(map[string]bool, len(present))
	for _, id := range present {
		presentSet[id] = true
	}

	at := s.now().UTC()
	day := database.DayKey(at)

	var wg sync.WaitGroup
	errCh := make(chan error, len(students))
	for i := range students {
		wg.Add(1)
		go func(studentID string) {
			defer wg.Done()
			if err := s.facts.UpsertPresence(ctx, classroomID, studentID, day, presentSet[studentID], at); err != nil {
				errCh <- fmt.Errorf("record presence for student %s: %w", studentID, err)
			}
		}(students[i].ID)
	}
	wg.Wait()
	close(errCh)

	if err := <-errCh; err != nil {
		return nil, err
	}

	if present == nil {
		present = []string{}
	}
	return &SessionResult{Present: present, Count: len(present)}, nil
}

// TodaySummary returns every roster member's status for the current
// day. A member with no fact is absent; that is the default, not an
// error.
func (s *Service) TodaySummary(ctx context.Context, classroomID string) ([]TodayEntry, error) {
	_, err := s.resolveClassroom(ctx, classroomID)
	if err != nil {
		return nil, err
	}

	students, err := s.classrooms.ListStudents(ctx, classroomID)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}

	day := database.DayKey(s.now())
	facts, err := s.facts.ListForDay(ctx, classroomID, day)
	if err != nil {
		return nil, fmt.Errorf("load facts for day: %w", err)
	}

	byStudent := make(map[string]database.AttendanceFact, len(facts))
	for _, f := range facts {
		byStudent[f.StudentID] = f
	}

	entries := make([]TodayEntry, 0, len(students))
	for i := range students {
		entry := TodayEntry{
			StudentID: students[i].ID,
			Name:      students[i].Name,
			USN:       students[i].USN,
			Status:    StatusAbsent,
		}
		if f, ok := byStudent[students[i].ID]; ok {
			at := f.UpdatedAt
			entry.At = &at
			if f.Present {
				entry.Status = StatusPresent
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
