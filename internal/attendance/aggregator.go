package attendance

import (
	"context"
	"fmt"
	"math"
)

// StudentSummary is one roster member's aggregate standing in a
// classroom.
type StudentSummary struct {
	StudentID  string `json:"student_id"`
	Name       string `json:"name"`
	USN        string `json:"usn"`
	Taken      int    `json:"sessions_taken"`
	Attended   int    `json:"sessions_attended"`
	Percentage int    `json:"percentage"`
	Eligible   bool   `json:"eligible"`
}

// ClassSummary is the aggregate view of a whole classroom.
type ClassSummary struct {
	ClassroomID   string           `json:"classroom_id"`
	Taken         int              `json:"sessions_taken"`
	MinAttendance int              `json:"min_attendance"`
	Students      []StudentSummary `json:"students"`
}

// Summarize derives the classroom's aggregate standing from the
// ledger. Sessions taken is the number of distinct days with any
// fact for the classroom, shared by every roster member. With zero
// sessions everyone sits at 0% and below threshold.
func (s *Service) Summarize(ctx context.Context, classroomID string) (*ClassSummary, error) {
	classroom, err := s.resolveClassroom(ctx, classroomID)
	if err != nil {
		return nil, err
	}

	students, err := s.classrooms.ListStudents(ctx, classroomID)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}

	taken, err := s.facts.CountDays(ctx, classroomID)
	if err != nil {
		return nil, fmt.Errorf("count session days: %w", err)
	}

	summary := &ClassSummary{
		ClassroomID:   classroomID,
		Taken:         taken,
		MinAttendance: classroom.MinAttendance,
		Students:      make([]StudentSummary, 0, len(students)),
	}
	for i := range students {
		attended, err := s.facts.CountPresent(ctx, classroomID, students[i].ID)
		if err != nil {
			return nil, fmt.Errorf("count presence for student %s: %w", students[i].ID, err)
		}
		pct := Percentage(attended, taken)
		summary.Students = append(summary.Students, StudentSummary{
			StudentID:  students[i].ID,
			Name:       students[i].Name,
			USN:        students[i].USN,
			Taken:      taken,
			Attended:   attended,
			Percentage: pct,
			Eligible:   pct >= classroom.MinAttendance,
		})
	}
	return summary, nil
}

// SummarizeStudent returns a single roster member's standing.
func (s *Service) SummarizeStudent(ctx context.Context, classroomID, studentID string) (*StudentSummary, error) {
	summary, err := s.Summarize(ctx, classroomID)
	if err != nil {
		return nil, err
	}
	for i := range summary.Students {
		if summary.Students[i].StudentID == studentID {
			return &summary.Students[i], nil
		}
	}
	return nil, ErrStudentNotFound
}

// Percentage rounds attended/taken to the nearest whole percent.
// Zero sessions taken means 0%, never a division by zero.
func Percentage(attended, taken int) int {
	if taken == 0 {
		return 0
	}
	return int(math.Round(float64(attended) / float64(taken) * 100))
}
