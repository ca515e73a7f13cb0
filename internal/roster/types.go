// Package roster holds classroom and student domain types and the
// face matcher that decides which roster members appear in a photo.
package roster

import "time"

// EnrolledFace is a student's enrolled embedding sequence. The
// sequence is replaced wholesale on re-enrollment, never merged.
type EnrolledFace struct {
	Embeddings [][]float64
	EnrolledAt time.Time
}

// Student is a roster member. The matching engine treats students as
// read-only input.
type Student struct {
	ID    string
	Name  string
	USN   string
	Email string
	Face  EnrolledFace
}

// Enrolled reports whether the student has at least one usable
// embedding. Students without one can never be matched.
func (s *Student) Enrolled() bool {
	return len(s.Face.Embeddings) > 0
}

// Classroom groups students under a teacher with an attendance
// threshold. Membership grows via join and never shrinks.
type Classroom struct {
	ID            string
	Name          string
	Subject       string
	Code          string // join code handed out by the teacher
	OwnerID       string
	MinAttendance int // minimum attendance percentage, 0-100
	CreatedAt     time.Time
}
