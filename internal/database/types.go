// Package database defines the storage contracts consumed by the
// attendance engine, plus the shared stored types. Implementations
// live in the postgres and mock subpackages and are injected into
// components explicitly; there is no ambient global handle.
package database

import (
	"time"

	"github.com/facemark/facemark/internal/roster"
)

// DayLayout is the calendar-day key format for attendance facts.
// Days are always resolved in UTC.
const DayLayout = "2006-01-02"

// DayKey returns the ledger day key for a point in time.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// AttendanceFact is the ledger's atomic unit: at most one per
// (classroom, student, day). Re-running a session for the same day
// overwrites the fact; it is never deleted.
type AttendanceFact struct {
	ClassroomID string
	StudentID   string
	Day         string // YYYY-MM-DD, UTC
	Present     bool
	UpdatedAt   time.Time
}

// StoredStudent is a student account as persisted, including the
// credential hash that never leaves the storage/auth boundary.
type StoredStudent struct {
	roster.Student
	PasswordHash string
	CreatedAt    time.Time
}
