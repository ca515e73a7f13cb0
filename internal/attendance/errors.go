package attendance

import "errors"

var (
	// ErrClassroomNotFound means the classroom reference could not be
	// resolved. No ledger writes happen for the call that hit it.
	ErrClassroomNotFound = errors.New("classroom not found")

	// ErrStudentNotFound means the student reference could not be
	// resolved.
	ErrStudentNotFound = errors.New("student not found")

	// ErrUnknownReportMode means the requested report shape does not
	// exist.
	ErrUnknownReportMode = errors.New("unknown report mode")
)
