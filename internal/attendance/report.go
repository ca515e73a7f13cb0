package attendance

import (
	"context"
	"strconv"
)

// Report modes supported by ReportRows.
const (
	ReportModeFull  = "full"
	ReportModeToday = "today"
)

// Report is a rectangular projection of the ledger, ready for CSV
// or table rendering. Rows follow the stable roster order.
type Report struct {
	Header []string
	Rows   [][]string
}

// timeLayout12h renders fact timestamps for humans, e.g. "09:05 AM".
const timeLayout12h = "03:04 PM"

// ReportRows projects the ledger into rows for the requested mode.
// Mode "full" yields cumulative standing per student; mode "today"
// yields the current day's status per student with a "-" placeholder
// for students with no fact for the day.
func (s *Service) ReportRows(ctx context.Context, classroomID, mode string) (*Report, error) {
	switch mode {
	case ReportModeFull:
		return s.fullReport(ctx, classroomID)
	case ReportModeToday:
		return s.todayReport(ctx, classroomID)
	default:
		return nil, ErrUnknownReportMode
	}
}

func (s *Service) fullReport(ctx context.Context, classroomID string) (*Report, error) {
	summary, err := s.Summarize(ctx, classroomID)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Header: []string{"Name", "USN", "Sessions Taken", "Sessions Attended", "Percentage", "Eligible"},
		Rows:   make([][]string, 0, len(summary.Students)),
	}
	for _, st := range summary.Students {
		eligible := "No"
		if st.Eligible {
			eligible = "Yes"
		}
		report.Rows = append(report.Rows, []string{
			st.Name,
			st.USN,
			strconv.Itoa(st.Taken),
			strconv.Itoa(st.Attended),
			strconv.Itoa(st.Percentage),
			eligible,
		})
	}
	return report, nil
}

func (s *Service) todayReport(ctx context.Context, classroomID string) (*Report, error) {
	entries, err := s.TodaySummary(ctx, classroomID)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Header: []string{"Name", "USN", "Status", "Time"},
		Rows:   make([][]string, 0, len(entries)),
	}
	for _, e := range entries {
		at := "-"
		if e.At != nil {
			at = e.At.UTC().Format(timeLayout12h)
		}
		report.Rows = append(report.Rows, []string{e.Name, e.USN, e.Status, at})
	}
	return report, nil
}
