package cmd

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/facemark/facemark/internal/attendance"
	"github.com/facemark/facemark/internal/config"
	"github.com/facemark/facemark/internal/database/postgres"
	"github.com/facemark/facemark/internal/roster"
)

var reportCmd = &cobra.Command{
	Use:   "report <classroom-id>",
	Short: "Export an attendance report as CSV",
	Long: `Export the attendance ledger of a classroom as CSV.
Mode "full" exports cumulative per-student standing (sessions taken,
attended, percentage, eligibility). Mode "today" exports the current
day's status per student.`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("mode", attendance.ReportModeFull, "Report mode: full or today")
	reportCmd.Flags().String("output", "", "Output file (defaults to stdout)")
	reportCmd.Flags().Bool("quiet", false, "Suppress the progress bar")
}

// newAttendanceService wires the storage layer and the session engine
// for CLI commands.
func newAttendanceService(cfg *config.Config) (*attendance.Service, *postgres.Pool, error) {
	if cfg.Database.URL == "" {
		return nil, nil, errors.New("DATABASE_URL environment variable is required")
	}
	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	classrooms := postgres.NewClassroomRepository(pool)
	ledger := postgres.NewAttendanceRepository(pool)
	matcher := roster.NewMatcher(cfg.Matching.Tolerance, cfg.Matching.IndexCutoff)
	return attendance.NewService(classrooms, ledger, matcher), pool, nil
}

func runReport(cmd *cobra.Command, args []string) error {
	classroomID := args[0]
	mode := mustGetString(cmd, "mode")
	output := mustGetString(cmd, "output")
	quiet := mustGetBool(cmd, "quiet")

	cfg := config.Load()
	service, pool, err := newAttendanceService(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	report, err := service.ReportRows(context.Background(), classroomID, mode)
	if err != nil {
		return fmt.Errorf("building report: %w", err)
	}

	var out io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	// Progress only makes sense when the CSV goes to a file.
	var bar *progressbar.ProgressBar
	if output != "" && !quiet {
		bar = progressbar.NewOptions(len(report.Rows),
			progressbar.OptionSetDescription("Writing report"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("rows"),
			progressbar.OptionShowElapsedTimeOnFinish(),
		)
	}

	writer := csv.NewWriter(out)
	if err := writer.Write(report.Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, row := range report.Rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flushing report: %w", err)
	}

	if output != "" {
		fmt.Printf("\nReport written to %s (%d rows)\n", output, len(report.Rows))
	}
	return nil
}
