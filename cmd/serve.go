package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/facemark/facemark/internal/attendance"
	"github.com/facemark/facemark/internal/config"
	"github.com/facemark/facemark/internal/database/postgres"
	"github.com/facemark/facemark/internal/embedding"
	"github.com/facemark/facemark/internal/roster"
	"github.com/facemark/facemark/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance web server",
	Long: `Start the Facemark web server.
The server exposes the signup, enrollment, classroom and attendance
API used by the web client. It needs a PostgreSQL database with the
pgvector extension and a running face embedding service.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}

	fmt.Printf("Connecting to PostgreSQL database...\n")
	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	students := postgres.NewStudentRepository(pool)
	classrooms := postgres.NewClassroomRepository(pool)
	ledger := postgres.NewAttendanceRepository(pool)

	matcher := roster.NewMatcher(cfg.Matching.Tolerance, cfg.Matching.IndexCutoff)
	service := attendance.NewService(classrooms, ledger, matcher)
	extractor := embedding.NewExtractorClient(cfg.Extractor.URL)

	server := web.NewServer(cfg, students, classrooms, service, extractor)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Facemark API on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
