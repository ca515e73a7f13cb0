package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/facemark/facemark/internal/config"
	"github.com/facemark/facemark/internal/embedding"
)

var sessionCmd = &cobra.Command{
	Use:   "session <classroom-id> <photo>",
	Short: "Evaluate a classroom photo and record attendance",
	Long: `Evaluate one classroom photo against the enrolled roster.
Every roster member gets a ledger fact for today: present when one of
their enrolled poses matches a detected face, absent otherwise.
Re-running the command on the same day overwrites the day's facts
instead of duplicating them.`,
	Args: cobra.ExactArgs(2),
	RunE: runSession,
}

func init() {
	rootCmd.AddCommand(sessionCmd)
}

func runSession(cmd *cobra.Command, args []string) error {
	classroomID, photoPath := args[0], args[1]

	cfg := config.Load()
	service, pool, err := newAttendanceService(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	data, err := os.ReadFile(photoPath)
	if err != nil {
		return fmt.Errorf("reading photo: %w", err)
	}

	ctx := context.Background()
	extractor := embedding.NewExtractorClient(cfg.Extractor.URL)
	detected, err := extractor.ExtractEmbeddings(ctx, data)
	if err != nil {
		return fmt.Errorf("extracting faces: %w", err)
	}
	fmt.Printf("Detected %d face(s) in %s\n", len(detected), photoPath)

	result, err := service.RunSession(ctx, classroomID, detected)
	if err != nil {
		return fmt.Errorf("recording session: %w", err)
	}

	fmt.Printf("Marked %d student(s) present\n", result.Count)
	for _, id := range result.Present {
		fmt.Printf("  %s\n", id)
	}
	return nil
}
