package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "facemark",
	Short: "Face recognition attendance for classrooms",
	Long: `Facemark records classroom attendance from a single photo.
Detected faces are matched against the enrolled roster and the result
is written to an idempotent per-day ledger, so re-running a session
never duplicates records.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
