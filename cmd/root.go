package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Mark attendance by recognizing faces from a webcam",
	Long: `Face Attendance watches a webcam, recognizes people against a folder of
reference photos and records the first time each person is seen in a CSV ledger.
New people can be registered from the browser UI or the command line.`,
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
