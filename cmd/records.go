package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/ledger"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Show the attendance records",
	Long:  `Prints every row of the attendance ledger.`,
	RunE:  runRecords,
}

func init() {
	rootCmd.AddCommand(recordsCmd)

	recordsCmd.Flags().Bool("json", false, "Output as JSON")
}

func runRecords(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	jsonOutput := mustGetBool(cmd, "json")

	records, err := ledger.New(cfg.Storage.LedgerFile).Records()
	if err != nil && !errors.Is(err, ledger.ErrNoRecords) {
		return fmt.Errorf("reading attendance file: %w", err)
	}

	if jsonOutput {
		if records == nil {
			records = []ledger.Record{}
		}
		return outputJSON(records)
	}

	if len(records) == 0 {
		fmt.Println("No attendance records yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDATE\tTIME")
	fmt.Fprintln(w, "----\t----\t----")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, r.Date, r.Time)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d records\n", len(records))
	return nil
}
