package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

var historyCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "Print an identity's attendance history, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().Int("limit", constants.DefaultHistoryLimit, "Maximum number of records (0 = all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	b, err := newBackend()
	if err != nil {
		return err
	}

	records, err := b.service.History(cmd.Context(), args[0], mustGetInt(cmd, "limit"))
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	if len(records) == 0 {
		fmt.Printf("No attendance records for %s\n", args[0])
		return nil
	}

	fmt.Printf("%-12s %-10s %-8s %s\n", "DATE", "TIME", "STATUS", "NOTES")
	for _, r := range records {
		fmt.Printf("%-12s %-10s %-8s %s\n",
			r.SessionDate.Format(constants.DateFormat), r.CheckInTime.Format("15:04:05"), r.Status, r.Notes)
	}
	fmt.Printf("\n%d record(s)\n", len(records))
	return nil
}
