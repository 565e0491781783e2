package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

var reportCmd = &cobra.Command{
	Use:   "report [date]",
	Short: "Print the attendance report for a session date (default today)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	date := time.Now()
	if len(args) == 1 {
		parsed, err := time.Parse(constants.DateFormat, args[0])
		if err != nil {
			return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", args[0])
		}
		date = parsed
	}

	b, err := newBackend()
	if err != nil {
		return err
	}

	summary, err := b.service.Report(cmd.Context(), date)
	if err != nil {
		return fmt.Errorf("failed to load report: %w", err)
	}

	fmt.Printf("Attendance for %s\n\n", date.Format(constants.DateFormat))
	if len(summary.Records) == 0 {
		fmt.Println("No check-ins recorded")
	} else {
		fmt.Printf("%-10s %-12s %-28s %-8s %s\n", "TIME", "ID", "NAME", "STATUS", "CONFIDENCE")
		for _, r := range summary.Records {
			fmt.Printf("%-10s %-12s %-28s %-8s %.2f\n",
				r.CheckInTime.Format("15:04:05"), r.IdentityID, r.FullName, r.Status, r.Confidence)
		}
	}
	fmt.Printf("\n%d present, %d late, %d absent\n", summary.Present, summary.Late, summary.Absent)
	return nil
}
