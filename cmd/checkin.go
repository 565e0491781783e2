package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var checkinCmd = &cobra.Command{
	Use:   "checkin <image>",
	Short: "Recognize a captured face image and record attendance",
	Long: `Recognize the face in a captured image against the enrolled gallery.
On a match, an attendance record for today is created unless the person
already checked in. A rejection prints the structured reason.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckin,
}

func init() {
	rootCmd.AddCommand(checkinCmd)

	checkinCmd.Flags().String("notes", "", "Optional note stored with the record")
}

func runCheckin(cmd *cobra.Command, args []string) error {
	b, err := newBackend()
	if err != nil {
		return err
	}
	b.enableHNSW(cmd.Context())

	imageData, err := os.ReadFile(args[0]) //nolint:gosec // operator-provided path
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	result, err := b.service.CheckIn(cmd.Context(), imageData, mustGetString(cmd, "notes"))
	if err != nil {
		return fmt.Errorf("check-in failed: %w", err)
	}

	outcome := result.Outcome
	if !outcome.IsMatch {
		fmt.Printf("No match (%s)\n", outcome.Reason)
		fmt.Printf("  %s\n", outcome.Detail)
		return nil
	}

	fmt.Printf("Matched %s (confidence %.2f, distance %.4f, model %s)\n",
		outcome.IdentityID, outcome.Confidence, outcome.Distance, outcome.Model)

	switch {
	case result.Duplicate:
		fmt.Println("Already checked in today - no new record created")
	case result.Record != nil:
		fmt.Printf("Recorded %s check-in at %s\n",
			result.Record.Status, result.Record.CheckInTime.Format("15:04:05"))
	}
	return nil
}
