package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/database"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <id> <image>...",
	Short: "Enroll a new identity with reference face images",
	Long: `Enroll a new identity. The images are copied into the gallery, their
face embeddings are computed with the configured model and stored for
recognition. Images where no face is detected are skipped; enrollment
fails when not a single image is usable.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("name", "", "Full name of the person (required)")
	enrollCmd.Flags().String("group", "", "Group or class name")
	enrollCmd.Flags().String("email", "", "Contact email")
	_ = enrollCmd.MarkFlagRequired("name")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	b, err := newBackend()
	if err != nil {
		return err
	}

	identity := &database.Identity{
		ID:        args[0],
		FullName:  mustGetString(cmd, "name"),
		GroupName: mustGetString(cmd, "group"),
		Email:     mustGetString(cmd, "email"),
	}

	if err := b.service.Enroll(cmd.Context(), identity, args[1:]); err != nil {
		return fmt.Errorf("enrollment failed: %w", err)
	}

	fmt.Printf("Enrolled %s (%s) with %d reference image(s)\n", identity.ID, identity.FullName, len(args)-1)
	return nil
}
