package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <image1> <image2>",
	Short: "Compare two face images under the active model",
	Args:  cobra.ExactArgs(2),
	RunE:  runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	b, err := newBackend()
	if err != nil {
		return err
	}

	first, err := os.ReadFile(args[0]) //nolint:gosec // operator-provided path
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	second, err := os.ReadFile(args[1]) //nolint:gosec // operator-provided path
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[1], err)
	}

	result, err := b.service.Verify(cmd.Context(), first, second)
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	if result.Detail != "" {
		fmt.Printf("Could not compare: %s\n", result.Detail)
		return nil
	}

	if result.IsMatch {
		fmt.Println("Same person")
	} else {
		fmt.Println("Different person")
	}
	fmt.Printf("  Distance:   %.4f (threshold %.2f)\n", result.Distance, result.Threshold)
	fmt.Printf("  Confidence: %.4f\n", result.Confidence)
	fmt.Printf("  Model:      %s\n", result.Model)
	return nil
}
