package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List supported recognition models and their distance thresholds",
	Run:   runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) {
	cfg := config.Load()

	fmt.Printf("%-12s %-10s %s\n", "MODEL", "THRESHOLD", "ACTIVE")
	for _, m := range recognition.Models() {
		active := ""
		if string(m) == cfg.Recognizer.Model {
			active = "*"
		}
		fmt.Printf("%-12s %-10.2f %s\n", m, cfg.Threshold(string(m)), active)
	}
	fmt.Printf("\nConfidence floor: %.2f (MIN_CONFIDENCE)\n", cfg.Recognition.MinConfidence)
	fmt.Println("Thresholds are tuned per embedding space and never shared across models.")
}
