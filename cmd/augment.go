package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/augment"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/gallery"
)

var augmentCmd = &cobra.Command{
	Use:   "augment",
	Short: "Generate training variants of the gallery's reference images",
	Long: `Generate brightness, contrast, blur, noise, flip and rotation variants
of every reference image in the gallery. Variants simulate real capture
conditions and improve recognition robustness. Generated images carry an
aug_ prefix and are never augmented again. Re-run 'identity add-images'
or re-enroll to embed the new variants.`,
	RunE: runAugment,
}

func init() {
	rootCmd.AddCommand(augmentCmd)

	augmentCmd.Flags().Int("per-image", 5, "Number of variants to generate per original image (max 6)")
	augmentCmd.Flags().Int64("seed", 0, "Random seed for reproducible variants (0 = time-based)")
	augmentCmd.Flags().Bool("clean", false, "Remove previously generated variants instead of creating new ones")
}

func runAugment(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	store, err := gallery.NewStore(cfg.Gallery.Root)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "clean") {
		removed, err := augment.Clean(store.Root())
		if err != nil {
			return fmt.Errorf("clean failed: %w", err)
		}
		fmt.Printf("Removed %d generated variant(s)\n", removed)
		return nil
	}

	seed := mustGetInt64(cmd, "seed")
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	entries, err := os.ReadDir(store.Root())
	if err != nil {
		return fmt.Errorf("failed to read gallery: %w", err)
	}
	identityCount := 0
	for _, e := range entries {
		if e.IsDir() {
			identityCount++
		}
	}
	if identityCount == 0 {
		fmt.Println("Gallery is empty - nothing to augment")
		return nil
	}

	bar := progressbar.NewOptions(identityCount,
		progressbar.OptionSetDescription("Augmenting gallery"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("identities"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	stats, err := augment.New(seed).Run(store.Root(), mustGetInt(cmd, "per-image"), func(string) {
		_ = bar.Add(1)
	})
	if err != nil {
		return fmt.Errorf("augmentation failed: %w", err)
	}
	fmt.Println()

	fmt.Printf("Identities processed: %d\n", stats.IdentitiesProcessed)
	fmt.Printf("Original images:      %d\n", stats.OriginalImages)
	fmt.Printf("Variants created:     %d\n", stats.AugmentedImages)
	if len(stats.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(stats.Errors))
		for _, e := range stats.Errors {
			fmt.Printf("  %s\n", e)
		}
	}
	return nil
}
