package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/fingerprint"
	"github.com/kozaktomas/face-attendance/internal/gallery"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Inspect the reference image gallery",
}

var galleryValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that every identity directory has a usable reference image",
	RunE:  runGalleryValidate,
}

var galleryDedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Find near-duplicate reference images within each identity",
	Long: `Find reference images that are perceptual near-duplicates of another
image of the same identity. Duplicates waste embedding calls and skew
similarity search. Without --remove only a report is printed.`,
	RunE: runGalleryDedupe,
}

func init() {
	rootCmd.AddCommand(galleryCmd)
	galleryCmd.AddCommand(galleryValidateCmd)
	galleryCmd.AddCommand(galleryDedupeCmd)

	galleryDedupeCmd.Flags().Bool("remove", false, "Delete the redundant images")
}

func runGalleryValidate(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	store, err := gallery.NewStore(cfg.Gallery.Root)
	if err != nil {
		return err
	}

	report, err := store.Validate()
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Printf("Gallery: %s\n", store.Root())
	fmt.Printf("Identity directories: %d\n", report.IdentityCount)

	if !report.HasRecognizable {
		fmt.Println("\nWARNING: no identity has a usable reference image - recognition cannot work")
	}
	if len(report.Unrecognizable) > 0 {
		fmt.Printf("\nIdentities without a usable image (%d):\n", len(report.Unrecognizable))
		for _, id := range report.Unrecognizable {
			fmt.Printf("  %s\n", id)
		}
		return nil
	}
	fmt.Println("All identity directories have usable reference images")
	return nil
}

func runGalleryDedupe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	store, err := gallery.NewStore(cfg.Gallery.Root)
	if err != nil {
		return err
	}

	pairs, err := fingerprint.ScanGallery(store.Root())
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(pairs) == 0 {
		fmt.Println("No near-duplicate reference images found")
		return nil
	}

	fmt.Printf("Near-duplicate reference images (%d):\n", len(pairs))
	for _, p := range pairs {
		fmt.Printf("  %s: %s duplicates %s (pHash distance %d)\n",
			p.IdentityID, p.Duplicate, p.Kept, p.PHashDist)
	}

	if !mustGetBool(cmd, "remove") {
		fmt.Println("\nRe-run with --remove to delete the redundant images")
		return nil
	}

	removed, err := fingerprint.RemoveDuplicates(pairs)
	if err != nil {
		return fmt.Errorf("removal failed: %w", err)
	}
	fmt.Printf("\nRemoved %d duplicate image(s)\n", removed)
	fmt.Println("Note: stored embeddings of removed images remain until the identity is re-enrolled")
	return nil
}
