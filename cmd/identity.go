package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/database"
)

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Manage enrolled identities",
}

var identityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled identities",
	RunE:  runIdentityList,
}

var identityShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one identity with its reference images",
	Args:  cobra.ExactArgs(1),
	RunE:  runIdentityShow,
}

var identityUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update an identity's name, group or email",
	Args:  cobra.ExactArgs(1),
	RunE:  runIdentityUpdate,
}

var identityRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove an identity with its reference faces and gallery images",
	Args:  cobra.ExactArgs(1),
	RunE:  runIdentityRemove,
}

var identityAddImagesCmd = &cobra.Command{
	Use:   "add-images <id> <image>...",
	Short: "Register additional reference images for an enrolled identity",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runIdentityAddImages,
}

func init() {
	rootCmd.AddCommand(identityCmd)
	identityCmd.AddCommand(identityListCmd)
	identityCmd.AddCommand(identityShowCmd)
	identityCmd.AddCommand(identityUpdateCmd)
	identityCmd.AddCommand(identityRemoveCmd)
	identityCmd.AddCommand(identityAddImagesCmd)

	identityListCmd.Flags().String("name", "", "Filter by full name (diacritics-insensitive)")

	identityUpdateCmd.Flags().String("name", "", "New full name")
	identityUpdateCmd.Flags().String("group", "", "New group name")
	identityUpdateCmd.Flags().String("email", "", "New email")
}

func runIdentityList(cmd *cobra.Command, args []string) error {
	b, err := newBackend()
	if err != nil {
		return err
	}

	var identities []database.Identity
	if name := mustGetString(cmd, "name"); name != "" {
		identities, err = b.identities.SearchByName(cmd.Context(), name)
	} else {
		identities, err = b.identities.List(cmd.Context())
	}
	if err != nil {
		return fmt.Errorf("failed to list identities: %w", err)
	}

	if len(identities) == 0 {
		fmt.Println("No identities enrolled")
		return nil
	}

	fmt.Printf("%-12s %-28s %-12s %s\n", "ID", "NAME", "GROUP", "EMAIL")
	for _, i := range identities {
		fmt.Printf("%-12s %-28s %-12s %s\n", i.ID, i.FullName, i.GroupName, i.Email)
	}
	fmt.Printf("\n%d identit(ies)\n", len(identities))
	return nil
}

func runIdentityShow(cmd *cobra.Command, args []string) error {
	b, err := newBackend()
	if err != nil {
		return err
	}

	identity, err := b.identities.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("ID:      %s\n", identity.ID)
	fmt.Printf("Name:    %s\n", identity.FullName)
	if identity.GroupName != "" {
		fmt.Printf("Group:   %s\n", identity.GroupName)
	}
	if identity.Email != "" {
		fmt.Printf("Email:   %s\n", identity.Email)
	}
	fmt.Printf("Created: %s\n", identity.CreatedAt.Format("2006-01-02 15:04"))

	paths, err := b.gallery.ImagePaths(identity.ID)
	if err != nil {
		return fmt.Errorf("failed to read gallery: %w", err)
	}
	fmt.Printf("\nReference images (%d):\n", len(paths))
	for _, p := range paths {
		fmt.Printf("  %s\n", p)
	}

	faces, err := b.faces.GetByIdentity(cmd.Context(), identity.ID, b.cfg.Recognizer.Model)
	if err != nil {
		return fmt.Errorf("failed to load reference faces: %w", err)
	}
	fmt.Printf("\nStored embeddings for model %s (%d):\n", b.cfg.Recognizer.Model, len(faces))
	for _, face := range faces {
		fmt.Printf("  %s (dim %d)\n", face.ImagePath, face.Dim)
	}
	return nil
}

func runIdentityUpdate(cmd *cobra.Command, args []string) error {
	b, err := newBackend()
	if err != nil {
		return err
	}

	identity, err := b.identities.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if name := mustGetString(cmd, "name"); name != "" {
		identity.FullName = name
	}
	if group := mustGetString(cmd, "group"); group != "" {
		identity.GroupName = group
	}
	if email := mustGetString(cmd, "email"); email != "" {
		identity.Email = email
	}

	if err := b.identities.Update(cmd.Context(), identity); err != nil {
		return fmt.Errorf("failed to update identity: %w", err)
	}
	fmt.Printf("Updated %s\n", identity.ID)
	return nil
}

func runIdentityRemove(cmd *cobra.Command, args []string) error {
	b, err := newBackend()
	if err != nil {
		return err
	}

	if err := b.service.RemoveIdentity(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to remove identity: %w", err)
	}
	fmt.Printf("Removed %s with its reference faces and gallery images\n", args[0])
	return nil
}

func runIdentityAddImages(cmd *cobra.Command, args []string) error {
	b, err := newBackend()
	if err != nil {
		return err
	}

	if err := b.service.AddReferenceImages(cmd.Context(), args[0], args[1:]); err != nil {
		return fmt.Errorf("failed to register images: %w", err)
	}
	fmt.Printf("Registered %d reference image(s) for %s\n", len(args)-1, args[0])
	return nil
}
