// Package gallery manages the on-disk identity gallery: one directory per
// enrolled identity holding that person's reference face images. The
// recognition pipeline only ever needs two things from it - the structural
// reference-path -> identity mapping and the pre-search validation report.
package gallery

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// acceptedExtensions are the reference image formats the gallery accepts.
var acceptedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".bmp":  {},
}

// IsAcceptedImage reports whether a filename has an accepted image extension.
func IsAcceptedImage(name string) bool {
	_, ok := acceptedExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// IdentityFromPath extracts the identity ID from a reference image path.
// The extraction is purely structural: the identity is the name of the
// directory holding the image. Paths with Windows separators are
// normalized first. When the image sits directly in the gallery root the
// filename prefix before the first underscore is used as a fallback
// (reference images are stored as <identity>_<n>.<ext>).
func IdentityFromPath(referencePath string) (string, bool) {
	normalized := strings.ReplaceAll(referencePath, `\`, "/")
	dir := strings.TrimSuffix(filepath.Dir(normalized), "/")

	if base := filepath.Base(dir); base != "." && base != "/" && base != "" {
		// The parent directory is the identity folder unless the path has
		// no directory component at all.
		if dir != "." {
			return base, true
		}
	}

	filename := filepath.Base(normalized)
	if idx := strings.Index(filename, "_"); idx > 0 {
		return filename[:idx], true
	}
	return "", false
}

// Store manages reference images on disk. All mutations take a single
// store-wide lock: the embedding search may cache a gallery index keyed by
// modification time, so a mutation must never interleave with a search or
// another mutation.
type Store struct {
	root string
	mu   sync.Mutex
}

// NewStore creates a gallery store rooted at the given directory,
// creating it if necessary.
func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("gallery root is required")
	}
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("create gallery root: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the gallery root directory.
func (s *Store) Root() string {
	return s.root
}

// identityDir returns the directory holding an identity's reference images.
func (s *Store) identityDir(identityID string) string {
	return filepath.Join(s.root, identityID)
}

// AddImages copies reference images into an identity's gallery directory,
// named <identity>_<n>.<ext> continuing after any existing images.
// Returns the destination paths of the copied images.
func (s *Store) AddImages(identityID string, sourcePaths []string) ([]string, error) {
	if identityID == "" {
		return nil, fmt.Errorf("identity ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.identityDir(identityID)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create identity directory: %w", err)
	}

	next, err := nextImageIndex(dir)
	if err != nil {
		return nil, err
	}

	var added []string
	for _, src := range sourcePaths {
		if !IsAcceptedImage(src) {
			return added, fmt.Errorf("unsupported image format: %s", filepath.Base(src))
		}
		dest := filepath.Join(dir, fmt.Sprintf("%s_%d%s", identityID, next, strings.ToLower(filepath.Ext(src))))
		if err := copyFile(src, dest); err != nil {
			return added, fmt.Errorf("copy %s: %w", filepath.Base(src), err)
		}
		added = append(added, dest)
		next++
	}
	return added, nil
}

// ImagePaths lists an identity's reference images in sorted order.
// A missing identity directory yields an empty list, not an error.
func (s *Store) ImagePaths(identityID string) ([]string, error) {
	entries, err := os.ReadDir(s.identityDir(identityID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read identity directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !IsAcceptedImage(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(s.identityDir(identityID), e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// RemoveIdentity deletes an identity's gallery directory and everything in it.
func (s *Store) RemoveIdentity(identityID string) error {
	if identityID == "" || strings.ContainsAny(identityID, `/\`) {
		return fmt.Errorf("invalid identity ID %q", identityID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.identityDir(identityID)); err != nil {
		return fmt.Errorf("remove identity directory: %w", err)
	}
	return nil
}

// nextImageIndex finds the next free sequential image index in a directory
// by counting existing accepted images.
func nextImageIndex(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read identity directory: %w", err)
	}
	count := 0
	for _, e := range entries {
		if !e.IsDir() && IsAcceptedImage(e.Name()) {
			count++
		}
	}
	return count, nil
}

// copyFile copies src to dest, truncating dest if it exists.
func copyFile(src, dest string) error {
	in, err := os.Open(src) //nolint:gosec // source path comes from the operator
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest) //nolint:gosec // dest is built from a validated identity ID
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
