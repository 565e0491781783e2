package fingerprint

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/kozaktomas/face-attendance/internal/gallery"
)

// DuplicatePair is one near-duplicate finding inside an identity directory.
// Kept is the image that would stay, Duplicate the redundant one; the first
// image in directory order wins.
type DuplicatePair struct {
	IdentityID string
	Kept       string
	Duplicate  string
	PHashDist  int
}

// ScanGallery hashes every reference image under the gallery root and
// returns the near-duplicate pairs per identity. Images are only compared
// within their own identity directory, near-identical faces of different
// people are expected, not a defect.
func ScanGallery(root string) ([]DuplicatePair, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read gallery root: %w", err)
	}

	var pairs []DuplicatePair
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		found, err := scanIdentity(root, entry.Name())
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, found...)
	}
	return pairs, nil
}

// scanIdentity compares all images of one identity pairwise.
func scanIdentity(root, identityID string) ([]DuplicatePair, error) {
	dir := filepath.Join(root, identityID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read identity directory %s: %w", identityID, err)
	}

	type hashed struct {
		path   string
		hashes *Hashes
	}
	var images []hashed
	for _, entry := range entries {
		if entry.IsDir() || !gallery.IsAcceptedImage(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path) //nolint:gosec // path is inside the gallery
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		hashes, err := Compute(data)
		if err != nil {
			// Undecodable images are the validator's business, not ours.
			continue
		}
		images = append(images, hashed{path: path, hashes: hashes})
	}
	sort.Slice(images, func(i, j int) bool { return images[i].path < images[j].path })

	var pairs []DuplicatePair
	dropped := make(map[string]bool)
	for i := 0; i < len(images); i++ {
		if dropped[images[i].path] {
			continue
		}
		for j := i + 1; j < len(images); j++ {
			if dropped[images[j].path] {
				continue
			}
			if images[i].hashes.Duplicate(images[j].hashes) {
				dropped[images[j].path] = true
				pairs = append(pairs, DuplicatePair{
					IdentityID: identityID,
					Kept:       images[i].path,
					Duplicate:  images[j].path,
					PHashDist:  HammingDistance(images[i].hashes.PHashBits, images[j].hashes.PHashBits),
				})
			}
		}
	}
	return pairs, nil
}

// RemoveDuplicates deletes the redundant image of every pair and returns
// how many files were removed.
func RemoveDuplicates(pairs []DuplicatePair) (int, error) {
	removed := 0
	for _, p := range pairs {
		if err := os.Remove(p.Duplicate); err != nil {
			return removed, fmt.Errorf("remove %s: %w", p.Duplicate, err)
		}
		removed++
	}
	return removed, nil
}
