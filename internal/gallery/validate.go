package gallery

import (
	"fmt"
	"os"
	"sort"
)

// Report is the result of a gallery validation pass.
type Report struct {
	// HasRecognizable is true when at least one identity directory
	// contains at least one accepted reference image.
	HasRecognizable bool
	// Unrecognizable lists identity IDs whose directory exists but holds
	// no accepted image, sorted for stable output.
	Unrecognizable []string
	// IdentityCount is the number of identity directories inspected.
	IdentityCount int
}

// Validate inspects the gallery without modifying it and reports which
// identities could never be produced by a search. Callers must refuse to
// run a recognition attempt when HasRecognizable is false.
func (s *Store) Validate() (Report, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return Report{}, fmt.Errorf("read gallery root: %w", err)
	}

	var report Report
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		report.IdentityCount++

		images, err := s.ImagePaths(e.Name())
		if err != nil {
			return Report{}, err
		}
		if len(images) == 0 {
			report.Unrecognizable = append(report.Unrecognizable, e.Name())
			continue
		}
		report.HasRecognizable = true
	}

	sort.Strings(report.Unrecognizable)
	return report, nil
}
