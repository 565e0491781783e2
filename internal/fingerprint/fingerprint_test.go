package fingerprint

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
)

func TestHammingDistance(t *testing.T) {
	tests := []struct {
		name     string
		hash1    uint64
		hash2    uint64
		expected int
	}{
		{"identical", 0x0, 0x0, 0},
		{"completely different", 0xFFFFFFFFFFFFFFFF, 0x0, 64},
		{"one bit different", 0x1, 0x0, 1},
		{"four bits different", 0xF, 0x0, 4},
		{"half different", 0xFFFFFFFF00000000, 0x0, 32},
		{"alternating", 0xAAAAAAAAAAAAAAAA, 0x5555555555555555, 64},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := HammingDistance(tc.hash1, tc.hash2)
			if result != tc.expected {
				t.Errorf("HammingDistance(%x, %x) = %d; want %d",
					tc.hash1, tc.hash2, result, tc.expected)
			}
		})
	}
}

func TestSimilar(t *testing.T) {
	tests := []struct {
		name      string
		hash1     uint64
		hash2     uint64
		threshold int
		expected  bool
	}{
		{"identical with threshold 0", 0x0, 0x0, 0, true},
		{"9 bits different, threshold 10", 0x0, 0x1FF, 10, true},
		{"10 bits different, threshold 10", 0x0, 0x3FF, 10, true},
		{"11 bits different, threshold 10", 0x0, 0x7FF, 10, false},
		{"completely different, threshold 10", 0xFFFFFFFFFFFFFFFF, 0x0, 10, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := Similar(tc.hash1, tc.hash2, tc.threshold)
			if result != tc.expected {
				t.Errorf("Similar(%x, %x, %d) = %v; want %v",
					tc.hash1, tc.hash2, tc.threshold, result, tc.expected)
			}
		})
	}
}

func TestCompute(t *testing.T) {
	imgData := encodeJPEG(t, createGradientImage(100, 100))

	result, err := Compute(imgData)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if len(result.PHash) != 16 {
		t.Errorf("PHash should be 16 hex characters, got %d: %s", len(result.PHash), result.PHash)
	}
	if len(result.DHash) != 16 {
		t.Errorf("DHash should be 16 hex characters, got %d: %s", len(result.DHash), result.DHash)
	}
	if result.PHashBits == 0 && result.DHashBits == 0 {
		t.Error("gradient image should produce non-zero hashes")
	}
}

func TestComputeConsistency(t *testing.T) {
	imgData := encodeJPEG(t, createGradientImage(100, 100))

	result1, err := Compute(imgData)
	if err != nil {
		t.Fatalf("first Compute failed: %v", err)
	}
	result2, err := Compute(imgData)
	if err != nil {
		t.Fatalf("second Compute failed: %v", err)
	}

	if result1.PHash != result2.PHash || result1.DHash != result2.DHash {
		t.Errorf("hashes must be deterministic: %+v vs %+v", result1, result2)
	}
}

func TestComputeInvalidImage(t *testing.T) {
	if _, err := Compute([]byte("not an image")); err == nil {
		t.Error("Compute should fail for invalid image data")
	}
}

func TestDuplicateSameImage(t *testing.T) {
	imgData := encodeJPEG(t, createGradientImage(100, 100))

	a, err := Compute(imgData)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	b, err := Compute(imgData)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if !a.Duplicate(b) {
		t.Error("identical images must hash as duplicates")
	}
}

func TestDuplicateDifferentImages(t *testing.T) {
	gradient, err := Compute(encodeJPEG(t, createGradientImage(100, 100)))
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	checker, err := Compute(encodeJPEG(t, createCheckerImage(100, 100)))
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if gradient.Duplicate(checker) {
		t.Error("structurally different images must not hash as duplicates")
	}
}

func TestScanGallery(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "S1")
	if err := os.MkdirAll(dir, 0750); err != nil {
		t.Fatalf("could not create identity dir: %v", err)
	}

	gradientData := encodeJPEG(t, createGradientImage(100, 100))
	checkerData := encodeJPEG(t, createCheckerImage(100, 100))

	// Two copies of the gradient plus one distinct image.
	writeFile(t, filepath.Join(dir, "S1_0.jpg"), gradientData)
	writeFile(t, filepath.Join(dir, "S1_1.jpg"), gradientData)
	writeFile(t, filepath.Join(dir, "S1_2.jpg"), checkerData)

	pairs, err := ScanGallery(root)
	if err != nil {
		t.Fatalf("ScanGallery failed: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("got %d duplicate pairs, want 1", len(pairs))
	}

	p := pairs[0]
	if p.IdentityID != "S1" {
		t.Errorf("IdentityID = %q, want S1", p.IdentityID)
	}
	if filepath.Base(p.Kept) != "S1_0.jpg" || filepath.Base(p.Duplicate) != "S1_1.jpg" {
		t.Errorf("wrong pair: kept %s, duplicate %s (first in directory order wins)",
			filepath.Base(p.Kept), filepath.Base(p.Duplicate))
	}
}

func TestScanGalleryIgnoresCrossIdentity(t *testing.T) {
	root := t.TempDir()
	gradientData := encodeJPEG(t, createGradientImage(100, 100))

	// The same image under two identities is not a duplicate finding.
	for _, id := range []string{"S1", "S2"} {
		dir := filepath.Join(root, id)
		if err := os.MkdirAll(dir, 0750); err != nil {
			t.Fatalf("could not create identity dir: %v", err)
		}
		writeFile(t, filepath.Join(dir, id+"_0.jpg"), gradientData)
	}

	pairs, err := ScanGallery(root)
	if err != nil {
		t.Fatalf("ScanGallery failed: %v", err)
	}
	if len(pairs) != 0 {
		t.Errorf("got %d pairs, want 0 (identities are scanned independently)", len(pairs))
	}
}

func TestRemoveDuplicates(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "S1")
	if err := os.MkdirAll(dir, 0750); err != nil {
		t.Fatalf("could not create identity dir: %v", err)
	}
	gradientData := encodeJPEG(t, createGradientImage(100, 100))
	writeFile(t, filepath.Join(dir, "S1_0.jpg"), gradientData)
	writeFile(t, filepath.Join(dir, "S1_1.jpg"), gradientData)

	pairs, err := ScanGallery(root)
	if err != nil {
		t.Fatalf("ScanGallery failed: %v", err)
	}

	removed, err := RemoveDuplicates(pairs)
	if err != nil {
		t.Fatalf("RemoveDuplicates failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed %d files, want 1", removed)
	}
	if _, err := os.Stat(filepath.Join(dir, "S1_0.jpg")); err != nil {
		t.Error("kept image must survive")
	}
	if _, err := os.Stat(filepath.Join(dir, "S1_1.jpg")); !os.IsNotExist(err) {
		t.Error("duplicate image must be gone")
	}
}

// Helper functions

func createGradientImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			gray := uint8((x + y) * 255 / (width + height))
			img.Set(x, y, color.RGBA{gray, gray, gray, 255})
		}
	}
	return img
}

func createCheckerImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			c := color.RGBA{255, 255, 255, 255}
			if (x/10+y/10)%2 == 0 {
				c = color.RGBA{0, 0, 0, 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("could not encode test image: %v", err)
	}
	return buf.Bytes()
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("could not write %s: %v", path, err)
	}
}
