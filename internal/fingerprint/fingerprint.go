// Package fingerprint computes perceptual hashes of reference images and
// finds near-duplicates inside an identity's gallery directory. Duplicate
// reference images waste embedding calls and skew similarity search, so the
// gallery tooling flags them before they pile up.
package fingerprint

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"sort"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// DuplicateThreshold is the maximum Hamming distance at which two reference
// images count as near-duplicates.
const DuplicateThreshold = 10

// Hashes contains the perceptual hashes of one image.
type Hashes struct {
	PHash string `json:"phash"` // 64-bit perceptual hash as hex string
	DHash string `json:"dhash"` // 64-bit difference hash as hex string

	// Raw values for comparison.
	PHashBits uint64 `json:"-"`
	DHashBits uint64 `json:"-"`
}

// Compute decodes an image and computes both its pHash and dHash.
func Compute(imageData []byte) (*Hashes, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	pHash := computePHash(img)
	dHash := computeDHash(img)

	return &Hashes{
		PHash:     fmt.Sprintf("%016x", pHash),
		DHash:     fmt.Sprintf("%016x", dHash),
		PHashBits: pHash,
		DHashBits: dHash,
	}, nil
}

// HammingDistance computes the Hamming distance between two 64-bit hashes.
func HammingDistance(hash1, hash2 uint64) int {
	xor := hash1 ^ hash2
	distance := 0
	for xor != 0 {
		distance++
		xor &= xor - 1 // Clear lowest set bit
	}
	return distance
}

// Similar reports whether two hashes are within the given Hamming distance.
func Similar(hash1, hash2 uint64, threshold int) bool {
	return HammingDistance(hash1, hash2) <= threshold
}

// Duplicate reports whether two images hash as near-duplicates: both the
// perceptual and the difference hash must agree, a single hash family alone
// false-positives on flat or strongly cropped captures.
func (h *Hashes) Duplicate(other *Hashes) bool {
	return Similar(h.PHashBits, other.PHashBits, DuplicateThreshold) &&
		Similar(h.DHashBits, other.DHashBits, DuplicateThreshold)
}

// computePHash computes a 64-bit perceptual hash using DCT.
func computePHash(img image.Image) uint64 {
	// Resize to 32x32, grayscale, then keep the low-frequency DCT block.
	resized := resizeImage(img, 32, 32)
	gray := toGrayscale(resized)
	dct := computeDCT(gray)

	// Top-left 8x8 coefficients minus the DC component (0,0).
	lowFreq := make([]float64, 64)
	idx := 0
	for u := range 8 {
		for v := range 8 {
			if u == 0 && v == 0 {
				continue
			}
			if idx < 64 {
				lowFreq[idx] = dct[u][v]
				idx++
			}
		}
	}
	for ; idx < 64; idx++ {
		lowFreq[idx] = dct[idx/8][idx%8]
	}

	median := computeMedian(lowFreq)

	var hash uint64
	for i := range 64 {
		if lowFreq[i] > median {
			hash |= 1 << (63 - i)
		}
	}
	return hash
}

// computeDHash computes a 64-bit difference hash from horizontal gradients.
func computeDHash(img image.Image) uint64 {
	// 9 columns give 8 horizontal differences per row, 8 rows = 64 bits.
	resized := resizeImage(img, 9, 8)
	gray := toGrayscale(resized)

	var hash uint64
	bit := 63
	for y := range 8 {
		for x := range 8 {
			if gray[x][y] > gray[x+1][y] {
				hash |= 1 << bit
			}
			bit--
		}
	}
	return hash
}

// resizeImage scales an image to the specified dimensions.
func resizeImage(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// toGrayscale converts an image to a 2D array of grayscale values (0-255).
func toGrayscale(img *image.RGBA) [][]float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	gray := make([][]float64, width)
	for x := range width {
		gray[x] = make([]float64, height)
		for y := range height {
			r, g, b, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma formula.
			luma := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			gray[x][y] = luma
		}
	}
	return gray
}

// computeDCT computes the Discrete Cosine Transform of a grayscale image.
func computeDCT(gray [][]float64) [][]float64 {
	size := len(gray)
	dct := make([][]float64, size)
	for i := range dct {
		dct[i] = make([]float64, size)
	}

	cosTable := make([][]float64, size)
	for i := range cosTable {
		cosTable[i] = make([]float64, size)
		for j := range size {
			cosTable[i][j] = math.Cos(math.Pi * float64(i) * (2*float64(j) + 1) / (2 * float64(size)))
		}
	}

	for u := range size {
		for v := range size {
			var sum float64
			for x := range size {
				for y := range size {
					sum += gray[x][y] * cosTable[u][x] * cosTable[v][y]
				}
			}
			dct[u][v] = sum
		}
	}
	return dct
}

// computeMedian returns the median value from a slice.
func computeMedian(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}
