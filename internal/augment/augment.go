// Package augment generates photometric and geometric variants of reference
// face images to enlarge the gallery's training data. Variants simulate the
// conditions a check-in camera actually produces: lighting changes, slight
// head tilt, camera blur and sensor noise.
package augment

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/kozaktomas/face-attendance/internal/gallery"
)

// VariantPrefix marks generated images so repeated runs never augment
// their own output.
const VariantPrefix = "aug_"

// Method identifies one augmentation technique.
type Method string

const (
	Brightness Method = "brightness"
	Contrast   Method = "contrast"
	Blur       Method = "blur"
	Noise      Method = "noise"
	Flip       Method = "flip"
	Rotate     Method = "rotate"
)

// Methods returns all augmentation techniques in a stable order.
func Methods() []Method {
	return []Method{Brightness, Contrast, Blur, Noise, Flip, Rotate}
}

// Augmentor generates image variants. Randomized parameters (brightness
// factor, rotation angle, noise) come from its own source so runs are
// reproducible under a fixed seed.
type Augmentor struct {
	rng *rand.Rand
}

// New creates an augmentor seeded for reproducible variant generation.
func New(seed int64) *Augmentor {
	return &Augmentor{rng: rand.New(rand.NewSource(seed))} //nolint:gosec // not used for anything security sensitive
}

// Apply produces one variant of an image using the given method.
func (a *Augmentor) Apply(img image.Image, method Method) (image.Image, error) {
	switch method {
	case Brightness:
		// 0.7 - 1.3, darker and brighter rooms.
		return adjustBrightness(img, 0.7+a.rng.Float64()*0.6), nil
	case Contrast:
		// 0.8 - 1.2.
		return adjustContrast(img, 0.8+a.rng.Float64()*0.4), nil
	case Blur:
		return gaussianBlur(img), nil
	case Noise:
		// Stddev of ~2% of the value range simulates low-light sensor noise.
		return a.addNoise(img, 0.02*255), nil
	case Flip:
		return flipHorizontal(img), nil
	case Rotate:
		// Slight head tilt, 5 to 25 degrees either way.
		angle := float64(a.rng.Intn(21)+5) * math.Pi / 180
		if a.rng.Intn(2) == 0 {
			angle = -angle
		}
		return rotate(img, angle), nil
	default:
		return nil, fmt.Errorf("unknown augmentation method %q", method)
	}
}

// Variants generates up to count variants of an image, each using a
// different method drawn at random.
func (a *Augmentor) Variants(img image.Image, count int) ([]image.Image, error) {
	methods := Methods()
	a.rng.Shuffle(len(methods), func(i, j int) {
		methods[i], methods[j] = methods[j], methods[i]
	})
	if count > len(methods) {
		count = len(methods)
	}

	var variants []image.Image
	for _, method := range methods[:count] {
		variant, err := a.Apply(img, method)
		if err != nil {
			return nil, err
		}
		variants = append(variants, variant)
	}
	return variants, nil
}

// Stats summarizes one gallery augmentation run.
type Stats struct {
	IdentitiesProcessed int
	OriginalImages      int
	AugmentedImages     int
	Errors              []string
}

// Run augments every identity directory under the gallery root, writing
// perImage variants of each original image as aug_<base>_<n>.jpg next to it.
// Previously generated variants are skipped as sources. The progress
// callback, if set, is called once per identity before processing it.
func (a *Augmentor) Run(root string, perImage int, progress func(identityID string)) (Stats, error) {
	var stats Stats

	entries, err := os.ReadDir(root)
	if err != nil {
		return stats, fmt.Errorf("read gallery root: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if progress != nil {
			progress(entry.Name())
		}

		originals, created, err := a.augmentIdentity(filepath.Join(root, entry.Name()), perImage)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", entry.Name(), err))
			continue
		}
		stats.IdentitiesProcessed++
		stats.OriginalImages += originals
		stats.AugmentedImages += created
	}
	return stats, nil
}

// augmentIdentity processes one identity directory and returns the number
// of original images found and variants written.
func (a *Augmentor) augmentIdentity(dir string, perImage int) (int, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("read identity directory: %w", err)
	}

	originals := 0
	created := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !gallery.IsAcceptedImage(name) || strings.HasPrefix(name, VariantPrefix) {
			continue
		}
		originals++

		data, err := os.ReadFile(filepath.Join(dir, name)) //nolint:gosec // path is inside the gallery
		if err != nil {
			return originals, created, fmt.Errorf("read %s: %w", name, err)
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return originals, created, fmt.Errorf("decode %s: %w", name, err)
		}

		variants, err := a.Variants(img, perImage)
		if err != nil {
			return originals, created, err
		}

		base := strings.TrimSuffix(name, filepath.Ext(name))
		for idx, variant := range variants {
			dest := filepath.Join(dir, fmt.Sprintf("%s%s_%d.jpg", VariantPrefix, base, idx))
			if err := writeJPEG(dest, variant); err != nil {
				return originals, created, fmt.Errorf("write %s: %w", filepath.Base(dest), err)
			}
			created++
		}
	}
	return originals, created, nil
}

// Clean removes all generated variants under the gallery root and returns
// how many files were deleted.
func Clean(root string) (int, error) {
	removed := 0
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasPrefix(d.Name(), VariantPrefix) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("clean variants: %w", err)
	}
	return removed, nil
}

func writeJPEG(path string, img image.Image) error {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0600)
}

// toRGBA copies an image into RGBA form for per-pixel manipulation.
func toRGBA(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Copy(dst, image.Point{}, img, bounds, draw.Src, nil)
	return dst
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// adjustBrightness scales every channel by the given factor.
func adjustBrightness(img image.Image, factor float64) *image.RGBA {
	src := toRGBA(img)
	bounds := src.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := src.RGBAAt(x, y)
			src.SetRGBA(x, y, color.RGBA{
				R: clampByte(float64(c.R) * factor),
				G: clampByte(float64(c.G) * factor),
				B: clampByte(float64(c.B) * factor),
				A: c.A,
			})
		}
	}
	return src
}

// adjustContrast stretches every channel around the mid-point.
func adjustContrast(img image.Image, factor float64) *image.RGBA {
	src := toRGBA(img)
	bounds := src.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := src.RGBAAt(x, y)
			src.SetRGBA(x, y, color.RGBA{
				R: clampByte((float64(c.R)-128)*factor + 128),
				G: clampByte((float64(c.G)-128)*factor + 128),
				B: clampByte((float64(c.B)-128)*factor + 128),
				A: c.A,
			})
		}
	}
	return src
}

// gaussianBlur applies a 3x3 Gaussian kernel, clamping at the edges.
func gaussianBlur(img image.Image) *image.RGBA {
	src := toRGBA(img)
	bounds := src.Bounds()
	dst := image.NewRGBA(bounds)

	// 1-2-1 separable kernel, weight sum 16.
	kernel := [3][3]float64{
		{1, 2, 1},
		{2, 4, 2},
		{1, 2, 1},
	}

	clamp := func(v, lo, hi int) int {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			var r, g, b float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					sx := clamp(x+kx, bounds.Min.X, bounds.Max.X-1)
					sy := clamp(y+ky, bounds.Min.Y, bounds.Max.Y-1)
					c := src.RGBAAt(sx, sy)
					w := kernel[ky+1][kx+1]
					r += float64(c.R) * w
					g += float64(c.G) * w
					b += float64(c.B) * w
				}
			}
			dst.SetRGBA(x, y, color.RGBA{
				R: clampByte(r / 16),
				G: clampByte(g / 16),
				B: clampByte(b / 16),
				A: src.RGBAAt(x, y).A,
			})
		}
	}
	return dst
}

// addNoise adds Gaussian noise with the given standard deviation to every
// channel.
func (a *Augmentor) addNoise(img image.Image, stddev float64) *image.RGBA {
	src := toRGBA(img)
	bounds := src.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := src.RGBAAt(x, y)
			src.SetRGBA(x, y, color.RGBA{
				R: clampByte(float64(c.R) + a.rng.NormFloat64()*stddev),
				G: clampByte(float64(c.G) + a.rng.NormFloat64()*stddev),
				B: clampByte(float64(c.B) + a.rng.NormFloat64()*stddev),
				A: c.A,
			})
		}
	}
	return src
}

// flipHorizontal mirrors an image left to right.
func flipHorizontal(img image.Image) *image.RGBA {
	src := toRGBA(img)
	bounds := src.Bounds()
	dst := image.NewRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			dst.SetRGBA(bounds.Max.X-1-x+bounds.Min.X, y, src.RGBAAt(x, y))
		}
	}
	return dst
}

// rotate turns an image around its center by the given angle in radians.
// The destination starts as a copy of the source so corners uncovered by
// the rotation keep original pixels instead of going black.
func rotate(img image.Image, angle float64) *image.RGBA {
	src := toRGBA(img)
	bounds := src.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Copy(dst, image.Point{}, src, bounds, draw.Src, nil)

	cx := float64(bounds.Dx()) / 2
	cy := float64(bounds.Dy()) / 2
	sin, cos := math.Sincos(angle)

	// Rotation about the image center as a source-to-destination affine map.
	m := f64.Aff3{
		cos, -sin, cx - cos*cx + sin*cy,
		sin, cos, cy - sin*cx - cos*cy,
	}
	draw.BiLinear.Transform(dst, m, src, bounds, draw.Over, nil)
	return dst
}
