package gallery

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestIdentityFromPath(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		want   string
		wantOK bool
	}{
		{name: "unix path", path: "data/gallery/S1/S1_0.jpg", want: "S1", wantOK: true},
		{name: "windows path", path: `data\gallery\S2\S2_1.png`, want: "S2", wantOK: true},
		{name: "absolute path", path: "/var/lib/gallery/alice/alice_3.jpg", want: "alice", wantOK: true},
		{name: "bare filename falls back to prefix", path: "S3_0.jpg", want: "S3", wantOK: true},
		{name: "bare filename without underscore", path: "photo.jpg", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := IdentityFromPath(tt.path)
			if ok != tt.wantOK {
				t.Fatalf("IdentityFromPath(%q) ok = %v, want %v", tt.path, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("IdentityFromPath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestIsAcceptedImage(t *testing.T) {
	accepted := []string{"a.jpg", "b.JPEG", "c.png", "d.BMP"}
	for _, name := range accepted {
		if !IsAcceptedImage(name) {
			t.Errorf("IsAcceptedImage(%q) = false, want true", name)
		}
	}
	rejected := []string{"a.gif", "b.webp", "notes.txt", "noext"}
	for _, name := range rejected {
		if IsAcceptedImage(name) {
			t.Errorf("IsAcceptedImage(%q) = true, want false", name)
		}
	}
}

func writeTestImage(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("fake image bytes"), 0600); err != nil {
		t.Fatalf("could not write test image: %v", err)
	}
	return path
}

func TestStoreAddImages(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "gallery"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	src := t.TempDir()
	first := writeTestImage(t, src, "capture.jpg")
	second := writeTestImage(t, src, "another.png")

	added, err := store.AddImages("S1", []string{first, second})
	if err != nil {
		t.Fatalf("AddImages failed: %v", err)
	}

	want := []string{
		filepath.Join(store.Root(), "S1", "S1_0.jpg"),
		filepath.Join(store.Root(), "S1", "S1_1.png"),
	}
	if !reflect.DeepEqual(added, want) {
		t.Fatalf("AddImages = %v, want %v", added, want)
	}

	// A second enrollment continues the sequence instead of overwriting.
	third := writeTestImage(t, src, "later.jpg")
	added, err = store.AddImages("S1", []string{third})
	if err != nil {
		t.Fatalf("AddImages failed: %v", err)
	}
	if got, want := added[0], filepath.Join(store.Root(), "S1", "S1_2.jpg"); got != want {
		t.Errorf("sequential name = %q, want %q", got, want)
	}

	paths, err := store.ImagePaths("S1")
	if err != nil {
		t.Fatalf("ImagePaths failed: %v", err)
	}
	if len(paths) != 3 {
		t.Errorf("ImagePaths returned %d images, want 3", len(paths))
	}
}

func TestStoreAddImagesRejectsUnsupportedFormat(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	src := writeTestImage(t, t.TempDir(), "capture.gif")

	if _, err := store.AddImages("S1", []string{src}); err == nil {
		t.Error("expected error for unsupported image format")
	}
}

func TestStoreRemoveIdentity(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	src := writeTestImage(t, t.TempDir(), "capture.jpg")
	if _, err := store.AddImages("S1", []string{src}); err != nil {
		t.Fatalf("AddImages failed: %v", err)
	}

	if err := store.RemoveIdentity("S1"); err != nil {
		t.Fatalf("RemoveIdentity failed: %v", err)
	}
	paths, err := store.ImagePaths("S1")
	if err != nil {
		t.Fatalf("ImagePaths failed: %v", err)
	}
	if len(paths) != 0 {
		t.Errorf("identity still has %d images after removal", len(paths))
	}

	if err := store.RemoveIdentity("../escape"); err == nil {
		t.Error("expected error for identity ID with path separators")
	}
}

func TestStoreValidate(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	t.Run("empty gallery", func(t *testing.T) {
		report, err := store.Validate()
		if err != nil {
			t.Fatalf("Validate failed: %v", err)
		}
		if report.HasRecognizable {
			t.Error("empty gallery must not be recognizable")
		}
	})

	// S1 has an image, S2 and S0 have directories but nothing usable.
	src := writeTestImage(t, t.TempDir(), "capture.jpg")
	if _, err := store.AddImages("S1", []string{src}); err != nil {
		t.Fatalf("AddImages failed: %v", err)
	}
	for _, id := range []string{"S2", "S0"} {
		if err := os.MkdirAll(filepath.Join(store.Root(), id), 0750); err != nil {
			t.Fatalf("mkdir failed: %v", err)
		}
	}
	writeTestImage(t, filepath.Join(store.Root(), "S2"), "notes.txt")

	report, err := store.Validate()
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !report.HasRecognizable {
		t.Error("gallery with one enrolled image must be recognizable")
	}
	if want := []string{"S0", "S2"}; !reflect.DeepEqual(report.Unrecognizable, want) {
		t.Errorf("Unrecognizable = %v, want %v (sorted)", report.Unrecognizable, want)
	}
	if report.IdentityCount != 3 {
		t.Errorf("IdentityCount = %d, want 3", report.IdentityCount)
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Jiří Novák", "jiri novak"},
		{"Anne-Marie  Dubois", "anne marie dubois"},
		{"  Łukasz   Żółty ", "lukasz zolty"},
		{"plain", "plain"},
	}

	for _, tt := range tests {
		if got := NormalizeName(tt.input); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
