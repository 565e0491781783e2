package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed thresholds.yaml
var thresholdsYAML []byte

type Config struct {
	Gallery     GalleryConfig
	Recognizer  RecognizerConfig
	Recognition RecognitionConfig
	Attendance  AttendanceConfig
	Database    DatabaseConfig
}

type GalleryConfig struct {
	Root string // filesystem root of the identity gallery (one subdirectory per identity)
}

type RecognizerConfig struct {
	URL   string // embedding service base URL, defaults to http://localhost:8000
	Model string // active recognition model name (see recognition.Model), defaults to VGG-Face
}

type RecognitionConfig struct {
	MinConfidence float64 // global confidence floor for accepting a match (default 0.60)
	Thresholds    ThresholdsConfig
}

type AttendanceConfig struct {
	LateAfter string // local wall-clock time ("15:04") after which a check-in is marked late
}

type DatabaseConfig struct {
	URL           string // PostgreSQL connection URL
	MaxOpenConns  int    // Maximum open connections (default 25)
	MaxIdleConns  int    // Maximum idle connections (default 5)
	HNSWIndexPath string // Path to persist gallery HNSW index (optional, if empty index is rebuilt on startup)
}

// ThresholdsConfig holds the per-model distance cutoffs loaded from the
// embedded thresholds.yaml. Thresholds are tuned per embedding space and
// must never be shared across models.
type ThresholdsConfig struct {
	Default float64            `yaml:"default"`
	Models  map[string]float64 `yaml:"models"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float in (0, 1].
// Returns the default value if the env var is unset, empty, or out of range.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return f
	}
	return defaultVal
}

// envDefault reads an environment variable, falling back to a default when unset.
func envDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func Load() *Config {
	var thresholds ThresholdsConfig
	if err := yaml.Unmarshal(thresholdsYAML, &thresholds); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded thresholds.yaml: " + err.Error())
	}

	return &Config{
		Gallery: GalleryConfig{
			Root: envDefault("GALLERY_ROOT", "data/gallery"),
		},
		Recognizer: RecognizerConfig{
			URL:   os.Getenv("RECOGNIZER_URL"),
			Model: envDefault("RECOGNITION_MODEL", "VGG-Face"),
		},
		Recognition: RecognitionConfig{
			MinConfidence: envFloat("MIN_CONFIDENCE", 0.60),
			Thresholds:    thresholds,
		},
		Attendance: AttendanceConfig{
			LateAfter: envDefault("LATE_AFTER", "09:00"),
		},
		Database: DatabaseConfig{
			URL:           os.Getenv("DATABASE_URL"),
			MaxOpenConns:  envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  envInt("DATABASE_MAX_IDLE_CONNS", 5),
			HNSWIndexPath: os.Getenv("HNSW_INDEX_PATH"),
		},
	}
}

// Threshold returns the distance threshold for a specific model, with a
// conservative fallback for unknown model names.
func (c *Config) Threshold(modelName string) float64 {
	if t, ok := c.Recognition.Thresholds.Models[modelName]; ok {
		return t
	}
	return c.Recognition.Thresholds.Default
}
