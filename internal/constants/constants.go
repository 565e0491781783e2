// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Upload constants
const (
	// MaxUploadSize is the maximum accepted multipart upload size in bytes (32 MB)
	MaxUploadSize = 32 << 20
)

// Attendance constants
const (
	// DefaultHistoryLimit is the default number of attendance records
	// returned per identity when no limit is requested
	DefaultHistoryLimit = 30

	// DateFormat is the wire format for session dates in API requests and responses
	DateFormat = "2006-01-02"
)
