// Package handlers implements the HTTP handlers of the attendance API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// Service is the slice of the attendance service the HTTP layer drives.
type Service interface {
	Enroll(ctx context.Context, identity *database.Identity, imagePaths []string) error
	AddReferenceImages(ctx context.Context, identityID string, imagePaths []string) error
	RemoveIdentity(ctx context.Context, identityID string) error
	CheckIn(ctx context.Context, imageData []byte, notes string) (attendance.CheckInResult, error)
	Verify(ctx context.Context, firstImage, secondImage []byte) (attendance.VerifyResult, error)
	Report(ctx context.Context, date time.Time) (attendance.ReportSummary, error)
	History(ctx context.Context, identityID string, limit int) ([]database.AttendanceRecord, error)
	ValidateGallery() (gallery.Report, error)
	Profile() (recognition.Profile, error)
}

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// readMultipartFile reads one uploaded file from an already parsed multipart form.
func readMultipartFile(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("missing file field %q", field)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.New("failed to read uploaded file")
	}
	return data, nil
}

// saveUploadedFiles saves multipart files to a temporary directory and returns their paths.
func saveUploadedFiles(files []*multipart.FileHeader, tempDir string) ([]string, error) {
	var filePaths []string
	for _, fileHeader := range files {
		if err := func() error {
			file, err := fileHeader.Open()
			if err != nil {
				return fmt.Errorf("failed to open file: %s", fileHeader.Filename)
			}
			defer file.Close()

			safeName := filepath.Base(fileHeader.Filename)
			tempPath := filepath.Join(tempDir, safeName)
			out, err := os.Create(tempPath) //nolint:gosec // filename sanitized via filepath.Base
			if err != nil {
				return errors.New("failed to create temp file")
			}

			if _, err := io.Copy(out, file); err != nil {
				out.Close()
				return errors.New("failed to save file")
			}
			out.Close()

			filePaths = append(filePaths, tempPath)
			return nil
		}(); err != nil {
			return nil, err
		}
	}
	return filePaths, nil
}

// withUploadedFiles parses the multipart form, stores the files of the given
// field in a temp directory and hands their paths to fn. The directory is
// removed afterwards. Responds with an error itself when the upload is broken.
func withUploadedFiles(w http.ResponseWriter, r *http.Request, field string, fn func(paths []string)) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("no %s provided", field))
		return
	}

	tempDir, err := os.MkdirTemp("", "face-attendance-upload-*")
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create temp directory")
		return
	}
	defer os.RemoveAll(tempDir)

	filePaths, err := saveUploadedFiles(files, tempDir)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	fn(filePaths)
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// identityJSON is the wire shape of an identity.
type identityJSON struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	GroupName string    `json:"group_name,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toIdentityJSON(i database.Identity) identityJSON {
	return identityJSON{
		ID:        i.ID,
		FullName:  i.FullName,
		GroupName: i.GroupName,
		Email:     i.Email,
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}
}

// recordJSON is the wire shape of an attendance record.
type recordJSON struct {
	UID         string    `json:"uid"`
	IdentityID  string    `json:"identity_id"`
	FullName    string    `json:"full_name,omitempty"`
	SessionDate string    `json:"session_date"`
	CheckInTime time.Time `json:"check_in_time"`
	Confidence  float64   `json:"confidence"`
	Distance    float64   `json:"distance"`
	Model       string    `json:"model"`
	Status      string    `json:"status"`
	Notes       string    `json:"notes,omitempty"`
}

func toRecordJSON(r database.AttendanceRecord) recordJSON {
	return recordJSON{
		UID:         r.UID,
		IdentityID:  r.IdentityID,
		FullName:    r.FullName,
		SessionDate: r.SessionDate.Format(constants.DateFormat),
		CheckInTime: r.CheckInTime,
		Confidence:  r.Confidence,
		Distance:    r.Distance,
		Model:       r.ModelUsed,
		Status:      r.Status,
		Notes:       r.Notes,
	}
}

func toRecordListJSON(records []database.AttendanceRecord) []recordJSON {
	out := make([]recordJSON, 0, len(records))
	for _, r := range records {
		out = append(out, toRecordJSON(r))
	}
	return out
}
