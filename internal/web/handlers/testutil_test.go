package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Recognizer: config.RecognizerConfig{Model: "Facenet512"},
		Recognition: config.RecognitionConfig{
			MinConfidence: 0.60,
			Thresholds: config.ThresholdsConfig{
				Default: 0.40,
				Models: map[string]float64{
					"VGG-Face":   0.50,
					"Facenet":    0.45,
					"Facenet512": 0.40,
					"ArcFace":    0.68,
				},
			},
		},
	}
}

// fakeService is a canned implementation of Service for handler tests.
type fakeService struct {
	enrolled       []string
	enrollErr      error
	addImagesErr   error
	removeErr      error
	checkInResult  attendance.CheckInResult
	checkInErr     error
	checkInNotes   string
	verifyResult   attendance.VerifyResult
	verifyErr      error
	reportSummary  attendance.ReportSummary
	reportErr      error
	reportDate     time.Time
	historyRecords []database.AttendanceRecord
	historyErr     error
	historyLimit   int
	galleryReport  gallery.Report
	galleryErr     error
}

func (f *fakeService) Enroll(ctx context.Context, identity *database.Identity, imagePaths []string) error {
	if f.enrollErr != nil {
		return f.enrollErr
	}
	f.enrolled = append(f.enrolled, identity.ID)
	return nil
}

func (f *fakeService) AddReferenceImages(ctx context.Context, identityID string, imagePaths []string) error {
	return f.addImagesErr
}

func (f *fakeService) RemoveIdentity(ctx context.Context, identityID string) error {
	return f.removeErr
}

func (f *fakeService) CheckIn(ctx context.Context, imageData []byte, notes string) (attendance.CheckInResult, error) {
	f.checkInNotes = notes
	return f.checkInResult, f.checkInErr
}

func (f *fakeService) Verify(ctx context.Context, firstImage, secondImage []byte) (attendance.VerifyResult, error) {
	return f.verifyResult, f.verifyErr
}

func (f *fakeService) Report(ctx context.Context, date time.Time) (attendance.ReportSummary, error) {
	f.reportDate = date
	return f.reportSummary, f.reportErr
}

func (f *fakeService) History(ctx context.Context, identityID string, limit int) ([]database.AttendanceRecord, error) {
	f.historyLimit = limit
	return f.historyRecords, f.historyErr
}

func (f *fakeService) ValidateGallery() (gallery.Report, error) {
	return f.galleryReport, f.galleryErr
}

func (f *fakeService) Profile() (recognition.Profile, error) {
	return recognition.NewProfile(recognition.ModelFacenet512, 0.40), nil
}

var _ Service = (*fakeService)(nil)

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// multipartRequest builds a POST request with form fields and file uploads
func multipartRequest(t *testing.T, path string, fields map[string]string, files map[string][]byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed to write form field: %v", err)
		}
	}
	for field, data := range files {
		fw, err := writer.CreateFormFile(field, field+".jpg")
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatalf("failed to write form file: %v", err)
		}
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
