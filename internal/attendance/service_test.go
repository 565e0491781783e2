package attendance

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/recognition"
	"github.com/kozaktomas/face-attendance/internal/recognizer"
)

func testConfig() *config.Config {
	return &config.Config{
		Recognizer: config.RecognizerConfig{Model: "Facenet512"},
		Recognition: config.RecognitionConfig{
			MinConfidence: 0.60,
			Thresholds: config.ThresholdsConfig{
				Default: 0.40,
				Models:  map[string]float64{"Facenet512": 0.40},
			},
		},
		Attendance: config.AttendanceConfig{LateAfter: "09:00"},
	}
}

type fakeSearcher struct {
	candidates      []recognition.Candidate
	searchErr       error
	searchCalls     int
	compareDistance float64
	compareErr      error
}

func (f *fakeSearcher) Search(ctx context.Context, imageData []byte, profile recognition.Profile) ([]recognition.Candidate, error) {
	f.searchCalls++
	return f.candidates, f.searchErr
}

func (f *fakeSearcher) Compare(ctx context.Context, a, b []byte, profile recognition.Profile) (float64, error) {
	return f.compareDistance, f.compareErr
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Represent(ctx context.Context, imageData []byte, profile recognition.Profile) (*recognizer.EmbeddingResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &recognizer.EmbeddingResult{Embedding: []float32{1, 0, 0, 0}, Dim: 4}, nil
}

type fixture struct {
	service    *Service
	gallery    *gallery.Store
	identities *mock.MockIdentityStore
	faces      *mock.MockReferenceFaceStore
	attendance *mock.MockAttendanceStore
	searcher   *fakeSearcher
	embedder   *fakeEmbedder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := gallery.NewStore(filepath.Join(t.TempDir(), "gallery"))
	if err != nil {
		t.Fatalf("could not create gallery store: %v", err)
	}

	f := &fixture{
		gallery:    store,
		identities: mock.NewMockIdentityStore(),
		faces:      mock.NewMockReferenceFaceStore(),
		attendance: mock.NewMockAttendanceStore(),
		searcher:   &fakeSearcher{},
		embedder:   &fakeEmbedder{},
	}
	f.service = NewService(testConfig(), store, f.identities, f.faces, f.attendance, f.searcher, f.embedder)
	return f
}

// enrollS1 seeds an enrolled identity S1 with one gallery image.
func (f *fixture) enrollS1(t *testing.T) string {
	t.Helper()
	f.identities.AddIdentity(database.Identity{ID: "S1", FullName: "Jana Svobodová"})

	dir := filepath.Join(f.gallery.Root(), "S1")
	if err := os.MkdirAll(dir, 0750); err != nil {
		t.Fatalf("could not create identity dir: %v", err)
	}
	path := filepath.Join(dir, "S1_0.jpg")
	if err := os.WriteFile(path, []byte("fake image"), 0600); err != nil {
		t.Fatalf("could not write gallery image: %v", err)
	}
	return path
}

func (f *fixture) setClock(t time.Time) {
	f.service.now = func() time.Time { return t }
}

var morning = time.Date(2026, 3, 2, 8, 15, 0, 0, time.UTC)

func TestCheckInMatch(t *testing.T) {
	f := newFixture(t)
	refPath := f.enrollS1(t)
	f.searcher.candidates = []recognition.Candidate{{ReferencePath: refPath, Distance: 0.30}}
	f.setClock(morning)

	result, err := f.service.CheckIn(context.Background(), []byte("img"), "front door")
	if err != nil {
		t.Fatalf("CheckIn failed: %v", err)
	}

	if !result.Outcome.IsMatch {
		t.Fatalf("expected match, got rejection: %s", result.Outcome.Detail)
	}
	if result.Outcome.IdentityID != "S1" {
		t.Errorf("IdentityID = %q, want S1", result.Outcome.IdentityID)
	}
	if result.Record == nil {
		t.Fatal("expected a stored record")
	}
	if result.Record.Status != database.StatusPresent {
		t.Errorf("Status = %q, want present (checked in at 08:15)", result.Record.Status)
	}
	if result.Record.Notes != "front door" {
		t.Errorf("Notes = %q, want 'front door'", result.Record.Notes)
	}
	if result.Record.ModelUsed != "Facenet512" {
		t.Errorf("ModelUsed = %q, want Facenet512", result.Record.ModelUsed)
	}

	count, err := f.attendance.CountByDate(context.Background(), morning)
	if err != nil {
		t.Fatalf("CountByDate failed: %v", err)
	}
	if count != 1 {
		t.Errorf("stored records = %d, want 1", count)
	}
}

func TestCheckInLate(t *testing.T) {
	f := newFixture(t)
	refPath := f.enrollS1(t)
	f.searcher.candidates = []recognition.Candidate{{ReferencePath: refPath, Distance: 0.30}}
	f.setClock(time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC))

	result, err := f.service.CheckIn(context.Background(), []byte("img"), "")
	if err != nil {
		t.Fatalf("CheckIn failed: %v", err)
	}
	if result.Record == nil || result.Record.Status != database.StatusLate {
		t.Errorf("expected late status for a 09:30 check-in, got %+v", result.Record)
	}
}

func TestCheckInDuplicateForDay(t *testing.T) {
	f := newFixture(t)
	refPath := f.enrollS1(t)
	f.searcher.candidates = []recognition.Candidate{{ReferencePath: refPath, Distance: 0.30}}
	f.setClock(morning)

	if _, err := f.service.CheckIn(context.Background(), []byte("img"), ""); err != nil {
		t.Fatalf("first CheckIn failed: %v", err)
	}

	second, err := f.service.CheckIn(context.Background(), []byte("img"), "")
	if err != nil {
		t.Fatalf("second CheckIn failed: %v", err)
	}
	if !second.Duplicate {
		t.Error("second check-in on the same day must be flagged as duplicate")
	}
	if second.Record != nil {
		t.Error("duplicate check-in must not create a record")
	}
	if !second.Outcome.IsMatch {
		t.Error("duplicate still reports who matched")
	}
}

func TestCheckInEmptyGalleryShortCircuits(t *testing.T) {
	f := newFixture(t)
	// Gallery exists but has no identity with a usable image.

	result, err := f.service.CheckIn(context.Background(), []byte("img"), "")
	if err != nil {
		t.Fatalf("CheckIn failed: %v", err)
	}
	if result.Outcome.IsMatch {
		t.Fatal("empty gallery must never match")
	}
	if result.Outcome.Reason != recognition.RejectEmptyGallery {
		t.Errorf("Reason = %q, want %q", result.Outcome.Reason, recognition.RejectEmptyGallery)
	}
	if f.searcher.searchCalls != 0 {
		t.Error("search must not run against an empty gallery")
	}
}

func TestCheckInRejections(t *testing.T) {
	tests := []struct {
		name       string
		candidates []recognition.Candidate
		wantReason recognition.RejectReason
	}{
		{
			name:       "no candidates",
			candidates: nil,
			wantReason: recognition.RejectNoCandidates,
		},
		{
			name:       "distance above threshold",
			candidates: []recognition.Candidate{{ReferencePath: "S1/S1_0.jpg", Distance: 0.55}},
			wantReason: recognition.RejectAboveDistanceThreshold,
		},
		{
			name:       "reference path of an unknown identity",
			candidates: []recognition.Candidate{{ReferencePath: "gallery/GHOST/GHOST_0.jpg", Distance: 0.10}},
			wantReason: recognition.RejectIdentityNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.enrollS1(t)
			f.searcher.candidates = tt.candidates
			f.setClock(morning)

			result, err := f.service.CheckIn(context.Background(), []byte("img"), "")
			if err != nil {
				t.Fatalf("CheckIn failed: %v", err)
			}
			if result.Outcome.IsMatch {
				t.Fatal("expected rejection")
			}
			if result.Outcome.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", result.Outcome.Reason, tt.wantReason)
			}

			count, _ := f.attendance.CountByDate(context.Background(), morning)
			if count != 0 {
				t.Error("rejections must not create attendance records")
			}
		})
	}
}

func TestCheckInBackendFailureRejects(t *testing.T) {
	f := newFixture(t)
	f.enrollS1(t)
	f.searcher.searchErr = errors.New("API error (status 500)")
	f.setClock(morning)

	result, err := f.service.CheckIn(context.Background(), []byte("img"), "")
	if err != nil {
		t.Fatalf("backend failures must not surface as errors, got: %v", err)
	}
	if result.Outcome.IsMatch {
		t.Fatal("backend failure must never match")
	}
	if result.Outcome.Reason != recognition.RejectNoCandidates {
		t.Errorf("Reason = %q, want %q", result.Outcome.Reason, recognition.RejectNoCandidates)
	}
	if !strings.Contains(result.Outcome.Detail, "API error (status 500)") {
		t.Errorf("Detail = %q, want the backend failure text", result.Outcome.Detail)
	}

	count, _ := f.attendance.CountByDate(context.Background(), morning)
	if count != 0 {
		t.Error("backend failure must not create attendance records")
	}
}

func TestEnroll(t *testing.T) {
	f := newFixture(t)

	src := t.TempDir()
	imagePath := filepath.Join(src, "capture.jpg")
	if err := os.WriteFile(imagePath, []byte("fake image"), 0600); err != nil {
		t.Fatalf("could not write source image: %v", err)
	}

	identity := &database.Identity{ID: "S2", FullName: "Petr Malý"}
	if err := f.service.Enroll(context.Background(), identity, []string{imagePath}); err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}

	exists, err := f.identities.Exists(context.Background(), "S2")
	if err != nil || !exists {
		t.Fatalf("identity not created (exists=%v err=%v)", exists, err)
	}

	if len(f.faces.SaveCalls) != 1 {
		t.Fatalf("saved %d reference faces, want 1", len(f.faces.SaveCalls))
	}
	saved := f.faces.SaveCalls[0]
	if saved.IdentityID != "S2" || saved.Model != "Facenet512" {
		t.Errorf("unexpected saved face: %+v", saved)
	}

	paths, err := f.gallery.ImagePaths("S2")
	if err != nil {
		t.Fatalf("ImagePaths failed: %v", err)
	}
	if len(paths) != 1 {
		t.Errorf("gallery has %d images, want 1", len(paths))
	}
}

func TestEnrollRollsBackWhenNoFaceUsable(t *testing.T) {
	f := newFixture(t)
	f.embedder.err = recognizer.ErrNoFace

	src := t.TempDir()
	imagePath := filepath.Join(src, "capture.jpg")
	if err := os.WriteFile(imagePath, []byte("fake image"), 0600); err != nil {
		t.Fatalf("could not write source image: %v", err)
	}

	identity := &database.Identity{ID: "S3", FullName: "Eva Černá"}
	if err := f.service.Enroll(context.Background(), identity, []string{imagePath}); err == nil {
		t.Fatal("enrollment with zero usable images must fail")
	}

	exists, _ := f.identities.Exists(context.Background(), "S3")
	if exists {
		t.Error("identity must be rolled back after failed enrollment")
	}
}

func TestEnrollDuplicateIdentity(t *testing.T) {
	f := newFixture(t)
	f.enrollS1(t)

	err := f.service.Enroll(context.Background(), &database.Identity{ID: "S1"}, []string{"x.jpg"})
	if err == nil {
		t.Fatal("expected error for duplicate identity ID")
	}
}

func TestRemoveIdentity(t *testing.T) {
	f := newFixture(t)
	refPath := f.enrollS1(t)

	face := &database.StoredReferenceFace{
		IdentityID: "S1", ImagePath: refPath, Embedding: []float32{1, 0}, Model: "Facenet512", Dim: 2,
	}
	if err := f.faces.Save(context.Background(), face); err != nil {
		t.Fatalf("could not seed reference face: %v", err)
	}

	if err := f.service.RemoveIdentity(context.Background(), "S1"); err != nil {
		t.Fatalf("RemoveIdentity failed: %v", err)
	}

	exists, _ := f.identities.Exists(context.Background(), "S1")
	if exists {
		t.Error("identity still enrolled after removal")
	}
	remaining, _ := f.faces.GetByIdentity(context.Background(), "S1", "Facenet512")
	if len(remaining) != 0 {
		t.Error("reference faces still stored after removal")
	}
	paths, _ := f.gallery.ImagePaths("S1")
	if len(paths) != 0 {
		t.Error("gallery images still present after removal")
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name      string
		distance  float64
		wantMatch bool
	}{
		{name: "same person", distance: 0.25, wantMatch: true},
		{name: "distance gate fails", distance: 0.45, wantMatch: false},
		{name: "just above threshold", distance: 0.41, wantMatch: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.searcher.compareDistance = tt.distance

			result, err := f.service.Verify(context.Background(), []byte("a"), []byte("b"))
			if err != nil {
				t.Fatalf("Verify failed: %v", err)
			}
			if result.IsMatch != tt.wantMatch {
				t.Errorf("IsMatch = %v, want %v (distance %v)", result.IsMatch, tt.wantMatch, tt.distance)
			}
			if result.Distance != tt.distance {
				t.Errorf("Distance = %v, want %v", result.Distance, tt.distance)
			}
		})
	}
}

func TestVerifyBackendFailure(t *testing.T) {
	f := newFixture(t)
	f.searcher.compareErr = recognizer.ErrNoFace

	result, err := f.service.Verify(context.Background(), []byte("a"), []byte("b"))
	if err != nil {
		t.Fatalf("backend failures must not surface as errors, got: %v", err)
	}
	if result.IsMatch {
		t.Fatal("a comparison that could not run must never match")
	}
	if result.Detail == "" {
		t.Error("Detail must carry the failure text")
	}
	if result.Model != recognition.ModelFacenet512 {
		t.Errorf("Model = %q, want Facenet512", result.Model)
	}
}

func TestReportStatusCounts(t *testing.T) {
	f := newFixture(t)
	f.identities.AddIdentity(database.Identity{ID: "S1", FullName: "Jana Svobodová"})
	f.identities.AddIdentity(database.Identity{ID: "S2", FullName: "Petr Malý"})
	f.identities.AddIdentity(database.Identity{ID: "S3", FullName: "Eva Černá"})

	records := []*database.AttendanceRecord{
		{IdentityID: "S1", SessionDate: morning, CheckInTime: morning, Status: database.StatusPresent},
		{IdentityID: "S2", SessionDate: morning, CheckInTime: morning.Add(90 * time.Minute), Status: database.StatusLate},
	}
	for _, r := range records {
		if err := f.attendance.RecordCheckIn(context.Background(), r); err != nil {
			t.Fatalf("could not seed record: %v", err)
		}
	}

	summary, err := f.service.Report(context.Background(), morning)
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	if summary.Present != 1 || summary.Late != 1 || summary.Absent != 1 {
		t.Errorf("present/late/absent = %d/%d/%d, want 1/1/1",
			summary.Present, summary.Late, summary.Absent)
	}
	if len(summary.Records) != 2 {
		t.Errorf("records = %d, want 2", len(summary.Records))
	}
}

func TestHistoryUnknownIdentity(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.History(context.Background(), "nope", 10)
	if err == nil {
		t.Fatal("expected error for unknown identity")
	}
}

func TestProfileRejectsUnknownModel(t *testing.T) {
	f := newFixture(t)
	f.service.cfg.Recognizer.Model = "DeepID"

	if _, err := f.service.Profile(); err == nil {
		t.Fatal("expected error for unsupported model")
	}
}
