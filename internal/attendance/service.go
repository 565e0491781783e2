// Package attendance orchestrates the full attendance flow: enrollment of
// identities with reference face images, the check-in pipeline (gallery
// validation, similarity search, decision, recording) and reporting.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/recognition"
	"github.com/kozaktomas/face-attendance/internal/recognizer"
)

// Searcher runs similarity searches and one-to-one comparisons.
type Searcher interface {
	Search(ctx context.Context, imageData []byte, profile recognition.Profile) ([]recognition.Candidate, error)
	Compare(ctx context.Context, firstImage, secondImage []byte, profile recognition.Profile) (float64, error)
}

// Service wires the gallery, the stores and the recognizer together.
type Service struct {
	cfg        *config.Config
	gallery    *gallery.Store
	identities database.IdentityStore
	faces      database.ReferenceFaceWriter
	attendance database.AttendanceStore
	searcher   Searcher
	embedder   recognizer.Embedder

	// now is swappable for tests.
	now func() time.Time
}

// NewService creates the attendance service.
func NewService(
	cfg *config.Config,
	store *gallery.Store,
	identities database.IdentityStore,
	faces database.ReferenceFaceWriter,
	attendance database.AttendanceStore,
	searcher Searcher,
	embedder recognizer.Embedder,
) *Service {
	return &Service{
		cfg:        cfg,
		gallery:    store,
		identities: identities,
		faces:      faces,
		attendance: attendance,
		searcher:   searcher,
		embedder:   embedder,
		now:        time.Now,
	}
}

// Profile builds the active recognition profile from configuration: the
// configured model with its tuned distance threshold.
func (s *Service) Profile() (recognition.Profile, error) {
	model, err := recognition.ParseModel(s.cfg.Recognizer.Model)
	if err != nil {
		return recognition.Profile{}, err
	}
	return recognition.NewProfile(model, s.cfg.Threshold(string(model))), nil
}

// Enroll creates a new identity and registers its reference face images.
// Images are copied into the gallery and their embeddings stored; images
// where no face is detected are skipped with a warning, enrollment fails
// only when not a single image is usable.
func (s *Service) Enroll(ctx context.Context, identity *database.Identity, imagePaths []string) error {
	if len(imagePaths) == 0 {
		return errors.New("at least one reference image is required")
	}

	if err := s.identities.Create(ctx, identity); err != nil {
		return fmt.Errorf("create identity: %w", err)
	}

	if err := s.registerReferenceImages(ctx, identity.ID, imagePaths); err != nil {
		// Roll the identity back so a failed enrollment leaves no
		// identity without reference faces behind.
		if delErr := s.identities.Delete(ctx, identity.ID); delErr != nil {
			log.Printf("attendance: could not roll back identity %s: %v", identity.ID, delErr)
		}
		_ = s.gallery.RemoveIdentity(identity.ID)
		return err
	}
	return nil
}

// AddReferenceImages registers additional reference images for an enrolled identity.
func (s *Service) AddReferenceImages(ctx context.Context, identityID string, imagePaths []string) error {
	exists, err := s.identities.Exists(ctx, identityID)
	if err != nil {
		return fmt.Errorf("check identity: %w", err)
	}
	if !exists {
		return database.ErrIdentityNotFound
	}
	return s.registerReferenceImages(ctx, identityID, imagePaths)
}

// registerReferenceImages copies images into the gallery, embeds them and
// stores the embeddings.
func (s *Service) registerReferenceImages(ctx context.Context, identityID string, imagePaths []string) error {
	profile, err := s.Profile()
	if err != nil {
		return err
	}

	added, err := s.gallery.AddImages(identityID, imagePaths)
	if err != nil {
		return fmt.Errorf("add gallery images: %w", err)
	}

	registered := 0
	for _, path := range added {
		imageData, err := os.ReadFile(path) //nolint:gosec // path was produced by the gallery store
		if err != nil {
			return fmt.Errorf("read gallery image: %w", err)
		}

		result, err := s.embedder.Represent(ctx, imageData, profile)
		if errors.Is(err, recognizer.ErrNoFace) {
			log.Printf("attendance: no face detected in %s, skipping", path)
			continue
		}
		if err != nil {
			return fmt.Errorf("embed reference image %s: %w", path, err)
		}

		face := &database.StoredReferenceFace{
			IdentityID: identityID,
			ImagePath:  path,
			Embedding:  result.Embedding,
			Model:      string(profile.Model),
			Dim:        result.Dim,
		}
		if err := s.faces.Save(ctx, face); err != nil {
			return fmt.Errorf("save reference face: %w", err)
		}
		registered++
	}

	if registered == 0 {
		return errors.New("no face detected in any reference image")
	}
	return nil
}

// RemoveIdentity deletes an identity, its reference faces, its attendance
// records and its gallery directory.
func (s *Service) RemoveIdentity(ctx context.Context, identityID string) error {
	if _, err := s.faces.DeleteByIdentity(ctx, identityID); err != nil {
		return fmt.Errorf("delete reference faces: %w", err)
	}
	if err := s.identities.Delete(ctx, identityID); err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	if err := s.gallery.RemoveIdentity(identityID); err != nil {
		return fmt.Errorf("remove gallery directory: %w", err)
	}
	return nil
}

// CheckInResult is the outcome of one check-in attempt.
type CheckInResult struct {
	Outcome recognition.Outcome
	// Record is the stored attendance record; set only when a new record
	// was created.
	Record *database.AttendanceRecord
	// Duplicate is true when the person matched but already has a record
	// for the session date.
	Duplicate bool
}

// CheckIn runs the full pipeline for a captured image: validate the gallery,
// search, resolve, and on a match record attendance for today (or the given
// session date).
func (s *Service) CheckIn(ctx context.Context, imageData []byte, notes string) (CheckInResult, error) {
	profile, err := s.Profile()
	if err != nil {
		return CheckInResult{}, err
	}

	// The gallery check runs before any search: recognizing against an
	// empty gallery would be meaningless and the rejection must say so.
	report, err := s.gallery.Validate()
	if err != nil {
		return CheckInResult{}, fmt.Errorf("validate gallery: %w", err)
	}
	if !report.HasRecognizable {
		return CheckInResult{Outcome: recognition.RejectedEmptyGallery(profile.Model)}, nil
	}

	candidates, err := s.searcher.Search(ctx, imageData, profile)
	if err != nil {
		// Backend failures never escape the pipeline as errors: the
		// operator gets a structured rejection carrying the failure text.
		log.Printf("attendance: search failed: %v", err)
		return CheckInResult{Outcome: recognition.Rejected(recognition.RejectNoCandidates, profile.Model,
			fmt.Sprintf("recognition backend failure: %v", err))}, nil
	}

	var lookupErr error
	lookup := func(referencePath string) (string, bool) {
		id, ok := gallery.IdentityFromPath(referencePath)
		if !ok {
			return "", false
		}
		exists, err := s.identities.Exists(ctx, id)
		if err != nil {
			lookupErr = err
			return "", false
		}
		return id, exists
	}

	outcome, err := recognition.Resolve(candidates, profile, s.cfg.Recognition.MinConfidence, lookup)
	if err != nil {
		return CheckInResult{}, err
	}
	if lookupErr != nil {
		return CheckInResult{}, fmt.Errorf("resolve identity: %w", lookupErr)
	}
	if !outcome.IsMatch {
		return CheckInResult{Outcome: outcome}, nil
	}

	now := s.now()
	record := &database.AttendanceRecord{
		IdentityID:  outcome.IdentityID,
		SessionDate: now,
		CheckInTime: now,
		Confidence:  outcome.Confidence,
		Distance:    outcome.Distance,
		ModelUsed:   string(outcome.Model),
		Status:      s.statusFor(now),
		Notes:       notes,
	}

	err = s.attendance.RecordCheckIn(ctx, record)
	if errors.Is(err, database.ErrDuplicateForDay) {
		return CheckInResult{Outcome: outcome, Duplicate: true}, nil
	}
	if err != nil {
		return CheckInResult{}, fmt.Errorf("record check-in: %w", err)
	}

	return CheckInResult{Outcome: outcome, Record: record}, nil
}

// statusFor classifies a check-in time as present or late against the
// configured cutoff. An unparsable cutoff disables lateness tracking.
func (s *Service) statusFor(t time.Time) string {
	cutoff, err := time.Parse("15:04", s.cfg.Attendance.LateAfter)
	if err != nil {
		return database.StatusPresent
	}
	limit := time.Date(t.Year(), t.Month(), t.Day(), cutoff.Hour(), cutoff.Minute(), 0, 0, t.Location())
	if t.After(limit) {
		return database.StatusLate
	}
	return database.StatusPresent
}

// VerifyResult is the outcome of a one-to-one comparison of two images.
type VerifyResult struct {
	IsMatch    bool
	Distance   float64
	Confidence float64
	Threshold  float64
	Model      recognition.Model
	// Detail is set when the comparison itself could not run (no face
	// detected, backend failure); the scores are meaningless then.
	Detail string
}

// Verify compares two face images under the active profile's dual gate.
// Backend failures come back as a non-match with Detail set, not an error.
func (s *Service) Verify(ctx context.Context, firstImage, secondImage []byte) (VerifyResult, error) {
	profile, err := s.Profile()
	if err != nil {
		return VerifyResult{}, err
	}

	distance, err := s.searcher.Compare(ctx, firstImage, secondImage, profile)
	if err != nil {
		log.Printf("attendance: compare failed: %v", err)
		return VerifyResult{
			Threshold: profile.Threshold,
			Model:     profile.Model,
			Detail:    fmt.Sprintf("recognition backend failure: %v", err),
		}, nil
	}

	confidence := 1 - distance
	return VerifyResult{
		IsMatch:    distance < profile.Threshold && confidence >= s.cfg.Recognition.MinConfidence,
		Distance:   distance,
		Confidence: confidence,
		Threshold:  profile.Threshold,
		Model:      profile.Model,
	}, nil
}

// ReportSummary is the attendance report for one session date: status
// totals over all enrolled identities plus the individual records.
type ReportSummary struct {
	Date    time.Time
	Present int
	Late    int
	Absent  int
	Records []database.AttendanceRecord
}

// Report builds the attendance report for a session date. Absent counts
// the enrolled identities without a record for the date.
func (s *Service) Report(ctx context.Context, date time.Time) (ReportSummary, error) {
	records, err := s.attendance.ReportByDate(ctx, date)
	if err != nil {
		return ReportSummary{}, fmt.Errorf("load report: %w", err)
	}
	identities, err := s.identities.List(ctx)
	if err != nil {
		return ReportSummary{}, fmt.Errorf("list identities: %w", err)
	}

	summary := ReportSummary{Date: date, Records: records}
	for _, r := range records {
		if r.Status == database.StatusLate {
			summary.Late++
		} else {
			summary.Present++
		}
	}
	if absent := len(identities) - len(records); absent > 0 {
		summary.Absent = absent
	}
	return summary, nil
}

// History returns an identity's attendance records, newest first.
func (s *Service) History(ctx context.Context, identityID string, limit int) ([]database.AttendanceRecord, error) {
	exists, err := s.identities.Exists(ctx, identityID)
	if err != nil {
		return nil, fmt.Errorf("check identity: %w", err)
	}
	if !exists {
		return nil, database.ErrIdentityNotFound
	}
	return s.attendance.HistoryByIdentity(ctx, identityID, limit)
}

// ValidateGallery inspects the gallery without modifying it.
func (s *Service) ValidateGallery() (gallery.Report, error) {
	return s.gallery.Validate()
}
