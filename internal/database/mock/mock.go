// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/gallery"
)

// dateKey normalizes a time to its calendar day for map keys.
func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// MockIdentityStore is a mock implementation of database.IdentityStore
type MockIdentityStore struct {
	mu         sync.RWMutex
	identities map[string]*database.Identity

	// Error injection
	CreateError error
	GetError    error
	ListError   error
	UpdateError error
	DeleteError error
	ExistsError error
	SearchError error
}

// NewMockIdentityStore creates a new mock identity store
func NewMockIdentityStore() *MockIdentityStore {
	return &MockIdentityStore{
		identities: make(map[string]*database.Identity),
	}
}

// AddIdentity seeds an identity into the mock store
func (m *MockIdentityStore) AddIdentity(identity database.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identities[identity.ID] = &identity
}

// Create stores a new identity
func (m *MockIdentityStore) Create(ctx context.Context, identity *database.Identity) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.identities[identity.ID]; ok {
		return database.ErrIdentityExists
	}
	identity.CreatedAt = time.Now()
	identity.UpdatedAt = identity.CreatedAt
	stored := *identity
	m.identities[identity.ID] = &stored
	return nil
}

// Get retrieves an identity by ID
func (m *MockIdentityStore) Get(ctx context.Context, id string) (*database.Identity, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	identity, ok := m.identities[id]
	if !ok {
		return nil, database.ErrIdentityNotFound
	}
	copied := *identity
	return &copied, nil
}

// List returns all identities ordered by ID
func (m *MockIdentityStore) List(ctx context.Context) ([]database.Identity, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []database.Identity
	for _, identity := range m.identities {
		results = append(results, *identity)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}

// Update rewrites an identity's mutable fields
func (m *MockIdentityStore) Update(ctx context.Context, identity *database.Identity) error {
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.identities[identity.ID]
	if !ok {
		return database.ErrIdentityNotFound
	}
	existing.FullName = identity.FullName
	existing.GroupName = identity.GroupName
	existing.Email = identity.Email
	existing.UpdatedAt = time.Now()
	return nil
}

// Delete removes an identity
func (m *MockIdentityStore) Delete(ctx context.Context, id string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.identities[id]; !ok {
		return database.ErrIdentityNotFound
	}
	delete(m.identities, id)
	return nil
}

// Exists checks whether an identity ID is enrolled
func (m *MockIdentityStore) Exists(ctx context.Context, id string) (bool, error) {
	if m.ExistsError != nil {
		return false, m.ExistsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.identities[id]
	return ok, nil
}

// SearchByName finds identities by normalized full name
func (m *MockIdentityStore) SearchByName(ctx context.Context, name string) ([]database.Identity, error) {
	if m.SearchError != nil {
		return nil, m.SearchError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	normalized := gallery.NormalizeName(name)
	var results []database.Identity
	for _, identity := range m.identities {
		if gallery.NormalizeName(identity.FullName) == normalized {
			results = append(results, *identity)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}

// MockReferenceFaceStore is a mock implementation of database.ReferenceFaceWriter.
// FindSimilarWithDistance computes real cosine distances so tests can exercise
// the full decision path with crafted embeddings.
type MockReferenceFaceStore struct {
	mu     sync.RWMutex
	faces  map[int64]*database.StoredReferenceFace
	nextID int64

	// Track calls
	SaveCalls   []database.StoredReferenceFace
	DeleteCalls []string

	// Error injection
	CountError       error
	GetError         error
	FindSimilarError error
	SaveError        error
	DeleteError      error
}

// NewMockReferenceFaceStore creates a new mock reference face store
func NewMockReferenceFaceStore() *MockReferenceFaceStore {
	return &MockReferenceFaceStore{
		faces: make(map[int64]*database.StoredReferenceFace),
	}
}

// Count returns the number of stored reference faces for a model
func (m *MockReferenceFaceStore) Count(ctx context.Context, model string) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, face := range m.faces {
		if face.Model == model {
			count++
		}
	}
	return count, nil
}

// GetByIdentity retrieves an identity's reference faces for a model
func (m *MockReferenceFaceStore) GetByIdentity(ctx context.Context, identityID, model string) ([]database.StoredReferenceFace, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []database.StoredReferenceFace
	for _, face := range m.faces {
		if face.IdentityID == identityID && face.Model == model {
			results = append(results, *face)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}

// FindSimilarWithDistance finds the closest reference faces by cosine distance
func (m *MockReferenceFaceStore) FindSimilarWithDistance(ctx context.Context, embedding []float32, model string, limit int, maxDistance float64) ([]database.StoredReferenceFace, []float64, error) {
	if m.FindSimilarError != nil {
		return nil, nil, m.FindSimilarError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		face database.StoredReferenceFace
		dist float64
	}
	var all []scored
	for _, face := range m.faces {
		if face.Model != model {
			continue
		}
		dist := database.CosineDistance(embedding, face.Embedding)
		if dist >= maxDistance {
			continue
		}
		all = append(all, scored{face: *face, dist: dist})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].dist < all[j].dist })

	var faces []database.StoredReferenceFace
	var distances []float64
	for _, s := range all {
		faces = append(faces, s.face)
		distances = append(distances, s.dist)
		if limit > 0 && len(faces) >= limit {
			break
		}
	}
	return faces, distances, nil
}

// Save stores a reference face embedding
func (m *MockReferenceFaceStore) Save(ctx context.Context, face *database.StoredReferenceFace) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	// Replace any existing embedding for the same image path and model.
	for id, existing := range m.faces {
		if existing.ImagePath == face.ImagePath && existing.Model == face.Model {
			delete(m.faces, id)
		}
	}

	m.nextID++
	face.ID = m.nextID
	face.CreatedAt = time.Now()
	stored := *face
	m.faces[face.ID] = &stored
	m.SaveCalls = append(m.SaveCalls, stored)
	return nil
}

// DeleteByIdentity removes all reference faces for an identity
func (m *MockReferenceFaceStore) DeleteByIdentity(ctx context.Context, identityID string) ([]int64, error) {
	if m.DeleteError != nil {
		return nil, m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []int64
	for id, face := range m.faces {
		if face.IdentityID == identityID {
			ids = append(ids, id)
			delete(m.faces, id)
		}
	}
	m.DeleteCalls = append(m.DeleteCalls, identityID)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// MockAttendanceStore is a mock implementation of database.AttendanceStore
type MockAttendanceStore struct {
	mu      sync.RWMutex
	records []database.AttendanceRecord
	byDay   map[string]struct{} // identityID + "|" + date
	nextID  int64

	// Error injection
	RecordError  error
	ReportError  error
	HistoryError error
	CountError   error
}

// NewMockAttendanceStore creates a new mock attendance store
func NewMockAttendanceStore() *MockAttendanceStore {
	return &MockAttendanceStore{
		byDay: make(map[string]struct{}),
	}
}

// RecordCheckIn stores a check-in, enforcing one record per identity per day
func (m *MockAttendanceStore) RecordCheckIn(ctx context.Context, record *database.AttendanceRecord) error {
	if m.RecordError != nil {
		return m.RecordError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := record.IdentityID + "|" + dateKey(record.SessionDate)
	if _, ok := m.byDay[key]; ok {
		return database.ErrDuplicateForDay
	}
	m.byDay[key] = struct{}{}

	m.nextID++
	record.ID = m.nextID
	m.records = append(m.records, *record)
	return nil
}

// ReportByDate returns records for a session date ordered by check-in time
func (m *MockAttendanceStore) ReportByDate(ctx context.Context, date time.Time) ([]database.AttendanceRecord, error) {
	if m.ReportError != nil {
		return nil, m.ReportError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []database.AttendanceRecord
	for _, r := range m.records {
		if dateKey(r.SessionDate) == dateKey(date) {
			results = append(results, r)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].CheckInTime.Before(results[j].CheckInTime) })
	return results, nil
}

// HistoryByIdentity returns an identity's records, newest first
func (m *MockAttendanceStore) HistoryByIdentity(ctx context.Context, identityID string, limit int) ([]database.AttendanceRecord, error) {
	if m.HistoryError != nil {
		return nil, m.HistoryError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []database.AttendanceRecord
	for _, r := range m.records {
		if r.IdentityID == identityID {
			results = append(results, r)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].CheckInTime.After(results[j].CheckInTime) })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// CountByDate returns the number of check-ins for a session date
func (m *MockAttendanceStore) CountByDate(ctx context.Context, date time.Time) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, r := range m.records {
		if dateKey(r.SessionDate) == dateKey(date) {
			count++
		}
	}
	return count, nil
}

// Verify interface compliance
var _ database.IdentityStore = (*MockIdentityStore)(nil)
var _ database.ReferenceFaceReader = (*MockReferenceFaceStore)(nil)
var _ database.ReferenceFaceWriter = (*MockReferenceFaceStore)(nil)
var _ database.AttendanceStore = (*MockAttendanceStore)(nil)
