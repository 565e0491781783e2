package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/pgvector/pgvector-go"
)

// ReferenceFaceRepository provides PostgreSQL-backed reference face storage
// with an optional in-memory HNSW index fast path.
type ReferenceFaceRepository struct {
	pool          *Pool
	hnswIndex     *database.HNSWIndex
	hnswEnabled   bool
	hnswModel     string // model the in-memory index was built for
	hnswIndexPath string // path to persist HNSW index (optional)
	hnswMu        sync.RWMutex
}

// NewReferenceFaceRepository creates a new PostgreSQL reference face repository.
func NewReferenceFaceRepository(pool *Pool) *ReferenceFaceRepository {
	return &ReferenceFaceRepository{pool: pool}
}

// Count returns the number of stored reference faces for a model.
func (r *ReferenceFaceRepository) Count(ctx context.Context, model string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM reference_faces WHERE model = $1", model).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count reference faces: %w", err)
	}
	return count, nil
}

// GetByIdentity retrieves an identity's reference faces for a model.
func (r *ReferenceFaceRepository) GetByIdentity(ctx context.Context, identityID, model string) ([]database.StoredReferenceFace, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, identity_id, image_path, embedding, model, dim, created_at
		FROM reference_faces
		WHERE identity_id = $1 AND model = $2
		ORDER BY id
	`, identityID, model)
	if err != nil {
		return nil, fmt.Errorf("query reference faces: %w", err)
	}
	defer rows.Close()

	return scanReferenceFaces(rows)
}

// GetAll retrieves all reference faces for a model, used to build the HNSW index.
func (r *ReferenceFaceRepository) GetAll(ctx context.Context, model string) ([]database.StoredReferenceFace, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, identity_id, image_path, embedding, model, dim, created_at
		FROM reference_faces
		WHERE model = $1
		ORDER BY id
	`, model)
	if err != nil {
		return nil, fmt.Errorf("query all reference faces: %w", err)
	}
	defer rows.Close()

	return scanReferenceFaces(rows)
}

// FindSimilarWithDistance finds the closest reference faces by cosine
// distance, ascending, capped at maxDistance. Uses the in-memory HNSW index
// when enabled for the model, otherwise PostgreSQL.
func (r *ReferenceFaceRepository) FindSimilarWithDistance(
	ctx context.Context, embedding []float32, model string, limit int, maxDistance float64,
) ([]database.StoredReferenceFace, []float64, error) {
	r.hnswMu.RLock()
	hnswEnabled := r.hnswEnabled && r.hnswIndex != nil && r.hnswModel == model
	r.hnswMu.RUnlock()

	if hnswEnabled {
		return r.findSimilarHNSW(embedding, limit, maxDistance)
	}

	return r.findSimilarPostgres(ctx, embedding, model, limit, maxDistance)
}

// findSimilarHNSW uses the in-memory HNSW index for similarity search.
func (r *ReferenceFaceRepository) findSimilarHNSW(
	embedding []float32, limit int, maxDistance float64,
) ([]database.StoredReferenceFace, []float64, error) {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()

	if r.hnswIndex == nil {
		return nil, nil, errors.New("HNSW index not initialized")
	}

	// Request more candidates to ensure we have enough after distance filtering.
	searchK := limit * database.HNSWSearchMultiplier
	searchK = max(searchK, 100)

	ids, distances, err := r.hnswIndex.Search(embedding, searchK)
	if err != nil {
		return nil, nil, fmt.Errorf("HNSW search: %w", err)
	}

	results := make([]database.StoredReferenceFace, 0, limit)
	distancesOut := make([]float64, 0, limit)

	for i, id := range ids {
		if distances[i] >= maxDistance {
			continue
		}
		face := r.hnswIndex.GetFace(id)
		if face == nil {
			continue
		}
		results = append(results, *face)
		distancesOut = append(distancesOut, distances[i])
		if len(results) >= limit {
			break
		}
	}

	return results, distancesOut, nil
}

// findSimilarPostgres uses PostgreSQL for similarity search with ef_search
// optimization.
func (r *ReferenceFaceRepository) findSimilarPostgres(
	ctx context.Context, embedding []float32, model string, limit int, maxDistance float64,
) ([]database.StoredReferenceFace, []float64, error) {
	tx, err := r.pool.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", database.HNSWEfSearch)); err != nil {
		return nil, nil, fmt.Errorf("set ef_search: %w", err)
	}

	query := `
		SELECT id, identity_id, image_path, embedding, model, dim, created_at,
		       embedding <=> $1::vector AS distance
		FROM reference_faces
		WHERE model = $2 AND embedding <=> $1::vector < $3
		ORDER BY distance
		LIMIT $4
	`

	vec := pgvector.NewVector(embedding)
	rows, err := tx.QueryContext(ctx, query, vec, model, maxDistance, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("query similar reference faces: %w", err)
	}
	defer rows.Close()

	var faces []database.StoredReferenceFace
	var distances []float64

	for rows.Next() {
		var dist float64
		face, err := scanReferenceFaceRow(rows, &dist)
		if err != nil {
			return nil, nil, err
		}
		faces = append(faces, face)
		distances = append(distances, dist)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate reference faces: %w", err)
	}

	return faces, distances, nil
}

// Save stores a reference face embedding, replacing any existing embedding
// for the same image path and model.
func (r *ReferenceFaceRepository) Save(ctx context.Context, face *database.StoredReferenceFace) error {
	vec := pgvector.NewVector(face.Embedding)

	err := r.pool.QueryRow(ctx, `
		INSERT INTO reference_faces (identity_id, image_path, embedding, model, dim)
		VALUES ($1, $2, $3::vector, $4, $5)
		ON CONFLICT (image_path, model) DO UPDATE SET
			identity_id = EXCLUDED.identity_id,
			embedding = EXCLUDED.embedding,
			dim = EXCLUDED.dim,
			created_at = NOW()
		RETURNING id, created_at
	`, face.IdentityID, face.ImagePath, vec, face.Model, face.Dim,
	).Scan(&face.ID, &face.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert reference face: %w", err)
	}

	r.hnswMu.Lock()
	if r.hnswEnabled && r.hnswIndex != nil && r.hnswModel == face.Model {
		if err := r.hnswIndex.Add(face); err != nil {
			log.Printf("reference faces: failed to add face %d to HNSW index: %v", face.ID, err)
		}
	}
	r.hnswMu.Unlock()

	return nil
}

// DeleteByIdentity removes all reference faces for an identity.
// Returns the deleted face IDs for HNSW cleanup.
func (r *ReferenceFaceRepository) DeleteByIdentity(ctx context.Context, identityID string) ([]int64, error) {
	rows, err := r.pool.Query(ctx, "DELETE FROM reference_faces WHERE identity_id = $1 RETURNING id", identityID)
	if err != nil {
		return nil, fmt.Errorf("delete reference faces: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan reference face ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reference face IDs: %w", err)
	}

	r.hnswMu.Lock()
	if r.hnswEnabled && r.hnswIndex != nil {
		for _, id := range ids {
			r.hnswIndex.Delete(id)
		}
	}
	r.hnswMu.Unlock()

	return ids, nil
}

// faceStats returns the count and max ID of reference faces for a model,
// used for HNSW index staleness checks.
func (r *ReferenceFaceRepository) faceStats(ctx context.Context, model string) (int64, int64, error) {
	var count, maxID int64
	err := r.pool.QueryRow(
		ctx, "SELECT COUNT(*), COALESCE(MAX(id), 0) FROM reference_faces WHERE model = $1", model,
	).Scan(&count, &maxID)
	if err != nil {
		return 0, 0, fmt.Errorf("get reference face stats: %w", err)
	}
	return count, maxID, nil
}

// tryLoadIndex attempts to load the HNSW index from disk, checking staleness
// against the database. Returns true if the cached index is usable.
func (r *ReferenceFaceRepository) tryLoadIndex(indexPath string, dbCount, dbMaxID int64) bool {
	metadata, err := database.LoadHNSWMetadata(indexPath)
	if err != nil {
		log.Printf("reference face index: metadata error: %v (will rebuild)", err)
		return false
	}
	if metadata.FaceCount != dbCount || metadata.MaxFaceID != dbMaxID {
		log.Printf("reference face index: stale (db: count=%d max_id=%d, cached: count=%d max_id=%d) (will rebuild)",
			dbCount, dbMaxID, metadata.FaceCount, metadata.MaxFaceID)
		return false
	}

	r.hnswIndex = database.NewHNSWIndex()
	if err := r.hnswIndex.LoadWithFaceMetadata(indexPath); err != nil {
		log.Printf("reference face index: load failed: %v (will rebuild)", err)
		return false
	}
	if r.hnswIndex.IsEmpty() {
		log.Printf("reference face index: loaded graph is empty (will rebuild)")
		return false
	}
	return true
}

// EnableHNSW loads or builds an in-memory HNSW index for the given model.
// If indexPath is provided, it tries to load from disk first and saves after
// building. This should be called once at startup.
func (r *ReferenceFaceRepository) EnableHNSW(ctx context.Context, model, indexPath string) error {
	r.hnswMu.Lock()
	defer r.hnswMu.Unlock()

	r.hnswModel = model
	r.hnswIndexPath = indexPath

	dbCount, dbMaxID, err := r.faceStats(ctx, model)
	if err != nil {
		return err
	}

	if indexPath != "" && r.tryLoadIndex(indexPath, dbCount, dbMaxID) {
		r.hnswEnabled = true
		return nil
	}

	faces, err := r.GetAll(ctx, model)
	if err != nil {
		return fmt.Errorf("load reference faces: %w", err)
	}

	r.hnswIndex = database.NewHNSWIndex()
	if err := r.hnswIndex.BuildFromFaces(faces); err != nil {
		return fmt.Errorf("build HNSW index: %w", err)
	}

	if indexPath != "" && len(faces) > 0 {
		metadata := database.HNSWIndexMetadata{FaceCount: dbCount, MaxFaceID: dbMaxID}
		if err := r.hnswIndex.SaveWithFaceMetadata(indexPath, metadata); err != nil {
			log.Printf("reference face index: failed to save to disk: %v", err)
		}
	}

	r.hnswEnabled = true
	return nil
}

// DisableHNSW disables the in-memory HNSW index, falling back to PostgreSQL queries.
func (r *ReferenceFaceRepository) DisableHNSW() {
	r.hnswMu.Lock()
	defer r.hnswMu.Unlock()
	r.hnswEnabled = false
	r.hnswIndex = nil
}

// IsHNSWEnabled returns whether the in-memory HNSW index is enabled.
func (r *ReferenceFaceRepository) IsHNSWEnabled() bool {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	return r.hnswEnabled && r.hnswIndex != nil
}

// SaveHNSWIndex saves the current HNSW index to disk (if a path is configured).
func (r *ReferenceFaceRepository) SaveHNSWIndex(ctx context.Context) error {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()

	if r.hnswIndexPath == "" || r.hnswIndex == nil {
		return nil
	}

	dbCount, dbMaxID, err := r.faceStats(ctx, r.hnswModel)
	if err != nil {
		return err
	}

	metadata := database.HNSWIndexMetadata{FaceCount: dbCount, MaxFaceID: dbMaxID}
	if err := r.hnswIndex.SaveWithFaceMetadata(r.hnswIndexPath, metadata); err != nil {
		return fmt.Errorf("saving HNSW reference face index: %w", err)
	}
	return nil
}

// scanReferenceFaceRow scans a single row into a StoredReferenceFace, with
// optional extra scan destinations appended after the standard columns.
func scanReferenceFaceRow(scanner interface{ Scan(...any) error }, extraDest ...any) (database.StoredReferenceFace, error) {
	var face database.StoredReferenceFace
	var vec pgvector.Vector

	dest := make([]any, 0, 7+len(extraDest))
	dest = append(dest,
		&face.ID,
		&face.IdentityID,
		&face.ImagePath,
		&vec,
		&face.Model,
		&face.Dim,
		&face.CreatedAt,
	)
	dest = append(dest, extraDest...)

	if err := scanner.Scan(dest...); err != nil {
		return face, fmt.Errorf("scan reference face: %w", err)
	}

	face.Embedding = vec.Slice()
	return face, nil
}

func scanReferenceFaces(rows *sql.Rows) ([]database.StoredReferenceFace, error) {
	var faces []database.StoredReferenceFace
	for rows.Next() {
		face, err := scanReferenceFaceRow(rows)
		if err != nil {
			return nil, err
		}
		faces = append(faces, face)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reference faces: %w", err)
	}
	return faces, nil
}

// Verify interface compliance.
var _ database.ReferenceFaceReader = (*ReferenceFaceRepository)(nil)
var _ database.ReferenceFaceWriter = (*ReferenceFaceRepository)(nil)
