package database

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/coder/hnsw"
)

// HNSWIndexMetadata stores metadata for validating cached HNSW indexes.
type HNSWIndexMetadata struct {
	FaceCount int64     `json:"face_count"`
	MaxFaceID int64     `json:"max_face_id"`
	BuildTime time.Time `json:"build_time"`
	Version   int       `json:"version"` // For future compatibility
}

const hnswMetadataVersion = 1

// HNSWIndex wraps the HNSW graph for reference face embedding search.
type HNSWIndex struct {
	graph      *hnsw.Graph[int64]
	savedGraph *hnsw.SavedGraph[int64]        // For persistence
	idToFace   map[int64]*StoredReferenceFace // Maps HNSW node ID to reference face
	mu         sync.RWMutex
	path       string
}

// NewHNSWIndex creates a new empty HNSW index.
func NewHNSWIndex() *HNSWIndex {
	return &HNSWIndex{
		idToFace: make(map[int64]*StoredReferenceFace),
	}
}

func newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance
	return g
}

// BuildFromFaces builds the index from a slice of reference faces.
func (h *HNSWIndex) BuildFromFaces(faces []StoredReferenceFace) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(faces) == 0 {
		h.graph = nil
		h.savedGraph = nil
		h.idToFace = make(map[int64]*StoredReferenceFace)
		return nil
	}

	g := newGraph()
	h.idToFace = make(map[int64]*StoredReferenceFace, len(faces))

	for i := range faces {
		face := &faces[i]
		if len(face.Embedding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(face.ID, face.Embedding))
		h.idToFace[face.ID] = face
	}

	h.graph = g
	return nil
}

// Search finds the k nearest neighbors to the query embedding.
// Returns reference face IDs and their cosine distances.
func (h *HNSWIndex) Search(query []float32, k int) ([]int64, []float64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil && h.savedGraph == nil {
		return nil, nil, errors.New("index not initialized")
	}

	var neighbors []hnsw.Node[int64]
	if h.savedGraph != nil {
		neighbors = h.savedGraph.Search(query, k)
	} else {
		neighbors = h.graph.Search(query, k)
	}

	ids := make([]int64, len(neighbors))
	distances := make([]float64, len(neighbors))

	for i, n := range neighbors {
		ids[i] = n.Key
		// Compute the actual cosine distance from the node embedding; the
		// graph's internal ordering is not exposed as a distance.
		if len(n.Value) > 0 {
			distances[i] = CosineDistance(query, n.Value)
		}
	}

	return ids, distances, nil
}

// GetFace returns the reference face for a given ID.
func (h *HNSWIndex) GetFace(id int64) *StoredReferenceFace {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.idToFace[id]
}

// Add adds a single reference face to the index.
func (h *HNSWIndex) Add(face *StoredReferenceFace) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(face.Embedding) == 0 {
		return nil
	}

	if h.graph == nil {
		h.graph = newGraph()
	}

	h.graph.Add(hnsw.MakeNode(face.ID, face.Embedding))
	h.idToFace[face.ID] = face

	return nil
}

// Delete removes a reference face from the index (marks as deleted).
func (h *HNSWIndex) Delete(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.idToFace, id)
	// Note: HNSW doesn't support true deletion, but removing from idToFace
	// effectively removes it from search results since we filter by lookup.
}

// Count returns the number of indexed reference faces.
func (h *HNSWIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.idToFace)
}

// IsEmpty returns true if the index has no graph data loaded.
func (h *HNSWIndex) IsEmpty() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.graph == nil && h.savedGraph == nil
}

// SaveFaceMetadata saves reference face metadata to a .faces file for fast
// loading at startup.
func SaveFaceMetadata(path string, faces []StoredReferenceFace) error {
	facesPath := path + ".faces"

	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(faces); err != nil {
		return fmt.Errorf("encode reference faces: %w", err)
	}

	if err := os.WriteFile(facesPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("write faces file: %w", err)
	}

	return nil
}

// LoadFaceMetadata loads reference face metadata from a .faces file.
func LoadFaceMetadata(path string) ([]StoredReferenceFace, error) {
	facesPath := path + ".faces"

	data, err := os.ReadFile(facesPath) //nolint:gosec // path is from trusted config
	if err != nil {
		return nil, fmt.Errorf("read faces file: %w", err)
	}

	var faces []StoredReferenceFace
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&faces); err != nil {
		return nil, fmt.Errorf("decode reference faces: %w", err)
	}

	return faces, nil
}

// LoadHNSWMetadata loads metadata from a separate .meta file.
func LoadHNSWMetadata(path string) (HNSWIndexMetadata, error) {
	var metadata HNSWIndexMetadata

	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return metadata, fmt.Errorf("read metadata file: %w", err)
	}

	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("unmarshal metadata: %w", err)
	}

	return metadata, nil
}

// LoadWithFaceMetadata loads both the HNSW graph and reference face metadata
// from disk.
func (h *HNSWIndex) LoadWithFaceMetadata(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.path = path

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("HNSW index file not found: %s", path)
	}

	saved, err := hnsw.LoadSavedGraph[int64](path)
	if err != nil {
		return fmt.Errorf("load HNSW index: %w", err)
	}

	faces, err := LoadFaceMetadata(path)
	if err != nil {
		return fmt.Errorf("load face metadata: %w", err)
	}

	h.savedGraph = saved
	h.idToFace = make(map[int64]*StoredReferenceFace, len(faces))
	for i := range faces {
		h.idToFace[faces[i].ID] = &faces[i]
	}

	return nil
}

// SaveWithFaceMetadata persists the index, its staleness metadata and the
// reference face metadata to disk.
func (h *HNSWIndex) SaveWithFaceMetadata(path string, metadata HNSWIndexMetadata) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil && h.savedGraph == nil {
		// Remove existing files if index is empty (best-effort cleanup).
		_ = os.Remove(path)
		_ = os.Remove(path + ".meta")
		_ = os.Remove(path + ".faces")
		return nil
	}

	f, err := os.Create(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("create HNSW index file: %w", err)
	}
	if h.savedGraph != nil {
		err = h.savedGraph.Export(f)
	} else {
		err = h.graph.Export(f)
	}
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("export HNSW graph: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close HNSW index file: %w", err)
	}

	metadata.Version = hnswMetadataVersion
	metaData, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", metaData, 0600); err != nil {
		return fmt.Errorf("write metadata file: %w", err)
	}

	faces := make([]StoredReferenceFace, 0, len(h.idToFace))
	for _, face := range h.idToFace {
		faces = append(faces, *face)
	}
	if err := SaveFaceMetadata(path, faces); err != nil {
		return fmt.Errorf("save face metadata: %w", err)
	}

	return nil
}
