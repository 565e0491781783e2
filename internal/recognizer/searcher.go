package recognizer

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// searchLimit is how many ranked candidates a search returns. The resolver
// only gates on the best one; the rest feed the disagreement diagnostic.
const searchLimit = 10

// maxSearchDistance caps the similarity search at the full cosine range so
// the resolver's dual gate stays the sole accept/reject authority.
const maxSearchDistance = 2.0

// Embedder computes a face embedding for an image.
type Embedder interface {
	Represent(ctx context.Context, imageData []byte, profile recognition.Profile) (*EmbeddingResult, error)
}

// Searcher runs the full similarity search: embed the query image, then rank
// stored reference faces by cosine distance.
type Searcher struct {
	embedder Embedder
	faces    database.ReferenceFaceReader
}

// NewSearcher creates a searcher over the given embedder and reference face store.
func NewSearcher(embedder Embedder, faces database.ReferenceFaceReader) *Searcher {
	return &Searcher{embedder: embedder, faces: faces}
}

// Search returns candidates ranked ascending by distance for the query
// image. "No face detected" is normalized to an empty candidate list, never
// an error: for the caller it means the same thing as no match.
func (s *Searcher) Search(ctx context.Context, imageData []byte, profile recognition.Profile) ([]recognition.Candidate, error) {
	result, err := s.embedder.Represent(ctx, imageData, profile)
	if errors.Is(err, ErrNoFace) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("embed query image: %w", err)
	}

	faces, distances, err := s.faces.FindSimilarWithDistance(
		ctx, result.Embedding, string(profile.Model), searchLimit, maxSearchDistance)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	candidates := make([]recognition.Candidate, 0, len(faces))
	for i := range faces {
		candidates = append(candidates, recognition.Candidate{
			ReferencePath: faces[i].ImagePath,
			Distance:      distances[i],
		})
	}
	return candidates, nil
}

// Compare embeds two images and returns their cosine distance. Used by the
// one-to-one verify operation.
func (s *Searcher) Compare(ctx context.Context, firstImage, secondImage []byte, profile recognition.Profile) (float64, error) {
	first, err := s.embedder.Represent(ctx, firstImage, profile)
	if err != nil {
		return 0, fmt.Errorf("embed first image: %w", err)
	}
	second, err := s.embedder.Represent(ctx, secondImage, profile)
	if err != nil {
		return 0, fmt.Errorf("embed second image: %w", err)
	}

	return database.CosineDistance(first.Embedding, second.Embedding), nil
}
