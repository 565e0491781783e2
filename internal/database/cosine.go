package database

import "math"

// CosineDistance is the distance the recognition pipeline ranks on: 0 for
// embeddings pointing the same way, 2 for opposite ones. One-to-one
// verification and the in-memory search paths use it directly, so its
// semantics must stay aligned with pgvector's `<=>` operator.
func CosineDistance(a, b []float32) float64 {
	// Mismatched or empty embeddings cannot be compared; report them as
	// maximally distant instead of guessing.
	if len(a) != len(b) || len(a) == 0 {
		return 2.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	// A zero vector has no direction.
	if normA == 0 || normB == 0 {
		return 2.0
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Guard against floating point drift outside [-1, 1].
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}

	return 1 - similarity
}
