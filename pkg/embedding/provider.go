package embedding

import "math"

// EmbeddingProvider defines the interface for generating text embeddings.
// Implementations must be deterministic: identical input yields an identical
// vector, which the similarity cache relies on for reproducible lookups.
type EmbeddingProvider interface {
	Generate(text string) ([]float32, error)
}

// Normalize scales a vector to unit length (magnitude = 1).
// Cosine distance in pgvector requires normalized vectors for accurate results.
func Normalize(vec []float32) []float32 {
	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)

	// Avoid division by zero
	if magnitude == 0 {
		return vec
	}

	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = float32(float64(v) / magnitude)
	}
	return normalized
}

// Cosine returns the cosine similarity of two vectors. Vectors of unequal
// length have similarity 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
