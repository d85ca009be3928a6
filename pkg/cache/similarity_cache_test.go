package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (s *stubEmbedder) Generate(text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	if vec, ok := s.vectors[text]; ok {
		return vec, nil
	}
	return []float32{0, 0, 1}, nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}
func (nopLogger) Sync() error                                  { return nil }

func newTestCache(t *testing.T, embedder *stubEmbedder, cfg Config) *SimilarityCache {
	t.Helper()
	return NewSimilarityCache(embedder, cfg, nopLogger{})
}

func TestLookupSemanticHitAndMiss(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"What are the admission requirements for UBC?": {1, 0, 0},
		"UBC admission requirements":                   {0.95, 0.3122499, 0}, // cosine ~0.95 with the stored query
		"best pizza in town":                           {0, 1, 0},
	}}
	c := newTestCache(t, embedder, Config{Threshold: 0.85})

	require.NoError(t, c.Insert("What are the admission requirements for UBC?", "You need a 3.0 GPA.", nil))

	value, found := c.Lookup("UBC admission requirements")
	assert.True(t, found)
	assert.Equal(t, "You need a 3.0 GPA.", value)

	_, found = c.Lookup("best pizza in town")
	assert.False(t, found)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 1, stats.Size)
}

func TestLookupTieGoesToNewestEntry(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"q1":    {1, 0, 0},
		"q2":    {1, 0, 0},
		"query": {1, 0, 0},
	}}
	c := newTestCache(t, embedder, Config{Threshold: 0.85})

	require.NoError(t, c.Insert("q1", "old answer", nil))
	require.NoError(t, c.Insert("q2", "new answer", nil))

	value, found := c.Lookup("query")
	assert.True(t, found)
	assert.Equal(t, "new answer", value)
}

func TestLookupLazyTTLExpiry(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{"q": {1, 0, 0}}}
	c := newTestCache(t, embedder, Config{Threshold: 0.85, TTL: time.Hour})

	base := time.Now()
	c.now = func() time.Time { return base }
	require.NoError(t, c.Insert("q", "answer", nil))

	c.now = func() time.Time { return base.Add(30 * time.Minute) }
	_, found := c.Lookup("q")
	assert.True(t, found, "entry within TTL must be returned")

	c.now = func() time.Time { return base.Add(2 * time.Hour) }
	_, found = c.Lookup("q")
	assert.False(t, found, "expired entry must never be returned")

	// Expiry is lazy: the entry stays resident until evicted.
	assert.Equal(t, 1, c.Stats().Size)
}

func TestInsertEvictsOldestAtCapacity(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"q1": {1, 0, 0},
		"q2": {0, 1, 0},
		"q3": {0, 0, 1},
	}}
	c := newTestCache(t, embedder, Config{Threshold: 0.85, Capacity: 2})

	require.NoError(t, c.Insert("q1", "a1", nil))
	require.NoError(t, c.Insert("q2", "a2", nil))
	require.NoError(t, c.Insert("q3", "a3", nil))

	assert.Equal(t, 2, c.Stats().Size)

	_, found := c.Lookup("q1")
	assert.False(t, found, "oldest entry must have been evicted first")

	v2, found := c.Lookup("q2")
	assert.True(t, found)
	assert.Equal(t, "a2", v2)

	v3, found := c.Lookup("q3")
	assert.True(t, found)
	assert.Equal(t, "a3", v3)
}

func TestLookupEmbedFailureIsAMiss(t *testing.T) {
	embedder := &stubEmbedder{err: errors.New("model offline")}
	c := newTestCache(t, embedder, Config{})

	_, found := c.Lookup("anything")
	assert.False(t, found)
	assert.Equal(t, uint64(1), c.Stats().Misses)
}

func TestClear(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{"q": {1, 0, 0}}}
	c := newTestCache(t, embedder, Config{})

	require.NoError(t, c.Insert("q", "a", nil))
	assert.Equal(t, 1, c.Clear())
	assert.Equal(t, 0, c.Stats().Size)
	assert.Equal(t, 0, c.Clear())
}

func TestPersistAndRestoreRoundTrip(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"q1": {1, 0, 0},
		"q2": {0, 1, 0},
	}}
	store := NewFileStore(filepath.Join(t.TempDir(), "cache.json"))

	c := newTestCache(t, embedder, Config{Threshold: 0.85, TTL: time.Hour})
	require.NoError(t, c.Insert("q1", "a1", map[string]interface{}{"conversation_id": "abc"}))
	require.NoError(t, c.Insert("q2", "a2", nil))
	require.NoError(t, c.Persist(context.Background(), store))

	restored := newTestCache(t, embedder, Config{Threshold: 0.85, TTL: time.Hour})
	restored.Restore(context.Background(), store)

	assert.Equal(t, 2, restored.Stats().Size)

	v, found := restored.Lookup("q1")
	assert.True(t, found)
	assert.Equal(t, "a1", v)

	v, found = restored.Lookup("q2")
	assert.True(t, found)
	assert.Equal(t, "a2", v)
}

func TestRestoreCorruptStoreDegradesToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not valid json"), 0644))

	c := newTestCache(t, &stubEmbedder{}, Config{})
	c.Restore(context.Background(), NewFileStore(path))

	assert.Equal(t, 0, c.Stats().Size)
}

func TestRestoreMissingFileIsEmpty(t *testing.T) {
	c := newTestCache(t, &stubEmbedder{}, Config{})
	c.Restore(context.Background(), NewFileStore(filepath.Join(t.TempDir(), "missing.json")))
	assert.Equal(t, 0, c.Stats().Size)
}

func TestRestoreTrimsToCapacityByAge(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"q1": {1, 0, 0},
		"q2": {0, 1, 0},
		"q3": {0, 0, 1},
	}}
	store := NewFileStore(filepath.Join(t.TempDir(), "cache.json"))

	big := newTestCache(t, embedder, Config{Capacity: 3})
	base := time.Now().Add(-time.Minute)
	for i, key := range []string{"q1", "q2", "q3"} {
		at := base.Add(time.Duration(i) * time.Second)
		big.now = func() time.Time { return at }
		require.NoError(t, big.Insert(key, key+"-answer", nil))
	}
	require.NoError(t, big.Persist(context.Background(), store))

	small := newTestCache(t, embedder, Config{Threshold: 0.85, Capacity: 2})
	small.Restore(context.Background(), store)

	assert.Equal(t, 2, small.Stats().Size)
	_, found := small.Lookup("q1")
	assert.False(t, found, "oldest persisted entry must be dropped when over capacity")
}
