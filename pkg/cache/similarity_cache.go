package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/embedding"
)

// Entry is a single cached answer keyed by the embedding of its query.
type Entry struct {
	Key       string
	Embedding []float32
	Value     interface{}
	Metadata  map[string]interface{}
	CreatedAt time.Time
	ExpiresAt *time.Time // nil = never expires by time, only by eviction
	HitCount  int
}

// Config holds the tunable parameters of the cache. Threshold and TTL are
// deliberately configuration-driven, not constants.
type Config struct {
	Threshold float64       // minimum cosine similarity for a hit
	TTL       time.Duration // 0 = entries never expire by time
	Capacity  int           // hard ceiling, enforced on every insert
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Size   int    `json:"size"`
}

// SimilarityCache is a TTL + similarity-keyed cache with bounded size.
// Lookups match by cosine similarity of query embeddings rather than exact
// keys, so paraphrased queries can short-circuit the answer pipeline.
//
// Eviction is FIFO by insertion order (O(1), not access-recency). Expiry is
// lazy: expired entries may stay resident but are never returned.
type SimilarityCache struct {
	mu      sync.Mutex
	entries []*Entry // insertion order, oldest first

	embedder embedding.EmbeddingProvider
	cfg      Config
	logger   logger.ILogger

	hits   uint64
	misses uint64

	// Injectable clock for deterministic TTL tests
	now func() time.Time
}

func NewSimilarityCache(embedder embedding.EmbeddingProvider, cfg Config, log logger.ILogger) *SimilarityCache {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.85
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1000
	}
	return &SimilarityCache{
		embedder: embedder,
		cfg:      cfg,
		logger:   log,
		now:      time.Now,
	}
}

// Lookup embeds the key and returns the value of the most similar non-expired
// entry at or above the configured threshold. A tie among equally similar
// entries resolves to the most recently inserted one. Every call increments
// either the hit or the miss counter.
func (c *SimilarityCache) Lookup(key string) (interface{}, bool) {
	vec, err := c.embedder.Generate(key)
	if err != nil {
		c.logger.Warn("SimilarityCache", "Embedding failed during lookup, treating as miss", map[string]interface{}{"error": err.Error()})
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var best *Entry
	var bestScore float64

	// Newest-to-oldest scan with a strict comparison: the first entry seen at
	// a given score is the most recently inserted, so ties resolve to it.
	for i := len(c.entries) - 1; i >= 0; i-- {
		e := c.entries[i]
		if e.ExpiresAt != nil && !now.Before(*e.ExpiresAt) {
			continue // lazy expiry: present but never returned
		}
		score := embedding.Cosine(vec, e.Embedding)
		if score > bestScore {
			best = e
			bestScore = score
		}
	}

	if best == nil || bestScore < c.cfg.Threshold {
		c.misses++
		return nil, false
	}

	best.HitCount++
	c.hits++
	return best.Value, true
}

// Insert embeds the key and stores the entry, evicting the least-recently
// inserted entry first when at capacity.
func (c *SimilarityCache) Insert(key string, value interface{}, metadata map[string]interface{}) error {
	vec, err := c.embedder.Generate(key)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	entry := &Entry{
		Key:       key,
		Embedding: vec,
		Value:     value,
		Metadata:  metadata,
		CreatedAt: now,
	}
	if c.cfg.TTL > 0 {
		exp := now.Add(c.cfg.TTL)
		entry.ExpiresAt = &exp
	}

	if len(c.entries) >= c.cfg.Capacity {
		evicted := c.entries[0]
		c.entries = c.entries[1:]
		c.logger.Debug("SimilarityCache", "Evicted entry at capacity", map[string]interface{}{"key": evicted.Key})
	}
	c.entries = append(c.entries, entry)
	return nil
}

// Clear removes all entries and returns how many were evicted.
func (c *SimilarityCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = nil
	return n
}

// Stats returns a snapshot of the hit/miss counters and current size.
func (c *SimilarityCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Size: len(c.entries)}
}

// Persist serializes the full entry set to the given store.
func (c *SimilarityCache) Persist(ctx context.Context, store Store) error {
	c.mu.Lock()
	snapshot := make(map[string]PersistedEntry, len(c.entries))
	for _, e := range c.entries {
		pe := PersistedEntry{
			Embedding: e.Embedding,
			Value:     e.Value,
			CreatedAt: e.CreatedAt.Unix(),
			Metadata:  e.Metadata,
		}
		if e.ExpiresAt != nil {
			exp := e.ExpiresAt.Unix()
			pe.ExpiresAt = &exp
		}
		snapshot[e.Key] = pe
	}
	c.mu.Unlock()

	return store.Save(ctx, snapshot)
}

// Restore loads the entry set from the given store. A corrupt or missing
// store never fails initialization; the cache degrades to empty with a
// logged warning.
func (c *SimilarityCache) Restore(ctx context.Context, store Store) {
	persisted, err := store.Load(ctx)
	if err != nil {
		c.logger.Warn("SimilarityCache", "Restore failed, starting with empty cache", map[string]interface{}{"error": err.Error()})
		return
	}
	if len(persisted) == 0 {
		return
	}

	entries := make([]*Entry, 0, len(persisted))
	for key, pe := range persisted {
		e := &Entry{
			Key:       key,
			Embedding: pe.Embedding,
			Value:     pe.Value,
			Metadata:  pe.Metadata,
			CreatedAt: time.Unix(pe.CreatedAt, 0),
		}
		if pe.ExpiresAt != nil {
			exp := time.Unix(*pe.ExpiresAt, 0)
			e.ExpiresAt = &exp
		}
		entries = append(entries, e)
	}

	// Re-establish insertion order from creation times so FIFO eviction
	// behaves the same across restarts.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	if len(entries) > c.cfg.Capacity {
		entries = entries[len(entries)-c.cfg.Capacity:]
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()

	c.logger.Info("SimilarityCache", "Restored entries from store", map[string]interface{}{"count": len(entries)})
}
