package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
)

// PersistedEntry is the on-disk / on-wire shape of a cache entry. This is the
// full contract for any tool that reads the persisted cache directly.
type PersistedEntry struct {
	Embedding []float32              `json:"embedding"`
	Value     interface{}            `json:"value"`
	CreatedAt int64                  `json:"created_at"`
	ExpiresAt *int64                 `json:"expires_at"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Store is a durable key-value backend for the similarity cache.
type Store interface {
	Save(ctx context.Context, entries map[string]PersistedEntry) error
	Load(ctx context.Context) (map[string]PersistedEntry, error)
}

// FileStore persists the cache as a single JSON file.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) Save(_ context.Context, entries map[string]PersistedEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache entries: %w", err)
	}

	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create cache directory: %w", err)
		}
	}

	// Write-then-rename so a crash mid-write never corrupts the live file
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}

func (s *FileStore) Load(_ context.Context) (map[string]PersistedEntry, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			// No store yet is a normal first run, not an error
			return map[string]PersistedEntry{}, nil
		}
		return nil, fmt.Errorf("read cache file: %w", err)
	}

	var entries map[string]PersistedEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse cache file: %w", err)
	}
	return entries, nil
}

// RedisStore persists the cache as a single JSON blob under one Redis key,
// for deployments where the instance filesystem is ephemeral.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = "similarity_cache:entries"
	}
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Save(ctx context.Context, entries map[string]PersistedEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal cache entries: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context) (map[string]PersistedEntry, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return map[string]PersistedEntry{}, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entries map[string]PersistedEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse cache blob: %w", err)
	}
	return entries, nil
}
