package conversation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"ai-assistant-be/pkg/store"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// ErrNotFound is returned when a conversation id does not exist.
var ErrNotFound = errors.New("conversation not found")

// Record is a single conversation: an append-only message log. Messages are
// never edited or reordered after being appended.
type Record struct {
	ID           uuid.UUID
	OwnerID      uuid.UUID
	Messages     []store.Message
	CreatedAt    time.Time
	LastAccessed time.Time
}

// cachedWindow is the memoized windowed-history view for one conversation.
type cachedWindow struct {
	maxTurns int
	messages []store.Message
}

// Store holds all active conversations in memory. Appends and windowed-view
// invalidation happen inside one critical section, so a reader never observes
// a stale window alongside a newer message list.
type Store struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*Record

	// Memoized windowed views, one entry per conversation, TTL-bounded and
	// deleted eagerly on every append.
	windows *gocache.Cache
}

// NewStore creates a conversation store. windowTTL bounds how long a
// memoized windowed view stays valid without an append.
func NewStore(windowTTL time.Duration) *Store {
	if windowTTL <= 0 {
		windowTTL = 5 * time.Minute
	}
	return &Store{
		records: make(map[uuid.UUID]*Record),
		windows: gocache.New(windowTTL, 2*windowTTL),
	}
}

// CreateConversation registers a new empty conversation and returns its id.
func (s *Store) CreateConversation(ownerID uuid.UUID) uuid.UUID {
	now := time.Now()
	rec := &Record{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		CreatedAt:    now,
		LastAccessed: now,
	}

	s.mu.Lock()
	s.records[rec.ID] = rec
	s.mu.Unlock()

	return rec.ID
}

// Append adds a message to a conversation and invalidates its cached window.
func (s *Store) Append(conversationID uuid.UUID, role, content string, tag map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[conversationID]
	if !ok {
		return fmt.Errorf("append to %s: %w", conversationID, ErrNotFound)
	}

	rec.Messages = append(rec.Messages, store.Message{
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
		Tag:       tag,
	})
	rec.LastAccessed = time.Now()

	// Same critical section as the append: no reader can see the old window
	// with the new message list.
	s.windows.Delete(conversationID.String())
	return nil
}

// Messages returns a copy of the full message log.
func (s *Store) Messages(conversationID uuid.UUID) ([]store.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[conversationID]
	if !ok {
		return nil, fmt.Errorf("messages of %s: %w", conversationID, ErrNotFound)
	}

	out := make([]store.Message, len(rec.Messages))
	copy(out, rec.Messages)
	return out, nil
}

// WindowedHistory returns a bounded view of a conversation: the first message
// (the anchor that establishes the topic) plus the most recent maxTurns turns,
// where a turn is one user+assistant pair. Dropping the oldest messages
// blindly would silently lose the establishing context later turns reference;
// anchoring the first message preserves topical continuity cheaply.
//
// The view is recomputed lazily and memoized with a TTL, invalidated on append.
func (s *Store) WindowedHistory(conversationID uuid.UUID, maxTurns int) ([]store.Message, error) {
	if cached, found := s.windows.Get(conversationID.String()); found {
		if w, ok := cached.(cachedWindow); ok && w.maxTurns == maxTurns {
			return w.messages, nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[conversationID]
	if !ok {
		return nil, fmt.Errorf("windowed history of %s: %w", conversationID, ErrNotFound)
	}
	rec.LastAccessed = time.Now()

	window := buildWindow(rec.Messages, maxTurns)
	s.windows.Set(conversationID.String(), cachedWindow{maxTurns: maxTurns, messages: window}, gocache.DefaultExpiration)
	return window, nil
}

// buildWindow applies the "first message + recent window" policy.
func buildWindow(messages []store.Message, maxTurns int) []store.Message {
	if maxTurns <= 0 {
		maxTurns = 5
	}
	recent := 2 * maxTurns // a turn = one user+assistant pair

	if len(messages) <= recent+1 {
		out := make([]store.Message, len(messages))
		copy(out, messages)
		return out
	}

	out := make([]store.Message, 0, recent+1)
	out = append(out, messages[0])
	out = append(out, messages[len(messages)-recent:]...)
	return out
}

// Clear empties a conversation's message log.
func (s *Store) Clear(conversationID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[conversationID]
	if !ok {
		return fmt.Errorf("clear %s: %w", conversationID, ErrNotFound)
	}

	rec.Messages = nil
	s.windows.Delete(conversationID.String())
	return nil
}

// Exists reports whether a conversation id is registered.
func (s *Store) Exists(conversationID uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[conversationID]
	return ok
}
