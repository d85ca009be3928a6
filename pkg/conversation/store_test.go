package conversation

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ai-assistant-be/pkg/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedConversation(t *testing.T, s *Store, count int) uuid.UUID {
	t.Helper()
	id := s.CreateConversation(uuid.New())
	for i := 0; i < count; i++ {
		role := store.RoleUser
		if i%2 == 1 {
			role = store.RoleAssistant
		}
		require.NoError(t, s.Append(id, role, fmt.Sprintf("M%d", i), nil))
	}
	return id
}

func contents(messages []store.Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.Content
	}
	return out
}

func TestAppendAndMessages(t *testing.T) {
	s := NewStore(time.Minute)
	id := s.CreateConversation(uuid.New())

	require.NoError(t, s.Append(id, store.RoleUser, "hello", nil))
	require.NoError(t, s.Append(id, store.RoleAssistant, "hi there", map[string]string{"generated": "true"}))

	messages, err := s.Messages(id)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "hello", messages[0].Content)
	assert.Equal(t, store.RoleAssistant, messages[1].Role)
	assert.Equal(t, "true", messages[1].Tag["generated"])
}

func TestUnknownConversationReturnsNotFound(t *testing.T) {
	s := NewStore(time.Minute)
	id := uuid.New()

	err := s.Append(id, store.RoleUser, "hello", nil)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.Messages(id)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.WindowedHistory(id, 5)
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.True(t, errors.Is(s.Clear(id), ErrNotFound))
	assert.False(t, s.Exists(id))
}

func TestWindowedHistoryShortConversationIsUntouched(t *testing.T) {
	s := NewStore(time.Minute)
	id := seedConversation(t, s, 7)

	window, err := s.WindowedHistory(id, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"M0", "M1", "M2", "M3", "M4", "M5", "M6"}, contents(window))
}

func TestWindowedHistoryAnchorsFirstMessage(t *testing.T) {
	s := NewStore(time.Minute)
	id := seedConversation(t, s, 21)

	window, err := s.WindowedHistory(id, 5)
	require.NoError(t, err)

	// First message plus the last ten: M0, M11..M20.
	want := []string{"M0", "M11", "M12", "M13", "M14", "M15", "M16", "M17", "M18", "M19", "M20"}
	assert.Equal(t, want, contents(window))
}

func TestWindowedHistoryExactBoundary(t *testing.T) {
	s := NewStore(time.Minute)
	id := seedConversation(t, s, 11) // exactly 2*maxTurns+1

	window, err := s.WindowedHistory(id, 5)
	require.NoError(t, err)
	assert.Len(t, window, 11)
	assert.Equal(t, "M0", window[0].Content)
	assert.Equal(t, "M10", window[10].Content)
}

func TestWindowedHistoryInvalidatedOnAppend(t *testing.T) {
	s := NewStore(time.Minute)
	id := seedConversation(t, s, 21)

	first, err := s.WindowedHistory(id, 5)
	require.NoError(t, err)
	assert.Equal(t, "M20", first[len(first)-1].Content)

	require.NoError(t, s.Append(id, store.RoleUser, "M21", nil))

	second, err := s.WindowedHistory(id, 5)
	require.NoError(t, err)
	assert.Equal(t, "M21", second[len(second)-1].Content, "append must invalidate the memoized window")
}

func TestWindowedHistoryRecomputedOnDifferentMaxTurns(t *testing.T) {
	s := NewStore(time.Minute)
	id := seedConversation(t, s, 21)

	wide, err := s.WindowedHistory(id, 5)
	require.NoError(t, err)
	assert.Len(t, wide, 11)

	narrow, err := s.WindowedHistory(id, 2)
	require.NoError(t, err)
	assert.Len(t, narrow, 5)
	assert.Equal(t, "M0", narrow[0].Content)
	assert.Equal(t, "M17", narrow[1].Content)
}

func TestClearEmptiesLogButKeepsConversation(t *testing.T) {
	s := NewStore(time.Minute)
	id := seedConversation(t, s, 4)

	require.NoError(t, s.Clear(id))
	assert.True(t, s.Exists(id))

	messages, err := s.Messages(id)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestConcurrentAppendAndRead(t *testing.T) {
	s := NewStore(time.Minute)
	id := s.CreateConversation(uuid.New())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_ = s.Append(id, store.RoleUser, fmt.Sprintf("msg-%d", n), nil)
		}(i)
		go func() {
			defer wg.Done()
			_, _ = s.WindowedHistory(id, 5)
		}()
	}
	wg.Wait()

	messages, err := s.Messages(id)
	require.NoError(t, err)
	assert.Len(t, messages, 20)
}
