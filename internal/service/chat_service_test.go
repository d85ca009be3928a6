package service

import (
	"context"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"ai-assistant-be/internal/dto"
	"ai-assistant-be/pkg/cache"
	"ai-assistant-be/pkg/conversation"
	"ai-assistant-be/pkg/llm"
	"ai-assistant-be/pkg/pipeline"
	"ai-assistant-be/pkg/store"
	"ai-assistant-be/pkg/stream"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct{}

// Generate maps equal strings to equal vectors, so the similarity cache sees
// identical queries as exact semantic matches.
func (stubEmbedder) Generate(text string) ([]float32, error) {
	vec := make([]float32, 8)
	for i, r := range text {
		vec[i%8] += float32(r)
	}
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	return vec, nil
}

type stubRetriever struct {
	docs []store.Document
}

func (s *stubRetriever) Search(context.Context, string, int) ([]store.Document, error) {
	return s.docs, nil
}

type stubGenerator struct {
	answer string
	calls  int
}

func (s *stubGenerator) Chat(context.Context, []llm.Message, ...llm.Option) (string, error) {
	s.calls++
	return s.answer, nil
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return s.Chat(ctx, nil, opts...)
}

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}
func (nopLogger) Sync() error                                  { return nil }

func newTestChatService(t *testing.T, gen *stubGenerator) (IChatService, *conversation.Store) {
	t.Helper()
	return newTestChatServiceWith(t, gen, StreamSettings{Buffer: 16, IdleKeepalive: time.Minute, ChunkSize: 10})
}

func newTestChatServiceWith(t *testing.T, gen *stubGenerator, streamCfg StreamSettings) (IChatService, *conversation.Store) {
	t.Helper()

	conversations := conversation.NewStore(time.Minute)
	answerCache := cache.NewSimilarityCache(stubEmbedder{}, cache.Config{Threshold: 0.99}, nopLogger{})
	pipeLogger := log.New(io.Discard, "", 0)

	answerPipe := pipeline.NewPipeline(
		&stubRetriever{docs: []store.Document{{Title: "Doc", Content: "relevant content"}}},
		&stubRetriever{},
		gen,
		answerCache,
		conversations,
		pipeline.Config{},
		pipeLogger,
	)

	svc := NewChatService(
		conversations,
		answerPipe,
		answerCache,
		nil, // no persistence in tests
		nil, // no event bus in tests
		5,
		streamCfg,
		pipeLogger,
	)
	return svc, conversations
}

func TestSendChatAppendsBothTurns(t *testing.T) {
	gen := &stubGenerator{answer: "You need a 3.0 GPA."}
	svc, conversations := newTestChatService(t, gen)

	created, err := svc.CreateConversation(context.Background(), &dto.CreateConversationRequest{OwnerId: uuid.New()})
	require.NoError(t, err)

	res, err := svc.SendChat(context.Background(), &dto.SendChatRequest{
		ConversationId: created.Id,
		Query:          "What are the admission requirements for UBC?",
	})
	require.NoError(t, err)

	assert.Equal(t, "You need a 3.0 GPA.", res.Answer)
	assert.False(t, res.FromCache)
	assert.NotEmpty(t, res.Steps)
	assert.Equal(t, "complete", res.Steps[len(res.Steps)-1].Name)

	messages, err := conversations.Messages(created.Id)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, store.RoleUser, messages[0].Role)
	assert.Equal(t, store.RoleAssistant, messages[1].Role)
}

func TestSendChatSecondIdenticalQueryHitsCache(t *testing.T) {
	gen := &stubGenerator{answer: "cached eventually"}
	svc, _ := newTestChatService(t, gen)

	created, err := svc.CreateConversation(context.Background(), &dto.CreateConversationRequest{OwnerId: uuid.New()})
	require.NoError(t, err)

	req := &dto.SendChatRequest{ConversationId: created.Id, Query: "What is pgvector?"}

	first, err := svc.SendChat(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := svc.SendChat(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Answer, second.Answer)
	assert.Equal(t, 1, gen.calls, "the second answer must come from the cache, not the generator")
}

func TestSendChatUnknownConversation(t *testing.T) {
	svc, _ := newTestChatService(t, &stubGenerator{answer: "x"})

	_, err := svc.SendChat(context.Background(), &dto.SendChatRequest{
		ConversationId: uuid.New(),
		Query:          "hello",
	})
	assert.ErrorIs(t, err, conversation.ErrNotFound)
}

func TestStreamChatEventSequence(t *testing.T) {
	gen := &stubGenerator{answer: strings.Repeat("streaming answer ", 5)}
	svc, _ := newTestChatService(t, gen)

	created, err := svc.CreateConversation(context.Background(), &dto.CreateConversationRequest{OwnerId: uuid.New()})
	require.NoError(t, err)

	bridge, err := svc.StreamChat(context.Background(), &dto.SendChatRequest{
		ConversationId: created.Id,
		Query:          "tell me something",
	})
	require.NoError(t, err)

	var events []stream.Event
	for ev := range bridge.Events() {
		events = append(events, ev)
	}

	require.NotEmpty(t, events)
	assert.Equal(t, stream.EventThinkingStart, events[0].Type)
	assert.Equal(t, stream.EventDone, events[len(events)-1].Type)

	var chunks []string
	counts := map[stream.EventType]int{}
	for _, ev := range events {
		counts[ev.Type]++
		if ev.Type == stream.EventAnswerChunk {
			chunks = append(chunks, ev.Payload.(string))
		}
	}

	assert.Equal(t, 1, counts[stream.EventDone])
	assert.Equal(t, 0, counts[stream.EventError])
	assert.Equal(t, 1, counts[stream.EventAnswerComplete])
	assert.GreaterOrEqual(t, counts[stream.EventThinkingUpdate], 3)
	assert.Equal(t, gen.answer, strings.Join(chunks, ""), "chunks must reassemble the full answer")
}

func TestStreamChatDisconnectStillAppendsAnswer(t *testing.T) {
	gen := &stubGenerator{answer: strings.Repeat("streaming answer ", 20)}
	// A tiny buffer keeps the producer mid-stream when the consumer leaves.
	svc, conversations := newTestChatServiceWith(t, gen, StreamSettings{Buffer: 1, IdleKeepalive: time.Minute, ChunkSize: 4})

	created, err := svc.CreateConversation(context.Background(), &dto.CreateConversationRequest{OwnerId: uuid.New()})
	require.NoError(t, err)

	bridge, err := svc.StreamChat(context.Background(), &dto.SendChatRequest{
		ConversationId: created.Id,
		Query:          "tell me something",
	})
	require.NoError(t, err)

	// Consume two events, then walk away.
	<-bridge.Events()
	<-bridge.Events()
	bridge.Close()

	// The execution keeps running after the disconnect and still finalizes
	// the assistant turn into the conversation.
	require.Eventually(t, func() bool {
		messages, err := conversations.Messages(created.Id)
		return err == nil && len(messages) == 2
	}, 2*time.Second, 10*time.Millisecond)

	messages, err := conversations.Messages(created.Id)
	require.NoError(t, err)
	assert.Equal(t, store.RoleUser, messages[0].Role)
	assert.Equal(t, store.RoleAssistant, messages[1].Role)
	assert.Equal(t, gen.answer, messages[1].Content)
}

func TestStreamChatUnknownConversation(t *testing.T) {
	svc, _ := newTestChatService(t, &stubGenerator{answer: "x"})

	_, err := svc.StreamChat(context.Background(), &dto.SendChatRequest{
		ConversationId: uuid.New(),
		Query:          "hello",
	})
	assert.ErrorIs(t, err, conversation.ErrNotFound)
}

func TestDeleteConversationAndHistory(t *testing.T) {
	svc, _ := newTestChatService(t, &stubGenerator{answer: "x"})

	created, err := svc.CreateConversation(context.Background(), &dto.CreateConversationRequest{OwnerId: uuid.New()})
	require.NoError(t, err)

	_, err = svc.SendChat(context.Background(), &dto.SendChatRequest{ConversationId: created.Id, Query: "q"})
	require.NoError(t, err)

	history, err := svc.GetChatHistory(context.Background(), created.Id)
	require.NoError(t, err)
	assert.Len(t, history.Messages, 2)

	require.NoError(t, svc.DeleteConversation(context.Background(), created.Id))

	history, err = svc.GetChatHistory(context.Background(), created.Id)
	require.NoError(t, err)
	assert.Empty(t, history.Messages)
}

func TestCacheStatsAndClear(t *testing.T) {
	svc, _ := newTestChatService(t, &stubGenerator{answer: "x"})

	created, err := svc.CreateConversation(context.Background(), &dto.CreateConversationRequest{OwnerId: uuid.New()})
	require.NoError(t, err)

	_, err = svc.SendChat(context.Background(), &dto.SendChatRequest{ConversationId: created.Id, Query: "q1"})
	require.NoError(t, err)

	stats := svc.CacheStats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, uint64(1), stats.Misses)

	cleared := svc.ClearCache()
	assert.Equal(t, 1, cleared.Evicted)
	assert.Equal(t, 0, svc.CacheStats().Size)
}

func TestChunkAnswer(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		size   int
		want   int
	}{
		{name: "fits in one chunk", answer: "short", size: 100, want: 1},
		{name: "exact multiple", answer: strings.Repeat("a", 20), size: 10, want: 2},
		{name: "remainder chunk", answer: strings.Repeat("a", 25), size: 10, want: 3},
		{name: "zero size disables chunking", answer: strings.Repeat("a", 25), size: 0, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := chunkAnswer(tt.answer, tt.size)
			if len(chunks) != tt.want {
				t.Errorf("chunkAnswer() produced %d chunks, want %d", len(chunks), tt.want)
			}
			if strings.Join(chunks, "") != tt.answer {
				t.Errorf("chunks do not reassemble the answer")
			}
		})
	}
}
