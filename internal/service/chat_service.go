package service

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"ai-assistant-be/internal/dto"
	"ai-assistant-be/pkg/cache"
	"ai-assistant-be/pkg/conversation"
	"ai-assistant-be/pkg/events"
	pktNats "ai-assistant-be/pkg/nats"
	"ai-assistant-be/pkg/pipeline"
	"ai-assistant-be/pkg/store"
	"ai-assistant-be/pkg/stream"

	"github.com/google/uuid"
)

// IChatService defines the chat service interface
type IChatService interface {
	CreateConversation(ctx context.Context, request *dto.CreateConversationRequest) (*dto.CreateConversationResponse, error)
	SendChat(ctx context.Context, request *dto.SendChatRequest) (*dto.SendChatResponse, error)
	StreamChat(ctx context.Context, request *dto.SendChatRequest) (*stream.Bridge, error)
	GetChatHistory(ctx context.Context, conversationId uuid.UUID) (*dto.GetChatHistoryResponse, error)
	DeleteConversation(ctx context.Context, conversationId uuid.UUID) error
	CacheStats() *dto.CacheStatsResponse
	ClearCache() *dto.ClearCacheResponse
}

// StreamSettings control how an execution is replayed onto a Bridge.
type StreamSettings struct {
	Buffer        int
	IdleKeepalive time.Duration
	ChunkSize     int
}

type chatService struct {
	conversations *conversation.Store
	answerPipe    *pipeline.Pipeline
	answerCache   *cache.SimilarityCache
	cacheStore    cache.Store
	eventPub      *pktNats.Publisher
	maxTurns      int
	streamCfg     StreamSettings
	pipeLogger    *log.Logger
}

func NewChatService(
	conversations *conversation.Store,
	answerPipe *pipeline.Pipeline,
	answerCache *cache.SimilarityCache,
	cacheStore cache.Store,
	eventPub *pktNats.Publisher,
	maxTurns int,
	streamCfg StreamSettings,
	pipeLogger *log.Logger,
) IChatService {
	return &chatService{
		conversations: conversations,
		answerPipe:    answerPipe,
		answerCache:   answerCache,
		cacheStore:    cacheStore,
		eventPub:      eventPub,
		maxTurns:      maxTurns,
		streamCfg:     streamCfg,
		pipeLogger:    pipeLogger,
	}
}

// InitPipelineLogger opens the isolated trace log for pipeline executions.
func InitPipelineLogger(logPath string) *log.Logger {
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		log.Printf("Failed to create logs directory: %v", err)
	}
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return log.New(os.Stdout, "[PIPELINE] ", log.LstdFlags)
	}
	return log.New(file, "", log.LstdFlags)
}

// CreateConversation opens a new empty conversation for the owner.
func (cs *chatService) CreateConversation(_ context.Context, request *dto.CreateConversationRequest) (*dto.CreateConversationResponse, error) {
	id := cs.conversations.CreateConversation(request.OwnerId)
	return &dto.CreateConversationResponse{Id: id}, nil
}

// SendChat runs one blocking pipeline execution and returns the full result.
func (cs *chatService) SendChat(ctx context.Context, request *dto.SendChatRequest) (*dto.SendChatResponse, error) {
	result, err := cs.execute(ctx, request, nil)
	if err != nil {
		return nil, err
	}
	return cs.toResponse(request.ConversationId, result), nil
}

// StreamChat starts an execution in the background and returns a Bridge the
// transport can consume. The pipeline always runs to completion even when the
// consumer goes away; the Bridge absorbs undeliverable events.
func (cs *chatService) StreamChat(ctx context.Context, request *dto.SendChatRequest) (*stream.Bridge, error) {
	if !cs.conversations.Exists(request.ConversationId) {
		return nil, conversation.ErrNotFound
	}

	bridge := stream.NewBridge(cs.streamCfg.Buffer, cs.streamCfg.IdleKeepalive)

	// The execution must outlive the transport: a consumer disconnect closes
	// the Bridge but never cancels the pipeline.
	runCtx := context.WithoutCancel(ctx)

	go func() {
		bridge.Emit(stream.Event{Type: stream.EventThinkingStart})

		result, err := cs.execute(runCtx, request, func(step pipeline.ThinkingStep) {
			bridge.Emit(stream.Event{Type: stream.EventThinkingUpdate, Payload: toStepDTO(step)})
		})
		if err != nil {
			bridge.Finish(stream.Event{Type: stream.EventError, Payload: map[string]interface{}{"error": err.Error()}})
			return
		}

		if len(result.Documents) > 0 {
			bridge.Emit(stream.Event{Type: stream.EventDocumentsReady, Payload: toDocumentDTOs(result.Documents)})
		}
		for _, chunk := range chunkAnswer(result.Answer, cs.streamCfg.ChunkSize) {
			bridge.Emit(stream.Event{Type: stream.EventAnswerChunk, Payload: chunk})
		}
		bridge.Emit(stream.Event{Type: stream.EventAnswerComplete, Payload: cs.toResponse(request.ConversationId, result)})
		bridge.Finish(stream.Event{Type: stream.EventDone})
	}()

	return bridge, nil
}

// execute is the shared body of SendChat and StreamChat: load the history
// window, append the user turn, run the pipeline, then feed the cache and
// the event bus.
func (cs *chatService) execute(ctx context.Context, request *dto.SendChatRequest, onStep func(pipeline.ThinkingStep)) (*pipeline.Result, error) {
	history, err := cs.conversations.WindowedHistory(request.ConversationId, cs.maxTurns)
	if err != nil {
		return nil, err
	}
	if err := cs.conversations.Append(request.ConversationId, store.RoleUser, request.Query, nil); err != nil {
		return nil, err
	}

	result, err := cs.answerPipe.Run(ctx, pipeline.Input{
		ConversationID: request.ConversationId,
		Query:          request.Query,
		History:        history,
		ForceWebSearch: request.WebSearch,
		OnStep:         onStep,
	})
	if err != nil {
		return nil, err
	}

	// Only freshly generated answers refresh the cache; cached and fallback
	// answers must not re-enter it.
	if result.Generated && !result.FromCache {
		if err := cs.answerCache.Insert(request.Query, result.Answer, map[string]interface{}{
			"conversation_id": request.ConversationId.String(),
		}); err != nil {
			cs.pipeLogger.Printf("[WARN] Cache insert failed: %v", err)
		} else if cs.cacheStore != nil {
			if err := cs.answerCache.Persist(ctx, cs.cacheStore); err != nil {
				cs.pipeLogger.Printf("[WARN] Cache persist failed: %v", err)
			}
		}
	}

	if cs.eventPub != nil {
		evt := events.NewChatAnswerCompleted(request.ConversationId, result.FromCache, result.Elapsed.Milliseconds(), len(result.Steps))
		if err := cs.eventPub.Publish(ctx, evt); err != nil {
			cs.pipeLogger.Printf("[WARN] Failed to publish CHAT_ANSWER_COMPLETED event: %v", err)
		}
	}

	return result, nil
}

// GetChatHistory returns the full message log of a conversation.
func (cs *chatService) GetChatHistory(_ context.Context, conversationId uuid.UUID) (*dto.GetChatHistoryResponse, error) {
	messages, err := cs.conversations.Messages(conversationId)
	if err != nil {
		return nil, err
	}

	resp := &dto.GetChatHistoryResponse{
		ConversationId: conversationId,
		Messages:       make([]dto.ChatHistoryMessage, 0, len(messages)),
	}
	for _, m := range messages {
		resp.Messages = append(resp.Messages, dto.ChatHistoryMessage{
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
			Tag:       m.Tag,
		})
	}
	return resp, nil
}

// DeleteConversation empties a conversation's message log and drops its
// cached window.
func (cs *chatService) DeleteConversation(_ context.Context, conversationId uuid.UUID) error {
	return cs.conversations.Clear(conversationId)
}

func (cs *chatService) CacheStats() *dto.CacheStatsResponse {
	stats := cs.answerCache.Stats()
	return &dto.CacheStatsResponse{
		Hits:   stats.Hits,
		Misses: stats.Misses,
		Size:   stats.Size,
	}
}

func (cs *chatService) ClearCache() *dto.ClearCacheResponse {
	return &dto.ClearCacheResponse{Evicted: cs.answerCache.Clear()}
}

func (cs *chatService) toResponse(conversationId uuid.UUID, result *pipeline.Result) *dto.SendChatResponse {
	steps := make([]dto.ThinkingStepDTO, 0, len(result.Steps))
	for _, s := range result.Steps {
		steps = append(steps, toStepDTO(s))
	}
	return &dto.SendChatResponse{
		ConversationId: conversationId,
		Answer:         result.Answer,
		FromCache:      result.FromCache,
		Documents:      toDocumentDTOs(result.Documents),
		Steps:          steps,
		ElapsedMs:      result.Elapsed.Milliseconds(),
	}
}

func toStepDTO(step pipeline.ThinkingStep) dto.ThinkingStepDTO {
	return dto.ThinkingStepDTO{
		Name:        step.Name,
		Timestamp:   step.Timestamp,
		Description: step.Description,
		Detail:      step.Detail,
		IsError:     step.IsError,
	}
}

func toDocumentDTOs(docs []store.Document) []dto.DocumentDTO {
	if len(docs) == 0 {
		return nil
	}
	out := make([]dto.DocumentDTO, len(docs))
	for i, d := range docs {
		out[i] = dto.DocumentDTO{
			Id:      d.ID,
			Title:   d.Title,
			Content: d.Content,
			Source:  d.Source,
			Score:   d.Score,
		}
	}
	return out
}

// chunkAnswer splits an answer into transport-sized pieces, never cutting a
// rune in half.
func chunkAnswer(answer string, size int) []string {
	if size <= 0 || len(answer) <= size {
		return []string{answer}
	}
	runes := []rune(answer)
	chunks := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
