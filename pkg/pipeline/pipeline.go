package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"ai-assistant-be/pkg/llm"
	"ai-assistant-be/pkg/search"
	"ai-assistant-be/pkg/store"

	"github.com/google/uuid"
)

// FallbackAnswer is returned when generation fails; generation failure is
// always recoverable at this layer.
const FallbackAnswer = "Sorry, I couldn't generate an answer right now. Please try again in a moment."

// HistoryAppender is the slice of the conversation store the pipeline needs
// to finalize an execution.
type HistoryAppender interface {
	Append(conversationID uuid.UUID, role, content string, tag map[string]string) error
}

// AnswerCache is the slice of the similarity cache the pipeline needs to
// short-circuit an execution.
type AnswerCache interface {
	Lookup(key string) (interface{}, bool)
}

// Config holds per-pipeline tunables.
type Config struct {
	TopK                int           // documents requested per source
	ContextBudget       int           // max context characters for generation
	CollaboratorTimeout time.Duration // per retrieval/search/generation call
}

// Pipeline is the Router → Retrieve/WebSearch → Generate → Finalize state
// machine answering one query. Every stage catches its own collaborator
// errors, downgrades them to an error ThinkingStep and continues with safe
// defaults; the pipeline always reaches Finalized and always produces some
// answer. Only a Finalize failure is fatal to an execution.
type Pipeline struct {
	retriever   search.Retriever
	webSearcher search.WebSearcher
	generator   llm.LLMProvider
	answerCache AnswerCache
	history     HistoryAppender
	cfg         Config
	logger      *log.Logger
}

func NewPipeline(
	retriever search.Retriever,
	webSearcher search.WebSearcher,
	generator llm.LLMProvider,
	answerCache AnswerCache,
	history HistoryAppender,
	cfg Config,
	logger *log.Logger,
) *Pipeline {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.ContextBudget <= 0 {
		cfg.ContextBudget = 4000
	}
	if cfg.CollaboratorTimeout <= 0 {
		cfg.CollaboratorTimeout = 30 * time.Second
	}
	return &Pipeline{
		retriever:   retriever,
		webSearcher: webSearcher,
		generator:   generator,
		answerCache: answerCache,
		history:     history,
		cfg:         cfg,
		logger:      logger,
	}
}

// Input describes one execution request.
type Input struct {
	ConversationID uuid.UUID
	Query          string
	History        []store.Message
	ForceWebSearch bool

	// OnStep, when set, is invoked once per ThinkingStep in the exact order
	// the pipeline produces them.
	OnStep func(ThinkingStep)
}

// Result is the outcome of a finished execution.
type Result struct {
	Answer    string
	Documents []store.Document
	Steps     []ThinkingStep
	FromCache bool
	Generated bool
	Elapsed   time.Duration
}

// Run executes the state machine to completion. The returned error is
// non-nil only when the Finalize stage itself failed.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	ps := &PipelineState{
		ConversationID: in.ConversationID,
		Query:          in.Query,
		History:        in.History,
		ForceWebSearch: in.ForceWebSearch,
		startedAt:      time.Now(),
	}

	state := StateStart
	for state != StateFinalized {
		var err error
		switch state {
		case StateStart:
			state = p.route(ps, in.OnStep)
		case StateRouted:
			state = p.retrieve(ctx, ps, in.OnStep)
		case StateRetrieved:
			state = p.generate(ctx, ps, in.OnStep)
		case StateAnswered:
			state, err = p.finalize(ps, in.OnStep)
		default:
			return nil, fmt.Errorf("pipeline reached invalid state %s", state)
		}
		if err != nil {
			return nil, err
		}
	}

	return &Result{
		Answer:    ps.Answer,
		Documents: ps.ContextDocs,
		Steps:     ps.Steps,
		FromCache: ps.FromCache,
		Generated: ps.Generated,
		Elapsed:   time.Since(ps.startedAt),
	}, nil
}

// route decides the retrieval source, after checking the semantic cache. A
// cache hit jumps straight to Answered with the cached answer; finalization
// still runs identically.
func (p *Pipeline) route(ps *PipelineState, onStep func(ThinkingStep)) State {
	started := time.Now()

	if p.answerCache != nil {
		if value, found := p.answerCache.Lookup(ps.Query); found {
			if answer, ok := value.(string); ok && answer != "" {
				ps.Answer = answer
				ps.FromCache = true
				p.record(ps, onStep, ThinkingStep{
					Name:        "cache_hit",
					Description: "Found a semantically similar cached answer, skipping retrieval and generation",
					Detail: map[string]interface{}{
						"elapsed_ms": time.Since(started).Milliseconds(),
					},
				})
				return StateAnswered
			}
		}
	}

	decision := Route(ps.Query, ps.ForceWebSearch)
	ps.UseWebSearch = decision.UseWebSearch

	source := "knowledge_base"
	if decision.UseWebSearch {
		source = "web_search"
	}
	p.record(ps, onStep, ThinkingStep{
		Name:        "route",
		Description: fmt.Sprintf("Routed query to %s", source),
		Detail: map[string]interface{}{
			"use_web_search": decision.UseWebSearch,
			"matched_terms":  decision.MatchedTerms,
			"explicit_flag":  decision.ExplicitFlag,
			"elapsed_ms":     time.Since(started).Milliseconds(),
		},
	})
	return StateRouted
}

// retrieve calls the route's document source. A failed call yields an empty
// document list plus an error step; execution proceeds either way since
// generation tolerates zero documents. A knowledge-base miss (failure or
// zero documents) falls back to the web searcher so the generator still gets
// context; knowledge-base documents keep priority when both end up populated.
func (p *Pipeline) retrieve(ctx context.Context, ps *PipelineState, onStep func(ThinkingStep)) State {
	if ps.UseWebSearch {
		p.searchWeb(ctx, ps, onStep)
		return StateRetrieved
	}

	started := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.CollaboratorTimeout)
	docs, err := p.retriever.Search(callCtx, ps.Query, p.cfg.TopK)
	cancel()
	if err != nil {
		p.logger.Printf("[PIPELINE] Retrieval failed: %v", err)
		p.record(ps, onStep, ThinkingStep{
			Name:        "retrieval_error",
			Description: "Knowledge-base retrieval failed, falling back to web search",
			Detail:      map[string]interface{}{"error": err.Error(), "elapsed_ms": time.Since(started).Milliseconds()},
			IsError:     true,
		})
	} else {
		ps.RetrievedDocs = docs
		p.record(ps, onStep, ThinkingStep{
			Name:        "retrieval",
			Description: fmt.Sprintf("Knowledge base returned %d documents", len(docs)),
			Detail:      map[string]interface{}{"count": len(docs), "elapsed_ms": time.Since(started).Milliseconds()},
		})
	}

	if len(ps.RetrievedDocs) == 0 {
		p.searchWeb(ctx, ps, onStep)
	}
	return StateRetrieved
}

// searchWeb populates WebDocs, recording either a web_search or a
// web_search_error step.
func (p *Pipeline) searchWeb(ctx context.Context, ps *PipelineState, onStep func(ThinkingStep)) {
	started := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.CollaboratorTimeout)
	defer cancel()

	docs, err := p.webSearcher.Search(callCtx, ps.Query, p.cfg.TopK)
	if err != nil {
		p.logger.Printf("[PIPELINE] Web search failed: %v", err)
		p.record(ps, onStep, ThinkingStep{
			Name:        "web_search_error",
			Description: "Web search failed, continuing with no documents",
			Detail:      map[string]interface{}{"error": err.Error(), "elapsed_ms": time.Since(started).Milliseconds()},
			IsError:     true,
		})
		return
	}
	ps.WebDocs = docs
	p.record(ps, onStep, ThinkingStep{
		Name:        "web_search",
		Description: fmt.Sprintf("Web search returned %d documents", len(docs)),
		Detail:      map[string]interface{}{"count": len(docs), "elapsed_ms": time.Since(started).Milliseconds()},
	})
}

// generate picks documents in priority order (knowledge base over web; web
// results are a fallback, not a merge), truncates them into the context
// budget and asks the generator for an answer. Generation failure downgrades
// to the fixed fallback answer.
func (p *Pipeline) generate(ctx context.Context, ps *PipelineState, onStep func(ThinkingStep)) State {
	started := time.Now()

	docs := ps.RetrievedDocs
	source := "knowledge_base"
	if len(docs) == 0 {
		docs = ps.WebDocs
		source = "web_search"
	}
	if len(docs) == 0 {
		source = "none"
	}

	contextText, usedDocs := BuildContext(docs, p.cfg.ContextBudget)
	ps.ContextDocs = usedDocs

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.CollaboratorTimeout)
	defer cancel()

	answer, err := p.generator.Chat(callCtx, p.buildMessages(ps, contextText))
	if err != nil {
		p.logger.Printf("[PIPELINE] Generation failed: %v", err)
		ps.Answer = FallbackAnswer
		p.record(ps, onStep, ThinkingStep{
			Name:        "generation_error",
			Description: "Generation failed, answering with the fallback message",
			Detail:      map[string]interface{}{"error": err.Error(), "elapsed_ms": time.Since(started).Milliseconds()},
			IsError:     true,
		})
		return StateAnswered
	}

	ps.Answer = answer
	ps.Generated = true
	p.record(ps, onStep, ThinkingStep{
		Name:        "generate",
		Description: "Generated answer from context",
		Detail: map[string]interface{}{
			"source":        source,
			"context_docs":  len(usedDocs),
			"context_chars": len(contextText),
			"elapsed_ms":    time.Since(started).Milliseconds(),
		},
	})
	return StateAnswered
}

// finalize appends the answer to conversation history and emits the
// completion step. This is the only stage whose failure aborts the execution.
func (p *Pipeline) finalize(ps *PipelineState, onStep func(ThinkingStep)) (State, error) {
	tag := map[string]string{"generated": fmt.Sprintf("%t", ps.Generated)}
	if ps.FromCache {
		tag["from_cache"] = "true"
	}

	if err := p.history.Append(ps.ConversationID, store.RoleAssistant, ps.Answer, tag); err != nil {
		p.record(ps, onStep, ThinkingStep{
			Name:        "finalize_error",
			Description: "Failed to append answer to conversation history",
			Detail:      map[string]interface{}{"error": err.Error()},
			IsError:     true,
		})
		return StateFinalized, fmt.Errorf("finalize: %w", err)
	}

	ps.Done = true
	p.record(ps, onStep, ThinkingStep{
		Name:        "complete",
		Description: "Pipeline finished",
		Detail: map[string]interface{}{
			"elapsed_ms": time.Since(ps.startedAt).Milliseconds(),
			"steps":      len(ps.Steps) + 1, // including this step
			"from_cache": ps.FromCache,
		},
	})
	return StateFinalized, nil
}

func (p *Pipeline) buildMessages(ps *PipelineState, contextText string) []llm.Message {
	system := "You are a helpful assistant. Answer the user's question concisely."
	if contextText != "" {
		system = "You are a helpful assistant. Answer the user's question using the context below. " +
			"If the context is not sufficient, say so instead of inventing facts.\n\nContext:\n" + contextText
	}

	messages := make([]llm.Message, 0, len(ps.History)+2)
	messages = append(messages, llm.Message{Role: store.RoleSystem, Content: system})
	for _, m := range ps.History {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: store.RoleUser, Content: ps.Query})
	return messages
}

// record appends a step in causal order and forwards it to the step hook.
func (p *Pipeline) record(ps *PipelineState, onStep func(ThinkingStep), step ThinkingStep) {
	step.Timestamp = time.Now()
	ps.Steps = append(ps.Steps, step)
	p.logger.Printf("[PIPELINE] %s: %s", step.Name, step.Description)
	if onStep != nil {
		onStep(step)
	}
}
