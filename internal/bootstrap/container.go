package bootstrap

import (
	"context"
	"log"

	"ai-assistant-be/internal/config"
	"ai-assistant-be/internal/controller"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/repository/implementation"
	"ai-assistant-be/internal/service"
	"ai-assistant-be/pkg/cache"
	"ai-assistant-be/pkg/conversation"
	"ai-assistant-be/pkg/embedding"
	"ai-assistant-be/pkg/llm/factory"
	pktNats "ai-assistant-be/pkg/nats"
	"ai-assistant-be/pkg/pipeline"
	"ai-assistant-be/pkg/search"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController     controller.IChatController
	DocumentController controller.IDocumentController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// Exposed for shutdown handling
	AnswerCache *cache.SimilarityCache
	CacheStore  cache.Store
	EventPub    *pktNats.Publisher
	SysLogger   logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	pipeLogger := service.InitPipelineLogger(cfg.App.PipelineLogPath)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. AI Providers
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "openai" {
		embeddingProvider = embedding.NewOpenAIProvider(cfg.Ai.OpenAIKey, cfg.Ai.OpenAIBaseURL, cfg.Ai.EmbeddingModel)
		log.Printf("[INFO] Using Embedding Provider: OPENAI (%s)", cfg.Ai.EmbeddingModel)
	} else {
		embeddingProvider = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.EmbeddingModel)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.EmbeddingModel)
	}

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.OpenAIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 4. Infrastructure
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		natsPub = nil
	}

	// 5. Repositories
	documentRepo := implementation.NewDocumentRepository(db)

	// 6. Similarity cache with its persistence backend
	var cacheStore cache.Store
	if cfg.Cache.Backend == "redis" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{
				Addr: cfg.App.RedisURL,
			}
		}
		rdb := redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
		}
		cacheStore = cache.NewRedisStore(rdb, cfg.Cache.RedisKey)
	} else {
		cacheStore = cache.NewFileStore(cfg.Cache.FilePath)
	}

	answerCache := cache.NewSimilarityCache(embeddingProvider, cache.Config{
		Threshold: cfg.Cache.Threshold,
		TTL:       cfg.Cache.TTL,
		Capacity:  cfg.Cache.Capacity,
	}, sysLogger)
	answerCache.Restore(context.Background(), cacheStore)

	// 7. Conversation store
	conversations := conversation.NewStore(cfg.History.WindowTTL)

	// 8. Pipeline collaborators
	retriever := search.NewVectorRetriever(documentRepo, embeddingProvider, cfg.Pipeline.RetrieverThreshold)
	webSearcher := search.NewSerperSearcher(cfg.Ai.SerperKey, cfg.Ai.SerperEndpoint)

	answerPipe := pipeline.NewPipeline(
		retriever,
		webSearcher,
		llmProvider,
		answerCache,
		conversations,
		pipeline.Config{
			TopK:                cfg.Pipeline.TopK,
			ContextBudget:       cfg.Pipeline.ContextBudget,
			CollaboratorTimeout: cfg.Pipeline.CollaboratorTimeout,
		},
		pipeLogger,
	)

	// 9. Services
	publisherService := service.NewPublisherService(cfg.Cache.EmbedTopic, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.Cache.EmbedTopic,
		documentRepo,
		embeddingProvider,
	)

	chatService := service.NewChatService(
		conversations,
		answerPipe,
		answerCache,
		cacheStore,
		natsPub,
		cfg.History.MaxTurns,
		service.StreamSettings{
			Buffer:        cfg.Stream.Buffer,
			IdleKeepalive: cfg.Stream.IdleKeepalive,
			ChunkSize:     cfg.Stream.ChunkSize,
		},
		pipeLogger,
	)
	documentService := service.NewDocumentService(
		documentRepo,
		publisherService,
		embeddingProvider,
		natsPub,
		cfg.Pipeline.RetrieverThreshold,
	)

	// 10. Controllers
	chatController := controller.NewChatController(chatService, sysLogger)
	documentController := controller.NewDocumentController(documentService)

	return &Container{
		ChatController:     chatController,
		DocumentController: documentController,
		ConsumerService:    consumerService,
		AnswerCache:        answerCache,
		CacheStore:         cacheStore,
		EventPub:           natsPub,
		SysLogger:          sysLogger,
	}
}
