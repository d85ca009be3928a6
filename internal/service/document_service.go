package service

import (
	"context"
	"encoding/json"
	"log"

	"ai-assistant-be/internal/dto"
	"ai-assistant-be/internal/model"
	"ai-assistant-be/internal/pkg/serverutils"
	"ai-assistant-be/internal/repository/contract"
	"ai-assistant-be/pkg/embedding"
	"ai-assistant-be/pkg/events"
	pktNats "ai-assistant-be/pkg/nats"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type IDocumentService interface {
	Ingest(ctx context.Context, request *dto.IngestDocumentRequest) (*dto.IngestDocumentResponse, error)
	SemanticSearch(ctx context.Context, query string, limit int) (*dto.SemanticSearchResponse, error)
}

type documentService struct {
	documentRepo      contract.DocumentRepository
	publisherService  IPublisherService
	embeddingProvider embedding.EmbeddingProvider
	eventPublisher    *pktNats.Publisher
	searchThreshold   float64
}

func NewDocumentService(
	documentRepo contract.DocumentRepository,
	publisherService IPublisherService,
	embeddingProvider embedding.EmbeddingProvider,
	eventPublisher *pktNats.Publisher,
	searchThreshold float64,
) IDocumentService {
	return &documentService{
		documentRepo:      documentRepo,
		publisherService:  publisherService,
		embeddingProvider: embeddingProvider,
		eventPublisher:    eventPublisher,
		searchThreshold:   searchThreshold,
	}
}

// Ingest stores the document and queues its embedding job. The document is
// searchable once the consumer has processed the job.
func (ds *documentService) Ingest(ctx context.Context, request *dto.IngestDocumentRequest) (*dto.IngestDocumentResponse, error) {
	doc := &model.Document{
		Id:      uuid.New(),
		Title:   request.Title,
		Content: request.Content,
		Source:  request.Source,
	}
	if len(request.Metadata) > 0 {
		raw, err := json.Marshal(request.Metadata)
		if err != nil {
			return nil, serverutils.NewBadRequestError("invalid metadata", err)
		}
		doc.Metadata = datatypes.JSON(raw)
	}

	if err := ds.documentRepo.Create(ctx, doc); err != nil {
		return nil, err
	}

	msgPayload := dto.PublishEmbedDocumentMessage{DocumentId: doc.Id}
	msgJson, err := json.Marshal(msgPayload)
	if err != nil {
		return nil, err
	}
	if err := ds.publisherService.Publish(ctx, msgJson); err != nil {
		return nil, err
	}

	if ds.eventPublisher != nil {
		if err := ds.eventPublisher.Publish(ctx, events.NewDocumentIngested(doc.Id, doc.Title)); err != nil {
			log.Printf("[WARN] Failed to publish DOCUMENT_INGESTED event: %v", err)
		}
	}

	return &dto.IngestDocumentResponse{Id: doc.Id}, nil
}

// SemanticSearch embeds the query and runs a cosine search over the
// knowledge base.
func (ds *documentService) SemanticSearch(ctx context.Context, query string, limit int) (*dto.SemanticSearchResponse, error) {
	if query == "" {
		return nil, serverutils.NewBadRequestError("query is required", nil)
	}
	if limit <= 0 {
		limit = 5
	}

	vec, err := ds.embeddingProvider.Generate(query)
	if err != nil {
		return nil, err
	}

	docs, err := ds.documentRepo.SearchSimilarWithScore(ctx, vec, limit, ds.searchThreshold)
	if err != nil {
		return nil, err
	}

	results := make([]dto.SemanticSearchResult, 0, len(docs))
	for _, d := range docs {
		results = append(results, dto.SemanticSearchResult{
			Id:      d.ID,
			Title:   d.Title,
			Content: d.Content,
			Source:  d.Source,
			Score:   d.Score,
		})
	}

	return &dto.SemanticSearchResponse{Query: query, Results: results}, nil
}
