package app

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"

	"gorm.io/datatypes"

	"peerai-backend/internal/ai"
	"peerai-backend/internal/lease"
	"peerai-backend/internal/model"
	"peerai-backend/internal/pkg/textextract"
	"peerai-backend/internal/platform/logger"
	"peerai-backend/internal/platform/rabbitmq"
	"peerai-backend/internal/repository"
	"peerai-backend/internal/storage"
)

var (
	ErrAlreadyProcessing = errors.New("document is already being processed")
	ErrNoExtractableText = errors.New("document contains no extractable text")
)

// EmbeddingClient is the slice of the LLM client that ingestion needs.
type EmbeddingClient interface {
	EmbedBatchWithRetry(ctx context.Context, cfg ai.EmbeddingConfig, texts []string, maxRetries int) ([][]float32, ai.Usage, error)
}

// ProcessingServiceConfig carries the chunking/retry knobs from config.
type ProcessingServiceConfig struct {
	ChunkSize          int
	ChunkOverlap       int
	EmbeddingBatchSize int
	MaxRetries         int
}

// ProcessingService turns a stored document into embedded chunks:
// lease -> fetch -> extract -> chunk -> embed -> replace chunk rows ->
// flip the processed flag. A failure marks the document and never aborts
// the rest of the batch.
type ProcessingService struct {
	cfg         ProcessingServiceConfig
	docRepo     *repository.DocumentRepository
	chunkRepo   *repository.DocumentChunkRepository
	appDocRepo  *repository.AppDocumentRepository
	usageRepo   *repository.UsageRepository
	store       storage.ObjectStore
	embedder    EmbeddingClient
	embConfig   ai.EmbeddingConfig
	leases      lease.Lease
	invalidator ChunkInvalidator
	log         *logger.Logger
}

func NewProcessingService(
	cfg ProcessingServiceConfig,
	docRepo *repository.DocumentRepository,
	chunkRepo *repository.DocumentChunkRepository,
	appDocRepo *repository.AppDocumentRepository,
	usageRepo *repository.UsageRepository,
	store storage.ObjectStore,
	embedder EmbeddingClient,
	embConfig ai.EmbeddingConfig,
	leases lease.Lease,
	invalidator ChunkInvalidator,
	log *logger.Logger,
) *ProcessingService {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 512
	}
	if cfg.EmbeddingBatchSize <= 0 {
		cfg.EmbeddingBatchSize = 10
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &ProcessingService{
		cfg:         cfg,
		docRepo:     docRepo,
		chunkRepo:   chunkRepo,
		appDocRepo:  appDocRepo,
		usageRepo:   usageRepo,
		store:       store,
		embedder:    embedder,
		embConfig:   embConfig,
		leases:      leases,
		invalidator: invalidator,
		log:         log,
	}
}

// RunJob processes every document in the job, associating each with the
// target app. Per-document failures are recorded on the document row and
// do not fail the job.
func (s *ProcessingService) RunJob(ctx context.Context, job rabbitmq.IngestJob) error {
	docs, err := s.resolveDocuments(job)
	if err != nil {
		return err
	}

	for i := range docs {
		doc := &docs[i]
		if doc.TeamID != job.TeamID {
			s.log.Warn("skipping document from another team", "document_id", doc.ID)
			continue
		}
		if err := s.appDocRepo.Upsert(job.AppID, doc.ID); err != nil {
			return err
		}
		if doc.UploadSession != "" {
			if err := s.docRepo.ClearSession(doc.ID); err != nil {
				return err
			}
		}

		if err := s.ProcessDocument(ctx, doc, job.AppID, job.TeamID); err != nil {
			if errors.Is(err, ErrAlreadyProcessing) {
				s.log.Info("document held by another processor", "document_id", doc.ID)
				continue
			}
			s.log.Warn("document processing failed", "document_id", doc.ID, "error", err)
			if markErr := s.docRepo.MarkFailed(doc.ID, err.Error()); markErr != nil {
				return markErr
			}
		}
	}

	// Freshly embedded chunks must be visible to the next chat request,
	// not after the cached retrieval set expires.
	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, job.AppID); err != nil {
			s.log.Warn("invalidate chunk cache failed", "app_id", job.AppID, "error", err)
		}
	}
	return nil
}

func (s *ProcessingService) resolveDocuments(job rabbitmq.IngestJob) ([]model.Document, error) {
	if job.SessionToken != "" {
		return s.docRepo.ListBySessionToken(job.SessionToken)
	}
	docs := make([]model.Document, 0, len(job.DocumentIDs))
	for _, id := range job.DocumentIDs {
		doc, err := s.docRepo.GetByID(id)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			continue
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

// ProcessDocument builds the chunk rows for one document under the
// processing lease. Re-running converges: existing chunks are replaced,
// never duplicated.
func (s *ProcessingService) ProcessDocument(ctx context.Context, doc *model.Document, appID, teamID uint) error {
	ok, err := s.leases.Acquire(ctx, doc.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyProcessing
	}
	defer func() {
		_ = s.leases.Release(context.WithoutCancel(ctx), doc.ID)
	}()

	obj, err := s.store.Get(ctx, doc.StoragePath)
	if err != nil {
		return err
	}
	defer obj.Close()

	ext := strings.ToLower(filepath.Ext(doc.Filename))
	text, err := textextract.Extract(ext, obj)
	if err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrNoExtractableText
	}

	pieces := chunkText(text, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	// Interior whitespace runs can yield chunks the embedding API rejects;
	// they carry no content, so drop them before batching.
	kept := pieces[:0]
	for _, p := range pieces {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	pieces = kept
	if len(pieces) == 0 {
		return ErrNoExtractableText
	}

	var embeddings [][]float32
	var totalUsage ai.Usage
	for i := 0; i < len(pieces); i += s.cfg.EmbeddingBatchSize {
		end := i + s.cfg.EmbeddingBatchSize
		if end > len(pieces) {
			end = len(pieces)
		}
		batch, usage, err := s.embedder.EmbedBatchWithRetry(ctx, s.embConfig, pieces[i:end], s.cfg.MaxRetries)
		if err != nil {
			return err
		}
		embeddings = append(embeddings, batch...)
		totalUsage.PromptTokens += usage.PromptTokens
		totalUsage.TotalTokens += usage.TotalTokens
	}
	if len(embeddings) != len(pieces) {
		return errors.New("embedding count mismatch")
	}

	meta, _ := json.Marshal(map[string]string{"source": doc.Filename})
	chunks := make([]model.DocumentChunk, len(pieces))
	for i := range pieces {
		chunks[i] = model.DocumentChunk{
			DocumentID:    doc.ID,
			ChunkIndex:    i,
			Text:          pieces[i],
			ChunkMetadata: datatypes.JSON(meta),
		}
		chunks[i].SetEmbedding(embeddings[i])
	}
	if err := s.chunkRepo.ReplaceForDocument(doc.ID, chunks); err != nil {
		return err
	}
	if err := s.docRepo.MarkProcessed(doc.ID, len(chunks)); err != nil {
		return err
	}

	if s.usageRepo != nil {
		usageRecord := &model.UsageRecord{
			TeamID:       teamID,
			UserID:       doc.UploadedByID,
			AppID:        appID,
			Kind:         model.UsageKindEmbedding,
			Model:        s.embConfig.Model,
			PromptTokens: totalUsage.PromptTokens,
			TotalTokens:  totalUsage.TotalTokens,
		}
		if err := s.usageRepo.Create(usageRecord); err != nil {
			s.log.Warn("record embedding usage failed", "document_id", doc.ID, "error", err)
		}
	}

	s.log.Info("document processed", "document_id", doc.ID, "chunks", len(chunks), "tokens", totalUsage.TotalTokens)
	return nil
}
