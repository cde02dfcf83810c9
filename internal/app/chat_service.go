package app

import (
	"context"
	"errors"
	"strings"

	"peerai-backend/internal/ai"
	"peerai-backend/internal/cache"
	"peerai-backend/internal/model"
	"peerai-backend/internal/platform/logger"
	"peerai-backend/internal/repository"
)

var (
	ErrNoDocumentsForApp = errors.New("app has no processed documents")
	ErrNoChunksForApp    = errors.New("no chunks found for retrieval")
	ErrQuestionEmpty     = errors.New("question is empty")
)

const defaultTopK = 5

// LLMClient is the slice of the provider client the chat path needs.
type LLMClient interface {
	Complete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage) (string, ai.Usage, error)
	Embed(ctx context.Context, cfg ai.EmbeddingConfig, text string) ([]float32, ai.Usage, error)
}

// RetrievalCache caches an app's active chunk set between chat requests.
type RetrievalCache interface {
	Get(ctx context.Context, appID uint) ([]cache.CachedChunk, bool, error)
	Set(ctx context.Context, appID uint, chunks []cache.CachedChunk) error
	Invalidate(ctx context.Context, appID uint) error
}

type ChatService struct {
	appRepo    *repository.AppRepository
	docRepo    *repository.DocumentRepository
	chunkRepo  *repository.DocumentChunkRepository
	usageRepo  *repository.UsageRepository
	llmClient  LLMClient
	chatConfig ai.ChatConfig
	embConfig  ai.EmbeddingConfig
	chunks     RetrievalCache
	log        *logger.Logger
}

func NewChatService(
	appRepo *repository.AppRepository,
	docRepo *repository.DocumentRepository,
	chunkRepo *repository.DocumentChunkRepository,
	usageRepo *repository.UsageRepository,
	llmClient LLMClient,
	chatConfig ai.ChatConfig,
	embConfig ai.EmbeddingConfig,
	chunks RetrievalCache,
	log *logger.Logger,
) *ChatService {
	if log == nil {
		log = logger.NewNop()
	}
	return &ChatService{
		appRepo:    appRepo,
		docRepo:    docRepo,
		chunkRepo:  chunkRepo,
		usageRepo:  usageRepo,
		llmClient:  llmClient,
		chatConfig: chatConfig,
		embConfig:  embConfig,
		chunks:     chunks,
		log:        log,
	}
}

type AskInput struct {
	TeamID   uint
	UserID   uint
	AppID    uint
	Question string
	TopK     int
}

type AskSource struct {
	DocumentID uint   `json:"document_id"`
	ChunkID    uint   `json:"chunk_id"`
	Text       string `json:"text"`
}

type AskResult struct {
	Answer  string      `json:"answer"`
	Sources []AskSource `json:"sources"`
	Usage   ai.Usage    `json:"usage"`
}

// Ask retrieves the app's best-matching chunks, builds a grounded prompt,
// and proxies the completion to the provider, metering both calls.
func (s *ChatService) Ask(ctx context.Context, input AskInput) (*AskResult, error) {
	if input.TeamID == 0 || input.AppID == 0 {
		return nil, ErrInvalidInput
	}
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, ErrQuestionEmpty
	}
	topK := input.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	app, err := s.appRepo.GetByIDAndTeamID(input.AppID, input.TeamID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, ErrAppNotFound
	}

	candidates, err := s.loadChunks(ctx, app.ID)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNoChunksForApp
	}

	queryEmb, embUsage, err := s.llmClient.Embed(ctx, s.embConfig, question)
	if err != nil {
		return nil, err
	}

	scored := make([]scoredChunk, len(candidates))
	for i := range candidates {
		scored[i] = scoredChunk{
			chunk: candidates[i],
			score: cosineSimilarity(queryEmb, candidates[i].Embedding),
		}
	}
	top := topKScored(scored, topK)

	var contextBlock strings.Builder
	sources := make([]AskSource, 0, len(top))
	for _, t := range top {
		contextBlock.WriteString("\n---\n")
		contextBlock.WriteString(t.chunk.Text)
		sources = append(sources, AskSource{
			DocumentID: t.chunk.DocumentID,
			ChunkID:    t.chunk.ID,
			Text:       t.chunk.Text,
		})
	}
	contextBlock.WriteString("\n---")

	systemContent := strings.TrimSpace(app.SystemPrompt)
	if systemContent == "" {
		systemContent = "You are a helpful assistant. Answer the user's question based only on the following context. If the context does not contain enough information, say so. Do not make up facts."
	}
	userContent := "Context:" + contextBlock.String() + "\n\nQuestion: " + question + "\n\nAnswer:"

	chatCfg := s.chatConfig
	if app.Model != "" {
		chatCfg.Model = app.Model
	}
	messages := []ai.ChatMessage{
		{Role: "system", Content: systemContent},
		{Role: "user", Content: userContent},
	}
	answer, chatUsage, err := s.llmClient.Complete(ctx, chatCfg, messages)
	if err != nil {
		return nil, err
	}

	s.recordUsage(input, app.ID, model.UsageKindEmbedding, s.embConfig.Model, embUsage)
	s.recordUsage(input, app.ID, model.UsageKindChat, chatCfg.Model, chatUsage)

	return &AskResult{
		Answer:  strings.TrimSpace(answer),
		Sources: sources,
		Usage: ai.Usage{
			PromptTokens:     embUsage.PromptTokens + chatUsage.PromptTokens,
			CompletionTokens: chatUsage.CompletionTokens,
			TotalTokens:      embUsage.TotalTokens + chatUsage.TotalTokens,
		},
	}, nil
}

// loadChunks returns the retrieval candidates for the app, from cache when
// warm, otherwise from the database (and fills the cache).
func (s *ChatService) loadChunks(ctx context.Context, appID uint) ([]cache.CachedChunk, error) {
	if s.chunks != nil {
		if cached, hit, err := s.chunks.Get(ctx, appID); err == nil && hit {
			return cached, nil
		}
	}

	docs, err := s.docRepo.ListActiveProcessedByAppID(appID)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNoDocumentsForApp
	}
	docIDs := make([]uint, len(docs))
	for i := range docs {
		docIDs[i] = docs[i].ID
	}

	rows, err := s.chunkRepo.ListByDocumentIDs(docIDs)
	if err != nil {
		return nil, err
	}
	candidates := make([]cache.CachedChunk, len(rows))
	for i := range rows {
		candidates[i] = cache.CachedChunk{
			ID:         rows[i].ID,
			DocumentID: rows[i].DocumentID,
			Text:       rows[i].Text,
			Embedding:  rows[i].EmbeddingVector(),
		}
	}
	if s.chunks != nil {
		if err := s.chunks.Set(ctx, appID, candidates); err != nil {
			s.log.Warn("fill chunk cache failed", "app_id", appID, "error", err)
		}
	}
	return candidates, nil
}

func (s *ChatService) recordUsage(input AskInput, appID uint, kind, llmModel string, usage ai.Usage) {
	if s.usageRepo == nil {
		return
	}
	record := &model.UsageRecord{
		TeamID:           input.TeamID,
		AppID:            appID,
		UserID:           input.UserID,
		Kind:             kind,
		Model:            llmModel,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
	}
	if err := s.usageRepo.Create(record); err != nil {
		s.log.Warn("record usage failed", "app_id", appID, "kind", kind, "error", err)
	}
}
