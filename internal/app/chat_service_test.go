package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"peerai-backend/internal/ai"
	"peerai-backend/internal/model"
	"peerai-backend/internal/repository"
)

type chatFixture struct {
	svc   *ChatService
	db    *gorm.DB
	llm   *fakeLLM
	cache *memoryChunkCache
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	db := newTestDB(t)
	llm := &fakeLLM{answer: "The vacation policy allows 25 days."}
	chunkCache := newMemoryChunkCache()

	svc := NewChatService(
		repository.NewAppRepository(db),
		repository.NewDocumentRepository(db),
		repository.NewDocumentChunkRepository(db),
		repository.NewUsageRepository(db),
		llm,
		ai.ChatConfig{Model: "mistral-small-latest"},
		ai.EmbeddingConfig{Model: "mistral-embed"},
		chunkCache,
		nil,
	)
	return &chatFixture{svc: svc, db: db, llm: llm, cache: chunkCache}
}

// seedProcessedDoc creates an app with one processed, attached document
// and a few embedded chunks.
func (f *chatFixture) seedProcessedDoc(t *testing.T, teamID uint, texts ...string) *model.App {
	t.Helper()
	a := &model.App{TeamID: teamID, Name: "hr-bot", SystemPrompt: "You answer HR questions.", Model: "mistral-large-latest"}
	require.NoError(t, f.db.Create(a).Error)

	doc := &model.Document{
		TeamID:       teamID,
		UploadedByID: 1,
		Filename:     "handbook.txt",
		SizeBytes:    100,
		StoragePath:  "apps/1/handbook.txt",
		IsProcessed:  true,
		ChunkCount:   len(texts),
	}
	require.NoError(t, f.db.Create(doc).Error)
	require.NoError(t, f.db.Create(&model.AppDocument{AppID: a.ID, DocumentID: doc.ID, IsActive: true}).Error)

	for i, text := range texts {
		chunk := model.DocumentChunk{DocumentID: doc.ID, ChunkIndex: i, Text: text}
		chunk.SetEmbedding(embedText(text))
		require.NoError(t, f.db.Create(&chunk).Error)
	}
	return a
}

func TestAskReturnsGroundedAnswer(t *testing.T) {
	f := newChatFixture(t)
	app := f.seedProcessedDoc(t, 1,
		"Employees get 25 vacation days per year.",
		"The office is closed on public holidays.",
		"Expense reports are due monthly.",
	)

	result, err := f.svc.Ask(context.Background(), AskInput{
		TeamID:   1,
		UserID:   1,
		AppID:    app.ID,
		Question: "How many vacation days do employees get?",
		TopK:     2,
	})
	require.NoError(t, err)

	assert.Equal(t, "The vacation policy allows 25 days.", result.Answer)
	assert.Len(t, result.Sources, 2)
	assert.Greater(t, result.Usage.TotalTokens, 0)

	// The app's own model overrides the configured default.
	assert.Equal(t, "mistral-large-latest", f.llm.lastModel)

	require.Len(t, f.llm.lastMsgs, 2)
	assert.Equal(t, "system", f.llm.lastMsgs[0].Role)
	assert.Equal(t, "You answer HR questions.", f.llm.lastMsgs[0].Content)
	assert.Contains(t, f.llm.lastMsgs[1].Content, "Question: How many vacation days")

	// Both the embedding and the completion call are metered.
	var usage []model.UsageRecord
	require.NoError(t, f.db.Find(&usage).Error)
	require.Len(t, usage, 2)
	kinds := []string{usage[0].Kind, usage[1].Kind}
	assert.Contains(t, kinds, model.UsageKindEmbedding)
	assert.Contains(t, kinds, model.UsageKindChat)
}

func TestAskFillsAndReusesCache(t *testing.T) {
	f := newChatFixture(t)
	app := f.seedProcessedDoc(t, 1, "Only chunk in the corpus.")
	ctx := context.Background()

	_, err := f.svc.Ask(ctx, AskInput{TeamID: 1, UserID: 1, AppID: app.ID, Question: "anything"})
	require.NoError(t, err)

	cached, hit, err := f.cache.Get(ctx, app.ID)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Len(t, cached, 1)

	// Drop the chunk rows; a warm cache still answers.
	require.NoError(t, f.db.Where("1 = 1").Delete(&model.DocumentChunk{}).Error)
	_, err = f.svc.Ask(ctx, AskInput{TeamID: 1, UserID: 1, AppID: app.ID, Question: "again"})
	assert.NoError(t, err)
}

func TestAskValidation(t *testing.T) {
	f := newChatFixture(t)
	app := f.seedProcessedDoc(t, 1, "text")
	ctx := context.Background()

	_, err := f.svc.Ask(ctx, AskInput{TeamID: 1, UserID: 1, AppID: app.ID, Question: "   "})
	assert.ErrorIs(t, err, ErrQuestionEmpty)

	_, err = f.svc.Ask(ctx, AskInput{TeamID: 1, UserID: 1, AppID: 999, Question: "hi"})
	assert.ErrorIs(t, err, ErrAppNotFound)

	// Foreign team cannot reach the app.
	_, err = f.svc.Ask(ctx, AskInput{TeamID: 2, UserID: 1, AppID: app.ID, Question: "hi"})
	assert.ErrorIs(t, err, ErrAppNotFound)
}

func TestAskNoProcessedDocuments(t *testing.T) {
	f := newChatFixture(t)
	a := &model.App{TeamID: 1, Name: "empty-bot"}
	require.NoError(t, f.db.Create(a).Error)

	_, err := f.svc.Ask(context.Background(), AskInput{TeamID: 1, UserID: 1, AppID: a.ID, Question: "hi"})
	assert.ErrorIs(t, err, ErrNoDocumentsForApp)
}

func TestAskIgnoresInactiveDocuments(t *testing.T) {
	f := newChatFixture(t)
	app := f.seedProcessedDoc(t, 1, "active text")

	require.NoError(t, f.db.Model(&model.AppDocument{}).
		Where("app_id = ?", app.ID).
		Update("is_active", false).Error)

	_, err := f.svc.Ask(context.Background(), AskInput{TeamID: 1, UserID: 1, AppID: app.ID, Question: "hi"})
	assert.ErrorIs(t, err, ErrNoDocumentsForApp)
}
