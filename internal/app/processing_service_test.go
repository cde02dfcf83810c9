package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"peerai-backend/internal/ai"
	"peerai-backend/internal/cache"
	"peerai-backend/internal/lease"
	"peerai-backend/internal/model"
	"peerai-backend/internal/platform/rabbitmq"
	"peerai-backend/internal/repository"
)

type processingFixture struct {
	svc      *ProcessingService
	db       *gorm.DB
	store    *fakeObjectStore
	embedder *fakeEmbedder
	leases   *lease.MemoryLease
	cache    *memoryChunkCache
}

func newProcessingFixture(t *testing.T) *processingFixture {
	t.Helper()
	db := newTestDB(t)
	store := newFakeObjectStore()
	embedder := &fakeEmbedder{}
	leases := lease.NewMemoryLease(time.Minute)
	chunkCache := newMemoryChunkCache()

	svc := NewProcessingService(
		ProcessingServiceConfig{
			ChunkSize:          16,
			ChunkOverlap:       4,
			EmbeddingBatchSize: 2,
			MaxRetries:         2,
		},
		repository.NewDocumentRepository(db),
		repository.NewDocumentChunkRepository(db),
		repository.NewAppDocumentRepository(db),
		repository.NewUsageRepository(db),
		store,
		embedder,
		ai.EmbeddingConfig{Model: "mistral-embed"},
		leases,
		chunkCache,
		nil,
	)
	return &processingFixture{svc: svc, db: db, store: store, embedder: embedder, leases: leases, cache: chunkCache}
}

func (f *processingFixture) seedStoredDoc(t *testing.T, teamID uint, session, content string) *model.Document {
	t.Helper()
	key := "tmp/" + session + "/doc.txt"
	require.NoError(t, f.store.Put(context.Background(), key, strings.NewReader(content), int64(len(content)), "text/plain"))
	doc := &model.Document{
		TeamID:        teamID,
		UploadedByID:  7,
		Filename:      "doc.txt",
		ContentType:   "text/plain",
		SizeBytes:     int64(len(content)),
		UploadSession: session,
		StoragePath:   key,
	}
	require.NoError(t, f.db.Create(doc).Error)
	return doc
}

func TestRunJobProcessesSessionDocuments(t *testing.T) {
	f := newProcessingFixture(t)
	ctx := context.Background()

	content := strings.Repeat("peer review notes. ", 8)
	docA := f.seedStoredDoc(t, 1, "sess-1", content)
	docB := f.seedStoredDoc(t, 1, "sess-1", content)

	err := f.svc.RunJob(ctx, rabbitmq.IngestJob{
		AppID:        42,
		TeamID:       1,
		RequestedBy:  7,
		SessionToken: "sess-1",
	})
	require.NoError(t, err)

	for _, id := range []uint{docA.ID, docB.ID} {
		var doc model.Document
		require.NoError(t, f.db.First(&doc, id).Error)
		assert.True(t, doc.IsProcessed)
		assert.Empty(t, doc.ProcessingError)
		assert.Greater(t, doc.ChunkCount, 0)
		assert.Empty(t, doc.UploadSession, "session link must be cleared after attachment")

		var chunks int64
		f.db.Model(&model.DocumentChunk{}).Where("document_id = ?", id).Count(&chunks)
		assert.Equal(t, int64(doc.ChunkCount), chunks)
	}

	var links int64
	f.db.Model(&model.AppDocument{}).Where("app_id = ?", 42).Count(&links)
	assert.Equal(t, int64(2), links)

	var usage []model.UsageRecord
	require.NoError(t, f.db.Find(&usage).Error)
	require.Len(t, usage, 2)
	assert.Equal(t, model.UsageKindEmbedding, usage[0].Kind)
	assert.Equal(t, uint(42), usage[0].AppID)
	assert.Greater(t, usage[0].TotalTokens, 0)
}

func TestRunJobInvalidatesChunkCache(t *testing.T) {
	f := newProcessingFixture(t)
	ctx := context.Background()

	// A chat request already warmed the retrieval set for the app.
	require.NoError(t, f.cache.Set(ctx, 42, []cache.CachedChunk{{DocumentID: 1, Text: "old"}}))

	f.seedStoredDoc(t, 1, "sess-c", strings.Repeat("fresh material. ", 6))
	err := f.svc.RunJob(ctx, rabbitmq.IngestJob{
		AppID:        42,
		TeamID:       1,
		SessionToken: "sess-c",
	})
	require.NoError(t, err)

	_, hit, err := f.cache.Get(ctx, 42)
	require.NoError(t, err)
	assert.False(t, hit, "stale retrieval set must not survive ingestion")
	assert.Contains(t, f.cache.invalidated, uint(42))
}

func TestRunJobSkipsForeignTeamDocuments(t *testing.T) {
	f := newProcessingFixture(t)

	f.seedStoredDoc(t, 2, "sess-x", "someone else's data")

	err := f.svc.RunJob(context.Background(), rabbitmq.IngestJob{
		AppID:        1,
		TeamID:       1,
		SessionToken: "sess-x",
	})
	require.NoError(t, err)

	var chunks, links int64
	f.db.Model(&model.DocumentChunk{}).Count(&chunks)
	f.db.Model(&model.AppDocument{}).Count(&links)
	assert.Zero(t, chunks)
	assert.Zero(t, links)
}

func TestRunJobMarksFailureAndContinues(t *testing.T) {
	f := newProcessingFixture(t)
	ctx := context.Background()

	// First document's object is missing; the second is fine.
	broken := &model.Document{
		TeamID:       1,
		UploadedByID: 7,
		Filename:     "gone.txt",
		SizeBytes:    4,
		StoragePath:  "tmp/missing/gone.txt",
	}
	require.NoError(t, f.db.Create(broken).Error)
	good := f.seedStoredDoc(t, 1, "", "healthy content that extracts fine")

	err := f.svc.RunJob(ctx, rabbitmq.IngestJob{
		AppID:       9,
		TeamID:      1,
		DocumentIDs: []uint{broken.ID, good.ID},
	})
	require.NoError(t, err)

	var failed model.Document
	require.NoError(t, f.db.First(&failed, broken.ID).Error)
	assert.False(t, failed.IsProcessed)
	assert.NotEmpty(t, failed.ProcessingError)

	var ok model.Document
	require.NoError(t, f.db.First(&ok, good.ID).Error)
	assert.True(t, ok.IsProcessed)
}

func TestProcessDocumentReplacesChunksOnRerun(t *testing.T) {
	f := newProcessingFixture(t)
	ctx := context.Background()

	doc := f.seedStoredDoc(t, 1, "", strings.Repeat("idempotent ingestion. ", 6))

	require.NoError(t, f.svc.ProcessDocument(ctx, doc, 9, 1))
	var first int64
	f.db.Model(&model.DocumentChunk{}).Where("document_id = ?", doc.ID).Count(&first)
	require.Greater(t, first, int64(0))

	// Re-processing converges instead of duplicating.
	require.NoError(t, f.svc.ProcessDocument(ctx, doc, 9, 1))
	var second int64
	f.db.Model(&model.DocumentChunk{}).Where("document_id = ?", doc.ID).Count(&second)
	assert.Equal(t, first, second)
}

func TestProcessDocumentLeaseExclusion(t *testing.T) {
	f := newProcessingFixture(t)
	ctx := context.Background()

	doc := f.seedStoredDoc(t, 1, "", "contended document")

	held, err := f.leases.Acquire(ctx, doc.ID)
	require.NoError(t, err)
	require.True(t, held)

	err = f.svc.ProcessDocument(ctx, doc, 9, 1)
	assert.ErrorIs(t, err, ErrAlreadyProcessing)

	require.NoError(t, f.leases.Release(ctx, doc.ID))
	assert.NoError(t, f.svc.ProcessDocument(ctx, doc, 9, 1))
}

func TestProcessDocumentEmptyText(t *testing.T) {
	f := newProcessingFixture(t)
	ctx := context.Background()

	doc := f.seedStoredDoc(t, 1, "", "   \n\t  ")

	err := f.svc.ProcessDocument(ctx, doc, 9, 1)
	assert.ErrorIs(t, err, ErrNoExtractableText)
}

func TestProcessDocumentInteriorWhitespaceRun(t *testing.T) {
	f := newProcessingFixture(t)
	ctx := context.Background()

	// A whitespace run longer than the chunk size yields blank chunks;
	// those must be dropped, not fail the whole document.
	content := "leading words" + strings.Repeat(" ", 40) + "trailing words"
	doc := f.seedStoredDoc(t, 1, "", content)

	require.NoError(t, f.svc.ProcessDocument(ctx, doc, 9, 1))

	var got model.Document
	require.NoError(t, f.db.First(&got, doc.ID).Error)
	assert.True(t, got.IsProcessed)
	assert.Empty(t, got.ProcessingError)

	var chunks []model.DocumentChunk
	require.NoError(t, f.db.Where("document_id = ?", doc.ID).Find(&chunks).Error)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.NotEmpty(t, strings.TrimSpace(c.Text))
	}
}
