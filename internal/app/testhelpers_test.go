package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"peerai-backend/internal/ai"
	"peerai-backend/internal/cache"
	"peerai-backend/internal/model"
	"peerai-backend/internal/platform/rabbitmq"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&model.Team{},
		&model.User{},
		&model.App{},
		&model.Document{},
		&model.DocumentChunk{},
		&model.AppDocument{},
		&model.UsageRecord{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// fakeObjectStore keeps objects in memory and counts writes, so tests can
// assert that rejected uploads never touch storage.
type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func (f *fakeObjectStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	f.puts++
	return nil
}

func (f *fakeObjectStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %q not found", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeObjectStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeObjectStore) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts
}

func (f *fakeObjectStore) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

// fakePublisher records jobs instead of hitting a broker.
type fakePublisher struct {
	mu   sync.Mutex
	jobs []rabbitmq.IngestJob
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, job rabbitmq.IngestJob) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakePublisher) published() []rabbitmq.IngestJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]rabbitmq.IngestJob, len(f.jobs))
	copy(out, f.jobs)
	return out
}

// fakeEmbedder returns a deterministic unit vector per text.
type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeEmbedder) EmbedBatchWithRetry(_ context.Context, _ ai.EmbeddingConfig, texts []string, _ int) ([][]float32, ai.Usage, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, ai.Usage{}, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = embedText(text)
	}
	usage := ai.Usage{PromptTokens: 3 * len(texts), TotalTokens: 3 * len(texts)}
	return out, usage, nil
}

// embedText maps a string onto a small fixed-dimension vector so cosine
// scores are stable across runs.
func embedText(text string) []float32 {
	v := make([]float32, 4)
	for i, r := range text {
		v[i%4] += float32(r%31) / 31
	}
	var norm float32
	for _, x := range v {
		norm += x * x
	}
	if norm == 0 {
		v[0] = 1
	}
	return v
}

// fakeLLM answers with a canned completion and embeds via embedText.
type fakeLLM struct {
	answer      string
	completeErr error
	lastMsgs    []ai.ChatMessage
	lastModel   string
}

func (f *fakeLLM) Complete(_ context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage) (string, ai.Usage, error) {
	if f.completeErr != nil {
		return "", ai.Usage{}, f.completeErr
	}
	f.lastMsgs = messages
	f.lastModel = cfg.Model
	return f.answer, ai.Usage{PromptTokens: 40, CompletionTokens: 12, TotalTokens: 52}, nil
}

func (f *fakeLLM) Embed(_ context.Context, _ ai.EmbeddingConfig, text string) ([]float32, ai.Usage, error) {
	return embedText(text), ai.Usage{PromptTokens: 3, TotalTokens: 3}, nil
}

// memoryChunkCache implements RetrievalCache and ChunkInvalidator.
type memoryChunkCache struct {
	mu          sync.Mutex
	entries     map[uint][]cache.CachedChunk
	invalidated []uint
}

func newMemoryChunkCache() *memoryChunkCache {
	return &memoryChunkCache{entries: make(map[uint][]cache.CachedChunk)}
}

func (m *memoryChunkCache) Get(_ context.Context, appID uint) ([]cache.CachedChunk, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chunks, ok := m.entries[appID]
	return chunks, ok, nil
}

func (m *memoryChunkCache) Set(_ context.Context, appID uint, chunks []cache.CachedChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[appID] = chunks
	return nil
}

func (m *memoryChunkCache) Invalidate(_ context.Context, appID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, appID)
	m.invalidated = append(m.invalidated, appID)
	return nil
}
