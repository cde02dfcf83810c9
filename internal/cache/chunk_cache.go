package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// CachedChunk is the retrieval view of a document chunk: just enough to
// score against a query embedding and build a prompt.
type CachedChunk struct {
	ID         uint      `json:"id"`
	DocumentID uint      `json:"document_id"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"embedding"`
}

// ChunkCache keeps the active chunk set of an app in Redis so every chat
// request does not reload all chunk rows. Invalidated whenever an app's
// documents change.
type ChunkCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewChunkCache(client *redisv9.Client, ttl time.Duration) *ChunkCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ChunkCache{client: client, ttl: ttl}
}

func (c *ChunkCache) Get(ctx context.Context, appID uint) ([]CachedChunk, bool, error) {
	raw, err := c.client.Get(ctx, c.key(appID)).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get chunk cache failed: %w", err)
	}

	var chunks []CachedChunk
	if err := json.Unmarshal([]byte(raw), &chunks); err != nil {
		return nil, false, fmt.Errorf("unmarshal chunk cache failed: %w", err)
	}
	return chunks, true, nil
}

func (c *ChunkCache) Set(ctx context.Context, appID uint, chunks []CachedChunk) error {
	payload, err := json.Marshal(chunks)
	if err != nil {
		return fmt.Errorf("marshal chunk cache failed: %w", err)
	}
	if err := c.client.Set(ctx, c.key(appID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set chunk cache failed: %w", err)
	}
	return nil
}

func (c *ChunkCache) Invalidate(ctx context.Context, appID uint) error {
	if err := c.client.Del(ctx, c.key(appID)).Err(); err != nil {
		return fmt.Errorf("redis invalidate chunk cache failed: %w", err)
	}
	return nil
}

func (c *ChunkCache) key(appID uint) string {
	return fmt.Sprintf("rag:chunks:app:%d", appID)
}
