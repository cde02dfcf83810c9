package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// EmbeddingConfig holds API settings for text-embedding (OpenAI-compatible).
type EmbeddingConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Embed returns the embedding vector for the given text.
func (c *OpenAICompatibleClient) Embed(ctx context.Context, cfg EmbeddingConfig, text string) ([]float32, Usage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, Usage{}, fmt.Errorf("embedding input is empty")
	}

	vectors, usage, err := c.embed(ctx, cfg, text)
	if err != nil {
		return nil, Usage{}, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, Usage{}, fmt.Errorf("empty embedding in response")
	}
	return vectors[0], usage, nil
}

// EmbedBatch returns embeddings for multiple texts in one request.
func (c *OpenAICompatibleClient) EmbedBatch(ctx context.Context, cfg EmbeddingConfig, texts []string) ([][]float32, Usage, error) {
	if len(texts) == 0 {
		return nil, Usage{}, nil
	}
	// Results map back to inputs by position, so blank entries are an
	// error here rather than silently dropped.
	trimmed := make([]string, len(texts))
	for i, t := range texts {
		s := strings.TrimSpace(t)
		if s == "" {
			return nil, Usage{}, fmt.Errorf("embedding input %d is empty", i)
		}
		trimmed[i] = s
	}

	vectors, usage, err := c.embed(ctx, cfg, trimmed)
	if err != nil {
		return nil, Usage{}, err
	}
	if len(vectors) != len(trimmed) {
		return nil, Usage{}, fmt.Errorf("embedding count mismatch: sent %d, got %d", len(trimmed), len(vectors))
	}
	return vectors, usage, nil
}

func (c *OpenAICompatibleClient) embed(ctx context.Context, cfg EmbeddingConfig, input interface{}) ([][]float32, Usage, error) {
	reqBody := map[string]interface{}{
		"model": cfg.Model,
		"input": input,
	}
	raw, err := c.post(ctx, cfg.BaseURL, "/embeddings", cfg.APIKey, reqBody)
	if err != nil {
		return nil, Usage{}, err
	}

	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
		Usage Usage `json:"usage"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, Usage{}, fmt.Errorf("parse embedding json failed: %w", err)
	}
	result := make([][]float32, len(parsed.Data))
	for i := range parsed.Data {
		result[i] = parsed.Data[i].Embedding
	}
	return result, parsed.Usage, nil
}
