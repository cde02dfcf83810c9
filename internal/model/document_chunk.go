package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// DocumentChunk is one embedded text segment of a processed document.
// Embedding is stored as a JSON array of float32 for portability across
// MySQL and the sqlite driver used in tests.
type DocumentChunk struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	DocumentID    uint           `gorm:"not null;index" json:"document_id"`
	ChunkIndex    int            `gorm:"not null" json:"chunk_index"`
	Text          string         `gorm:"type:text;not null" json:"text"`
	Embedding     string         `gorm:"type:text" json:"-"`
	ChunkMetadata datatypes.JSON `json:"chunk_metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// EmbeddingVector returns the parsed embedding slice; empty on parse error.
func (c *DocumentChunk) EmbeddingVector() []float32 {
	if c.Embedding == "" {
		return nil
	}
	var v []float32
	_ = json.Unmarshal([]byte(c.Embedding), &v)
	return v
}

// SetEmbedding stores the embedding as JSON.
func (c *DocumentChunk) SetEmbedding(vec []float32) {
	if len(vec) == 0 {
		c.Embedding = "[]"
		return
	}
	b, _ := json.Marshal(vec)
	c.Embedding = string(b)
}
