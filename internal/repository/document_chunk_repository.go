package repository

import (
	"fmt"

	"gorm.io/gorm"

	"peerai-backend/internal/model"
)

type DocumentChunkRepository struct {
	db *gorm.DB
}

func NewDocumentChunkRepository(db *gorm.DB) *DocumentChunkRepository {
	return &DocumentChunkRepository{db: db}
}

// ReplaceForDocument deletes any existing chunks of the document and
// inserts the new set in one transaction, so a re-run converges instead of
// duplicating rows.
func (r *DocumentChunkRepository) ReplaceForDocument(documentID uint, chunks []model.DocumentChunk) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).Delete(&model.DocumentChunk{}).Error; err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		return tx.Create(&chunks).Error
	})
	if err != nil {
		return fmt.Errorf("replace chunks for document failed: %w", err)
	}
	return nil
}

// ListByDocumentIDs returns all chunks for the given documents. Caller is
// responsible for scoping document IDs to the requesting team.
func (r *DocumentChunkRepository) ListByDocumentIDs(documentIDs []uint) ([]model.DocumentChunk, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}
	var chunks []model.DocumentChunk
	if err := r.db.Where("document_id IN ?", documentIDs).Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list chunks by document ids failed: %w", err)
	}
	return chunks, nil
}
