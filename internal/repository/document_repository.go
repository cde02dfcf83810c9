package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"peerai-backend/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(doc *model.Document) error {
	if err := r.db.Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByIDAndTeamID(id, teamID uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("id = ? AND team_id = ?", id, teamID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) GetByID(id uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.First(&doc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) ListBySessionToken(token string) ([]model.Document, error) {
	var docs []model.Document
	if err := r.db.Where("upload_session = ?", token).Order("created_at").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list documents by session failed: %w", err)
	}
	return docs, nil
}

func (r *DocumentRepository) CountBySessionToken(token string) (int64, error) {
	var n int64
	if err := r.db.Model(&model.Document{}).Where("upload_session = ?", token).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count documents by session failed: %w", err)
	}
	return n, nil
}

// ListByAppID returns documents associated with the app together with the
// association's active flag.
func (r *DocumentRepository) ListByAppID(appID uint) ([]model.Document, error) {
	var docs []model.Document
	err := r.db.
		Joins("JOIN app_documents ON app_documents.document_id = documents.id").
		Where("app_documents.app_id = ?", appID).
		Order("documents.created_at DESC").
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("list documents by app failed: %w", err)
	}
	return docs, nil
}

// ListActiveProcessedByAppID returns documents usable for retrieval: the
// association is active and processing finished cleanly.
func (r *DocumentRepository) ListActiveProcessedByAppID(appID uint) ([]model.Document, error) {
	var docs []model.Document
	err := r.db.
		Joins("JOIN app_documents ON app_documents.document_id = documents.id").
		Where("app_documents.app_id = ? AND app_documents.is_active = ? AND documents.is_processed = ?", appID, true, true).
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("list active documents by app failed: %w", err)
	}
	return docs, nil
}

// MarkProcessed flips the processed flag and clears any previous error.
func (r *DocumentRepository) MarkProcessed(id uint, chunkCount int) error {
	err := r.db.Model(&model.Document{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_processed":     true,
		"processing_error": "",
		"chunk_count":      chunkCount,
	}).Error
	if err != nil {
		return fmt.Errorf("mark document processed failed: %w", err)
	}
	return nil
}

// MarkFailed records the processing error and leaves the document
// unprocessed.
func (r *DocumentRepository) MarkFailed(id uint, message string) error {
	err := r.db.Model(&model.Document{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_processed":     false,
		"processing_error": message,
	}).Error
	if err != nil {
		return fmt.Errorf("record document failure failed: %w", err)
	}
	return nil
}

// ClearSession detaches a staged document from its upload session once it
// belongs to a deployed app.
func (r *DocumentRepository) ClearSession(id uint) error {
	if err := r.db.Model(&model.Document{}).Where("id = ?", id).Update("upload_session", "").Error; err != nil {
		return fmt.Errorf("clear document session failed: %w", err)
	}
	return nil
}

// DeleteCascade removes the document, its chunks, and its app associations
// in one transaction.
func (r *DocumentRepository) DeleteCascade(id uint) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&model.DocumentChunk{}).Error; err != nil {
			return err
		}
		if err := tx.Where("document_id = ?", id).Delete(&model.AppDocument{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Document{}, id).Error
	})
	if err != nil {
		return fmt.Errorf("delete document cascade failed: %w", err)
	}
	return nil
}
