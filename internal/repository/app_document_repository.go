package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"peerai-backend/internal/model"
)

type AppDocumentRepository struct {
	db *gorm.DB
}

func NewAppDocumentRepository(db *gorm.DB) *AppDocumentRepository {
	return &AppDocumentRepository{db: db}
}

// Upsert creates the association or reactivates an existing one.
func (r *AppDocumentRepository) Upsert(appID, documentID uint) error {
	existing, err := r.Get(appID, documentID)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.IsActive {
			return nil
		}
		return r.SetActive(appID, documentID, true)
	}
	link := &model.AppDocument{AppID: appID, DocumentID: documentID, IsActive: true}
	if err := r.db.Create(link).Error; err != nil {
		return fmt.Errorf("create app document failed: %w", err)
	}
	return nil
}

func (r *AppDocumentRepository) Get(appID, documentID uint) (*model.AppDocument, error) {
	var link model.AppDocument
	if err := r.db.Where("app_id = ? AND document_id = ?", appID, documentID).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get app document failed: %w", err)
	}
	return &link, nil
}

func (r *AppDocumentRepository) SetActive(appID, documentID uint, active bool) error {
	err := r.db.Model(&model.AppDocument{}).
		Where("app_id = ? AND document_id = ?", appID, documentID).
		Update("is_active", active).Error
	if err != nil {
		return fmt.Errorf("set app document active failed: %w", err)
	}
	return nil
}

// Detach removes only the association row; the document and its chunks
// stay intact.
func (r *AppDocumentRepository) Detach(appID, documentID uint) error {
	err := r.db.Where("app_id = ? AND document_id = ?", appID, documentID).
		Delete(&model.AppDocument{}).Error
	if err != nil {
		return fmt.Errorf("detach app document failed: %w", err)
	}
	return nil
}

func (r *AppDocumentRepository) DeleteByAppID(appID uint) error {
	if err := r.db.Where("app_id = ?", appID).Delete(&model.AppDocument{}).Error; err != nil {
		return fmt.Errorf("delete app documents by app failed: %w", err)
	}
	return nil
}

// ListAppIDsByDocumentID returns ids of apps the document is linked to.
func (r *AppDocumentRepository) ListAppIDsByDocumentID(documentID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&model.AppDocument{}).Where("document_id = ?", documentID).Pluck("app_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list app ids by document failed: %w", err)
	}
	return ids, nil
}
