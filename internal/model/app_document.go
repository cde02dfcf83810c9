package model

import "time"

// AppDocument links a document to a deployed app. IsActive allows taking a
// document out of retrieval without detaching or deleting it.
type AppDocument struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	AppID      uint      `gorm:"not null;index:idx_app_doc,unique" json:"app_id"`
	DocumentID uint      `gorm:"not null;index:idx_app_doc,unique" json:"document_id"`
	IsActive   bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}
