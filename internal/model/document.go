package model

import "time"

type Document struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	TeamID       uint   `gorm:"not null;index" json:"team_id"`
	UploadedByID uint   `gorm:"not null;index" json:"uploaded_by_id"`
	Filename     string `gorm:"size:256;not null" json:"filename"`
	ContentType  string `gorm:"size:128" json:"content_type"`
	SizeBytes    int64  `gorm:"not null" json:"size_bytes"`
	// UploadSession is the server-issued session token the file was staged
	// under before its app was deployed; empty once uploaded directly.
	UploadSession   string    `gorm:"size:64;index" json:"upload_session,omitempty"`
	StoragePath     string    `gorm:"size:512;not null" json:"storage_path"`
	IsProcessed     bool      `gorm:"not null;default:false" json:"is_processed"`
	ProcessingError string    `gorm:"type:text" json:"processing_error,omitempty"`
	ChunkCount      int       `gorm:"not null;default:0" json:"chunk_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
