package model

import "time"

const (
	UsageKindChat      = "chat"
	UsageKindEmbedding = "embedding"
)

// UsageRecord meters one billable call to the LLM provider.
type UsageRecord struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	TeamID           uint      `gorm:"not null;index" json:"team_id"`
	AppID            uint      `gorm:"index" json:"app_id"`
	UserID           uint      `gorm:"index" json:"user_id"`
	Kind             string    `gorm:"size:16;not null;index" json:"kind"`
	Model            string    `gorm:"size:64" json:"model"`
	PromptTokens     int       `gorm:"not null;default:0" json:"prompt_tokens"`
	CompletionTokens int       `gorm:"not null;default:0" json:"completion_tokens"`
	TotalTokens      int       `gorm:"not null;default:0" json:"total_tokens"`
	CreatedAt        time.Time `json:"created_at"`
}
