package model

import "time"

// App is a deployed RAG chatbot configuration owned by a team.
type App struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	TeamID       uint      `gorm:"not null;index" json:"team_id"`
	Name         string    `gorm:"size:128;not null" json:"name"`
	SystemPrompt string    `gorm:"type:text" json:"system_prompt"`
	Model        string    `gorm:"size:64" json:"model"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
