package app

import (
	"peerai-backend/internal/model"
	"peerai-backend/internal/repository"
)

type UsageService struct {
	usageRepo *repository.UsageRepository
}

func NewUsageService(usageRepo *repository.UsageRepository) *UsageService {
	return &UsageService{usageRepo: usageRepo}
}

type UsageSummary struct {
	Records         []model.UsageRecord `json:"records"`
	TotalTokens     int64               `json:"total_tokens"`
	ChatTokens      int64               `json:"chat_tokens"`
	EmbeddingTokens int64               `json:"embedding_tokens"`
}

func (s *UsageService) Summary(teamID uint, limit int) (*UsageSummary, error) {
	if teamID == 0 {
		return nil, ErrInvalidInput
	}
	records, err := s.usageRepo.ListByTeamID(teamID, limit)
	if err != nil {
		return nil, err
	}
	total, err := s.usageRepo.SumTokensByTeamID(teamID, "")
	if err != nil {
		return nil, err
	}
	chat, err := s.usageRepo.SumTokensByTeamID(teamID, model.UsageKindChat)
	if err != nil {
		return nil, err
	}
	embedding, err := s.usageRepo.SumTokensByTeamID(teamID, model.UsageKindEmbedding)
	if err != nil {
		return nil, err
	}
	return &UsageSummary{
		Records:         records,
		TotalTokens:     total,
		ChatTokens:      chat,
		EmbeddingTokens: embedding,
	}, nil
}
