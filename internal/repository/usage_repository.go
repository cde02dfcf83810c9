package repository

import (
	"fmt"

	"gorm.io/gorm"

	"peerai-backend/internal/model"
)

type UsageRepository struct {
	db *gorm.DB
}

func NewUsageRepository(db *gorm.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

func (r *UsageRepository) Create(record *model.UsageRecord) error {
	if err := r.db.Create(record).Error; err != nil {
		return fmt.Errorf("create usage record failed: %w", err)
	}
	return nil
}

func (r *UsageRepository) ListByTeamID(teamID uint, limit int) ([]model.UsageRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var records []model.UsageRecord
	err := r.db.Where("team_id = ?", teamID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list usage records failed: %w", err)
	}
	return records, nil
}

// SumTokensByTeamID totals token consumption for a team, optionally
// filtered by kind ("" = all).
func (r *UsageRepository) SumTokensByTeamID(teamID uint, kind string) (int64, error) {
	q := r.db.Model(&model.UsageRecord{}).Where("team_id = ?", teamID)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var total int64
	if err := q.Select("COALESCE(SUM(total_tokens), 0)").Scan(&total).Error; err != nil {
		return 0, fmt.Errorf("sum usage tokens failed: %w", err)
	}
	return total, nil
}
