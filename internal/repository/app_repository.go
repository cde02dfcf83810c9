package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"peerai-backend/internal/model"
)

type AppRepository struct {
	db *gorm.DB
}

func NewAppRepository(db *gorm.DB) *AppRepository {
	return &AppRepository{db: db}
}

func (r *AppRepository) Create(app *model.App) error {
	if err := r.db.Create(app).Error; err != nil {
		return fmt.Errorf("create app failed: %w", err)
	}
	return nil
}

func (r *AppRepository) ListByTeamID(teamID uint) ([]model.App, error) {
	var apps []model.App
	if err := r.db.Where("team_id = ?", teamID).Order("created_at DESC").Find(&apps).Error; err != nil {
		return nil, fmt.Errorf("list apps failed: %w", err)
	}
	return apps, nil
}

func (r *AppRepository) GetByIDAndTeamID(id, teamID uint) (*model.App, error) {
	var app model.App
	if err := r.db.Where("id = ? AND team_id = ?", id, teamID).First(&app).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get app failed: %w", err)
	}
	return &app, nil
}

func (r *AppRepository) DeleteByIDAndTeamID(id, teamID uint) error {
	if err := r.db.Where("id = ? AND team_id = ?", id, teamID).Delete(&model.App{}).Error; err != nil {
		return fmt.Errorf("delete app failed: %w", err)
	}
	return nil
}
