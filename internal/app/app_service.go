package app

import (
	"context"
	"errors"
	"strings"

	"peerai-backend/internal/model"
	"peerai-backend/internal/repository"
)

var ErrAppNotFound = errors.New("app not found")

// ChunkInvalidator lets services drop an app's cached retrieval set when
// its document set changes.
type ChunkInvalidator interface {
	Invalidate(ctx context.Context, appID uint) error
}

type AppService struct {
	appRepo      *repository.AppRepository
	appDocRepo   *repository.AppDocumentRepository
	invalidator  ChunkInvalidator
	defaultModel string
}

func NewAppService(
	appRepo *repository.AppRepository,
	appDocRepo *repository.AppDocumentRepository,
	invalidator ChunkInvalidator,
	defaultModel string,
) *AppService {
	return &AppService{
		appRepo:      appRepo,
		appDocRepo:   appDocRepo,
		invalidator:  invalidator,
		defaultModel: defaultModel,
	}
}

type CreateAppInput struct {
	TeamID       uint
	Name         string
	SystemPrompt string
	Model        string
}

func (s *AppService) Create(input CreateAppInput) (*model.App, error) {
	if input.TeamID == 0 {
		return nil, ErrInvalidInput
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrInvalidInput
	}
	llmModel := strings.TrimSpace(input.Model)
	if llmModel == "" {
		llmModel = s.defaultModel
	}
	app := &model.App{
		TeamID:       input.TeamID,
		Name:         name,
		SystemPrompt: strings.TrimSpace(input.SystemPrompt),
		Model:        llmModel,
	}
	if err := s.appRepo.Create(app); err != nil {
		return nil, err
	}
	return app, nil
}

func (s *AppService) List(teamID uint) ([]model.App, error) {
	if teamID == 0 {
		return nil, ErrInvalidInput
	}
	return s.appRepo.ListByTeamID(teamID)
}

func (s *AppService) Get(teamID, appID uint) (*model.App, error) {
	if teamID == 0 || appID == 0 {
		return nil, ErrInvalidInput
	}
	app, err := s.appRepo.GetByIDAndTeamID(appID, teamID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, ErrAppNotFound
	}
	return app, nil
}

// Delete removes the app and its document associations. Documents and
// chunks survive: they may be attached to other apps, and deleting them is
// a separate explicit operation.
func (s *AppService) Delete(ctx context.Context, teamID, appID uint) error {
	app, err := s.Get(teamID, appID)
	if err != nil {
		return err
	}
	if err := s.appDocRepo.DeleteByAppID(app.ID); err != nil {
		return err
	}
	if err := s.appRepo.DeleteByIDAndTeamID(app.ID, teamID); err != nil {
		return err
	}
	if s.invalidator != nil {
		_ = s.invalidator.Invalidate(ctx, app.ID)
	}
	return nil
}
