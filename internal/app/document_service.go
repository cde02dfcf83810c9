package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"peerai-backend/internal/model"
	"peerai-backend/internal/platform/logger"
	"peerai-backend/internal/platform/rabbitmq"
	"peerai-backend/internal/repository"
	"peerai-backend/internal/storage"
	"peerai-backend/internal/uploadsession"
)

var (
	ErrDocumentNotFound    = errors.New("document not found")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
	ErrSessionExpired      = errors.New("upload session not found or expired")
	ErrSessionFull         = errors.New("upload session file limit reached")
	ErrNoDocuments         = errors.New("no documents in session")
	ErrIngestEnqueue       = errors.New("enqueue ingest job failed")
)

// AsyncIngestPublisher hands ingest jobs to the queue; the worker picks
// them up out of band.
type AsyncIngestPublisher interface {
	Publish(ctx context.Context, job rabbitmq.IngestJob) error
}

// DocumentServiceConfig carries the upload limits from config.
type DocumentServiceConfig struct {
	MaxFileBytes    int64
	AllowedExts     []string
	MaxSessionFiles int
}

type DocumentService struct {
	cfg         DocumentServiceConfig
	docRepo     *repository.DocumentRepository
	appRepo     *repository.AppRepository
	appDocRepo  *repository.AppDocumentRepository
	sessions    uploadsession.Store
	store       storage.ObjectStore
	publisher   AsyncIngestPublisher
	invalidator ChunkInvalidator
	log         *logger.Logger
}

func NewDocumentService(
	cfg DocumentServiceConfig,
	docRepo *repository.DocumentRepository,
	appRepo *repository.AppRepository,
	appDocRepo *repository.AppDocumentRepository,
	sessions uploadsession.Store,
	store storage.ObjectStore,
	publisher AsyncIngestPublisher,
	invalidator ChunkInvalidator,
	log *logger.Logger,
) *DocumentService {
	if log == nil {
		log = logger.NewNop()
	}
	return &DocumentService{
		cfg:         cfg,
		docRepo:     docRepo,
		appRepo:     appRepo,
		appDocRepo:  appDocRepo,
		sessions:    sessions,
		store:       store,
		publisher:   publisher,
		invalidator: invalidator,
		log:         log,
	}
}

// IssueSession mints a server-side upload session token for staging files
// before an app exists.
func (s *DocumentService) IssueSession(ctx context.Context, teamID, userID uint) (*uploadsession.Session, error) {
	if teamID == 0 || userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.sessions.Issue(ctx, teamID, userID)
}

// UploadInput describes one incoming file. Reader is consumed at most
// once, and only after all validation passed.
type UploadInput struct {
	TeamID      uint
	UserID      uint
	Filename    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// validate enforces the extension allow-list and size ceiling before any
// byte reaches storage.
func (s *DocumentService) validate(input UploadInput) (string, error) {
	if input.TeamID == 0 || input.UserID == 0 || strings.TrimSpace(input.Filename) == "" {
		return "", ErrInvalidInput
	}
	if input.Size <= 0 {
		return "", ErrInvalidInput
	}
	if input.Size > s.cfg.MaxFileBytes {
		return "", ErrFileTooLarge
	}
	ext := strings.ToLower(filepath.Ext(input.Filename))
	for _, allowed := range s.cfg.AllowedExts {
		if ext == allowed {
			return ext, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, ext)
}

// UploadToSession stages a file under a pre-deployment upload session.
func (s *DocumentService) UploadToSession(ctx context.Context, token string, input UploadInput) (*model.Document, error) {
	ext, err := s.validate(input)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, uploadsession.ErrNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}
	if session.TeamID != input.TeamID {
		return nil, ErrSessionExpired
	}

	count, err := s.docRepo.CountBySessionToken(token)
	if err != nil {
		return nil, err
	}
	if s.cfg.MaxSessionFiles > 0 && count >= int64(s.cfg.MaxSessionFiles) {
		return nil, ErrSessionFull
	}

	key := fmt.Sprintf("tmp/%s/%s%s", token, uuid.NewString(), ext)
	if err := s.store.Put(ctx, key, input.Reader, input.Size, input.ContentType); err != nil {
		return nil, err
	}

	doc := &model.Document{
		TeamID:        input.TeamID,
		UploadedByID:  input.UserID,
		Filename:      filepath.Base(input.Filename),
		ContentType:   input.ContentType,
		SizeBytes:     input.Size,
		UploadSession: token,
		StoragePath:   key,
	}
	if err := s.docRepo.Create(doc); err != nil {
		// The object is orphaned if the row insert fails; drop it.
		_ = s.store.Delete(ctx, key)
		return nil, err
	}

	_ = s.sessions.Touch(ctx, token)
	s.log.Info("document staged", "document_id", doc.ID, "session", token, "bytes", doc.SizeBytes)
	return doc, nil
}

// UploadToApp uploads directly to a deployed app and queues ingestion.
func (s *DocumentService) UploadToApp(ctx context.Context, appID uint, input UploadInput) (*model.Document, error) {
	ext, err := s.validate(input)
	if err != nil {
		return nil, err
	}

	app, err := s.appRepo.GetByIDAndTeamID(appID, input.TeamID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, ErrAppNotFound
	}

	key := fmt.Sprintf("apps/%d/%s%s", app.ID, uuid.NewString(), ext)
	if err := s.store.Put(ctx, key, input.Reader, input.Size, input.ContentType); err != nil {
		return nil, err
	}

	doc := &model.Document{
		TeamID:       input.TeamID,
		UploadedByID: input.UserID,
		Filename:     filepath.Base(input.Filename),
		ContentType:  input.ContentType,
		SizeBytes:    input.Size,
		StoragePath:  key,
	}
	if err := s.docRepo.Create(doc); err != nil {
		_ = s.store.Delete(ctx, key)
		return nil, err
	}
	if err := s.appDocRepo.Upsert(app.ID, doc.ID); err != nil {
		return nil, err
	}

	job := rabbitmq.IngestJob{
		AppID:       app.ID,
		TeamID:      input.TeamID,
		RequestedBy: input.UserID,
		DocumentIDs: []uint{doc.ID},
	}
	if err := s.publisher.Publish(ctx, job); err != nil {
		// The row and association already exist; without a recorded error
		// the poller would report the document as processing forever.
		if markErr := s.docRepo.MarkFailed(doc.ID, ErrIngestEnqueue.Error()); markErr != nil {
			s.log.Warn("record enqueue failure failed", "document_id", doc.ID, "error", markErr)
		}
		return nil, ErrIngestEnqueue
	}
	if s.invalidator != nil {
		_ = s.invalidator.Invalidate(ctx, app.ID)
	}
	s.log.Info("document uploaded", "document_id", doc.ID, "app_id", app.ID, "bytes", doc.SizeBytes)
	return doc, nil
}

// ProcessSession queues ingestion of every document staged under the
// session into the given app. Returns the number of documents queued.
func (s *DocumentService) ProcessSession(ctx context.Context, teamID, userID, appID uint, token string) (int, error) {
	if teamID == 0 || appID == 0 || strings.TrimSpace(token) == "" {
		return 0, ErrInvalidInput
	}

	app, err := s.appRepo.GetByIDAndTeamID(appID, teamID)
	if err != nil {
		return 0, err
	}
	if app == nil {
		return 0, ErrAppNotFound
	}

	session, err := s.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, uploadsession.ErrNotFound) {
			return 0, ErrSessionExpired
		}
		return 0, err
	}
	if session.TeamID != teamID {
		return 0, ErrSessionExpired
	}

	docs, err := s.docRepo.ListBySessionToken(token)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, ErrNoDocuments
	}

	job := rabbitmq.IngestJob{
		AppID:        app.ID,
		TeamID:       teamID,
		RequestedBy:  userID,
		SessionToken: token,
	}
	if err := s.publisher.Publish(ctx, job); err != nil {
		return 0, ErrIngestEnqueue
	}
	s.log.Info("ingest queued", "app_id", app.ID, "session", token, "documents", len(docs))
	return len(docs), nil
}

// ListByApp returns the app's documents with their processing status; the
// admin UI polls this while any document is still processing.
func (s *DocumentService) ListByApp(teamID, appID uint) ([]model.Document, error) {
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
	return s.docRepo.ListByAppID(app.ID)
}

// ListBySession returns the documents staged under an upload session.
func (s *DocumentService) ListBySession(ctx context.Context, teamID uint, token string) ([]model.Document, error) {
	if teamID == 0 || strings.TrimSpace(token) == "" {
		return nil, ErrInvalidInput
	}
	session, err := s.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, uploadsession.ErrNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}
	if session.TeamID != teamID {
		return nil, ErrSessionExpired
	}
	return s.docRepo.ListBySessionToken(token)
}

// Detach removes the app association only; document and chunks survive.
func (s *DocumentService) Detach(ctx context.Context, teamID, appID, documentID uint) error {
	if teamID == 0 || appID == 0 || documentID == 0 {
		return ErrInvalidInput
	}
	app, err := s.appRepo.GetByIDAndTeamID(appID, teamID)
	if err != nil {
		return err
	}
	if app == nil {
		return ErrAppNotFound
	}
	link, err := s.appDocRepo.Get(app.ID, documentID)
	if err != nil {
		return err
	}
	if link == nil {
		return ErrDocumentNotFound
	}
	if err := s.appDocRepo.Detach(app.ID, documentID); err != nil {
		return err
	}
	if s.invalidator != nil {
		_ = s.invalidator.Invalidate(ctx, app.ID)
	}
	return nil
}

// SetActive toggles a document in or out of retrieval without detaching.
func (s *DocumentService) SetActive(ctx context.Context, teamID, appID, documentID uint, active bool) error {
	if teamID == 0 || appID == 0 || documentID == 0 {
		return ErrInvalidInput
	}
	app, err := s.appRepo.GetByIDAndTeamID(appID, teamID)
	if err != nil {
		return err
	}
	if app == nil {
		return ErrAppNotFound
	}
	link, err := s.appDocRepo.Get(app.ID, documentID)
	if err != nil {
		return err
	}
	if link == nil {
		return ErrDocumentNotFound
	}
	if err := s.appDocRepo.SetActive(app.ID, documentID, active); err != nil {
		return err
	}
	if s.invalidator != nil {
		_ = s.invalidator.Invalidate(ctx, app.ID)
	}
	return nil
}

// HardDelete removes the document row, its chunks, its app associations,
// and the stored object.
func (s *DocumentService) HardDelete(ctx context.Context, teamID, documentID uint) error {
	if teamID == 0 || documentID == 0 {
		return ErrInvalidInput
	}
	doc, err := s.docRepo.GetByIDAndTeamID(documentID, teamID)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}

	appIDs, err := s.appDocRepo.ListAppIDsByDocumentID(doc.ID)
	if err != nil {
		return err
	}

	if err := s.docRepo.DeleteCascade(doc.ID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, doc.StoragePath); err != nil {
		// Rows are gone; an unreachable object is only garbage, not an
		// integrity problem.
		s.log.Warn("delete stored object failed", "key", doc.StoragePath, "error", err)
	}
	if s.invalidator != nil {
		for _, appID := range appIDs {
			_ = s.invalidator.Invalidate(ctx, appID)
		}
	}
	s.log.Info("document deleted", "document_id", doc.ID)
	return nil
}
