package handler

import (
	"errors"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	appsvc "peerai-backend/internal/app"
	"peerai-backend/internal/model"
	"peerai-backend/internal/transport/http/response"
)

type DocumentHandler struct {
	docService *appsvc.DocumentService
}

type ProcessSessionRequest struct {
	SessionToken string `json:"session_token" binding:"required"`
}

type SetDocumentActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

func NewDocumentHandler(docService *appsvc.DocumentService) *DocumentHandler {
	return &DocumentHandler{docService: docService}
}

// IssueSession mints an upload session for staging documents before the
// target app exists.
func (h *DocumentHandler) IssueSession(c *gin.Context) {
	userID, teamID, ok := getIdentity(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	session, err := h.docService.IssueSession(c.Request.Context(), teamID, userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "issue upload session failed")
		return
	}

	response.OK(c, session)
}

func (h *DocumentHandler) UploadToSession(c *gin.Context) {
	userID, teamID, ok := getIdentity(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	token := c.Param("token")
	input, file, ok := h.bindUpload(c, teamID, userID)
	if !ok {
		return
	}
	defer file.Close()

	doc, err := h.docService.UploadToSession(c.Request.Context(), token, input)
	if err != nil {
		h.writeUploadError(c, err)
		return
	}

	response.OK(c, doc)
}

func (h *DocumentHandler) UploadToApp(c *gin.Context) {
	userID, teamID, ok := getIdentity(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	appID, err := parseUintParam(c, "id")
	if err != nil || appID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid app id")
		return
	}

	input, file, ok := h.bindUpload(c, teamID, userID)
	if !ok {
		return
	}
	defer file.Close()

	doc, err := h.docService.UploadToApp(c.Request.Context(), appID, input)
	if err != nil {
		h.writeUploadError(c, err)
		return
	}

	// Processing is queued; the caller polls the document list for
	// is_processed to flip.
	response.Accepted(c, doc)
}

func (h *DocumentHandler) bindUpload(c *gin.Context, teamID, userID uint) (appsvc.UploadInput, multipart.File, bool) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return appsvc.UploadInput{}, nil, false
	}

	f, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return appsvc.UploadInput{}, nil, false
	}

	return appsvc.UploadInput{
		TeamID:      teamID,
		UserID:      userID,
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Reader:      f,
	}, f, true
}

func (h *DocumentHandler) writeUploadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, appsvc.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, appsvc.ErrUnsupportedFileType):
		response.Error(c, http.StatusBadRequest, response.CodeUnsupportedFile, err.Error())
	case errors.Is(err, appsvc.ErrFileTooLarge):
		response.Error(c, http.StatusBadRequest, response.CodeFileTooLarge, err.Error())
	case errors.Is(err, appsvc.ErrSessionExpired):
		response.Error(c, http.StatusGone, response.CodeSessionExpired, err.Error())
	case errors.Is(err, appsvc.ErrSessionFull):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, appsvc.ErrAppNotFound):
		response.Error(c, http.StatusNotFound, response.CodeAppNotFound, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "upload failed")
	}
}

func (h *DocumentHandler) ListBySession(c *gin.Context) {
	_, teamID, ok := getIdentity(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	docs, err := h.docService.ListBySession(c.Request.Context(), teamID, c.Param("token"))
	if err != nil {
		if errors.Is(err, appsvc.ErrSessionExpired) {
			response.Error(c, http.StatusGone, response.CodeSessionExpired, err.Error())
		} else {
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list session documents failed")
		}
		return
	}

	response.OK(c, documentListPayload(docs))
}

// ProcessSession attaches every staged document of the session to the app
// and queues them for ingestion.
func (h *DocumentHandler) ProcessSession(c *gin.Context) {
	userID, teamID, ok := getIdentity(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	appID, err := parseUintParam(c, "id")
	if err != nil || appID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid app id")
		return
	}

	var req ProcessSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	count, err := h.docService.ProcessSession(c.Request.Context(), teamID, userID, appID, req.SessionToken)
	if err != nil {
		switch {
		case errors.Is(err, appsvc.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, appsvc.ErrAppNotFound):
			response.Error(c, http.StatusNotFound, response.CodeAppNotFound, err.Error())
		case errors.Is(err, appsvc.ErrSessionExpired):
			response.Error(c, http.StatusGone, response.CodeSessionExpired, err.Error())
		case errors.Is(err, appsvc.ErrNoDocuments):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "queue processing failed")
		}
		return
	}

	response.Accepted(c, gin.H{"app_id": appID, "queued_documents": count})
}

func (h *DocumentHandler) ListByApp(c *gin.Context) {
	_, teamID, ok := getIdentity(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	appID, err := parseUintParam(c, "id")
	if err != nil || appID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid app id")
		return
	}

	docs, err := h.docService.ListByApp(teamID, appID)
	if err != nil {
		switch {
		case errors.Is(err, appsvc.ErrAppNotFound):
			response.Error(c, http.StatusNotFound, response.CodeAppNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list documents failed")
		}
		return
	}

	response.OK(c, documentListPayload(docs))
}

// SetActive toggles whether a document participates in the app's
// retrieval without detaching it.
func (h *DocumentHandler) SetActive(c *gin.Context) {
	_, teamID, ok := getIdentity(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	appID, err := parseUintParam(c, "id")
	if err != nil || appID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid app id")
		return
	}
	docID, err := parseUintParam(c, "docID")
	if err != nil || docID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid document id")
		return
	}

	var req SetDocumentActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsActive == nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	if err := h.docService.SetActive(c.Request.Context(), teamID, appID, docID, *req.IsActive); err != nil {
		h.writeAssociationError(c, err)
		return
	}

	response.OK(c, gin.H{"app_id": appID, "document_id": docID, "is_active": *req.IsActive})
}

// Detach removes the app/document association. The document and its
// chunks survive and may still serve other apps.
func (h *DocumentHandler) Detach(c *gin.Context) {
	_, teamID, ok := getIdentity(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	appID, err := parseUintParam(c, "id")
	if err != nil || appID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid app id")
		return
	}
	docID, err := parseUintParam(c, "docID")
	if err != nil || docID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid document id")
		return
	}

	if err := h.docService.Detach(c.Request.Context(), teamID, appID, docID); err != nil {
		h.writeAssociationError(c, err)
		return
	}

	response.OK(c, gin.H{"detached_document_id": docID})
}

// HardDelete permanently removes the document, its chunks, its stored
// object, and every app association.
func (h *DocumentHandler) HardDelete(c *gin.Context) {
	_, teamID, ok := getIdentity(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	docID, err := parseUintParam(c, "id")
	if err != nil || docID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid document id")
		return
	}

	if err := h.docService.HardDelete(c.Request.Context(), teamID, docID); err != nil {
		switch {
		case errors.Is(err, appsvc.ErrDocumentNotFound):
			response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete document failed")
		}
		return
	}

	response.OK(c, gin.H{"deleted_document_id": docID})
}

func (h *DocumentHandler) writeAssociationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, appsvc.ErrAppNotFound):
		response.Error(c, http.StatusNotFound, response.CodeAppNotFound, err.Error())
	case errors.Is(err, appsvc.ErrDocumentNotFound):
		response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
	case errors.Is(err, appsvc.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "update association failed")
	}
}

type documentPayload struct {
	ID              uint   `json:"id"`
	Filename        string `json:"filename"`
	ContentType     string `json:"content_type"`
	SizeBytes       int64  `json:"size_bytes"`
	IsProcessed     bool   `json:"is_processed"`
	ProcessingError string `json:"processing_error,omitempty"`
	ChunkCount      int    `json:"chunk_count"`
	UploadedAt      string `json:"uploaded_at"`
}

func documentListPayload(docs []model.Document) []documentPayload {
	out := make([]documentPayload, 0, len(docs))
	for _, d := range docs {
		out = append(out, documentPayload{
			ID:              d.ID,
			Filename:        d.Filename,
			ContentType:     d.ContentType,
			SizeBytes:       d.SizeBytes,
			IsProcessed:     d.IsProcessed,
			ProcessingError: d.ProcessingError,
			ChunkCount:      d.ChunkCount,
			UploadedAt:      d.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}
