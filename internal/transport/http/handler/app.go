package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	appsvc "peerai-backend/internal/app"
	"peerai-backend/internal/transport/http/response"
)

type AppHandler struct {
	appService *appsvc.AppService
}

type CreateAppRequest struct {
	Name         string `json:"name" binding:"required,min=1,max=128"`
	SystemPrompt string `json:"system_prompt" binding:"max=4096"`
	Model        string `json:"model" binding:"max=128"`
}

func NewAppHandler(appService *appsvc.AppService) *AppHandler {
	return &AppHandler{appService: appService}
}

func (h *AppHandler) Create(c *gin.Context) {
	_, teamID, ok := getIdentity(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req CreateAppRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	created, err := h.appService.Create(appsvc.CreateAppInput{
		TeamID:       teamID,
		Name:         req.Name,
		SystemPrompt: req.SystemPrompt,
		Model:        req.Model,
	})
	if err != nil {
		if errors.Is(err, appsvc.ErrInvalidInput) {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		} else {
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "create app failed")
		}
		return
	}

	response.OK(c, created)
}

func (h *AppHandler) List(c *gin.Context) {
	_, teamID, ok := getIdentity(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	apps, err := h.appService.List(teamID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list apps failed")
		return
	}

	response.OK(c, apps)
}

func (h *AppHandler) Get(c *gin.Context) {
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

	found, err := h.appService.Get(teamID, appID)
	if err != nil {
		switch {
		case errors.Is(err, appsvc.ErrAppNotFound):
			response.Error(c, http.StatusNotFound, response.CodeAppNotFound, err.Error())
		case errors.Is(err, appsvc.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get app failed")
		}
		return
	}

	response.OK(c, found)
}

func (h *AppHandler) Delete(c *gin.Context) {
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

	if err := h.appService.Delete(c.Request.Context(), teamID, appID); err != nil {
		switch {
		case errors.Is(err, appsvc.ErrAppNotFound):
			response.Error(c, http.StatusNotFound, response.CodeAppNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete app failed")
		}
		return
	}

	response.OK(c, gin.H{"deleted_app_id": appID})
}
