package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	appsvc "peerai-backend/internal/app"
	"peerai-backend/internal/transport/http/response"
)

type ChatHandler struct {
	chatService *appsvc.ChatService
}

type AskRequest struct {
	Question string `json:"question" binding:"required,max=4096"`
	TopK     int    `json:"top_k" binding:"max=20"`
}

func NewChatHandler(chatService *appsvc.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

func (h *ChatHandler) Ask(c *gin.Context) {
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

	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.chatService.Ask(c.Request.Context(), appsvc.AskInput{
		TeamID:   teamID,
		UserID:   userID,
		AppID:    appID,
		Question: req.Question,
		TopK:     req.TopK,
	})
	if err != nil {
		switch {
		case errors.Is(err, appsvc.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, appsvc.ErrQuestionEmpty):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, appsvc.ErrAppNotFound):
			response.Error(c, http.StatusNotFound, response.CodeAppNotFound, err.Error())
		case errors.Is(err, appsvc.ErrNoDocumentsForApp):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, appsvc.ErrNoChunksForApp):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "ask failed")
		}
		return
	}

	response.OK(c, result)
}
