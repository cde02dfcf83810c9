package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	appsvc "peerai-backend/internal/app"
	"peerai-backend/internal/transport/http/response"
)

type UsageHandler struct {
	usageService *appsvc.UsageService
}

func NewUsageHandler(usageService *appsvc.UsageService) *UsageHandler {
	return &UsageHandler{usageService: usageService}
}

func (h *UsageHandler) Summary(c *gin.Context) {
	_, teamID, ok := getIdentity(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	limit := 100
	if s := c.Query("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	summary, err := h.usageService.Summary(teamID, limit)
	if err != nil {
		if errors.Is(err, appsvc.ErrInvalidInput) {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		} else {
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "usage summary failed")
		}
		return
	}

	response.OK(c, summary)
}
