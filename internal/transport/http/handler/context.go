package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"peerai-backend/internal/transport/http/middleware"
)

func getUserIDFromContext(c *gin.Context) (uint, bool) {
	v, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

func getTeamIDFromContext(c *gin.Context) (uint, bool) {
	v, exists := c.Get(middleware.ContextTeamIDKey)
	if !exists {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

func getIdentity(c *gin.Context) (userID, teamID uint, ok bool) {
	userID, ok = getUserIDFromContext(c)
	if !ok {
		return 0, 0, false
	}
	teamID, ok = getTeamIDFromContext(c)
	if !ok {
		return 0, 0, false
	}
	return userID, teamID, true
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	s := c.Param(key)
	u, err := strconv.ParseUint(s, 10, 64)
	return uint(u), err
}
