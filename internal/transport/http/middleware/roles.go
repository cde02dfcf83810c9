package middleware

import (
	"github.com/gin-gonic/gin"

	"peerai-backend/internal/transport/http/response"
)

// RequireRole aborts unless the authenticated user's role is one of the
// allowed set. Must run after AuthJWT.
func RequireRole(allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}
	return func(c *gin.Context) {
		role := c.GetString(ContextRoleKey)
		if _, ok := allowedSet[role]; !ok {
			response.Error(c, 403, response.CodeForbidden, "insufficient role")
			c.Abort()
			return
		}
		c.Next()
	}
}
