package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"buildbook/utils"
)

// ClientAuthMiddleware authenticates the booking client from a bearer JWT
// and stores its id in the request context for the booking handlers.
func ClientAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			utils.JSONError(c, http.StatusUnauthorized, "Unauthorized", "missing or invalid Authorization header")
			c.Abort()
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		clientID, err := utils.ExtractIDFromToken(tokenString)
		if err != nil {
			utils.JSONError(c, http.StatusUnauthorized, "Unauthorized", "invalid or expired token")
			c.Abort()
			return
		}

		c.Set("clientID", clientID)
		c.Next()
	}
}
