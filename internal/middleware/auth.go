package middleware

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/directory"
	"messaging-service/internal/observability"
)

// AuthMiddleware validates the Authorization header against the session
// store and stashes the caller's id and role in the request context.
func AuthMiddleware(sessions directory.SessionVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		session, err := sessions.VerifyToken(c.Request.Context(), parts[1])
		if err != nil {
			log.Printf("auth rejected: ip=%s request_id=%s",
				observability.IPFromRequest(c.Request), observability.RequestIDFromRequest(c.Request))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("userID", session.UserID)
		c.Set("userRole", session.Role)
		c.Next()
	}
}
