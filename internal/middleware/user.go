package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// UserIDHeader carries the id of the participant making the request
const UserIDHeader = "X-User-ID"

// ActingUser reads the acting participant from the X-User-ID header
func ActingUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": UserIDHeader + " header required"})
			c.Abort()
			return
		}

		// Store user ID in context for use in handlers
		c.Set("userID", userID)
		c.Next()
	}
}
