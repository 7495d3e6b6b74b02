package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const staffIDKey = "staff_id"

// TokenParser validates a bearer token and returns the staff user id.
type TokenParser interface {
	Parse(token string) (string, error)
}

// StaffAuth accepts requests carrying a valid staff token whose holder is
// still an administrator.
func StaffAuth(tokens TokenParser, isAdmin func(userID string) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		userID, err := tokens.Parse(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if !isAdmin(userID) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin only"})
			return
		}
		c.Set(staffIDKey, userID)
		c.Next()
	}
}

// StaffID returns the id set by StaffAuth, or "".
func StaffID(c *gin.Context) string {
	return c.GetString(staffIDKey)
}
