package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const userIDKey = "user_id"

// SessionStore resolves a session token to the user id that owns it. An
// empty user id with a nil error means the token is unknown or expired.
type SessionStore interface {
	ResolveSession(ctx context.Context, token string) (string, error)
}

// RequireUser rejects unauthenticated requests before any lookup or
// external call is made.
func RequireUser(sessions SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			abortUnauthenticated(c)
			return
		}

		userID, err := sessions.ResolveSession(c.Request.Context(), token)
		if err != nil || userID == "" {
			abortUnauthenticated(c)
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

func sessionToken(c *gin.Context) string {
	if cookie, err := c.Cookie("session_token"); err == nil && cookie != "" {
		return cookie
	}
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

func abortUnauthenticated(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success":    false,
		"error":      "Authentication required",
		"error_code": "UNAUTHENTICATED",
	})
}

// UserID returns the authenticated user id set by RequireUser.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
