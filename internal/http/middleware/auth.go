package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RequireUser resolves the caller's identity from the X-User-ID header and
// stores it in the request context under "userID" for downstream handlers and
// the rate limiter key function.
//
// Identity verification itself (sessions, tokens) lives in front of this
// service; this middleware only rejects requests that arrive without a
// resolved identity.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := strings.TrimSpace(c.GetHeader("X-User-ID"))
		if uid == "" {
			reqID := c.Writer.Header().Get("X-Request-ID")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": reqID,
				"code":       "unauthorized",
				"message":    "missing user identity",
			})
			return
		}
		c.Set("userID", uid)
		if name := strings.TrimSpace(c.GetHeader("X-User-Name")); name != "" {
			c.Set("userName", name)
		}
		c.Next()
	}
}
