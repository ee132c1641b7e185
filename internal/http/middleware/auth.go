package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const bearerPrefix = "Bearer "

// BearerAuth admits requests whose Authorization header is "Bearer <token>".
// An empty token rejects everything. The comparison is constant time.
func BearerAuth(token string) gin.HandlerFunc {
	want := []byte(token)
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, bearerPrefix) {
			LoggerFrom(c).Warn().Msg("missing or malformed authorization header")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized - invalid authorization header format"})
			return
		}
		got := []byte(strings.TrimPrefix(h, bearerPrefix))
		if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
			LoggerFrom(c).Warn().Msg("invalid bearer token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized - invalid token"})
			return
		}
		c.Next()
	}
}
