package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/edurecord/pipeline/pkg/response"
)

// AdminToken gates the /admin surface with a single static bearer token
// instead of per-user JWT auth; this system has no user accounts.
func AdminToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			response.ServiceUnavailable(c, "admin token not configured")
			c.Abort()
			return
		}
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
			response.Unauthorized(c, "invalid admin token")
			c.Abort()
			return
		}
		c.Next()
	}
}
