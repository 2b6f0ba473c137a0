package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mindtrace-backend/internal/platform/ctxutil"
)

// extractToken reads the bearer token from the query string or the
// Authorization header. A token in the JSON body takes precedence and is
// resolved by the handler through Token.
func extractToken(c *gin.Context) string {
	if qToken := strings.TrimSpace(c.Query("token")); qToken != "" {
		return qToken
	}
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}

// Token returns bodyToken when set, otherwise the token resolved by
// AttachRequestContext.
func Token(c *gin.Context, bodyToken string) string {
	if t := strings.TrimSpace(bodyToken); t != "" {
		return t
	}
	if r := ctxutil.From(c.Request.Context()); r != nil && r.Token != "" {
		return r.Token
	}
	return extractToken(c)
}
