package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/mindtrace-backend/internal/platform/ctxutil"
)

// AttachRequestContext records the caller address and any header or query
// token. Validation happens in the use case, since the token may also arrive
// in the request body.
func AttachRequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, r := ctxutil.Ensure(c.Request.Context())
		r.Token = extractToken(c)
		r.ClientIP = c.ClientIP()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
