// Package response writes JSON bodies and the {"error":{"message","code"}}
// envelope the frontend expects.
package response

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mindtrace-backend/internal/platform/apierr"
)

const internalMessage = "요청을 처리하지 못했습니다. 잠시 후 다시 시도해 주세요."

// ErrorCodeKey is the gin context key under which the reason code of a failed
// request is left for the request logger.
const ErrorCodeKey = "error_code"

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// Respond writes out with 200, or the error envelope when err is non-nil.
func Respond(c *gin.Context, out any, err error) {
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func RespondError(c *gin.Context, status int, code, message string) {
	if message == "" {
		message = code
	}
	c.Set(ErrorCodeKey, code)
	c.JSON(status, ErrorEnvelope{Error: APIError{Message: message, Code: code}})
}

// RespondAPIError writes err as the error envelope. *apierr.Error values keep
// their status, code and message; anything else becomes a generic 500 so
// internal details never reach the client.
func RespondAPIError(c *gin.Context, err error) {
	var ae *apierr.Error
	if !errors.As(err, &ae) {
		_ = c.Error(err)
		RespondError(c, http.StatusInternalServerError, apierr.CodeInternal, internalMessage)
		return
	}
	status := ae.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if ae.RetryAfter > 0 {
		secs := int(math.Ceil(ae.RetryAfter.Seconds()))
		c.Header("Retry-After", strconv.Itoa(max(1, secs)))
	}
	msg := ""
	if ae.Err != nil {
		msg = ae.Err.Error()
	}
	RespondError(c, status, ae.Code, msg)
}
