package apierr

import "net/http"

// Reason codes shared with the client. The client re-authenticates on AUTH_*
// and restarts on SESSION_*.
const (
	CodeAuthTokenMissing        = "AUTH_TOKEN_MISSING"
	CodeAuthTokenInvalid        = "AUTH_TOKEN_INVALID"
	CodeAuthTokenExpired        = "AUTH_TOKEN_EXPIRED"
	CodeSessionNotFound         = "SESSION_NOT_FOUND"
	CodeSessionExpired          = "SESSION_EXPIRED"
	CodeSessionTokenMismatch    = "SESSION_TOKEN_MISMATCH"
	CodeSessionAlreadyFinalized = "SESSION_ALREADY_FINALIZED"
	CodeBadRequest              = "BAD_REQUEST"
	CodeConflict                = "CONFLICT"
	CodeNotFound                = "NOT_FOUND"
	CodeUnauthorized            = "UNAUTHORIZED"
	CodeInternal                = "INTERNAL"
)

var reasonMessages = map[string]string{
	CodeAuthTokenMissing:        "인증 토큰이 없습니다. 초대코드를 다시 입력해 주세요.",
	CodeAuthTokenInvalid:        "인증 토큰이 유효하지 않습니다. 초대코드를 다시 입력해 주세요.",
	CodeAuthTokenExpired:        "인증 토큰이 만료되었습니다. 초대코드를 다시 입력해 주세요.",
	CodeSessionNotFound:         "세션이 만료되었거나 서버가 재시작되었습니다. 새로 시작해 주세요.",
	CodeSessionExpired:          "세션이 만료되었거나 서버가 재시작되었습니다. 새로 시작해 주세요.",
	CodeSessionTokenMismatch:    "세션 정보가 일치하지 않습니다. 새로 시작해 주세요.",
	CodeSessionAlreadyFinalized: "이미 결과가 확정된 세션입니다. 결과 페이지를 확인해 주세요.",
}

var reasonStatus = map[string]int{
	CodeAuthTokenMissing:        http.StatusUnauthorized,
	CodeAuthTokenInvalid:        http.StatusUnauthorized,
	CodeAuthTokenExpired:        http.StatusUnauthorized,
	CodeSessionNotFound:         http.StatusNotFound,
	CodeSessionExpired:          http.StatusNotFound,
	CodeSessionTokenMismatch:    http.StatusForbidden,
	CodeSessionAlreadyFinalized: http.StatusConflict,
}

// Reason builds the typed error for one of the reason codes above, with its
// status and user-facing message.
func Reason(code string) *Error {
	status, ok := reasonStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	msg, ok := reasonMessages[code]
	if !ok {
		msg = code
	}
	return Msg(status, code, msg)
}

func BadRequest(message string) *Error { return Msg(http.StatusBadRequest, CodeBadRequest, message) }

func Conflict(message string) *Error { return Msg(http.StatusConflict, CodeConflict, message) }

func NotFound(message string) *Error { return Msg(http.StatusNotFound, CodeNotFound, message) }
