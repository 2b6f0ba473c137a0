package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/mindtrace-backend/internal/http/response"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment"
	"github.com/yungbote/mindtrace-backend/internal/platform/apierr"
)

type AuthHandler struct {
	usecases assessment.Usecases
}

func NewAuthHandler(usecases assessment.Usecases) *AuthHandler {
	return &AuthHandler{usecases: usecases}
}

// Authenticate handles POST /api/auth.
func (ah *AuthHandler) Authenticate(c *gin.Context) {
	var req struct {
		Passcode string `json:"passcode"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAPIError(c, apierr.BadRequest("초대 코드를 입력해 주세요."))
		return
	}
	out, err := ah.usecases.Authenticate(c.Request.Context(), assessment.AuthenticateInput{
		ClientIP: c.ClientIP(),
		Passcode: req.Passcode,
	})
	response.Respond(c, out, err)
}
