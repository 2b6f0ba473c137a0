package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/mindtrace-backend/internal/http/middleware"
	"github.com/yungbote/mindtrace-backend/internal/http/response"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment"
	"github.com/yungbote/mindtrace-backend/internal/platform/apierr"
)

type AssessmentHandler struct {
	usecases assessment.Usecases
}

func NewAssessmentHandler(usecases assessment.Usecases) *AssessmentHandler {
	return &AssessmentHandler{usecases: usecases}
}

var errMalformed = apierr.BadRequest("요청 형식이 올바르지 않습니다.")

// bind decodes an optional JSON body; an empty body is allowed.
func bind(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		response.RespondAPIError(c, errMalformed)
		return false
	}
	return true
}

// POST /api/start
func (h *AssessmentHandler) Start(c *gin.Context) {
	var req struct {
		Token string `json:"token"`
	}
	if !bind(c, &req) {
		return
	}
	out, err := h.usecases.Start(c.Request.Context(), assessment.StartInput{
		Token: middleware.Token(c, req.Token),
	})
	response.Respond(c, out, err)
}

// POST /api/answer
func (h *AssessmentHandler) Answer(c *gin.Context) {
	var req struct {
		Token      string                      `json:"token"`
		SessionID  string                      `json:"sessionId"`
		QuestionID string                      `json:"questionId"`
		Answer     string                      `json:"answer"`
		Meta       *assessment.AnswerMetaInput `json:"meta"`
	}
	if !bind(c, &req) {
		return
	}
	out, err := h.usecases.Answer(c.Request.Context(), assessment.AnswerInput{
		Token:      middleware.Token(c, req.Token),
		SessionID:  req.SessionID,
		QuestionID: req.QuestionID,
		Answer:     req.Answer,
		Meta:       req.Meta,
	})
	response.Respond(c, out, err)
}

// POST /api/undo
func (h *AssessmentHandler) Undo(c *gin.Context) {
	var req struct {
		Token     string `json:"token"`
		SessionID string `json:"sessionId"`
	}
	if !bind(c, &req) {
		return
	}
	out, err := h.usecases.Undo(c.Request.Context(), assessment.UndoInput{
		Token:     middleware.Token(c, req.Token),
		SessionID: req.SessionID,
	})
	response.Respond(c, out, err)
}

// POST /api/finalize
func (h *AssessmentHandler) Finalize(c *gin.Context) {
	var req struct {
		Token     string `json:"token"`
		SessionID string `json:"sessionId"`
	}
	if !bind(c, &req) {
		return
	}
	out, err := h.usecases.Finalize(c.Request.Context(), assessment.FinalizeInput{
		Token:     middleware.Token(c, req.Token),
		SessionID: req.SessionID,
	})
	response.Respond(c, out, err)
}

// GET /api/result/:id
func (h *AssessmentHandler) Result(c *gin.Context) {
	out, err := h.usecases.Result(c.Request.Context(), assessment.ResultInput{
		Token:     middleware.Token(c, ""),
		SessionID: c.Param("id"),
	})
	response.Respond(c, out, err)
}

// GET /api/session/:id
func (h *AssessmentHandler) Session(c *gin.Context) {
	out, err := h.usecases.Resume(c.Request.Context(), assessment.ResumeInput{
		Token:     middleware.Token(c, ""),
		SessionID: c.Param("id"),
	})
	response.Respond(c, out, err)
}
