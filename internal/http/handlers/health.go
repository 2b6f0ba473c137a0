package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SessionCounter reports how many sessions are held in memory.
type SessionCounter interface {
	Len() int
}

type HealthHandler struct {
	sessions SessionCounter
}

func NewHealthHandler(sessions SessionCounter) *HealthHandler {
	return &HealthHandler{sessions: sessions}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if h.sessions != nil {
		body["sessions"] = h.sessions.Len()
	}
	c.JSON(http.StatusOK, body)
}
