package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eliteGoblin/focusd/deepfocus/internal/api/dto"
)

// HealthHandler serves /health.
type HealthHandler struct {
	version  string
	liveness Liveness
}

// NewHealthHandler creates a HealthHandler. liveness may be nil.
func NewHealthHandler(version string, liveness Liveness) *HealthHandler {
	return &HealthHandler{version: version, liveness: liveness}
}

// Health returns server health and monitor liveness.
func (h *HealthHandler) Health(c *gin.Context) {
	resp := dto.HealthResponse{
		Status:    "healthy",
		Version:   h.version,
		Timestamp: time.Now(),
	}
	if h.liveness != nil {
		resp.Monitor = dto.MonitorHealth{
			Running:  h.liveness.Running(),
			LastTick: h.liveness.LastTick(),
		}
	}
	c.JSON(http.StatusOK, resp)
}
