package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chainswarm/chainswarm-go/internal/services"
)

// SwarmHandler exposes swarm status.
type SwarmHandler struct {
	service *services.SwarmService
}

// NewSwarmHandler creates the handler.
func NewSwarmHandler(service *services.SwarmService) *SwarmHandler {
	return &SwarmHandler{service: service}
}

// GetStatus returns the service, board, and per-agent state.
func (h *SwarmHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Status())
}
