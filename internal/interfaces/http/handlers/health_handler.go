package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"chain-route.backend/internal/infrastructure/blockchain"
	"chain-route.backend/internal/interfaces/http/response"
)

// HealthHandler reports process liveness and per-chain RPC health
type HealthHandler struct {
	registry *blockchain.Registry
}

// NewHealthHandler creates a health handler
func NewHealthHandler(registry *blockchain.Registry) *HealthHandler {
	return &HealthHandler{registry: registry}
}

// Get handles GET /health
func (h *HealthHandler) Get(c *gin.Context) {
	chains := gin.H{}
	for _, name := range h.registry.Chains() {
		adapter, err := h.registry.Get(name)
		if err != nil {
			continue
		}
		chains[name] = adapter.Health(c.Request.Context())
	}

	response.Success(c, http.StatusOK, gin.H{
		"status": "ok",
		"chains": chains,
	})
}
