package handlers

import (
	"context"
	"net/http"
	"time"

	"cardmint/internal/blockchain"

	"github.com/gin-gonic/gin"
)

// Diagnoser probes the Solana RPC
type Diagnoser interface {
	RunDiagnostics(ctx context.Context) *blockchain.DiagnosticResult
}

// ListenerCounter reports connected realtime listeners
type ListenerCounter interface {
	ClientCount() int64
}

type DiagnosticsHandler struct {
	solana         Diagnoser
	listeners      ListenerCounter
	aiEndpoint     string
	pumpEndpoint   string
	storageEnabled bool
}

func NewDiagnosticsHandler(solana Diagnoser, listeners ListenerCounter, aiEndpoint, pumpEndpoint string, storageEnabled bool) *DiagnosticsHandler {
	return &DiagnosticsHandler{
		solana:         solana,
		listeners:      listeners,
		aiEndpoint:     aiEndpoint,
		pumpEndpoint:   pumpEndpoint,
		storageEnabled: storageEnabled,
	}
}

// Health is the liveness probe
// GET /health
func (h *DiagnosticsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// Diagnostics reports RPC reachability and the configured upstreams
// GET /api/diagnostics
func (h *DiagnosticsHandler) Diagnostics(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	result := h.solana.RunDiagnostics(ctx)
	status := http.StatusOK
	if !result.RPCConnected {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"solana":             result,
		"ai_gateway":         h.aiEndpoint,
		"pumpportal":         h.pumpEndpoint,
		"storage_enabled":    h.storageEnabled,
		"realtime_listeners": h.listeners.ClientCount(),
	})
}
