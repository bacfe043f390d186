package handlers

import (
	"log"
	"net/http"
	"strconv"

	"cardmint/internal/auth"
	"cardmint/internal/models"
	"cardmint/internal/realtime"
	"cardmint/internal/repository"
	"cardmint/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// TokenHandler serves the public listing of launched card tokens
type TokenHandler struct {
	tokens *services.TokenService
	hub    *realtime.Hub
}

func NewTokenHandler(tokens *services.TokenService, hub *realtime.Hub) *TokenHandler {
	return &TokenHandler{
		tokens: tokens,
		hub:    hub,
	}
}

func tokenFilter(c *gin.Context) repository.TokenFilter {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return repository.TokenFilter{
		Status: models.TokenStatus(c.Query("status")),
		Wallet: c.Query("wallet"),
		Limit:  limit,
		Offset: offset,
	}
}

// GetTokens lists tokens newest first
// GET /api/tokens
func (h *TokenHandler) GetTokens(c *gin.Context) {
	filter := tokenFilter(c)
	tokens, err := h.tokens.List(c.Request.Context(), filter)
	if err != nil {
		log.Printf("ERROR: GetTokens: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tokens"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tokens": tokens,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// GetTokenCount counts tokens matching the filter
// GET /api/tokens/count
func (h *TokenHandler) GetTokenCount(c *gin.Context) {
	count, err := h.tokens.Count(c.Request.Context(), tokenFilter(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count tokens"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// GET /api/tokens/stats
func (h *TokenHandler) GetTokenStats(c *gin.Context) {
	stats, err := h.tokens.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GET /api/tokens/:id
func (h *TokenHandler) GetToken(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid token ID"})
		return
	}

	token, err := h.tokens.Get(c.Request.Context(), id)
	if err != nil {
		if services.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Token not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch token"})
		return
	}
	c.JSON(http.StatusOK, token)
}

// GetCreatorBalance reads how much of the token its creator still holds
// GET /api/tokens/:id/creator-balance
func (h *TokenHandler) GetCreatorBalance(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid token ID"})
		return
	}

	holdings, err := h.tokens.CreatorHoldings(c.Request.Context(), id)
	if err != nil {
		if services.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Token not found"})
			return
		}
		log.Printf("ERROR: GetCreatorBalance %s: %v", id, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, holdings)
}

// Live streams token inserts and updates over a websocket
// GET /api/tokens/live
func (h *TokenHandler) Live(c *gin.Context) {
	if err := h.hub.Serve(c.Writer, c.Request, realtime.ChannelTokens); err != nil {
		log.Printf("[Realtime] Websocket upgrade failed: %v", err)
	}
}

// GetVerifications lists the caller's verification history
// GET /api/verifications?status=&q=
func (h *TokenHandler) GetVerifications(c *gin.Context) {
	address, ok := auth.GetWalletAddress(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := h.tokens.Verifications(c.Request.Context(), repository.VerificationFilter{
		Wallet: address,
		Status: models.VerificationStatus(c.Query("status")),
		Search: c.Query("q"),
		Limit:  limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch verifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"verifications": records})
}
