package handlers

import (
	"errors"
	"net/http"
	"time"

	"cardmint/internal/auth"
	"cardmint/internal/services"

	"github.com/gin-gonic/gin"
)

// AuthHandler opens and closes wallet sessions
type AuthHandler struct {
	sessions *services.SessionService
	ttl      time.Duration
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(sessions *services.SessionService, ttl time.Duration) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		ttl:      ttl,
	}
}

// LoginMessage returns the text the wallet has to sign
// GET /auth/message?wallet_address=...
func (h *AuthHandler) LoginMessage(c *gin.Context) {
	address := c.Query("wallet_address")
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "wallet_address is required"})
		return
	}

	issuedAt := time.Now().UTC().Truncate(time.Second)
	c.JSON(http.StatusOK, gin.H{
		"message":   auth.LoginMessage(address, issuedAt),
		"issued_at": issuedAt.Format(time.RFC3339),
	})
}

// WalletLogin verifies the signed login message and connects the wallet.
// POST /auth/wallet
func (h *AuthHandler) WalletLogin(c *gin.Context) {
	var req struct {
		WalletAddress string `json:"wallet_address" binding:"required"`
		Signature     string `json:"signature" binding:"required"`
		IssuedAt      string `json:"issued_at" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	issuedAt, err := time.Parse(time.RFC3339, req.IssuedAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "issued_at must be RFC3339"})
		return
	}

	if err := auth.VerifyLogin(req.WalletAddress, req.Signature, issuedAt, time.Now()); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, auth.ErrInvalidSignature) {
			status = http.StatusUnauthorized
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	session, err := h.sessions.Login(c.Request.Context(), req.WalletAddress)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := auth.GenerateToken(req.WalletAddress, h.ttl)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"wallet":     req.WalletAddress,
		"balance":    session.Conn.Balance(),
		"submission": session.Machine.Snapshot(),
	})
}

// Logout disconnects the wallet and discards its session
// POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	address, ok := auth.GetWalletAddress(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	h.sessions.Logout(address)
	c.JSON(http.StatusOK, gin.H{
		"message": "Successfully logged out",
	})
}

// GetMe returns the connected wallet and its cached balance
// GET /auth/me
func (h *AuthHandler) GetMe(c *gin.Context) {
	address, ok := auth.GetWalletAddress(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	session, ok := h.sessions.Get(address)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired, sign in again"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"wallet":    address,
		"connected": session.Conn.Connected(),
		"balance":   session.Conn.Balance(),
	})
}
