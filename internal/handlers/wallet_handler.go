package handlers

import (
	"net/http"

	"cardmint/internal/auth"
	"cardmint/internal/services"

	"github.com/gin-gonic/gin"
)

type WalletHandler struct {
	sessions *services.SessionService
	balance  *services.BalanceService
}

func NewWalletHandler(sessions *services.SessionService, balance *services.BalanceService) *WalletHandler {
	return &WalletHandler{
		sessions: sessions,
		balance:  balance,
	}
}

// GetBalance reads the balance fresh and reports whether it covers a deploy.
// A failed read is reported as unknown, not as an error.
// GET /api/wallet/balance
func (h *WalletHandler) GetBalance(c *gin.Context) {
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

	balance, err := h.balance.Refresh(c.Request.Context(), session.Conn)
	resp := gin.H{
		"wallet":  address,
		"balance": balance,
		"minimum": h.balance.Minimum(),
	}
	if err != nil {
		resp["error"] = err.Error()
	}
	if balance.Known {
		resp["sufficient"] = h.balance.Sufficient(balance.Amount)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    resp,
	})
}
