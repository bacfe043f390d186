package handlers

import (
	"errors"
	"log"
	"net/http"

	"cardmint/internal/media"
	"cardmint/internal/wallet"
	"cardmint/internal/workflow"

	"github.com/gin-gonic/gin"
)

// statusFor maps workflow and media errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, workflow.ErrValidation),
		errors.Is(err, media.ErrFileTooLarge),
		errors.Is(err, media.ErrUnsupportedMedia),
		errors.Is(err, media.ErrUnknownSlot),
		errors.Is(err, wallet.ErrSignatureMismatch):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrWalletNotConnected):
		return http.StatusUnauthorized
	case errors.Is(err, workflow.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, wallet.ErrNoPendingSignature):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrBusy),
		errors.Is(err, workflow.ErrStaleSubmission),
		errors.Is(err, wallet.ErrSignerBusy):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("ERROR: %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
