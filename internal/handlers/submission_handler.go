package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"cardmint/internal/auth"
	"cardmint/internal/media"
	"cardmint/internal/models"
	"cardmint/internal/services"

	"github.com/gin-gonic/gin"
)

// SubmissionHandler drives the workflow of the caller's session
type SubmissionHandler struct {
	sessions      *services.SessionService
	encoder       *media.Encoder
	verifyTimeout time.Duration
	deployTimeout time.Duration
}

func NewSubmissionHandler(sessions *services.SessionService, encoder *media.Encoder, verifyTimeout, deployTimeout time.Duration) *SubmissionHandler {
	return &SubmissionHandler{
		sessions:      sessions,
		encoder:       encoder,
		verifyTimeout: verifyTimeout,
		deployTimeout: deployTimeout,
	}
}

func (h *SubmissionHandler) session(c *gin.Context) (*services.Session, bool) {
	address, ok := auth.GetWalletAddress(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}
	session, ok := h.sessions.Get(address)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired, sign in again"})
		return nil, false
	}
	return session, true
}

func (h *SubmissionHandler) respondSnapshot(c *gin.Context, status int, session *services.Session) {
	c.JSON(status, gin.H{"submission": session.Machine.Snapshot()})
}

// GetSubmission returns the state the UI renders from
// GET /api/submission
func (h *SubmissionHandler) GetSubmission(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	h.respondSnapshot(c, http.StatusOK, session)
}

// UpdateMetadata replaces the card name, ticker, description, socials and dev buy
// PUT /api/submission/metadata
func (h *SubmissionHandler) UpdateMetadata(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req models.Metadata
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := session.Machine.UpdateMetadata(req); err != nil {
		respondError(c, err)
		return
	}
	h.respondSnapshot(c, http.StatusOK, session)
}

// UploadMedia stores the multipart "file" in the slot named by the path
// POST /api/submission/media/:slot
func (h *SubmissionHandler) UploadMedia(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	slot, ok := models.ParseMediaSlot(c.Param("slot"))
	if !ok {
		respondError(c, media.ErrUnknownSlot)
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	encoded, err := h.encoder.AcceptFile(fh, slot)
	if err != nil {
		respondError(c, err)
		return
	}
	if encoded == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is empty"})
		return
	}

	if err := session.Machine.AttachMedia(encoded); err != nil {
		respondError(c, err)
		return
	}
	h.respondSnapshot(c, http.StatusOK, session)
}

// DeleteMedia clears a slot
// DELETE /api/submission/media/:slot
func (h *SubmissionHandler) DeleteMedia(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	slot, ok := models.ParseMediaSlot(c.Param("slot"))
	if !ok {
		respondError(c, media.ErrUnknownSlot)
		return
	}
	if err := session.Machine.ClearMedia(slot); err != nil {
		respondError(c, err)
		return
	}
	h.respondSnapshot(c, http.StatusOK, session)
}

// RegenerateVerificationID issues a new code to write on the proof
// POST /api/submission/verification-id
func (h *SubmissionHandler) RegenerateVerificationID(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	code, err := session.Machine.RegenerateVerificationID()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"verification_id": code,
		"submission":      session.Machine.Snapshot(),
	})
}

// Verify starts the AI check. The result is picked up by polling the submission.
// POST /api/submission/verify
func (h *SubmissionHandler) Verify(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.verifyTimeout)
	done, err := session.Machine.StartVerify(ctx)
	if err != nil {
		cancel()
		respondError(c, err)
		return
	}

	address := session.Address()
	go func() {
		defer cancel()
		out := <-done
		if out.Err != nil && !errors.Is(out.Err, context.Canceled) {
			log.Printf("[Submission] Verification for %s ended with: %v", address, out.Err)
		}
	}()

	h.respondSnapshot(c, http.StatusAccepted, session)
}

// Deploy starts token creation. With a browser wallet the UI then fetches
// the pending transaction and posts it back signed.
// POST /api/submission/deploy
func (h *SubmissionHandler) Deploy(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.deployTimeout)
	done, err := session.Machine.StartDeploy(ctx)
	if err != nil {
		cancel()
		respondError(c, err)
		return
	}

	address := session.Address()
	go func() {
		defer cancel()
		out := <-done
		if out.Err != nil {
			log.Printf("[Submission] Deployment for %s ended with: %v", address, out.Err)
		}
	}()

	h.respondSnapshot(c, http.StatusAccepted, session)
}

// PendingSignature returns the transaction waiting for the browser wallet
// GET /api/submission/deploy/pending-signature
func (h *SubmissionHandler) PendingSignature(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	if session.Remote == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "wallet signs on the server"})
		return
	}

	pending := session.Remote.Pending()
	if pending == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no signature pending"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": pending})
}

// SubmitSignature hands the wallet-signed transaction to the waiting deploy
// POST /api/submission/deploy/signature
func (h *SubmissionHandler) SubmitSignature(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	if session.Remote == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "wallet signs on the server"})
		return
	}

	var req struct {
		Transaction string `json:"transaction" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := session.Remote.Submit(req.Transaction); err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		respondError(c, err)
		return
	}
	h.respondSnapshot(c, http.StatusAccepted, session)
}

// RejectSignature reports that the user declined in the wallet
// DELETE /api/submission/deploy/signature
func (h *SubmissionHandler) RejectSignature(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	if session.Remote == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "wallet signs on the server"})
		return
	}
	if err := session.Remote.Reject(); err != nil {
		respondError(c, err)
		return
	}
	h.respondSnapshot(c, http.StatusOK, session)
}

// TryAgain returns a rejected or failed submission to collection
// POST /api/submission/try-again
func (h *SubmissionHandler) TryAgain(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	if _, err := session.Machine.TryAgain(); err != nil {
		respondError(c, err)
		return
	}
	h.respondSnapshot(c, http.StatusOK, session)
}

// CreateAnother starts over after a successful launch
// POST /api/submission/create-another
func (h *SubmissionHandler) CreateAnother(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	if err := session.Machine.CreateAnother(); err != nil {
		respondError(c, err)
		return
	}
	h.respondSnapshot(c, http.StatusOK, session)
}

// Reset abandons the current submission
// POST /api/submission/reset
func (h *SubmissionHandler) Reset(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	if err := session.Reset(); err != nil {
		respondError(c, err)
		return
	}
	h.respondSnapshot(c, http.StatusOK, session)
}
