package handlers

import (
	"net/http"

	"cardmint/internal/auth"

	"github.com/gin-gonic/gin"
)

// Handlers groups every HTTP handler of the service
type Handlers struct {
	Auth        *AuthHandler
	Submission  *SubmissionHandler
	Wallet      *WalletHandler
	Token       *TokenHandler
	Diagnostics *DiagnosticsHandler
	// Metrics serves the Prometheus scrape endpoint when set
	Metrics http.Handler
}

// Register mounts the routes on router
func (h *Handlers) Register(router *gin.Engine) {
	if h.Diagnostics != nil {
		router.GET("/health", h.Diagnostics.Health)
		router.GET("/api/diagnostics", h.Diagnostics.Diagnostics)
	}
	if h.Metrics != nil {
		router.GET("/metrics", gin.WrapH(h.Metrics))
	}

	// Authentication routes (public)
	authRoutes := router.Group("/auth")
	{
		authRoutes.GET("/message", h.Auth.LoginMessage)
		authRoutes.POST("/wallet", h.Auth.WalletLogin)
	}

	authProtected := router.Group("/auth")
	authProtected.Use(auth.AuthMiddleware())
	{
		authProtected.POST("/logout", h.Auth.Logout)
		authProtected.GET("/me", h.Auth.GetMe)
	}

	// Public token routes
	router.GET("/api/tokens", h.Token.GetTokens)
	router.GET("/api/tokens/count", h.Token.GetTokenCount)
	router.GET("/api/tokens/stats", h.Token.GetTokenStats)
	router.GET("/api/tokens/live", h.Token.Live)
	router.GET("/api/tokens/:id", h.Token.GetToken)
	router.GET("/api/tokens/:id/creator-balance", h.Token.GetCreatorBalance)

	// API routes (protected)
	api := router.Group("/api")
	api.Use(auth.AuthMiddleware())
	{
		api.GET("/wallet/balance", h.Wallet.GetBalance)
		api.GET("/verifications", h.Token.GetVerifications)

		sub := api.Group("/submission")
		{
			sub.GET("", h.Submission.GetSubmission)
			sub.PUT("/metadata", h.Submission.UpdateMetadata)
			sub.POST("/media/:slot", h.Submission.UploadMedia)
			sub.DELETE("/media/:slot", h.Submission.DeleteMedia)
			sub.POST("/verification-id", h.Submission.RegenerateVerificationID)
			sub.POST("/verify", h.Submission.Verify)
			sub.POST("/deploy", h.Submission.Deploy)
			sub.GET("/deploy/pending-signature", h.Submission.PendingSignature)
			sub.POST("/deploy/signature", h.Submission.SubmitSignature)
			sub.DELETE("/deploy/signature", h.Submission.RejectSignature)
			sub.POST("/try-again", h.Submission.TryAgain)
			sub.POST("/create-another", h.Submission.CreateAnother)
			sub.POST("/reset", h.Submission.Reset)
		}
	}
}
