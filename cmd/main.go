package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"cardmint/internal/aigateway"
	"cardmint/internal/auth"
	"cardmint/internal/blockchain"
	"cardmint/internal/config"
	"cardmint/internal/database"
	"cardmint/internal/handlers"
	"cardmint/internal/jobs"
	"cardmint/internal/media"
	"cardmint/internal/observability"
	"cardmint/internal/pumpportal"
	"cardmint/internal/realtime"
	"cardmint/internal/repository"
	"cardmint/internal/services"
	"cardmint/internal/storage"
	"cardmint/internal/wallet"
	"cardmint/internal/workflow"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret)

	// Connect to database
	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics("cardmint", registry)

	// Initialize repository
	repo := repository.NewRepository(database.GetDB())

	// Initialize Solana client
	solanaClient := blockchain.NewSolanaClient(
		cfg.Solana.Network,
		cfg.Solana.RPCURL,
		cfg.Solana.ServerPrivateKey,
	)

	// Object storage for card images and token logos
	var store storage.Storage
	s3cfg := storage.S3Configs{
		Endpoint:       cfg.Storage.Endpoint,
		PublicEndpoint: cfg.Storage.PublicEndpoint,
		AccessKey:      cfg.Storage.AccessKey,
		SecretKey:      cfg.Storage.SecretKey,
		Region:         cfg.Storage.Region,
		Bucket:         cfg.Storage.Bucket,
		SSLDisabled:    cfg.Storage.SSLDisabled,
	}
	if s3cfg.Enabled() {
		store, err = storage.NewS3Storage(s3cfg)
		if err != nil {
			log.Fatalf("Failed to initialize storage: %v", err)
		}
	} else {
		log.Println("Storage not configured, token images stay inline")
	}

	// Realtime token feed
	hub := realtime.NewHub()
	go hub.Run(ctx)
	metrics.RegisterGaugeFunc("realtime", "listeners", "Connected live token listeners", func() float64 {
		return float64(hub.ClientCount())
	})
	if cfg.Database.Realtime {
		listener := realtime.NewPGListener(cfg.GetDSN(), hub)
		go func() {
			if err := listener.Run(ctx); err != nil {
				log.Printf("Realtime listener stopped: %v", err)
			}
		}()
	}

	// External APIs
	aiClient := aigateway.NewClient(aigateway.Config{
		URL:     cfg.AI.URL,
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
		Timeout: cfg.AI.Timeout,
	})
	pumpClient := pumpportal.NewClient(cfg.PumpPortal.URL, cfg.PumpPortal.Timeout)

	// Initialize services
	tokenService := services.NewTokenService(repo, hub, solanaClient, metrics)
	verificationService := services.NewVerificationService(
		aiClient,
		repo,
		store,
		cfg.Storage.Bucket,
		cfg.Workflow.VerificationTimeout,
		metrics,
	)
	deploymentService := services.NewDeploymentService(
		pumpClient,
		solanaClient,
		store,
		tokenService,
		services.DeploymentConfig{
			Bucket:           cfg.Storage.Bucket,
			SignatureTimeout: cfg.Workflow.SignatureTimeout,
			ConfirmTimeout:   cfg.Workflow.ConfirmTimeout,
		},
		metrics,
	)
	balanceService := services.NewBalanceService(solanaClient, repo, cfg.Workflow.MinimumBalanceSOL, metrics)
	sessionService := services.NewSessionService(
		verificationService,
		deploymentService,
		balanceService,
		workflow.Options{
			ProgressInterval: cfg.Workflow.ProgressInterval,
			ProgressHold:     cfg.Workflow.ProgressHold,
		},
		metrics,
	)
	if operator := solanaClient.ServerWallet(); operator != nil {
		sessionService.SetOperator(wallet.NewKeypairSigner(operator.PrivateKey))
		log.Printf("Operator wallet %s signs its own deploys", operator.PublicKey())
	}

	encoder := media.NewEncoder(media.Limits{
		Image:    cfg.Workflow.MaxImageBytes,
		Video:    cfg.Workflow.MaxVideoBytes,
		LogoSide: cfg.Workflow.LogoMaxSide,
	})

	// Initialize handlers
	h := &handlers.Handlers{
		Auth:       handlers.NewAuthHandler(sessionService, cfg.App.SessionTTL),
		Submission: handlers.NewSubmissionHandler(sessionService, encoder, cfg.Workflow.VerificationTimeout, cfg.Workflow.DeployTimeout),
		Wallet:     handlers.NewWalletHandler(sessionService, balanceService),
		Token:      handlers.NewTokenHandler(tokenService, hub),
		Diagnostics: handlers.NewDiagnosticsHandler(
			solanaClient,
			hub,
			aiClient.Endpoint(),
			pumpClient.Endpoint(),
			store != nil,
		),
		Metrics: observability.Handler(registry),
	}

	// Background jobs
	balanceRefresher := jobs.NewBalanceRefresher(sessionService, cfg.Workflow.BalanceRefreshInterval)
	balanceRefresher.Start()
	sessionSweeper := jobs.NewSessionSweeper(sessionService, cfg.App.SessionTTL, 10*time.Minute)
	sessionSweeper.Start()
	log.Println("Background jobs started")

	// Set up Gin router
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	h.Register(router)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		log.Printf("Health check: http://localhost:%s/health", cfg.Server.Port)
		log.Printf("Wallet auth: POST http://localhost:%s/auth/wallet", cfg.Server.Port)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	balanceRefresher.Stop()
	sessionSweeper.Stop()
	stop()

	// Graceful shutdown with 5 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
