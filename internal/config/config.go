package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	App        AppConfig
	Solana     SolanaConfig
	AI         AIConfig
	PumpPortal PumpPortalConfig
	Storage    StorageConfig
	Workflow   WorkflowConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	// Realtime enables the LISTEN/NOTIFY relay for the tokens table
	Realtime bool
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port           string
	AllowedOrigins []string
}

// AppConfig holds application-specific settings
type AppConfig struct {
	JWTSecret  string
	SessionTTL time.Duration
}

// SolanaConfig holds RPC settings and the optional operator key
type SolanaConfig struct {
	Network          string
	RPCURL           string
	ServerPrivateKey string
}

// AIConfig holds the AI gateway settings
type AIConfig struct {
	URL     string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// PumpPortalConfig holds the trading API settings
type PumpPortalConfig struct {
	URL     string
	Timeout time.Duration
}

// StorageConfig holds the S3 compatible bucket settings
type StorageConfig struct {
	Endpoint       string
	PublicEndpoint string
	Region         string
	AccessKey      string
	SecretKey      string
	Bucket         string
	SSLDisabled    bool
}

// WorkflowConfig holds limits, intervals and timeouts of the card workflow
type WorkflowConfig struct {
	MinimumBalanceSOL      decimal.Decimal
	MaxImageBytes          int64
	MaxVideoBytes          int64
	LogoMaxSide            uint
	VerificationTimeout    time.Duration
	DeployTimeout          time.Duration
	ConfirmTimeout         time.Duration
	SignatureTimeout       time.Duration
	BalanceRefreshInterval time.Duration
	ProgressInterval       time.Duration
	ProgressHold           time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "cardmint"),
			Realtime: getEnvBool("DB_REALTIME", true),
		},
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),
		},
		App: AppConfig{
			JWTSecret:  getEnv("JWT_SECRET", ""),
			SessionTTL: getEnvDuration("SESSION_TTL", 24*time.Hour),
		},
		Solana: SolanaConfig{
			Network:          getEnv("SOLANA_NETWORK", "mainnet-beta"),
			RPCURL:           getEnv("SOLANA_RPC_URL", ""),
			ServerPrivateKey: getEnv("SOLANA_SERVER_PRIVATE_KEY", ""),
		},
		AI: AIConfig{
			URL:     getEnv("AI_GATEWAY_URL", "https://ai.gateway.lovable.dev/v1/chat/completions"),
			APIKey:  getEnv("AI_GATEWAY_API_KEY", ""),
			Model:   getEnv("AI_GATEWAY_MODEL", "google/gemini-2.5-flash"),
			Timeout: getEnvDuration("AI_GATEWAY_TIMEOUT", 120*time.Second),
		},
		PumpPortal: PumpPortalConfig{
			URL:     getEnv("PUMPPORTAL_URL", "https://pumpportal.fun/api/trade-local"),
			Timeout: getEnvDuration("PUMPPORTAL_TIMEOUT", 30*time.Second),
		},
		Storage: StorageConfig{
			Endpoint:       getEnv("STORAGE_ENDPOINT", ""),
			PublicEndpoint: getEnv("STORAGE_PUBLIC_ENDPOINT", ""),
			Region:         getEnv("STORAGE_REGION", "us-east-1"),
			AccessKey:      getEnv("STORAGE_ACCESS_KEY", ""),
			SecretKey:      getEnv("STORAGE_SECRET_KEY", ""),
			Bucket:         getEnv("STORAGE_BUCKET", "token-images"),
			SSLDisabled:    getEnvBool("STORAGE_SSL_DISABLED", false),
		},
		Workflow: WorkflowConfig{
			MinimumBalanceSOL:      getEnvDecimal("MINIMUM_BALANCE_SOL", decimal.RequireFromString("0.02")),
			MaxImageBytes:          getEnvInt64("MAX_IMAGE_BYTES", 10<<20),
			MaxVideoBytes:          getEnvInt64("MAX_VIDEO_BYTES", 50<<20),
			LogoMaxSide:            uint(getEnvInt64("LOGO_MAX_SIDE", 512)),
			VerificationTimeout:    getEnvDuration("VERIFICATION_TIMEOUT", 120*time.Second),
			DeployTimeout:          getEnvDuration("DEPLOY_TIMEOUT", 5*time.Minute),
			ConfirmTimeout:         getEnvDuration("CONFIRM_TIMEOUT", 90*time.Second),
			SignatureTimeout:       getEnvDuration("SIGNATURE_TIMEOUT", 2*time.Minute),
			BalanceRefreshInterval: getEnvDuration("BALANCE_REFRESH_INTERVAL", 30*time.Second),
			ProgressInterval:       getEnvDuration("PROGRESS_INTERVAL", 500*time.Millisecond),
			ProgressHold:           getEnvDuration("PROGRESS_HOLD", 800*time.Millisecond),
		},
	}

	// Validate required fields
	if config.App.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if config.AI.APIKey == "" {
		return nil, fmt.Errorf("AI_GATEWAY_API_KEY is required")
	}

	if config.Workflow.MinimumBalanceSOL.IsNegative() {
		return nil, fmt.Errorf("MINIMUM_BALANCE_SOL must not be negative")
	}

	return config, nil
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %v", key, value, defaultValue)
		return defaultValue
	}
	return b
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n <= 0 {
		log.Printf("Warning: invalid %s=%q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Printf("Warning: invalid %s=%q, using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}

// getEnvList splits a comma separated variable
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
