package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"

	"cardmint/internal/models"
	"cardmint/internal/observability"
	"cardmint/internal/realtime"
	"cardmint/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// pump.fun tokens are minted with 6 decimals
const tokenDecimals = 6

// Publisher fans a record out to realtime listeners
type Publisher interface {
	PublishRecord(channel, eventType string, record interface{})
}

// HoldingsReader reads SPL balances
type HoldingsReader interface {
	GetTokenAccountBalance(ctx context.Context, ownerAddress string, mintAddress string) (uint64, error)
}

// Holdings is the creator's balance of a launched token
type Holdings struct {
	TokenID       uuid.UUID       `json:"token_id"`
	MintAddress   string          `json:"mint_address"`
	WalletAddress string          `json:"wallet_address"`
	Amount        uint64          `json:"amount"`
	UIAmount      decimal.Decimal `json:"ui_amount"`
}

// TokenService mirrors launched tokens into the public listing
type TokenService struct {
	repo     *repository.Repository
	hub      Publisher
	holdings HoldingsReader
	metrics  *observability.Metrics
}

func NewTokenService(repo *repository.Repository, hub Publisher, holdings HoldingsReader, metrics *observability.Metrics) *TokenService {
	return &TokenService{
		repo:     repo,
		hub:      hub,
		holdings: holdings,
		metrics:  metrics,
	}
}

// RecordLaunch writes the listing row for a confirmed deployment, links the
// verification that allowed it and announces the new token
func (s *TokenService) RecordLaunch(ctx context.Context, sub *models.Submission, owner string, result *models.DeploymentResult, imageURL string) (*models.TokenRecord, error) {
	if result == nil || !result.Success {
		return nil, fmt.Errorf("deployment did not succeed")
	}

	token := &models.TokenRecord{
		Name:          sub.CardName,
		Ticker:        sub.Ticker,
		Description:   sub.Description,
		WalletAddress: owner,
		Status:        models.TokenStatusLaunched,
		Rarity:        models.RarityCommon,
		MarketCap:     decimal.Zero,
		Progress:      0,
		PumpfunURL:    optional(result.PumpURL),
		MintAddress:   optional(result.MintAddress),
		Signature:     optional(result.Signature),
	}
	// inline images are too large for the listing column
	if !strings.HasPrefix(imageURL, "data:") {
		token.ImageURL = optional(imageURL)
	}

	err := s.repo.CreateToken(ctx, token)
	s.metrics.RecordTokenWrite(err)
	if err != nil {
		return nil, fmt.Errorf("failed to create token record: %w", err)
	}

	if err := s.repo.LinkVerificationToken(ctx, sub.ID, token.ID); err != nil {
		log.Printf("[Tokens] Could not link verification of %s to token %s: %v", sub.ID, token.ID, err)
	}

	if s.hub != nil {
		s.hub.PublishRecord(realtime.ChannelTokens, "INSERT", token)
	}
	log.Printf("[Tokens] Recorded launch of %s (%s)", token.Ticker, *token.MintAddress)
	return token, nil
}

func (s *TokenService) List(ctx context.Context, filter repository.TokenFilter) ([]models.TokenRecord, error) {
	return s.repo.ListTokens(ctx, filter)
}

func (s *TokenService) Count(ctx context.Context, filter repository.TokenFilter) (int64, error) {
	return s.repo.CountTokens(ctx, filter)
}

func (s *TokenService) Stats(ctx context.Context) (*models.TokenStats, error) {
	return s.repo.TokenStats(ctx)
}

func (s *TokenService) Get(ctx context.Context, id uuid.UUID) (*models.TokenRecord, error) {
	return s.repo.GetTokenByID(ctx, id)
}

// CreatorHoldings reads how many of its own tokens the creator still holds
func (s *TokenService) CreatorHoldings(ctx context.Context, id uuid.UUID) (*Holdings, error) {
	token, err := s.repo.GetTokenByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if token.MintAddress == nil || *token.MintAddress == "" {
		return nil, fmt.Errorf("token %s has no mint address", id)
	}
	if s.holdings == nil {
		return nil, errors.New("holdings reader not configured")
	}

	amount, err := s.holdings.GetTokenAccountBalance(ctx, token.WalletAddress, *token.MintAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to read creator holdings: %w", err)
	}

	return &Holdings{
		TokenID:       token.ID,
		MintAddress:   *token.MintAddress,
		WalletAddress: token.WalletAddress,
		Amount:        amount,
		UIAmount:      decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -tokenDecimals),
	}, nil
}

// Verifications lists the audit trail
func (s *TokenService) Verifications(ctx context.Context, filter repository.VerificationFilter) ([]models.VerificationRecord, error) {
	return s.repo.ListVerifications(ctx, filter)
}

// IsNotFound reports whether err means the lookup matched nothing
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
