package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"cardmint/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	// One named in-memory database per test keeps tests isolated
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	err = db.AutoMigrate(
		&models.TokenRecord{},
		&models.VerificationRecord{},
		&models.WalletConnection{},
	)
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

func strPtr(s string) *string { return &s }

func TestListTokensNewestFirst(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, status := range []models.TokenStatus{models.TokenStatusLaunched, models.TokenStatusPending, models.TokenStatusLaunched} {
		token := &models.TokenRecord{
			Name:          fmt.Sprintf("Card %d", i),
			Ticker:        fmt.Sprintf("C%d", i),
			WalletAddress: "wallet",
			Status:        status,
			Rarity:        models.RarityCommon,
			MarketCap:     decimal.Zero,
			MintAddress:   strPtr(fmt.Sprintf("mint-%d", i)),
			CreatedAt:     base.Add(time.Duration(i) * time.Hour),
		}
		if err := repo.CreateToken(ctx, token); err != nil {
			t.Fatalf("CreateToken failed: %v", err)
		}
	}

	tokens, err := repo.ListTokens(ctx, TokenFilter{Limit: 10})
	if err != nil {
		t.Fatalf("ListTokens failed: %v", err)
	}
	if len(tokens) != 3 {
		t.Fatalf("expected 3 tokens, got %d", len(tokens))
	}
	if tokens[0].Name != "Card 2" || tokens[2].Name != "Card 0" {
		t.Errorf("unexpected order: %s, %s, %s", tokens[0].Name, tokens[1].Name, tokens[2].Name)
	}

	launched, err := repo.ListTokens(ctx, TokenFilter{Status: models.TokenStatusLaunched, Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("ListTokens with filter failed: %v", err)
	}
	if len(launched) != 1 || launched[0].Name != "Card 0" {
		t.Errorf("expected Card 0 on second page of launched tokens, got %+v", launched)
	}

	count, err := repo.CountTokens(ctx, TokenFilter{Status: models.TokenStatusLaunched})
	if err != nil {
		t.Fatalf("CountTokens failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 launched tokens, got %d", count)
	}

	stats, err := repo.TokenStats(ctx)
	if err != nil {
		t.Fatalf("TokenStats failed: %v", err)
	}
	if stats.Total != 3 || stats.Launched != 2 || stats.Pending != 1 || stats.Verified != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestGetTokenNotFound(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	if _, err := repo.GetTokenByID(context.Background(), uuid.New()); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestVerificationLinkAndSearch(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()
	submission := uuid.New()

	rejected := &models.VerificationRecord{
		SubmissionID:     submission,
		WalletAddress:    "wallet-a",
		VerificationCode: "AAAA2222",
		CardName:         "Charizard",
		Ticker:           "CHAR",
		Status:           models.VerificationStatusRejected,
		CreatedAt:        time.Now().Add(-time.Minute),
	}
	verified := &models.VerificationRecord{
		SubmissionID:     submission,
		WalletAddress:    "wallet-a",
		VerificationCode: "BBBB3333",
		CardName:         "Charizard",
		Ticker:           "CHAR",
		AIConfidence:     92,
		Status:           models.VerificationStatusVerified,
		Details:          &models.VerificationDetails{CardMatch: true, OwnershipProof: true, AuthenticityScore: 90},
		CreatedAt:        time.Now(),
	}
	other := &models.VerificationRecord{
		SubmissionID:     uuid.New(),
		WalletAddress:    "wallet-b",
		VerificationCode: "CCCC4444",
		CardName:         "Pikachu",
		Ticker:           "PIKA",
		Status:           models.VerificationStatusVerified,
	}
	for _, rec := range []*models.VerificationRecord{rejected, verified, other} {
		if err := repo.CreateVerification(ctx, rec); err != nil {
			t.Fatalf("CreateVerification failed: %v", err)
		}
	}

	tokenID := uuid.New()
	if err := repo.LinkVerificationToken(ctx, submission, tokenID); err != nil {
		t.Fatalf("LinkVerificationToken failed: %v", err)
	}

	records, err := repo.ListVerifications(ctx, VerificationFilter{Wallet: "wallet-a"})
	if err != nil {
		t.Fatalf("ListVerifications failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records for wallet-a, got %d", len(records))
	}
	if records[0].TokenID == nil || *records[0].TokenID != tokenID {
		t.Errorf("expected newest verified record to be linked to %s", tokenID)
	}
	if records[1].TokenID != nil {
		t.Errorf("rejected record must not be linked")
	}
	if records[0].Details == nil || records[0].Details.AuthenticityScore != 90 {
		t.Errorf("details did not round-trip: %+v", records[0].Details)
	}

	found, err := repo.ListVerifications(ctx, VerificationFilter{Search: "pika"})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(found) != 1 || found[0].CardName != "Pikachu" {
		t.Errorf("expected Pikachu, got %+v", found)
	}

	onlyVerified, err := repo.ListVerifications(ctx, VerificationFilter{Status: models.VerificationStatusVerified})
	if err != nil {
		t.Fatalf("status filter failed: %v", err)
	}
	if len(onlyVerified) != 2 {
		t.Errorf("expected 2 verified records, got %d", len(onlyVerified))
	}
}

func TestUpsertWalletConnection(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.UpsertWalletConnection(ctx, "wallet", nil); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	balance := decimal.RequireFromString("0.25")
	if err := repo.UpsertWalletConnection(ctx, "wallet", &balance); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	conn, err := repo.GetWalletConnection(ctx, "wallet")
	if err != nil {
		t.Fatalf("GetWalletConnection failed: %v", err)
	}
	if conn.LastBalance == nil || !conn.LastBalance.Equal(balance) {
		t.Errorf("expected balance %s, got %v", balance, conn.LastBalance)
	}

	var count int64
	repo.DB().Model(&models.WalletConnection{}).Count(&count)
	if count != 1 {
		t.Errorf("expected a single wallet row, got %d", count)
	}
}
