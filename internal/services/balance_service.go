package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"cardmint/internal/observability"
	"cardmint/internal/repository"
	"cardmint/internal/wallet"

	"github.com/shopspring/decimal"
)

// BalanceReader is the slice of the Solana client the gate needs
type BalanceReader interface {
	GetSOLBalance(ctx context.Context, walletAddress string) (decimal.Decimal, error)
}

// BalanceService reads wallet balances and decides whether a deploy can be
// paid for. It satisfies workflow.BalanceGate.
type BalanceService struct {
	reader  BalanceReader
	repo    *repository.Repository
	minimum decimal.Decimal
	metrics *observability.Metrics
}

func NewBalanceService(reader BalanceReader, repo *repository.Repository, minimum decimal.Decimal, metrics *observability.Metrics) *BalanceService {
	return &BalanceService{
		reader:  reader,
		repo:    repo,
		minimum: minimum,
		metrics: metrics,
	}
}

func (s *BalanceService) Minimum() decimal.Decimal {
	return s.minimum
}

// GetBalance returns the SOL balance of the address
func (s *BalanceService) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	start := time.Now()
	balance, err := s.reader.GetSOLBalance(ctx, address)
	s.metrics.RecordRPCLatency("getBalance", start)
	s.metrics.RecordBalanceRead(err)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read balance for %s: %w", address, err)
	}
	return balance, nil
}

// Sufficient reports whether a balance covers the deploy fee
func (s *BalanceService) Sufficient(balance decimal.Decimal) bool {
	return balance.GreaterThanOrEqual(s.minimum)
}

// MeetsMinimum is the deploy gate. Blocked deploys are counted.
func (s *BalanceService) MeetsMinimum(balance decimal.Decimal) bool {
	ok := s.Sufficient(balance)
	if !ok {
		s.metrics.RecordBalanceBlock()
	}
	return ok
}

// Refresh reads the balance of the connected wallet into its cache and
// records the activity. A failed read leaves the cached balance unknown.
func (s *BalanceService) Refresh(ctx context.Context, conn *wallet.Connection) (wallet.Balance, error) {
	address := conn.Address()
	if address == "" {
		return wallet.Balance{}, fmt.Errorf("wallet not connected")
	}

	balance, err := s.GetBalance(ctx, address)
	if err != nil {
		log.Printf("[Balance] Refresh for %s failed: %v", address, err)
		conn.InvalidateBalance()
		s.touch(ctx, address, nil)
		return conn.Balance(), err
	}

	if !conn.SetBalance(address, balance) {
		// wallet switched while the read was in flight
		return conn.Balance(), nil
	}
	s.touch(ctx, address, &balance)
	return conn.Balance(), nil
}

func (s *BalanceService) touch(ctx context.Context, address string, balance *decimal.Decimal) {
	if s.repo == nil {
		return
	}
	if err := s.repo.UpsertWalletConnection(ctx, address, balance); err != nil {
		log.Printf("[Balance] Failed to record wallet %s: %v", address, err)
	}
}
