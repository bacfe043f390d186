package repository

import (
	"context"
	"time"

	"cardmint/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"
)

// UpsertWalletConnection records wallet activity. A nil balance leaves the
// stored balance untouched.
func (r *Repository) UpsertWalletConnection(ctx context.Context, address string, balance *decimal.Decimal) error {
	now := time.Now()
	conn := &models.WalletConnection{
		WalletAddress: address,
		WalletType:    "phantom",
		LastActiveAt:  now,
	}
	updates := []string{"last_active_at", "updated_at"}
	if balance != nil {
		conn.LastBalance = balance
		conn.LastBalanceAt = &now
		updates = append(updates, "last_balance", "last_balance_at")
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "wallet_address"}},
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(conn).Error
}

// GetWalletConnection retrieves the activity row of a wallet
func (r *Repository) GetWalletConnection(ctx context.Context, address string) (*models.WalletConnection, error) {
	var conn models.WalletConnection
	err := r.db.WithContext(ctx).Where("wallet_address = ?", address).First(&conn).Error
	if err != nil {
		return nil, err
	}
	return &conn, nil
}
