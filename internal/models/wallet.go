package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// WalletConnection records the last known activity of a connected wallet
type WalletConnection struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	WalletAddress string           `gorm:"uniqueIndex;size:64;not null" json:"wallet_address"`
	WalletType    string           `gorm:"size:32;default:phantom" json:"wallet_type"`
	LastBalance   *decimal.Decimal `gorm:"type:decimal(20,9)" json:"last_balance,omitempty"`
	LastBalanceAt *time.Time       `json:"last_balance_at,omitempty"`
	LastActiveAt  time.Time        `json:"last_active_at"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func (WalletConnection) TableName() string {
	return "wallet_connections"
}
