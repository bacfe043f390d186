package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TokenStatus string

const (
	TokenStatusPending  TokenStatus = "pending"
	TokenStatusVerified TokenStatus = "verified"
	TokenStatusLaunched TokenStatus = "launched"
)

type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityUltra     Rarity = "ultra"
	RarityLegendary Rarity = "legendary"
)

// Valid reports whether r is one of the listed rarities
func (r Rarity) Valid() bool {
	switch r {
	case RarityCommon, RarityUncommon, RarityRare, RarityUltra, RarityLegendary:
		return true
	}
	return false
}

// TokenRecord is a launched card token as listed publicly
type TokenRecord struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string          `gorm:"size:255;not null" json:"name"`
	Ticker        string          `gorm:"size:20;not null;index" json:"ticker"`
	Description   string          `gorm:"type:text" json:"description"`
	ImageURL      *string         `gorm:"size:1000" json:"image_url"`
	WalletAddress string          `gorm:"size:64;not null;index" json:"wallet_address"`
	Status        TokenStatus     `gorm:"size:20;not null;default:pending;index" json:"status"`
	Rarity        Rarity          `gorm:"size:20;not null;default:common" json:"rarity"`
	MarketCap     decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"market_cap"`
	Progress      int             `gorm:"default:0" json:"progress"`
	PumpfunURL    *string         `gorm:"size:255" json:"pumpfun_url"`
	MintAddress   *string         `gorm:"size:64;uniqueIndex" json:"mint_address"`
	Signature     *string         `gorm:"size:128" json:"signature"`
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`
}

func (TokenRecord) TableName() string {
	return "tokens"
}

// TokenStats holds listing counters per token status
type TokenStats struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Verified int64 `json:"verified"`
	Launched int64 `json:"launched"`
}
