package repository

import (
	"context"
	"errors"

	"cardmint/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("record not found")

// TokenFilter narrows a token listing
type TokenFilter struct {
	Status models.TokenStatus
	Wallet string
	Limit  int
	Offset int
}

// CreateToken inserts a token row
func (r *Repository) CreateToken(ctx context.Context, token *models.TokenRecord) error {
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(token).Error
}

// GetTokenByID retrieves a token by ID
func (r *Repository) GetTokenByID(ctx context.Context, id uuid.UUID) (*models.TokenRecord, error) {
	var token models.TokenRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// GetTokenByMint retrieves a token by its mint address
func (r *Repository) GetTokenByMint(ctx context.Context, mint string) (*models.TokenRecord, error) {
	var token models.TokenRecord
	err := r.db.WithContext(ctx).Where("mint_address = ?", mint).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *Repository) tokenQuery(ctx context.Context, filter TokenFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.TokenRecord{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Wallet != "" {
		query = query.Where("wallet_address = ?", filter.Wallet)
	}
	return query
}

// ListTokens returns tokens newest first
func (r *Repository) ListTokens(ctx context.Context, filter TokenFilter) ([]models.TokenRecord, error) {
	var tokens []models.TokenRecord
	query := r.tokenQuery(ctx, filter).Order("created_at DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if err := query.Find(&tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

// CountTokens counts tokens matching the filter, ignoring limit and offset
func (r *Repository) CountTokens(ctx context.Context, filter TokenFilter) (int64, error) {
	var count int64
	err := r.tokenQuery(ctx, filter).Count(&count).Error
	return count, err
}

// TokenStats counts tokens per status in one query
func (r *Repository) TokenStats(ctx context.Context) (*models.TokenStats, error) {
	var rows []struct {
		Status models.TokenStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.TokenRecord{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := &models.TokenStats{}
	for _, row := range rows {
		stats.Total += row.Count
		switch row.Status {
		case models.TokenStatusPending:
			stats.Pending = row.Count
		case models.TokenStatusVerified:
			stats.Verified = row.Count
		case models.TokenStatusLaunched:
			stats.Launched = row.Count
		}
	}
	return stats, nil
}
