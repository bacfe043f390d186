package repository

import (
	"context"
	"strings"

	"cardmint/internal/models"

	"github.com/google/uuid"
)

// VerificationFilter narrows the verification history
type VerificationFilter struct {
	Wallet string
	Status models.VerificationStatus
	Search string
	Limit  int
}

// CreateVerification inserts an audit row for one AI verification call
func (r *Repository) CreateVerification(ctx context.Context, record *models.VerificationRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(record).Error
}

// LinkVerificationToken attaches the launched token to the latest positive
// verification of the submission
func (r *Repository) LinkVerificationToken(ctx context.Context, submissionID, tokenID uuid.UUID) error {
	var record models.VerificationRecord
	err := r.db.WithContext(ctx).
		Where("submission_id = ? AND status = ?", submissionID, models.VerificationStatusVerified).
		Order("created_at DESC").
		First(&record).Error
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&record).
		Update("token_id", tokenID).Error
}

// ListVerifications returns verification records newest first
func (r *Repository) ListVerifications(ctx context.Context, filter VerificationFilter) ([]models.VerificationRecord, error) {
	query := r.db.WithContext(ctx).Model(&models.VerificationRecord{})
	if filter.Wallet != "" {
		query = query.Where("wallet_address = ?", filter.Wallet)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(card_name) LIKE ? OR LOWER(ticker) LIKE ? OR LOWER(verification_code) LIKE ?", like, like, like)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var records []models.VerificationRecord
	err := query.Order("created_at DESC").Limit(limit).Find(&records).Error
	return records, err
}
