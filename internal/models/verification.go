package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// VerificationDetails carries the sub-scores of an AI verdict
type VerificationDetails struct {
	CardMatch         bool `json:"cardMatch"`
	OwnershipProof    bool `json:"ownershipProof"`
	AuthenticityScore int  `json:"authenticityScore"`
}

// Value implements driver.Valuer so details can live in a JSON column
func (d VerificationDetails) Value() (driver.Value, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (d *VerificationDetails) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported details type %T", value)
	}
	return json.Unmarshal(raw, d)
}

// VerificationResult is the verdict returned by the AI gateway.
// It is never mutated after it has been received.
type VerificationResult struct {
	Verified   bool                 `json:"verified"`
	Confidence int                  `json:"confidence"`
	Reason     string               `json:"reason"`
	Details    *VerificationDetails `json:"details,omitempty"`
}

type VerificationStatus string

const (
	VerificationStatusPending  VerificationStatus = "pending"
	VerificationStatusVerified VerificationStatus = "verified"
	VerificationStatusRejected VerificationStatus = "rejected"
)

// VerificationRecord is the audit row written after each AI verification call
type VerificationRecord struct {
	ID               uuid.UUID            `gorm:"type:uuid;primaryKey" json:"id"`
	TokenID          *uuid.UUID           `gorm:"type:uuid;index" json:"token_id"`
	SubmissionID     uuid.UUID            `gorm:"type:uuid;index" json:"submission_id"`
	WalletAddress    string               `gorm:"size:64;not null;index" json:"wallet_address"`
	VerificationCode string               `gorm:"size:16;not null" json:"verification_code"`
	CardName         string               `gorm:"size:255" json:"card_name"`
	Ticker           string               `gorm:"size:20" json:"ticker"`
	CardFrontURL     *string              `gorm:"size:1000" json:"card_front_url"`
	AIConfidence     int                  `gorm:"default:0" json:"ai_confidence"`
	Status           VerificationStatus   `gorm:"size:20;not null;default:pending;index" json:"status"`
	Reason           string               `gorm:"type:text" json:"reason"`
	Details          *VerificationDetails `gorm:"type:text" json:"details,omitempty"`
	VerifiedAt       *time.Time           `json:"verified_at"`
	CreatedAt        time.Time            `gorm:"index" json:"created_at"`
}

func (VerificationRecord) TableName() string {
	return "verifications"
}
