package models

import (
	"strings"
	"unicode/utf8"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxTickerLength caps the normalised ticker
const MaxTickerLength = 10

type MediaSlot string

const (
	SlotFront      MediaSlot = "front"
	SlotBack       MediaSlot = "back"
	SlotProofPhoto MediaSlot = "proof-photo"
	SlotProofVideo MediaSlot = "proof-video"
	SlotLogo       MediaSlot = "logo"
)

// ParseMediaSlot validates a slot name coming from a request path
func ParseMediaSlot(s string) (MediaSlot, bool) {
	slot := MediaSlot(s)
	switch slot {
	case SlotFront, SlotBack, SlotProofPhoto, SlotProofVideo, SlotLogo:
		return slot, true
	}
	return "", false
}

// IsProof reports whether the slot holds ownership proof
func (s MediaSlot) IsProof() bool {
	return s == SlotProofPhoto || s == SlotProofVideo
}

// Sibling returns the mutually exclusive proof slot, or "" for non-proof slots
func (s MediaSlot) Sibling() MediaSlot {
	switch s {
	case SlotProofPhoto:
		return SlotProofVideo
	case SlotProofVideo:
		return SlotProofPhoto
	}
	return ""
}

// IsVideo reports whether the slot expects video content
func (s MediaSlot) IsVideo() bool {
	return s == SlotProofVideo
}

// EncodedMedia is a captured file held inline as a data URI
type EncodedMedia struct {
	Slot     MediaSlot `json:"slot"`
	FileName string    `json:"file_name"`
	MimeType string    `json:"mime_type"`
	Size     int64     `json:"size"`
	DataURI  string    `json:"-"`
}

type WorkflowState string

const (
	StateCollecting   WorkflowState = "collecting"
	StateVerifying    WorkflowState = "verifying"
	StateVerified     WorkflowState = "verified"
	StateRejected     WorkflowState = "rejected"
	StateDeploying    WorkflowState = "deploying"
	StateDeployed     WorkflowState = "deployed"
	StateDeployFailed WorkflowState = "deploy_failed"
)

// Socials are optional links published with the token metadata
type Socials struct {
	Twitter  string `json:"twitter,omitempty"`
	Telegram string `json:"telegram,omitempty"`
	Website  string `json:"website,omitempty"`
}

// Metadata is the user supplied part of a submission
type Metadata struct {
	CardName     string          `json:"card_name"`
	Ticker       string          `json:"ticker"`
	Description  string          `json:"description"`
	Socials      Socials         `json:"socials"`
	DevBuyAmount decimal.Decimal `json:"dev_buy_amount"`
}

// NormalizeTicker upper-cases and trims a ticker to MaxTickerLength runes
func NormalizeTicker(ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if utf8.RuneCountInString(t) > MaxTickerLength {
		t = string([]rune(t)[:MaxTickerLength])
	}
	return t
}

// Submission is one attempt to verify and tokenize a single physical card
type Submission struct {
	ID             uuid.UUID
	VerificationID string
	Metadata
	WalletAddress string
	Media         map[MediaSlot]*EncodedMedia

	// MintKey is generated once and reused for every deploy attempt
	MintKey solana.PrivateKey

	Verification *VerificationResult
	Deployment   *DeploymentResult
}

// NewSubmission creates an empty submission bound to the given verification code
func NewSubmission(verificationID, walletAddress string) *Submission {
	return &Submission{
		ID:             uuid.New(),
		VerificationID: verificationID,
		WalletAddress:  walletAddress,
		Media:          make(map[MediaSlot]*EncodedMedia),
		Metadata:       Metadata{DevBuyAmount: decimal.Zero},
	}
}

// Proof returns whichever proof medium is present
func (s *Submission) Proof() *EncodedMedia {
	if m := s.Media[SlotProofPhoto]; m != nil {
		return m
	}
	return s.Media[SlotProofVideo]
}

// MissingRequirements lists what still blocks verification
func (s *Submission) MissingRequirements() []string {
	var missing []string
	if strings.TrimSpace(s.CardName) == "" {
		missing = append(missing, "card name")
	}
	if s.Ticker == "" {
		missing = append(missing, "ticker")
	}
	if s.Media[SlotFront] == nil {
		missing = append(missing, "card front")
	}
	if s.Media[SlotBack] == nil {
		missing = append(missing, "card back")
	}
	if s.Proof() == nil {
		missing = append(missing, "ownership proof")
	}
	if s.WalletAddress == "" {
		missing = append(missing, "wallet")
	}
	return missing
}

// HasMintKey reports whether the mint keypair was already generated
func (s *Submission) HasMintKey() bool {
	return len(s.MintKey) != 0
}

// PumpURL returns the canonical viewer URL for a mint address
func PumpURL(mintAddress string) string {
	if mintAddress == "" {
		return ""
	}
	return "https://pump.fun/" + mintAddress
}
