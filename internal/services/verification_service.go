package services

import (
	"context"
	"log"
	"time"

	"cardmint/internal/aigateway"
	"cardmint/internal/media"
	"cardmint/internal/models"
	"cardmint/internal/observability"
	"cardmint/internal/repository"
	"cardmint/internal/storage"
)

const (
	cardsPrefix = "cards"
	logosPrefix = "logos"
)

// CardVerifier is the AI gateway call
type CardVerifier interface {
	Verify(ctx context.Context, req aigateway.VerifyRequest) (*models.VerificationResult, error)
}

// VerificationService runs the AI ownership check for a submission and keeps
// an audit trail of every verdict. It satisfies workflow.Verifier.
type VerificationService struct {
	ai      CardVerifier
	repo    *repository.Repository
	store   storage.Storage
	bucket  string
	timeout time.Duration
	metrics *observability.Metrics
}

func NewVerificationService(ai CardVerifier, repo *repository.Repository, store storage.Storage, bucket string, timeout time.Duration, metrics *observability.Metrics) *VerificationService {
	return &VerificationService{
		ai:      ai,
		repo:    repo,
		store:   store,
		bucket:  bucket,
		timeout: timeout,
		metrics: metrics,
	}
}

// Verify never returns nil. Upstream failures come back as a negative verdict
// whose reason carries the error.
func (s *VerificationService) Verify(ctx context.Context, sub *models.Submission) *models.VerificationResult {
	start := time.Now()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req := aigateway.VerifyRequest{
		CardFrontURL:   dataURI(sub, models.SlotFront),
		CardBackURL:    dataURI(sub, models.SlotBack),
		CardName:       sub.CardName,
		WalletAddress:  sub.WalletAddress,
		VerificationID: sub.VerificationID,
	}
	if proof := sub.Proof(); proof != nil {
		req.ProofImageURL = proof.DataURI
	}

	outcome := "rejected"
	result, err := s.ai.Verify(ctx, req)
	switch {
	case err != nil:
		log.Printf("[Verification] AI gateway call for %s failed: %v", sub.ID, err)
		result = aigateway.FailureResult(err)
		outcome = "error"
	case result.Verified:
		outcome = "verified"
	}
	s.metrics.RecordVerification(outcome, start)

	s.record(sub, result)
	return result
}

// record writes the audit row. It runs on its own context so that a timed out
// verification is still recorded.
func (s *VerificationService) record(sub *models.Submission, result *models.VerificationResult) {
	if s.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	record := &models.VerificationRecord{
		SubmissionID:     sub.ID,
		WalletAddress:    sub.WalletAddress,
		VerificationCode: sub.VerificationID,
		CardName:         sub.CardName,
		Ticker:           sub.Ticker,
		CardFrontURL:     s.uploadCardFront(ctx, sub),
		AIConfidence:     result.Confidence,
		Status:           models.VerificationStatusRejected,
		Reason:           result.Reason,
		Details:          result.Details,
	}
	if result.Verified {
		now := time.Now()
		record.Status = models.VerificationStatusVerified
		record.VerifiedAt = &now
	}

	if err := s.repo.CreateVerification(ctx, record); err != nil {
		log.Printf("[Verification] Failed to store verification for %s: %v", sub.ID, err)
	}
}

func (s *VerificationService) uploadCardFront(ctx context.Context, sub *models.Submission) *string {
	if s.store == nil {
		return nil
	}
	front := sub.Media[models.SlotFront]
	if front == nil {
		return nil
	}
	mimeType, data, err := media.DecodeDataURI(front.DataURI)
	if err != nil {
		log.Printf("[Verification] Card front of %s is not a data URI: %v", sub.ID, err)
		return nil
	}

	resp, err := s.store.Upload(ctx, &storage.UploadObject{
		Bucket:   s.bucket,
		Prefix:   cardsPrefix,
		FileName: "front." + media.Extension(mimeType),
		Mime:     mimeType,
		Data:     data,
	})
	s.metrics.RecordUpload(cardsPrefix, err)
	if err != nil {
		log.Printf("[Verification] Failed to upload card front of %s: %v", sub.ID, err)
		return nil
	}
	return &resp.Url
}

func dataURI(sub *models.Submission, slot models.MediaSlot) string {
	if m := sub.Media[slot]; m != nil {
		return m.DataURI
	}
	return ""
}
