package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"cardmint/internal/blockchain"
	"cardmint/internal/media"
	"cardmint/internal/models"
	"cardmint/internal/observability"
	"cardmint/internal/pumpportal"
	"cardmint/internal/storage"
	"cardmint/internal/wallet"
	"cardmint/internal/workflow"

	"github.com/gagliardetto/solana-go"
)

const (
	errWalletNotConnected = "Wallet not connected"
	errConfirmFailed      = "Transaction failed to confirm"
	errUnknownDeploy      = "Unknown error occurred"
)

// TransactionBuilder returns the unsigned create transaction
type TransactionBuilder interface {
	CreateTransaction(ctx context.Context, req pumpportal.CreateRequest) ([]byte, error)
}

// TransactionSender broadcasts a signed transaction and waits for it to land
type TransactionSender interface {
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	ConfirmTransaction(ctx context.Context, sig solana.Signature) error
}

type DeploymentConfig struct {
	Bucket           string
	SignatureTimeout time.Duration
	ConfirmTimeout   time.Duration
}

// DeploymentService creates the token for a verified submission. It
// satisfies workflow.Deployer.
type DeploymentService struct {
	builder TransactionBuilder
	sender  TransactionSender
	store   storage.Storage
	tokens  *TokenService
	cfg     DeploymentConfig
	metrics *observability.Metrics
}

func NewDeploymentService(builder TransactionBuilder, sender TransactionSender, store storage.Storage, tokens *TokenService, cfg DeploymentConfig, metrics *observability.Metrics) *DeploymentService {
	return &DeploymentService{
		builder: builder,
		sender:  sender,
		store:   store,
		tokens:  tokens,
		cfg:     cfg,
		metrics: metrics,
	}
}

// Deploy never returns nil and never panics. The mint address reserved for
// the submission is reported on every failure after it is known, and the
// signature once the transaction was broadcast.
func (s *DeploymentService) Deploy(ctx context.Context, sub *models.Submission, signer wallet.Signer) (result *models.DeploymentResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Deploy] Recovered from panic while deploying %s: %v", sub.ID, r)
			fallback := solana.NewWallet().PublicKey().String()
			msg := errUnknownDeploy
			if err, ok := r.(error); ok {
				msg = err.Error()
			}
			result = &models.DeploymentResult{
				MintAddress: fallback,
				PumpURL:     models.PumpURL(fallback),
				Error:       msg,
				Cause:       fmt.Errorf("%w: %v", workflow.ErrUnknownFailure, r),
			}
		}
		outcome := "failed"
		if result.Success {
			outcome = "success"
		}
		s.metrics.RecordDeployment(outcome, start)
	}()

	if signer == nil {
		return &models.DeploymentResult{Error: errWalletNotConnected, Cause: workflow.ErrWalletNotConnected}
	}

	mintKey := sub.MintKey
	if len(mintKey) == 0 {
		key, err := solana.NewRandomPrivateKey()
		if err != nil {
			return &models.DeploymentResult{Error: fmt.Sprintf("failed to generate mint key: %v", err), Cause: err}
		}
		mintKey = key
	}
	mint := mintKey.PublicKey().String()
	result = &models.DeploymentResult{
		MintAddress: mint,
		PumpURL:     models.PumpURL(mint),
	}
	owner := signer.PublicKey().String()
	log.Printf("[Deploy] Creating %s (%s) with mint %s for %s", sub.CardName, sub.Ticker, mint, owner)

	imageURL := s.publishImage(ctx, sub)
	req := pumpportal.NewCreateRequest(owner, mint, pumpportal.TokenMetadata{
		Name:   sub.CardName,
		Symbol: sub.Ticker,
		URI:    imageURL,
	}, sub.DevBuyAmount)

	raw, err := s.builder.CreateTransaction(ctx, req)
	if err != nil {
		log.Printf("[Deploy] PumpPortal rejected create for %s: %v", mint, err)
		result.Error = err.Error()
		result.Cause = err
		return result
	}

	tx, err := solana.TransactionFromBytes(raw)
	if err != nil {
		result.Error = fmt.Sprintf("failed to decode transaction: %v", err)
		result.Cause = fmt.Errorf("%w: %v", workflow.ErrMalformedUpstreamResponse, err)
		return result
	}

	if _, err := tx.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(mintKey.PublicKey()) {
			return &mintKey
		}
		return nil
	}); err != nil {
		result.Error = fmt.Sprintf("failed to sign with mint key: %v", err)
		result.Cause = err
		return result
	}

	signCtx, cancelSign := withTimeout(ctx, s.cfg.SignatureTimeout)
	signed, err := signer.SignTransaction(signCtx, tx)
	cancelSign()
	if err != nil {
		log.Printf("[Deploy] Wallet %s did not sign %s: %v", owner, mint, err)
		result.Error = err.Error()
		result.Cause = err
		return result
	}

	sig, err := s.sender.SendTransaction(ctx, signed)
	if err != nil {
		log.Printf("[Deploy] Broadcast of %s failed: %v", mint, err)
		result.Error = err.Error()
		result.Cause = fmt.Errorf("%w: %w", workflow.ErrOnChainFailure, err)
		return result
	}
	result.Signature = sig.String()
	log.Printf("[Deploy] Transaction sent for %s: %s", mint, sig)

	confirmCtx, cancelConfirm := withTimeout(ctx, s.cfg.ConfirmTimeout)
	err = s.sender.ConfirmTransaction(confirmCtx, sig)
	cancelConfirm()
	if err != nil {
		log.Printf("[Deploy] Transaction %s did not confirm: %v", sig, err)
		result.Cause = fmt.Errorf("%w: %w", workflow.ErrOnChainFailure, err)
		if errors.Is(err, blockchain.ErrTransactionFailed) {
			result.Error = errConfirmFailed
		} else {
			result.Error = err.Error()
		}
		return result
	}

	result.Success = true
	log.Printf("[Deploy] Token %s created: %s", sub.Ticker, result.PumpURL)

	if s.tokens != nil {
		if _, err := s.tokens.RecordLaunch(ctx, sub, owner, result, imageURL); err != nil {
			log.Printf("[Deploy] Failed to record token %s: %v", mint, err)
		}
	}
	return result
}

// publishImage uploads the logo, or the card front when no logo was given,
// and returns its public URL. Without storage the data URI is used as is.
func (s *DeploymentService) publishImage(ctx context.Context, sub *models.Submission) string {
	image := sub.Media[models.SlotLogo]
	if image == nil {
		image = sub.Media[models.SlotFront]
	}
	if image == nil {
		return ""
	}
	if s.store == nil {
		return image.DataURI
	}

	mimeType, data, err := media.DecodeDataURI(image.DataURI)
	if err != nil {
		log.Printf("[Deploy] Token image of %s is not a data URI: %v", sub.ID, err)
		return image.DataURI
	}
	resp, err := s.store.Upload(ctx, &storage.UploadObject{
		Bucket:   s.cfg.Bucket,
		Prefix:   logosPrefix,
		FileName: fmt.Sprintf("%s.%s", sub.Ticker, media.Extension(mimeType)),
		Mime:     mimeType,
		Data:     data,
	})
	s.metrics.RecordUpload(logosPrefix, err)
	if err != nil {
		log.Printf("[Deploy] Failed to upload token image of %s, using inline image: %v", sub.ID, err)
		return image.DataURI
	}
	return resp.Url
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
