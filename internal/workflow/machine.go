// Package workflow drives one card submission from media collection through
// AI verification to token deployment.
package workflow

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"cardmint/internal/models"
	"cardmint/internal/utils"
	"cardmint/internal/wallet"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Verifier runs the AI ownership check. Failures are reported inside the
// result (verified=false) rather than as errors.
type Verifier interface {
	Verify(ctx context.Context, sub *models.Submission) *models.VerificationResult
}

// Deployer creates the token on-chain. It must never panic past its boundary.
type Deployer interface {
	Deploy(ctx context.Context, sub *models.Submission, signer wallet.Signer) *models.DeploymentResult
}

// BalanceGate reads the wallet balance before a deploy
type BalanceGate interface {
	GetBalance(ctx context.Context, address string) (decimal.Decimal, error)
	MeetsMinimum(balance decimal.Decimal) bool
}

type Options struct {
	ProgressInterval time.Duration
	ProgressHold     time.Duration
	// NewCode overrides the verification code generator
	NewCode func() (string, error)
}

// Snapshot is a read-only view of the machine for the UI
type Snapshot struct {
	SubmissionID   uuid.UUID                                 `json:"submission_id"`
	State          models.WorkflowState                      `json:"state"`
	VerificationID string                                    `json:"verification_id"`
	Metadata       models.Metadata                           `json:"metadata"`
	WalletAddress  string                                    `json:"wallet_address"`
	Media          map[models.MediaSlot]models.EncodedMedia `json:"media"`
	MintAddress    string                                    `json:"mint_address,omitempty"`
	Verification   *models.VerificationResult                `json:"verification,omitempty"`
	Deployment     *models.DeploymentResult                  `json:"deployment,omitempty"`
	Progress       int                                       `json:"progress"`
	ProgressStage  string                                    `json:"progress_stage,omitempty"`
	Missing        []string                                  `json:"missing"`

	CanVerify        bool `json:"can_verify"`
	CanDeploy        bool `json:"can_deploy"`
	CanRegenerate    bool `json:"can_regenerate"`
	CanTryAgain      bool `json:"can_try_again"`
	CanCreateAnother bool `json:"can_create_another"`
	IsBusy           bool `json:"is_busy"`
}

// Machine holds exactly one active submission. All methods are safe for
// concurrent use; external calls run without holding the lock.
type Machine struct {
	mu       sync.Mutex
	state    models.WorkflowState
	sub      *models.Submission
	progress *Progress

	conn     *wallet.Connection
	verifier Verifier
	deployer Deployer
	gate     BalanceGate
	opts     Options
}

func NewMachine(conn *wallet.Connection, verifier Verifier, deployer Deployer, gate BalanceGate, opts Options) (*Machine, error) {
	if opts.NewCode == nil {
		opts.NewCode = utils.GenerateVerificationCode
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefaultProgressInterval
	}
	if opts.ProgressHold < 0 {
		opts.ProgressHold = 0
	}

	m := &Machine{
		conn:     conn,
		verifier: verifier,
		deployer: deployer,
		gate:     gate,
		opts:     opts,
	}
	if err := m.startSubmission(); err != nil {
		return nil, err
	}
	return m, nil
}

// startSubmission must be called with mu held (or before the machine is shared)
func (m *Machine) startSubmission() error {
	code, err := m.opts.NewCode()
	if err != nil {
		return fmt.Errorf("failed to generate verification code: %w", err)
	}
	if m.progress != nil {
		m.progress.Abandon()
	}
	m.sub = models.NewSubmission(code, m.conn.Address())
	m.state = models.StateCollecting
	m.progress = nil
	return nil
}

func (m *Machine) busy() bool {
	return m.state == models.StateVerifying || m.state == models.StateDeploying
}

func (m *Machine) State() models.WorkflowState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) SubmissionID() uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sub.ID
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub := m.sub
	snap := Snapshot{
		SubmissionID:   sub.ID,
		State:          m.state,
		VerificationID: sub.VerificationID,
		Metadata:       sub.Metadata,
		WalletAddress:  sub.WalletAddress,
		Media:          make(map[models.MediaSlot]models.EncodedMedia, len(sub.Media)),
		Missing:        sub.MissingRequirements(),
		IsBusy:         m.busy(),
	}
	for slot, media := range sub.Media {
		snap.Media[slot] = *media
	}
	if sub.HasMintKey() {
		snap.MintAddress = sub.MintKey.PublicKey().String()
	}
	if sub.Verification != nil {
		v := *sub.Verification
		snap.Verification = &v
	}
	if sub.Deployment != nil {
		d := *sub.Deployment
		snap.Deployment = &d
	}
	if m.progress != nil {
		snap.Progress = m.progress.Value()
		snap.ProgressStage = m.progress.Stage()
	}

	verified := sub.Verification != nil && sub.Verification.Verified
	snap.CanVerify = m.state == models.StateCollecting && len(snap.Missing) == 0
	snap.CanDeploy = (m.state == models.StateVerified || m.state == models.StateDeployFailed) &&
		verified && m.conn.Connected()
	snap.CanRegenerate = m.state == models.StateCollecting
	snap.CanTryAgain = m.state == models.StateRejected || m.state == models.StateDeployFailed
	snap.CanCreateAnother = m.state == models.StateDeployed
	return snap
}

// UpdateMetadata replaces the user supplied fields. After a positive verdict
// the card name is frozen since the verdict was issued for it.
func (m *Machine) UpdateMetadata(meta models.Metadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case models.StateCollecting:
	case models.StateVerified, models.StateDeployFailed:
		if strings.TrimSpace(meta.CardName) != m.sub.CardName {
			return fmt.Errorf("%w: card name cannot change after verification", ErrInvalidTransition)
		}
	default:
		if m.busy() {
			return ErrBusy
		}
		return ErrInvalidTransition
	}

	if meta.DevBuyAmount.IsNegative() {
		return fmt.Errorf("%w: dev buy amount must not be negative", ErrValidation)
	}

	meta.CardName = strings.TrimSpace(meta.CardName)
	meta.Ticker = models.NormalizeTicker(meta.Ticker)
	meta.Description = strings.TrimSpace(meta.Description)
	m.sub.Metadata = meta
	return nil
}

// AttachMedia stores captured media in its slot. Proof slots are mutually
// exclusive: filling one clears the other.
func (m *Machine) AttachMedia(media *models.EncodedMedia) error {
	if media == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireCollecting(); err != nil {
		return err
	}
	if _, ok := models.ParseMediaSlot(string(media.Slot)); !ok {
		return fmt.Errorf("%w: unknown media slot %q", ErrValidation, media.Slot)
	}

	m.sub.Media[media.Slot] = media
	if sibling := media.Slot.Sibling(); sibling != "" {
		delete(m.sub.Media, sibling)
	}
	return nil
}

func (m *Machine) ClearMedia(slot models.MediaSlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireCollecting(); err != nil {
		return err
	}
	delete(m.sub.Media, slot)
	return nil
}

// RegenerateVerificationID issues a new code. Captured proof media no longer
// matches the new code and is cleared.
func (m *Machine) RegenerateVerificationID() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireCollecting(); err != nil {
		return "", err
	}
	code, err := m.opts.NewCode()
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}
	m.sub.VerificationID = code
	m.clearProof()
	return code, nil
}

// ConnectWallet binds the signer to the session. The submission only adopts
// the new address while it is still being collected.
func (m *Machine) ConnectWallet(signer wallet.Signer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.conn.Connect(signer)
	if m.state == models.StateCollecting {
		m.sub.WalletAddress = m.conn.Address()
	}
}

func (m *Machine) DisconnectWallet() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.conn.Disconnect()
	if m.state == models.StateCollecting {
		m.sub.WalletAddress = ""
	}
}

// VerifyOutcome is delivered once a background verification finishes
type VerifyOutcome struct {
	Result *models.VerificationResult
	Err    error
}

// DeployOutcome is delivered once a background deployment finishes
type DeployOutcome struct {
	Result *models.DeploymentResult
	Err    error
}

// Verify runs the AI check for the active submission and waits for it
func (m *Machine) Verify(ctx context.Context) (*models.VerificationResult, error) {
	done, err := m.StartVerify(ctx)
	if err != nil {
		return nil, err
	}
	out := <-done
	return out.Result, out.Err
}

// StartVerify checks the preconditions, moves to Verifying and runs the AI
// call in the background. Precondition failures are returned synchronously.
func (m *Machine) StartVerify(ctx context.Context) (<-chan VerifyOutcome, error) {
	m.mu.Lock()
	if m.busy() {
		m.mu.Unlock()
		return nil, ErrBusy
	}
	if m.state != models.StateCollecting {
		m.mu.Unlock()
		return nil, ErrInvalidTransition
	}

	sub := m.sub
	if sub.WalletAddress == "" {
		sub.WalletAddress = m.conn.Address()
	}
	if missing := sub.MissingRequirements(); len(missing) > 0 {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}

	progress := StartProgress(m.opts.ProgressInterval, m.opts.ProgressHold)
	m.progress = progress
	m.state = models.StateVerifying
	m.mu.Unlock()

	done := make(chan VerifyOutcome, 1)
	go func() {
		result, err := m.runVerify(ctx, sub, progress)
		done <- VerifyOutcome{Result: result, Err: err}
	}()
	return done, nil
}

func (m *Machine) runVerify(ctx context.Context, sub *models.Submission, progress *Progress) (*models.VerificationResult, error) {
	id := sub.ID
	log.Printf("[Workflow] Verifying submission %s (%s) for wallet %s", id, sub.VerificationID, sub.WalletAddress)

	result := m.verifier.Verify(ctx, sub)
	if result == nil {
		result = &models.VerificationResult{Reason: "verification returned no result"}
	}

	progress.Finish()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sub.ID != id {
		log.Printf("[Workflow] Discarding verification result for abandoned submission %s", id)
		return result, ErrStaleSubmission
	}

	sub.Verification = result
	if result.Verified {
		m.state = models.StateVerified
	} else {
		m.state = models.StateRejected
	}
	log.Printf("[Workflow] Submission %s verification finished: verified=%v confidence=%d", id, result.Verified, result.Confidence)
	return result, nil
}

// Deploy creates the token for a verified submission and waits for it
func (m *Machine) Deploy(ctx context.Context) (*models.DeploymentResult, error) {
	done, err := m.StartDeploy(ctx)
	if err != nil {
		return nil, err
	}
	out := <-done
	return out.Result, out.Err
}

// StartDeploy runs the deploy guards, including the balance gate, and then
// deploys in the background. The mint key is generated on the first attempt
// and reused by every retry.
func (m *Machine) StartDeploy(ctx context.Context) (<-chan DeployOutcome, error) {
	m.mu.Lock()
	sub, signer, err := m.deployPreconditions()
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	id := sub.ID
	address := signer.PublicKey().String()
	m.mu.Unlock()

	if err := m.checkBalance(ctx, address); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.sub.ID != id {
		m.mu.Unlock()
		return nil, ErrStaleSubmission
	}
	if _, _, err := m.deployPreconditions(); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if !sub.HasMintKey() {
		key, err := solana.NewRandomPrivateKey()
		if err != nil {
			m.mu.Unlock()
			return nil, fmt.Errorf("failed to generate mint key: %w", err)
		}
		sub.MintKey = key
	}
	m.state = models.StateDeploying
	m.mu.Unlock()

	done := make(chan DeployOutcome, 1)
	go func() {
		result, err := m.runDeploy(ctx, sub, signer)
		done <- DeployOutcome{Result: result, Err: err}
	}()
	return done, nil
}

func (m *Machine) runDeploy(ctx context.Context, sub *models.Submission, signer wallet.Signer) (*models.DeploymentResult, error) {
	id := sub.ID
	mint := sub.MintKey.PublicKey().String()
	log.Printf("[Workflow] Deploying submission %s as %s (mint %s)", id, sub.Ticker, mint)

	result := m.deployer.Deploy(ctx, sub, signer)
	if result == nil {
		result = &models.DeploymentResult{
			MintAddress: mint,
			PumpURL:     models.PumpURL(mint),
			Error:       ErrUnknownFailure.Error(),
			Cause:       ErrUnknownFailure,
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sub.ID != id {
		log.Printf("[Workflow] Discarding deployment result for abandoned submission %s", id)
		return result, ErrStaleSubmission
	}

	sub.Deployment = result
	if result.Success {
		m.state = models.StateDeployed
	} else {
		m.state = models.StateDeployFailed
	}
	log.Printf("[Workflow] Submission %s deployment finished: success=%v mint=%s", id, result.Success, result.MintAddress)
	return result, nil
}

// deployPreconditions must be called with mu held
func (m *Machine) deployPreconditions() (*models.Submission, wallet.Signer, error) {
	if m.busy() {
		return nil, nil, ErrBusy
	}
	if m.state != models.StateVerified && m.state != models.StateDeployFailed {
		return nil, nil, ErrInvalidTransition
	}

	sub := m.sub
	if sub.Verification == nil || !sub.Verification.Verified {
		return nil, nil, fmt.Errorf("%w: submission has no positive verification", ErrInvalidTransition)
	}

	signer := m.conn.Signer()
	if signer == nil {
		return nil, nil, ErrWalletNotConnected
	}
	if signer.PublicKey().String() != sub.WalletAddress {
		return nil, nil, fmt.Errorf("%w: connected wallet differs from the verified one", ErrValidation)
	}
	if sub.CardName == "" || sub.Ticker == "" {
		return nil, nil, fmt.Errorf("%w: card name and ticker are required", ErrValidation)
	}
	return sub, signer, nil
}

// checkBalance fails only on a known balance below the minimum. A failed
// read leaves the balance unknown and lets the deploy proceed.
func (m *Machine) checkBalance(ctx context.Context, address string) error {
	if m.gate == nil {
		return nil
	}

	balance, err := m.gate.GetBalance(ctx, address)
	if err != nil {
		log.Printf("[Workflow] Balance read for %s failed, treating as unknown: %v", address, err)
		m.conn.InvalidateBalance()
		return nil
	}
	m.conn.SetBalance(address, balance)

	if !m.gate.MeetsMinimum(balance) {
		return fmt.Errorf("%w: balance %s SOL is below the minimum", ErrInsufficientFunds, balance.String())
	}
	return nil
}

// TryAgain returns a rejected or failed submission to collection with a new
// verification code. After a rejection card images and metadata are kept and
// proof media is not. After a failed deploy the submission starts over,
// releasing its reserved mint.
func (m *Machine) TryAgain() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != models.StateRejected && m.state != models.StateDeployFailed {
		if m.busy() {
			return "", ErrBusy
		}
		return "", ErrInvalidTransition
	}
	if m.state == models.StateDeployFailed {
		if err := m.startSubmission(); err != nil {
			return "", err
		}
		return m.sub.VerificationID, nil
	}

	code, err := m.opts.NewCode()
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}

	m.sub.VerificationID = code
	m.sub.Verification = nil
	m.sub.Deployment = nil
	m.sub.WalletAddress = m.conn.Address()
	m.clearProof()
	m.progress = nil
	m.state = models.StateCollecting
	return code, nil
}

// CreateAnother starts a fresh submission after a successful deploy
func (m *Machine) CreateAnother() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != models.StateDeployed {
		return ErrInvalidTransition
	}
	return m.startSubmission()
}

// Reset abandons the active submission from any state. Results of calls
// still in flight are discarded when they arrive.
func (m *Machine) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.busy() {
		log.Printf("[Workflow] Abandoning submission %s while %s", m.sub.ID, m.state)
	}
	return m.startSubmission()
}

func (m *Machine) requireCollecting() error {
	if m.state == models.StateCollecting {
		return nil
	}
	if m.busy() {
		return ErrBusy
	}
	return ErrInvalidTransition
}

func (m *Machine) clearProof() {
	for slot := range m.sub.Media {
		if slot.IsProof() {
			delete(m.sub.Media, slot)
		}
	}
}
