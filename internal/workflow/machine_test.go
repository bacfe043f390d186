package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cardmint/internal/models"
	"cardmint/internal/utils"
	"cardmint/internal/wallet"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVerifier struct {
	mu      sync.Mutex
	result  *models.VerificationResult
	calls   int
	release chan struct{}
}

func (f *fakeVerifier) Verify(ctx context.Context, sub *models.Submission) *models.VerificationResult {
	f.mu.Lock()
	f.calls++
	release := f.release
	result := f.result
	f.mu.Unlock()
	if release != nil {
		<-release
	}
	return result
}

type fakeDeployer struct {
	mu     sync.Mutex
	calls  int
	mints  []string
	fail   string
	signer wallet.Signer
}

func (f *fakeDeployer) Deploy(ctx context.Context, sub *models.Submission, signer wallet.Signer) *models.DeploymentResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.signer = signer
	mint := sub.MintKey.PublicKey().String()
	f.mints = append(f.mints, mint)
	if f.fail != "" {
		return &models.DeploymentResult{MintAddress: mint, PumpURL: models.PumpURL(mint), Error: f.fail}
	}
	return &models.DeploymentResult{
		Success:     true,
		MintAddress: mint,
		PumpURL:     models.PumpURL(mint),
		Signature:   "5sig",
	}
}

type fakeGate struct {
	balance decimal.Decimal
	err     error
	reads   int
}

func (f *fakeGate) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	f.reads++
	return f.balance, f.err
}

func (f *fakeGate) MeetsMinimum(balance decimal.Decimal) bool {
	return balance.GreaterThanOrEqual(decimal.RequireFromString("0.02"))
}

type harness struct {
	machine  *Machine
	conn     *wallet.Connection
	verifier *fakeVerifier
	deployer *fakeDeployer
	gate     *fakeGate
	owner    solana.PrivateKey
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		conn:     wallet.NewConnection(),
		verifier: &fakeVerifier{result: &models.VerificationResult{Verified: true, Confidence: 92, Reason: "card matches"}},
		deployer: &fakeDeployer{},
		gate:     &fakeGate{balance: decimal.RequireFromString("0.5")},
		owner:    solana.NewWallet().PrivateKey,
	}
	m, err := NewMachine(h.conn, h.verifier, h.deployer, h.gate, Options{
		ProgressInterval: time.Millisecond,
		ProgressHold:     0,
	})
	require.NoError(t, err)
	h.machine = m
	m.ConnectWallet(wallet.NewKeypairSigner(h.owner))
	return h
}

func media(slot models.MediaSlot) *models.EncodedMedia {
	return &models.EncodedMedia{Slot: slot, MimeType: "image/png", DataURI: "data:image/png;base64,AA==", Size: 1}
}

func (h *harness) fill(t *testing.T) {
	t.Helper()
	require.NoError(t, h.machine.UpdateMetadata(models.Metadata{CardName: "Charizard", Ticker: "char"}))
	require.NoError(t, h.machine.AttachMedia(media(models.SlotFront)))
	require.NoError(t, h.machine.AttachMedia(media(models.SlotBack)))
	require.NoError(t, h.machine.AttachMedia(media(models.SlotProofPhoto)))
}

func TestHappyPathVerifiesAndDeploys(t *testing.T) {
	h := newHarness(t)
	h.fill(t)

	snap := h.machine.Snapshot()
	assert.Equal(t, "CHAR", snap.Metadata.Ticker)
	assert.True(t, snap.CanVerify)
	assert.True(t, utils.IsVerificationCode(snap.VerificationID))

	res, err := h.machine.Verify(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Equal(t, models.StateVerified, h.machine.State())
	assert.Equal(t, 100, h.machine.Snapshot().Progress)

	dep, err := h.machine.Deploy(context.Background())
	require.NoError(t, err)
	assert.True(t, dep.Success)
	assert.NotEmpty(t, dep.MintAddress)
	assert.NotEmpty(t, dep.Signature)
	assert.Equal(t, models.StateDeployed, h.machine.State())
	assert.Equal(t, h.owner.PublicKey(), h.deployer.signer.PublicKey())

	balance := h.conn.Balance()
	assert.True(t, balance.Known)
	assert.True(t, balance.Amount.Equal(decimal.RequireFromString("0.5")))
}

func TestRejectedVerdictBlocksDeploy(t *testing.T) {
	h := newHarness(t)
	h.verifier.result = &models.VerificationResult{Verified: false, Confidence: 0, Reason: "AI gateway error: HTTP 500"}
	h.fill(t)

	res, err := h.machine.Verify(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.Equal(t, models.StateRejected, h.machine.State())

	_, err = h.machine.Deploy(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Zero(t, h.deployer.calls)
}

func TestInsufficientBalanceKeepsVerifiedState(t *testing.T) {
	h := newHarness(t)
	h.gate.balance = decimal.RequireFromString("0.01")
	h.fill(t)

	_, err := h.machine.Verify(context.Background())
	require.NoError(t, err)

	_, err = h.machine.Deploy(context.Background())
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, models.StateVerified, h.machine.State())
	assert.Zero(t, h.deployer.calls)
	assert.Empty(t, h.machine.Snapshot().MintAddress)
}

func TestBalanceReadFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.gate.err = errors.New("rpc down")
	h.fill(t)

	_, err := h.machine.Verify(context.Background())
	require.NoError(t, err)

	dep, err := h.machine.Deploy(context.Background())
	require.NoError(t, err)
	assert.True(t, dep.Success)
	assert.False(t, h.conn.Balance().Known)
}

func TestDeployFailureKeepsMintAcrossRetries(t *testing.T) {
	h := newHarness(t)
	h.deployer.fail = "rate limited"
	h.fill(t)

	_, err := h.machine.Verify(context.Background())
	require.NoError(t, err)

	first, err := h.machine.Deploy(context.Background())
	require.NoError(t, err)
	assert.False(t, first.Success)
	assert.Equal(t, "rate limited", first.Error)
	assert.NotEmpty(t, first.MintAddress)
	assert.Equal(t, models.StateDeployFailed, h.machine.State())

	h.deployer.fail = ""
	second, err := h.machine.Deploy(context.Background())
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.Equal(t, first.MintAddress, second.MintAddress)
	assert.Equal(t, models.StateDeployed, h.machine.State())
}

func TestValidationHappensBeforeVerifierCall(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.machine.UpdateMetadata(models.Metadata{CardName: "Pikachu", Ticker: "pika"}))
	require.NoError(t, h.machine.AttachMedia(media(models.SlotFront)))

	_, err := h.machine.Verify(context.Background())
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "card back")
	assert.Zero(t, h.verifier.calls)
	assert.Equal(t, models.StateCollecting, h.machine.State())
}

func TestVerifyRequiresConnectedWallet(t *testing.T) {
	h := newHarness(t)
	h.fill(t)
	h.machine.DisconnectWallet()

	_, err := h.machine.Verify(context.Background())
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "wallet")
}

func TestProofSlotsAreMutuallyExclusive(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.machine.AttachMedia(media(models.SlotProofPhoto)))
	require.NoError(t, h.machine.AttachMedia(media(models.SlotProofVideo)))
	snap := h.machine.Snapshot()
	assert.Contains(t, snap.Media, models.SlotProofVideo)
	assert.NotContains(t, snap.Media, models.SlotProofPhoto)

	require.NoError(t, h.machine.AttachMedia(media(models.SlotProofPhoto)))
	snap = h.machine.Snapshot()
	assert.Contains(t, snap.Media, models.SlotProofPhoto)
	assert.NotContains(t, snap.Media, models.SlotProofVideo)
}

func TestRegenerateClearsProofAndIsBlockedAfterCollecting(t *testing.T) {
	h := newHarness(t)
	h.fill(t)
	before := h.machine.Snapshot().VerificationID

	code, err := h.machine.RegenerateVerificationID()
	require.NoError(t, err)
	assert.True(t, utils.IsVerificationCode(code))
	assert.NotEqual(t, before, code)

	snap := h.machine.Snapshot()
	assert.NotContains(t, snap.Media, models.SlotProofPhoto)
	assert.Contains(t, snap.Media, models.SlotFront)

	require.NoError(t, h.machine.AttachMedia(media(models.SlotProofVideo)))
	_, err = h.machine.Verify(context.Background())
	require.NoError(t, err)

	_, err = h.machine.RegenerateVerificationID()
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMediaChangesRejectedOutsideCollecting(t *testing.T) {
	h := newHarness(t)
	h.fill(t)
	_, err := h.machine.Verify(context.Background())
	require.NoError(t, err)

	assert.ErrorIs(t, h.machine.AttachMedia(media(models.SlotFront)), ErrInvalidTransition)
	assert.ErrorIs(t, h.machine.ClearMedia(models.SlotFront), ErrInvalidTransition)
	assert.ErrorIs(t, h.machine.UpdateMetadata(models.Metadata{CardName: "Blastoise", Ticker: "BLS"}), ErrInvalidTransition)
	assert.NoError(t, h.machine.UpdateMetadata(models.Metadata{CardName: "Charizard", Ticker: "ZARD"}))
}

func TestBlankTickerBlocksDeploy(t *testing.T) {
	h := newHarness(t)
	h.fill(t)
	_, err := h.machine.Verify(context.Background())
	require.NoError(t, err)

	require.NoError(t, h.machine.UpdateMetadata(models.Metadata{CardName: "Charizard", Ticker: "  "}))
	_, err = h.machine.Deploy(context.Background())
	assert.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, h.gate.reads)
}

func TestSwitchedWalletCannotDeployOthersVerification(t *testing.T) {
	h := newHarness(t)
	h.fill(t)
	_, err := h.machine.Verify(context.Background())
	require.NoError(t, err)

	h.machine.ConnectWallet(wallet.NewKeypairSigner(solana.NewWallet().PrivateKey))
	_, err = h.machine.Deploy(context.Background())
	assert.ErrorIs(t, err, ErrValidation)

	h.machine.DisconnectWallet()
	_, err = h.machine.Deploy(context.Background())
	assert.ErrorIs(t, err, ErrWalletNotConnected)
}

func TestVerifyIsNotReentrant(t *testing.T) {
	h := newHarness(t)
	h.verifier.release = make(chan struct{})
	h.fill(t)

	done := make(chan error, 1)
	go func() {
		_, err := h.machine.Verify(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return h.machine.State() == models.StateVerifying }, time.Second, time.Millisecond)

	assert.True(t, h.machine.Snapshot().IsBusy)
	_, err := h.machine.Verify(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	_, err = h.machine.Deploy(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(h.verifier.release)
	require.NoError(t, <-done)
	assert.Equal(t, models.StateVerified, h.machine.State())
}

func TestLateVerdictForAbandonedSubmissionIsDiscarded(t *testing.T) {
	h := newHarness(t)
	h.verifier.release = make(chan struct{})
	h.fill(t)

	done := make(chan error, 1)
	go func() {
		_, err := h.machine.Verify(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return h.machine.State() == models.StateVerifying }, time.Second, time.Millisecond)

	abandoned := h.machine.SubmissionID()
	require.NoError(t, h.machine.Reset())
	assert.NotEqual(t, abandoned, h.machine.SubmissionID())

	close(h.verifier.release)
	assert.ErrorIs(t, <-done, ErrStaleSubmission)

	snap := h.machine.Snapshot()
	assert.Equal(t, models.StateCollecting, snap.State)
	assert.Nil(t, snap.Verification)
	assert.False(t, snap.CanDeploy)
}

func TestTryAgainKeepsCardImagesOnly(t *testing.T) {
	h := newHarness(t)
	h.verifier.result = &models.VerificationResult{Verified: false, Confidence: 30, Reason: "no code visible"}
	h.fill(t)
	before := h.machine.Snapshot().VerificationID

	_, err := h.machine.Verify(context.Background())
	require.NoError(t, err)

	code, err := h.machine.TryAgain()
	require.NoError(t, err)
	assert.NotEqual(t, before, code)

	snap := h.machine.Snapshot()
	assert.Equal(t, models.StateCollecting, snap.State)
	assert.Nil(t, snap.Verification)
	assert.Contains(t, snap.Media, models.SlotFront)
	assert.Contains(t, snap.Media, models.SlotBack)
	assert.NotContains(t, snap.Media, models.SlotProofPhoto)
	assert.Equal(t, "Charizard", snap.Metadata.CardName)
}

func TestTryAgainAfterFailedDeployStartsOver(t *testing.T) {
	h := newHarness(t)
	h.deployer.fail = "rate limited"
	h.fill(t)

	_, err := h.machine.Verify(context.Background())
	require.NoError(t, err)
	failed, err := h.machine.Deploy(context.Background())
	require.NoError(t, err)
	require.False(t, failed.Success)
	previous := h.machine.SubmissionID()

	code, err := h.machine.TryAgain()
	require.NoError(t, err)

	snap := h.machine.Snapshot()
	assert.Equal(t, code, snap.VerificationID)
	assert.NotEqual(t, previous, snap.SubmissionID)
	assert.Equal(t, models.StateCollecting, snap.State)
	assert.Empty(t, snap.Media)
	assert.Empty(t, snap.Metadata.CardName)
	assert.Empty(t, snap.MintAddress)
	assert.Nil(t, snap.Deployment)

	h.deployer.fail = ""
	h.fill(t)
	_, err = h.machine.Verify(context.Background())
	require.NoError(t, err)
	second, err := h.machine.Deploy(context.Background())
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.NotEqual(t, failed.MintAddress, second.MintAddress)
}

func TestCreateAnotherOnlyAfterDeploy(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.machine.CreateAnother(), ErrInvalidTransition)

	h.fill(t)
	_, err := h.machine.Verify(context.Background())
	require.NoError(t, err)
	_, err = h.machine.Deploy(context.Background())
	require.NoError(t, err)

	previous := h.machine.SubmissionID()
	require.NoError(t, h.machine.CreateAnother())

	snap := h.machine.Snapshot()
	assert.NotEqual(t, previous, snap.SubmissionID)
	assert.Equal(t, models.StateCollecting, snap.State)
	assert.Empty(t, snap.Media)
	assert.Empty(t, snap.MintAddress)
	assert.Equal(t, h.owner.PublicKey().String(), snap.WalletAddress)
}

func TestProgressNeverReachesHundredBeforeFinish(t *testing.T) {
	p := StartProgress(time.Millisecond, 0)
	time.Sleep(200 * time.Millisecond)
	assert.LessOrEqual(t, p.Value(), 95)
	assert.Greater(t, p.Value(), 0)

	p.Finish()
	assert.Equal(t, 100, p.Value())
	assert.Equal(t, "Finalizing verification...", p.Stage())
}

func TestStartDeployReportsGuardsSynchronously(t *testing.T) {
	h := newHarness(t)

	_, err := h.machine.StartVerify(context.Background())
	assert.ErrorIs(t, err, ErrValidation)

	h.fill(t)
	done, err := h.machine.StartVerify(context.Background())
	require.NoError(t, err)
	require.NoError(t, (<-done).Err)

	h.gate.balance = decimal.RequireFromString("0.001")
	_, err = h.machine.StartDeploy(context.Background())
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, models.StateVerified, h.machine.State())

	h.gate.balance = decimal.RequireFromString("1")
	deployed, err := h.machine.StartDeploy(context.Background())
	require.NoError(t, err)
	out := <-deployed
	require.NoError(t, out.Err)
	assert.True(t, out.Result.Success)
	assert.Equal(t, models.StateDeployed, h.machine.State())
}
