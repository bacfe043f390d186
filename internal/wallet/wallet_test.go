package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTransaction(t *testing.T, signers ...solana.PublicKey) *solana.Transaction {
	t.Helper()
	accounts := make(solana.AccountMetaSlice, 0, len(signers))
	for _, s := range signers {
		accounts = append(accounts, solana.Meta(s).WRITE().SIGNER())
	}
	program := solana.MustPublicKeyFromBase58("11111111111111111111111111111111")
	tx, err := solana.NewTransaction(
		[]solana.Instruction{solana.NewInstruction(program, accounts, []byte{1, 2, 3})},
		solana.Hash{1},
		solana.TransactionPayer(signers[0]),
	)
	require.NoError(t, err)
	return tx
}

func TestKeypairSignerSignsOwnSlotOnly(t *testing.T) {
	owner := solana.NewWallet()
	mint := solana.NewWallet()
	tx := testTransaction(t, owner.PublicKey(), mint.PublicKey())

	signer := NewKeypairSigner(owner.PrivateKey)
	signed, err := signer.SignTransaction(context.Background(), tx)
	require.NoError(t, err)
	require.Len(t, signed.Signatures, 2)
	assert.False(t, signed.Signatures[0].IsZero())
	assert.True(t, signed.Signatures[1].IsZero())
}

func TestRemoteSignerRoundTrip(t *testing.T) {
	owner := solana.NewWallet()
	tx := testTransaction(t, owner.PublicKey())
	signer := NewRemoteSigner(owner.PublicKey())

	done := make(chan *solana.Transaction, 1)
	go func() {
		signed, err := signer.SignTransaction(context.Background(), tx)
		assert.NoError(t, err)
		done <- signed
	}()

	var pending *PendingSignature
	require.Eventually(t, func() bool {
		pending = signer.Pending()
		return pending != nil
	}, time.Second, 5*time.Millisecond)

	browserTx, err := solana.TransactionFromBase64(pending.Transaction)
	require.NoError(t, err)
	_, err = NewKeypairSigner(owner.PrivateKey).SignTransaction(context.Background(), browserTx)
	require.NoError(t, err)

	require.NoError(t, signer.Submit(browserTx.MustToBase64()))

	select {
	case signed := <-done:
		assert.NoError(t, signed.VerifySignatures())
	case <-time.After(time.Second):
		t.Fatal("signer did not return")
	}
	assert.Nil(t, signer.Pending())
}

func TestRemoteSignerRejectsForeignTransaction(t *testing.T) {
	owner := solana.NewWallet()
	signer := NewRemoteSigner(owner.PublicKey())

	assert.ErrorIs(t, signer.Reject(), ErrNoPendingSignature)

	go signer.SignTransaction(context.Background(), testTransaction(t, owner.PublicKey()))
	require.Eventually(t, func() bool { return signer.Pending() != nil }, time.Second, 5*time.Millisecond)

	other := testTransaction(t, owner.PublicKey(), solana.NewWallet().PublicKey())
	_, err := NewKeypairSigner(owner.PrivateKey).SignTransaction(context.Background(), other)
	require.NoError(t, err)
	assert.ErrorIs(t, signer.Submit(other.MustToBase64()), ErrSignatureMismatch)

	require.NoError(t, signer.Reject())
}

func TestRemoteSignerHonoursContext(t *testing.T) {
	owner := solana.NewWallet()
	signer := NewRemoteSigner(owner.PublicKey())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := signer.SignTransaction(ctx, testTransaction(t, owner.PublicKey()))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, signer.Pending())
}

func TestConnectionBalanceLifecycle(t *testing.T) {
	conn := NewConnection()
	assert.False(t, conn.Connected())
	assert.False(t, conn.SetBalance("anything", decimal.NewFromInt(1)))

	first := solana.NewWallet()
	conn.Connect(NewKeypairSigner(first.PrivateKey))
	assert.Equal(t, first.PublicKey().String(), conn.Address())
	assert.True(t, conn.SetBalance(conn.Address(), decimal.RequireFromString("0.5")))
	assert.True(t, conn.Balance().Known)

	second := solana.NewWallet()
	conn.Connect(NewKeypairSigner(second.PrivateKey))
	assert.False(t, conn.Balance().Known, "reconnect must drop the old balance")
	assert.False(t, conn.SetBalance(first.PublicKey().String(), decimal.NewFromInt(3)))

	conn.Disconnect()
	assert.Equal(t, "", conn.Address())
	assert.Nil(t, conn.Signer())
}
