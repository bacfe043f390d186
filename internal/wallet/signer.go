// Package wallet holds the per-session wallet context: the connected
// address, the signer used for transactions and the cached balance.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

var (
	ErrNoPendingSignature = errors.New("no transaction is waiting for a signature")
	ErrSignatureMismatch  = errors.New("signed transaction does not match the pending one")
	ErrSignerBusy         = errors.New("another transaction is already waiting for a signature")
	ErrSignatureRejected  = errors.New("signature request was rejected")
)

// Signer signs transactions on behalf of the connected wallet
type Signer interface {
	PublicKey() solana.PublicKey
	SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error)
}

// KeypairSigner signs with a locally held private key
type KeypairSigner struct {
	key solana.PrivateKey
}

func NewKeypairSigner(key solana.PrivateKey) *KeypairSigner {
	return &KeypairSigner{key: key}
}

func (s *KeypairSigner) PublicKey() solana.PublicKey {
	return s.key.PublicKey()
}

func (s *KeypairSigner) SignTransaction(_ context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
	pub := s.key.PublicKey()
	_, err := tx.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(pub) {
			return &s.key
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return tx, nil
}

// PendingSignature is a transaction waiting for the browser wallet
type PendingSignature struct {
	ID          uuid.UUID `json:"id"`
	Transaction string    `json:"transaction"`
	RequestedAt time.Time `json:"requested_at"`
}

type signResult struct {
	tx  *solana.Transaction
	err error
}

// RemoteSigner bridges signing to a wallet extension in the browser.
// SignTransaction parks the transaction until Submit or Reject is called.
type RemoteSigner struct {
	pubkey solana.PublicKey

	mu      sync.Mutex
	pending *PendingSignature
	message []byte
	result  chan signResult
}

func NewRemoteSigner(pubkey solana.PublicKey) *RemoteSigner {
	return &RemoteSigner{pubkey: pubkey}
}

func (s *RemoteSigner) PublicKey() solana.PublicKey {
	return s.pubkey
}

func (s *RemoteSigner) SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
	encoded, err := tx.ToBase64()
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction: %w", err)
	}
	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}

	ch := make(chan signResult, 1)

	s.mu.Lock()
	if s.pending != nil {
		s.mu.Unlock()
		return nil, ErrSignerBusy
	}
	s.pending = &PendingSignature{
		ID:          uuid.New(),
		Transaction: encoded,
		RequestedAt: time.Now(),
	}
	s.message = message
	s.result = ch
	s.mu.Unlock()

	defer s.clear(ch)

	select {
	case res := <-ch:
		return res.tx, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for wallet signature: %w", ctx.Err())
	}
}

// Pending returns the transaction awaiting a signature, if any
func (s *RemoteSigner) Pending() *PendingSignature {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil
	}
	p := *s.pending
	return &p
}

// Submit hands back the wallet-signed transaction
func (s *RemoteSigner) Submit(signedBase64 string) error {
	tx, err := solana.TransactionFromBase64(signedBase64)
	if err != nil {
		return fmt.Errorf("invalid signed transaction: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return ErrNoPendingSignature
	}

	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("invalid signed transaction: %w", err)
	}
	if string(message) != string(s.message) {
		return ErrSignatureMismatch
	}
	if err := tx.VerifySignatures(); err != nil {
		return fmt.Errorf("invalid signed transaction: %w", err)
	}

	s.result <- signResult{tx: tx}
	s.pending = nil
	return nil
}

// Reject aborts the pending request, as when the user declines in the wallet
func (s *RemoteSigner) Reject() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return ErrNoPendingSignature
	}
	s.result <- signResult{err: ErrSignatureRejected}
	s.pending = nil
	return nil
}

func (s *RemoteSigner) clear(ch chan signResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == ch {
		s.pending = nil
		s.message = nil
		s.result = nil
	}
}
