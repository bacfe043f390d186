package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// MaxLoginAge bounds how old a signed login message may be
const MaxLoginAge = 5 * time.Minute

var ErrInvalidSignature = errors.New("invalid wallet signature")

// LoginMessage is the text the wallet signs to open a session
func LoginMessage(walletAddress string, issuedAt time.Time) string {
	return fmt.Sprintf("Sign in to CardMint\nWallet: %s\nIssued At: %s", walletAddress, issuedAt.UTC().Format(time.RFC3339))
}

// VerifyLogin checks a base58 ed25519 signature over LoginMessage
func VerifyLogin(walletAddress, signatureBase58 string, issuedAt, now time.Time) error {
	if now.Sub(issuedAt) > MaxLoginAge || issuedAt.Sub(now) > time.Minute {
		return fmt.Errorf("%w: login message expired", ErrInvalidSignature)
	}

	pubkey, err := solana.PublicKeyFromBase58(walletAddress)
	if err != nil {
		return fmt.Errorf("invalid wallet address: %w", err)
	}

	sig, err := base58.Decode(signatureBase58)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("%w: malformed signature", ErrInvalidSignature)
	}

	message := []byte(LoginMessage(walletAddress, issuedAt))
	if !ed25519.Verify(ed25519.PublicKey(pubkey.Bytes()), message, sig) {
		return ErrInvalidSignature
	}
	return nil
}
