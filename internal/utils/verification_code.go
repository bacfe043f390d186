package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// VerificationAlphabet excludes glyphs that are easy to confuse on paper (0/O, 1/I)
const VerificationAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// VerificationCodeLength is the number of symbols in a verification code
const VerificationCodeLength = 8

// GenerateVerificationCode creates the code a user writes next to the card in the proof photo
func GenerateVerificationCode() (string, error) {
	max := big.NewInt(int64(len(VerificationAlphabet)))

	var b strings.Builder
	b.Grow(VerificationCodeLength)
	for i := 0; i < VerificationCodeLength; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate verification code: %w", err)
		}
		b.WriteByte(VerificationAlphabet[idx.Int64()])
	}

	return b.String(), nil
}

// IsVerificationCode reports whether s has the shape of a generated code
func IsVerificationCode(s string) bool {
	if len(s) != VerificationCodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(VerificationAlphabet, s[i]) < 0 {
			return false
		}
	}
	return true
}
