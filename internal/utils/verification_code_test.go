package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerificationAlphabet(t *testing.T) {
	assert.Len(t, VerificationAlphabet, 32)
	for _, c := range "0O1I" {
		assert.NotContains(t, VerificationAlphabet, string(c))
	}
}

func TestGenerateVerificationCode(t *testing.T) {
	seen := make(map[string]struct{})
	prev := ""
	for i := 0; i < 200; i++ {
		code, err := GenerateVerificationCode()
		require.NoError(t, err)
		assert.True(t, IsVerificationCode(code), "bad code %q", code)
		assert.NotEqual(t, prev, code)
		seen[code] = struct{}{}
		prev = code
	}
	assert.Greater(t, len(seen), 190)
}

func TestIsVerificationCode(t *testing.T) {
	assert.True(t, IsVerificationCode("ABCD2345"))
	assert.False(t, IsVerificationCode("ABCD234"))
	assert.False(t, IsVerificationCode("ABCD234O"))
	assert.False(t, IsVerificationCode("abcd2345"))
}
