package auth

import (
	"crypto/ed25519"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	InitJWT("test-secret")

	token, err := GenerateToken("wallet-1", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "wallet-1", claims.WalletAddress)

	InitJWT("other-secret")
	_, err = ValidateToken(token)
	assert.Error(t, err)
}

func TestVerifyLogin(t *testing.T) {
	w := solana.NewWallet()
	address := w.PublicKey().String()
	issued := time.Now().Add(-time.Minute)

	sig := ed25519.Sign(ed25519.PrivateKey(w.PrivateKey), []byte(LoginMessage(address, issued)))
	encoded := base58.Encode(sig)

	assert.NoError(t, VerifyLogin(address, encoded, issued, time.Now()))
	assert.ErrorIs(t, VerifyLogin(address, encoded, issued.Add(time.Second), time.Now()), ErrInvalidSignature)
	assert.ErrorIs(t, VerifyLogin(address, encoded, issued, time.Now().Add(10*time.Minute)), ErrInvalidSignature)
	assert.ErrorIs(t, VerifyLogin(address, "abc", issued, time.Now()), ErrInvalidSignature)

	other := solana.NewWallet().PublicKey().String()
	assert.ErrorIs(t, VerifyLogin(other, encoded, issued, time.Now()), ErrInvalidSignature)
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	InitJWT("test-secret")

	r := gin.New()
	r.GET("/me", AuthMiddleware(), func(c *gin.Context) {
		addr, _ := GetWalletAddress(c)
		c.String(http.StatusOK, addr)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := GenerateToken("wallet-1", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "wallet-1", rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me?token="+token, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
