package blockchain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRPC answers JSON-RPC calls by method name
type fakeRPC struct {
	mu      sync.Mutex
	results map[string][]string
	calls   map[string]int
}

func newFakeRPC() *fakeRPC {
	return &fakeRPC{results: map[string][]string{}, calls: map[string]int{}}
}

// on queues results for a method; the last one repeats
func (f *fakeRPC) on(method string, results ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[method] = results
}

func (f *fakeRPC) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	n := f.calls[req.Method]
	f.calls[req.Method]++
	results := f.results[req.Method]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if len(results) == 0 {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found"}}`))
		return
	}
	if n >= len(results) {
		n = len(results) - 1
	}
	w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":` + results[n] + `}`))
}

func TestGetSOLBalanceConvertsLamports(t *testing.T) {
	rpcSrv := newFakeRPC()
	rpcSrv.on("getBalance", `{"context":{"slot":1},"value":500000000}`)
	srv := httptest.NewServer(rpcSrv)
	defer srv.Close()

	client := NewSolanaClient("devnet", srv.URL, "")
	balance, err := client.GetSOLBalance(context.Background(), solana.NewWallet().PublicKey().String())
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("0.5")), balance.String())

	_, err = client.GetSOLBalance(context.Background(), "not-a-key")
	assert.Error(t, err)
}

func TestConfirmTransactionWaitsForConfirmedStatus(t *testing.T) {
	rpcSrv := newFakeRPC()
	rpcSrv.on("getSignatureStatuses",
		`{"context":{"slot":1},"value":[null]}`,
		`{"context":{"slot":2},"value":[{"slot":2,"confirmations":0,"err":null,"confirmationStatus":"processed"}]}`,
		`{"context":{"slot":3},"value":[{"slot":3,"confirmations":1,"err":null,"confirmationStatus":"confirmed"}]}`,
	)
	srv := httptest.NewServer(rpcSrv)
	defer srv.Close()

	client := NewSolanaClient("devnet", srv.URL, "")
	client.SetPollInterval(time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, client.ConfirmTransaction(ctx, solana.Signature{1}))
	assert.Equal(t, 3, rpcSrv.calls["getSignatureStatuses"])
}

func TestConfirmTransactionReportsExecutionError(t *testing.T) {
	rpcSrv := newFakeRPC()
	rpcSrv.on("getSignatureStatuses",
		`{"context":{"slot":3},"value":[{"slot":3,"confirmations":1,"err":{"InstructionError":[0,"Custom"]},"confirmationStatus":"confirmed"}]}`,
	)
	srv := httptest.NewServer(rpcSrv)
	defer srv.Close()

	client := NewSolanaClient("devnet", srv.URL, "")
	err := client.ConfirmTransaction(context.Background(), solana.Signature{1})
	assert.ErrorIs(t, err, ErrTransactionFailed)
}

func TestConfirmTransactionTimesOut(t *testing.T) {
	rpcSrv := newFakeRPC()
	rpcSrv.on("getSignatureStatuses", `{"context":{"slot":1},"value":[null]}`)
	srv := httptest.NewServer(rpcSrv)
	defer srv.Close()

	client := NewSolanaClient("devnet", srv.URL, "")
	client.SetPollInterval(time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := client.ConfirmTransaction(ctx, solana.Signature{1})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunDiagnostics(t *testing.T) {
	rpcSrv := newFakeRPC()
	rpcSrv.on("getLatestBlockhash", `{"context":{"slot":1},"value":{"blockhash":"EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N","lastValidBlockHeight":100}}`)
	rpcSrv.on("getHealth", `"ok"`)
	srv := httptest.NewServer(rpcSrv)
	defer srv.Close()

	operator := solana.NewWallet()
	client := NewSolanaClient("devnet", srv.URL, operator.PrivateKey.String())

	result := client.RunDiagnostics(context.Background())
	assert.True(t, result.RPCConnected)
	assert.Equal(t, "ok", result.Health)
	assert.Equal(t, "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N", result.LatestBlockhash)
	assert.True(t, result.ServerWalletSet)
	assert.Equal(t, operator.PublicKey().String(), result.ServerWallet)
}

func TestLamportsToSOL(t *testing.T) {
	assert.True(t, LamportsToSOL(20_000_000).Equal(decimal.RequireFromString("0.02")))
	assert.True(t, LamportsToSOL(0).IsZero())
}
