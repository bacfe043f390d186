package blockchain

import (
	"context"
	"log"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
)

// DiagnosticResult holds the result of a Solana connectivity diagnostic
type DiagnosticResult struct {
	RPCConnected    bool   `json:"rpc_connected"`
	RPCURL          string `json:"rpc_url"`
	Network         string `json:"network"`
	RPCError        string `json:"rpc_error,omitempty"`
	Health          string `json:"health,omitempty"`
	LatestBlockhash string `json:"latest_blockhash,omitempty"`
	ServerWalletSet bool   `json:"server_wallet_set"`
	ServerWallet    string `json:"server_wallet,omitempty"`
	Timestamp       string `json:"timestamp"`
}

// RunDiagnostics checks Solana RPC connectivity and the operator wallet
func (s *SolanaClient) RunDiagnostics(ctx context.Context) *DiagnosticResult {
	result := &DiagnosticResult{
		Timestamp: time.Now().Format(time.RFC3339),
		RPCURL:    s.rpcURL,
		Network:   s.network,
	}

	// 1. Check RPC connectivity
	log.Printf("[Diagnostics] Testing RPC connectivity...")
	blockhash, err := s.rpcClient.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		result.RPCConnected = false
		result.RPCError = err.Error()
		log.Printf("[Diagnostics] ❌ RPC FAILED: %v", err)
	} else {
		result.RPCConnected = true
		result.LatestBlockhash = blockhash.Value.Blockhash.String()
		log.Printf("[Diagnostics] ✅ RPC connected, blockhash: %s", result.LatestBlockhash)
	}

	// 2. Node health
	if health, err := s.rpcClient.GetHealth(ctx); err != nil {
		result.Health = "unhealthy: " + err.Error()
	} else {
		result.Health = health
	}

	// 3. Check operator wallet
	if s.serverWallet != nil {
		result.ServerWalletSet = true
		result.ServerWallet = s.serverWallet.PublicKey().String()
	}

	return result
}
