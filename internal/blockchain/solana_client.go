package blockchain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

// ErrTransactionFailed is returned when a broadcast transaction reports an execution error
var ErrTransactionFailed = errors.New("transaction failed to confirm")

const lamportsPerSOL = 1_000_000_000

// SolanaClient handles Solana blockchain interactions
type SolanaClient struct {
	rpcClient    *rpc.Client
	rpcURL       string
	network      string
	serverWallet *solana.Wallet
	pollInterval time.Duration
}

// RPCURLForNetwork returns the public endpoint of a cluster
func RPCURLForNetwork(network string) string {
	switch network {
	case "mainnet-beta":
		return "https://api.mainnet-beta.solana.com"
	case "testnet":
		return "https://api.testnet.solana.com"
	default:
		return "https://api.devnet.solana.com"
	}
}

// NewSolanaClient creates a new Solana client. An explicit rpcURL wins over
// the network's public endpoint.
func NewSolanaClient(network, rpcURL, privateKey string) *SolanaClient {
	if rpcURL == "" {
		rpcURL = RPCURLForNetwork(network)
	}

	client := &SolanaClient{
		rpcClient:    rpc.New(rpcURL),
		rpcURL:       rpcURL,
		network:      network,
		pollInterval: time.Second,
	}

	// Initialize server wallet if private key is provided
	if privateKey != "" {
		wallet, err := solana.WalletFromPrivateKeyBase58(privateKey)
		if err != nil {
			log.Printf("Warning: Failed to load server wallet: %v", err)
		} else {
			client.serverWallet = wallet
			log.Printf("Server wallet loaded: %s", wallet.PublicKey())
		}
	}

	return client
}

// SetPollInterval changes how often ConfirmTransaction polls
func (s *SolanaClient) SetPollInterval(d time.Duration) {
	if d > 0 {
		s.pollInterval = d
	}
}

func (s *SolanaClient) RPCURL() string {
	return s.rpcURL
}

// ServerWallet returns the operator wallet, or nil when none is configured
func (s *SolanaClient) ServerWallet() *solana.Wallet {
	return s.serverWallet
}

// SendTransaction sends a signed transaction to the network
func (s *SolanaClient) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := s.rpcClient.SendTransactionWithOpts(
		ctx,
		tx,
		rpc.TransactionOpts{
			SkipPreflight:       false,
			PreflightCommitment: rpc.CommitmentConfirmed,
		},
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	return sig, nil
}

// ConfirmTransaction polls the signature status until it is confirmed, fails
// on-chain, or ctx expires.
func (s *SolanaClient) ConfirmTransaction(ctx context.Context, sig solana.Signature) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		done, err := s.checkSignature(ctx, sig)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("confirmation of %s timed out: %w", sig, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (s *SolanaClient) checkSignature(ctx context.Context, sig solana.Signature) (bool, error) {
	status, err := s.rpcClient.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		// transient RPC errors are retried until the deadline
		log.Printf("[Solana] Signature status check for %s failed: %v", sig, err)
		return false, nil
	}

	if len(status.Value) == 0 || status.Value[0] == nil {
		return false, nil
	}

	// Check for execution errors
	if status.Value[0].Err != nil {
		log.Printf("[Solana] Transaction %s failed with error: %v", sig, status.Value[0].Err)
		return false, fmt.Errorf("%w: %v", ErrTransactionFailed, status.Value[0].Err)
	}

	confStatus := status.Value[0].ConfirmationStatus
	return confStatus == rpc.ConfirmationStatusConfirmed || confStatus == rpc.ConfirmationStatusFinalized, nil
}

// GetSOLBalance gets the SOL balance for a wallet
func (s *SolanaClient) GetSOLBalance(ctx context.Context, walletAddress string) (decimal.Decimal, error) {
	pubKey, err := solana.PublicKeyFromBase58(walletAddress)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid wallet address: %w", err)
	}

	balance, err := s.rpcClient.GetBalance(ctx, pubKey, rpc.CommitmentConfirmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}

	// Convert lamports to SOL
	return LamportsToSOL(balance.Value), nil
}

// LamportsToSOL converts the smallest unit to SOL
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), 0).Div(decimal.NewFromInt(lamportsPerSOL))
}

// GetTokenAccountBalance gets the token balance for a specific owner and mint
func (s *SolanaClient) GetTokenAccountBalance(ctx context.Context, ownerAddress string, mintAddress string) (uint64, error) {
	owner, err := solana.PublicKeyFromBase58(ownerAddress)
	if err != nil {
		return 0, fmt.Errorf("invalid owner address: %w", err)
	}
	mint, err := solana.PublicKeyFromBase58(mintAddress)
	if err != nil {
		return 0, fmt.Errorf("invalid mint address: %w", err)
	}

	// Find token accounts for this mint owned by the address
	resp, err := s.rpcClient.GetTokenAccountsByOwner(
		ctx,
		owner,
		&rpc.GetTokenAccountsConfig{
			Mint: &mint,
		},
		&rpc.GetTokenAccountsOpts{
			Encoding: solana.EncodingBase64,
		},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to get token accounts: %w", err)
	}

	if len(resp.Value) == 0 {
		return 0, nil // No account means 0 balance
	}

	var totalBalance uint64
	for _, account := range resp.Value {
		var tokenAccount token.Account
		decoder := bin.NewBinDecoder(account.Account.Data.GetBinary())
		err := tokenAccount.UnmarshalWithDecoder(decoder)
		if err != nil {
			log.Printf("Warning: failed to decode token account data: %v", err)
			continue
		}
		totalBalance += tokenAccount.Amount
	}

	return totalBalance, nil
}
