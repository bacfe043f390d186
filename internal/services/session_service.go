package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"cardmint/internal/observability"
	"cardmint/internal/wallet"
	"cardmint/internal/workflow"

	"github.com/gagliardetto/solana-go"
)

// Session is the explicit context of one connected wallet: its connection,
// its signer and the submission workflow it drives
type Session struct {
	Conn    *wallet.Connection
	Machine *workflow.Machine
	// Remote is set when signatures come from the browser wallet
	Remote *wallet.RemoteSigner

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) Address() string {
	return s.Conn.Address()
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Reset abandons the active submission and withdraws any transaction still
// waiting for the browser wallet, so it cannot be signed afterwards
func (s *Session) Reset() error {
	if err := s.Machine.Reset(); err != nil {
		return err
	}
	s.rejectPending()
	return nil
}

func (s *Session) rejectPending() {
	if s.Remote == nil || s.Remote.Pending() == nil {
		return
	}
	if err := s.Remote.Reject(); err != nil {
		log.Printf("[Session] Failed to reject pending signature for %s: %v", s.Address(), err)
	}
}

// SessionService keeps one session per wallet address
type SessionService struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	verifier workflow.Verifier
	deployer workflow.Deployer
	balance  *BalanceService
	opts     workflow.Options
	operator *wallet.KeypairSigner
	metrics  *observability.Metrics
}

func NewSessionService(verifier workflow.Verifier, deployer workflow.Deployer, balance *BalanceService, opts workflow.Options, metrics *observability.Metrics) *SessionService {
	return &SessionService{
		sessions: make(map[string]*Session),
		verifier: verifier,
		deployer: deployer,
		balance:  balance,
		opts:     opts,
		metrics:  metrics,
	}
}

// SetOperator lets the server wallet sign its own deploys without a browser
func (s *SessionService) SetOperator(signer *wallet.KeypairSigner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.operator = signer
}

// Login returns the session for the wallet, creating and connecting it on
// first use. The balance is read right away; a failed read is not fatal.
func (s *SessionService) Login(ctx context.Context, address string) (*Session, error) {
	pubkey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid wallet address", workflow.ErrValidation)
	}

	s.mu.Lock()
	session, ok := s.sessions[address]
	if !ok {
		session, err = s.newSession(pubkey)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		s.sessions[address] = session
		log.Printf("[Session] Wallet %s connected", address)
	}
	count := len(s.sessions)
	s.mu.Unlock()

	s.metrics.SetActiveSessions(count)
	session.touch()

	if s.balance != nil {
		if _, err := s.balance.Refresh(ctx, session.Conn); err != nil {
			log.Printf("[Session] Balance unknown for %s: %v", address, err)
		}
	}
	return session, nil
}

// newSession must be called with mu held
func (s *SessionService) newSession(pubkey solana.PublicKey) (*Session, error) {
	var gate workflow.BalanceGate
	if s.balance != nil {
		gate = s.balance
	}

	conn := wallet.NewConnection()
	machine, err := workflow.NewMachine(conn, s.verifier, s.deployer, gate, s.opts)
	if err != nil {
		return nil, err
	}

	session := &Session{Conn: conn, Machine: machine}
	if s.operator != nil && s.operator.PublicKey().Equals(pubkey) {
		machine.ConnectWallet(s.operator)
	} else {
		session.Remote = wallet.NewRemoteSigner(pubkey)
		machine.ConnectWallet(session.Remote)
	}
	return session, nil
}

// Get returns the live session of a wallet
func (s *SessionService) Get(address string) (*Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[address]
	s.mu.RUnlock()
	if ok {
		session.touch()
	}
	return session, ok
}

// Logout disconnects the wallet and drops its session. A signature the
// browser still owes is rejected so the deploy waiting on it returns.
func (s *SessionService) Logout(address string) bool {
	s.mu.Lock()
	session, ok := s.sessions[address]
	delete(s.sessions, address)
	count := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return false
	}
	s.metrics.SetActiveSessions(count)

	session.rejectPending()
	session.Machine.DisconnectWallet()
	log.Printf("[Session] Wallet %s disconnected", address)
	return true
}

// All returns a snapshot of the live sessions
func (s *SessionService) All() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	return out
}

func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// RefreshBalances re-reads the balance of every connected session
func (s *SessionService) RefreshBalances(ctx context.Context) (refreshed int, failed int) {
	if s.balance == nil {
		return 0, 0
	}
	for _, session := range s.All() {
		if !session.Conn.Connected() {
			continue
		}
		if _, err := s.balance.Refresh(ctx, session.Conn); err != nil {
			failed++
			continue
		}
		refreshed++
	}
	return refreshed, failed
}

// Sweep logs out sessions that have been idle for longer than maxIdle.
// Sessions with a deploy in flight are kept.
func (s *SessionService) Sweep(maxIdle time.Duration) []string {
	cutoff := time.Now().Add(-maxIdle)
	var idle []string
	for _, session := range s.All() {
		if session.LastSeen().After(cutoff) || session.Machine.Snapshot().IsBusy {
			continue
		}
		idle = append(idle, session.Address())
	}
	for _, address := range idle {
		s.Logout(address)
	}
	return idle
}
