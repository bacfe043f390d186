package wallet

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Balance is a cached balance reading. Known is false when the last
// read failed or the wallet reconnected since.
type Balance struct {
	Amount    decimal.Decimal `json:"amount"`
	Known     bool            `json:"known"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Connection is the explicit wallet context shared by the components of one
// session. It replaces ambient wallet state: everything that needs the
// address, signer or balance receives the Connection.
type Connection struct {
	mu      sync.RWMutex
	address string
	signer  Signer
	balance Balance
}

func NewConnection() *Connection {
	return &Connection{}
}

// Connect binds a signer. Any balance cached for a previous wallet is dropped.
func (c *Connection) Connect(signer Signer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signer = signer
	c.address = signer.PublicKey().String()
	c.balance = Balance{}
}

// Disconnect clears the signer and the cached balance
func (c *Connection) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signer = nil
	c.address = ""
	c.balance = Balance{}
}

func (c *Connection) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.signer != nil
}

// Address returns the base58 public key, or "" when disconnected
func (c *Connection) Address() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.address
}

func (c *Connection) Signer() Signer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.signer
}

// SetBalance records a fresh reading for address. Readings for an address
// that is no longer connected are ignored.
func (c *Connection) SetBalance(address string, amount decimal.Decimal) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.address == "" || c.address != address {
		return false
	}
	c.balance = Balance{Amount: amount, Known: true, UpdatedAt: time.Now()}
	return true
}

// InvalidateBalance marks the cached balance as unknown
func (c *Connection) InvalidateBalance() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balance = Balance{}
}

func (c *Connection) Balance() Balance {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.balance
}
