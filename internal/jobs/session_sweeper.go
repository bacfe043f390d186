package jobs

import (
	"log"
	"sync"
	"time"
)

// SessionStore drops sessions idle for longer than maxIdle
type SessionStore interface {
	Sweep(maxIdle time.Duration) []string
}

// SessionSweeper disconnects wallets whose login token can no longer be valid
type SessionSweeper struct {
	store    SessionStore
	maxIdle  time.Duration
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewSessionSweeper(store SessionStore, maxIdle, interval time.Duration) *SessionSweeper {
	return &SessionSweeper{
		store:    store,
		maxIdle:  maxIdle,
		interval: interval,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop in the background. It runs until Stop is called.
func (ss *SessionSweeper) Start() {
	go ss.run()
}

func (ss *SessionSweeper) run() {
	defer close(ss.done)
	log.Printf("[SessionSweeper] Starting session sweep job (idle limit: %v)", ss.maxIdle)

	ticker := time.NewTicker(ss.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if dropped := ss.store.Sweep(ss.maxIdle); len(dropped) > 0 {
				log.Printf("[SessionSweeper] Dropped %d idle sessions", len(dropped))
			}
		case <-ss.stopChan:
			log.Println("[SessionSweeper] Stopping session sweep job")
			return
		}
	}
}

func (ss *SessionSweeper) Stop() {
	ss.stopOnce.Do(func() { close(ss.stopChan) })
}

// Done is closed once the loop has exited
func (ss *SessionSweeper) Done() <-chan struct{} {
	return ss.done
}
