package jobs

import (
	"context"
	"log"
	"sync"
	"time"
)

// BalanceSource refreshes the cached balance of every connected wallet
type BalanceSource interface {
	RefreshBalances(ctx context.Context) (refreshed int, failed int)
}

// BalanceRefresher keeps session balances warm so the UI can warn before a
// deploy is attempted
type BalanceRefresher struct {
	source   BalanceSource
	interval time.Duration
	timeout  time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewBalanceRefresher(source BalanceSource, interval time.Duration) *BalanceRefresher {
	return &BalanceRefresher{
		source:   source,
		interval: interval,
		timeout:  interval,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the refresh loop in the background. It runs until Stop is called.
func (br *BalanceRefresher) Start() {
	go br.run()
}

func (br *BalanceRefresher) run() {
	defer close(br.done)
	log.Printf("[BalanceRefresher] Starting balance refresh job (interval: %v)", br.interval)

	ticker := time.NewTicker(br.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			br.refresh()
		case <-br.stopChan:
			log.Println("[BalanceRefresher] Stopping balance refresh job")
			return
		}
	}
}

func (br *BalanceRefresher) Stop() {
	br.stopOnce.Do(func() { close(br.stopChan) })
}

// Done is closed once the loop has exited
func (br *BalanceRefresher) Done() <-chan struct{} {
	return br.done
}

func (br *BalanceRefresher) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), br.timeout)
	defer cancel()

	refreshed, failed := br.source.RefreshBalances(ctx)
	if failed > 0 {
		log.Printf("[BalanceRefresher] Refreshed %d balances, %d reads failed", refreshed, failed)
	}
}
