package workflow

import (
	"sync"
	"time"
)

const (
	DefaultProgressInterval = 500 * time.Millisecond
	DefaultProgressHold     = 800 * time.Millisecond

	progressCeiling = 95
)

type progressStage struct {
	threshold int
	label     string
}

var progressStages = []progressStage{
	{0, "Scanning card images..."},
	{20, "Analyzing card details..."},
	{40, "AI processing ownership proof..."},
	{60, "Verifying authenticity..."},
	{80, "Cross-referencing database..."},
	{95, "Finalizing verification..."},
}

// Progress is a cosmetic percentage driven by its own ticker. It creeps toward
// 95 and only reaches 100 through Finish. Nothing reads it to make decisions.
type Progress struct {
	mu    sync.RWMutex
	value int

	hold     time.Duration
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// StartProgress launches the ticking goroutine
func StartProgress(interval, hold time.Duration) *Progress {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	p := &Progress{
		hold: hold,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go p.run(interval)
	return p
}

func (p *Progress) run(interval time.Duration) {
	defer close(p.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.advance()
		}
	}
}

func (p *Progress) advance() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.value >= progressCeiling {
		return
	}
	step := (progressCeiling - p.value) / 8
	if step < 1 {
		step = 1
	}
	p.value += step
}

// Finish stops the ticker, forces 100 and holds it before returning
func (p *Progress) Finish() {
	p.halt()
	p.mu.Lock()
	p.value = 100
	p.mu.Unlock()
	if p.hold > 0 {
		time.Sleep(p.hold)
	}
}

// Abandon stops the ticker without completing
func (p *Progress) Abandon() {
	p.halt()
}

func (p *Progress) halt() {
	p.stopOnce.Do(func() { close(p.stop) })
	<-p.done
}

func (p *Progress) Value() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// Stage returns the label for the current percentage
func (p *Progress) Stage() string {
	v := p.Value()
	label := progressStages[0].label
	for _, s := range progressStages {
		if v >= s.threshold {
			label = s.label
		}
	}
	return label
}
