package manager

import "time"

// Ticker paces the manager loop: EndTick sleeps out the remainder of the
// minimum tick duration and maintains a ticks-per-second measurement over a
// rolling one-second window.
type Ticker struct {
	minTickTime time.Duration
	tickStart   time.Time
	windowStart time.Time
	tickCount   int
	tps         int
}

func NewTicker(minTickTime time.Duration) *Ticker {
	now := time.Now()
	return &Ticker{
		minTickTime: minTickTime,
		tickStart:   now,
		windowStart: now,
	}
}

func (t *Ticker) StartTick() {
	t.tickStart = time.Now()
}

func (t *Ticker) EndTick() {
	if elapsed := time.Since(t.tickStart); elapsed < t.minTickTime {
		time.Sleep(t.minTickTime - elapsed)
	}

	t.tickCount++
	if time.Since(t.windowStart) > time.Second {
		t.tps = t.tickCount
		t.tickCount = 0
		t.windowStart = time.Now()
	}
}

// TPS reports the tick count of the last completed window. It is stale
// between window boundaries: the last full second's throughput, not an
// instantaneous estimate.
func (t *Ticker) TPS() int { return t.tps }

// SetMinTickTime changes the pacing floor for subsequent ticks only.
func (t *Ticker) SetMinTickTime(d time.Duration) { t.minTickTime = d }
