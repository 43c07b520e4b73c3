package safety

import (
	"sync"
	"time"
)

// DefaultTickInterval is the wall-clock period between two ticks of a running countdown.
const DefaultTickInterval = time.Second

// CountdownSnapshot is a point-in-time view of a countdown.
type CountdownSnapshot struct {
	RemainingSeconds int     `json:"remainingSeconds"`
	TotalSeconds     int     `json:"totalSeconds"`
	IsActive         bool    `json:"isActive"`
	Progress         float64 `json:"progress"` // remaining / total
}

// Countdown is a single-purpose ticking countdown. Every Start opens a new
// session; ticks and callbacks belonging to an older session are discarded,
// so a stopped session can never expire.
type Countdown struct {
	mu sync.Mutex

	interval time.Duration
	onTick   func(session uint64, remaining int)
	onExpire func(session uint64)

	total     int
	remaining int
	active    bool
	session   uint64
	done      chan struct{}
}

type CountdownOption func(*Countdown)

// WithTickInterval sets the ticking period. Zero disables automatic ticking,
// leaving the caller to drive the countdown with Tick.
func WithTickInterval(d time.Duration) CountdownOption {
	return func(c *Countdown) {
		if d < 0 {
			d = 0
		}
		c.interval = d
	}
}

// WithTickHook registers a callback invoked after every accepted tick.
func WithTickHook(fn func(session uint64, remaining int)) CountdownOption {
	return func(c *Countdown) { c.onTick = fn }
}

// WithExpireHook registers the callback invoked once when a session reaches zero.
func WithExpireHook(fn func(session uint64)) CountdownOption {
	return func(c *Countdown) { c.onExpire = fn }
}

func NewCountdown(opts ...CountdownOption) *Countdown {
	c := &Countdown{interval: DefaultTickInterval}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start arms a new session of total seconds, cancelling any running one.
func (c *Countdown) Start(total int) (uint64, error) {
	if total <= 0 {
		return 0, ErrInvalidDuration
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelLocked()
	c.session++
	c.total = total
	c.remaining = total
	c.active = true

	if c.interval > 0 {
		done := make(chan struct{})
		c.done = done
		go c.run(c.session, done)
	}

	return c.session, nil
}

// Tick advances the current session by one second. It returns false once
// the countdown is no longer running.
func (c *Countdown) Tick() bool {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	return c.tick(session)
}

// Stop deactivates the countdown and keeps the remaining seconds.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked()
}

// Reset deactivates the countdown and restores remaining to total.
func (c *Countdown) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked()
	c.remaining = c.total
}

// Session returns the id of the most recent session.
func (c *Countdown) Session() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Countdown) Snapshot() CountdownSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := CountdownSnapshot{
		RemainingSeconds: c.remaining,
		TotalSeconds:     c.total,
		IsActive:         c.active,
	}
	if c.total > 0 {
		snap.Progress = float64(c.remaining) / float64(c.total)
	}
	return snap
}

// cancelLocked invalidates the running session. Bumping the session id makes
// any tick already in flight for it a no-op.
func (c *Countdown) cancelLocked() {
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
	if c.active {
		c.active = false
		c.session++
	}
}

func (c *Countdown) run(session uint64, done <-chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if !c.tick(session) {
				return
			}
		}
	}
}

func (c *Countdown) tick(session uint64) bool {
	c.mu.Lock()
	if session != c.session || !c.active {
		c.mu.Unlock()
		return false
	}

	c.remaining--
	remaining := c.remaining
	expired := remaining <= 0
	if expired {
		c.remaining = 0
		remaining = 0
		c.active = false
		// the session goroutine exits on its own once tick returns false
		c.done = nil
	}
	onTick, onExpire := c.onTick, c.onExpire
	c.mu.Unlock()

	if onTick != nil {
		onTick(session, remaining)
	}
	if expired && onExpire != nil {
		onExpire(session)
	}
	return !expired
}
