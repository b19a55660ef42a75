// Package viewsync coordinates programmatic writes to the editor view with
// the change events those writes echo back.
//
// Writers set the Flag after mutating the buffer. A single consumer observes
// PendingSync, starts the Cooldown, pushes the buffer into the view and then
// clears the Flag. Change events that arrive while the Cooldown is active
// must not trigger analysis.
package viewsync

import (
	"sync"
	"time"

	"gobengali/internal/clock"
)

// State is the Sync Flag state.
type State int

const (
	Idle State = iota
	PendingSync
)

func (s State) String() string {
	if s == PendingSync {
		return "pending_sync"
	}
	return "idle"
}

// Flag signals that the buffer changed programmatically and the view must be
// brought up to date. Setting an already pending flag is a no-op.
type Flag struct {
	mu     sync.Mutex
	state  State
	notify func()
}

// NewFlag returns an idle flag. notify, if non-nil, is called outside the
// lock each time the flag goes from Idle to PendingSync.
func NewFlag(notify func()) *Flag {
	return &Flag{notify: notify}
}

// Set marks the flag pending.
func (f *Flag) Set() {
	f.mu.Lock()
	was := f.state
	f.state = PendingSync
	notify := f.notify
	f.mu.Unlock()

	if was == Idle && notify != nil {
		notify()
	}
}

// Pending reports whether a sync is outstanding.
func (f *Flag) Pending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state == PendingSync
}

// State returns the current state.
func (f *Flag) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Clear returns the flag to Idle. Only the sync consumer calls it.
func (f *Flag) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = Idle
}

// DefaultCooldown is how long view change events are ignored after a
// programmatic write.
const DefaultCooldown = 3 * time.Second

// Cooldown is a restartable suppression window.
type Cooldown struct {
	clock  clock.Clock
	window time.Duration

	mu    sync.Mutex
	until time.Time
	timer clock.Timer
}

// NewCooldown creates a cooldown of the given window.
func NewCooldown(c clock.Clock, window time.Duration) *Cooldown {
	if window <= 0 {
		window = DefaultCooldown
	}
	return &Cooldown{clock: clock.Or(c), window: window}
}

// Start opens (or extends) the window from now. onEnd, if non-nil, runs once
// when the window closes without having been restarted.
func (c *Cooldown) Start(onEnd func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.until = c.clock.Now().Add(c.window)
	var t clock.Timer
	t = c.clock.AfterFunc(c.window, func() {
		c.mu.Lock()
		current := c.timer == t
		if current {
			c.timer = nil
		}
		c.mu.Unlock()
		if current && onEnd != nil {
			onEnd()
		}
	})
	c.timer = t
}

// Active reports whether change events are currently suppressed.
func (c *Cooldown) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clock.Now().Before(c.until)
}

// Stop closes the window immediately without running onEnd.
func (c *Cooldown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.until = time.Time{}
}
