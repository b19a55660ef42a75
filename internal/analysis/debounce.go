package analysis

import (
	"context"
	"sync"
	"time"

	"gobengali/internal/clock"
)

// debouncer runs at most one job per quiet period. Every call to reset or
// cancel starts a new generation: pending timers of older generations never
// fire and their in-flight contexts are cancelled.
type debouncer struct {
	clock clock.Clock
	delay time.Duration

	mu     sync.Mutex
	gen    uint64
	timer  clock.Timer
	cancel context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

func newDebouncer(c clock.Clock, delay time.Duration) *debouncer {
	return &debouncer{clock: clock.Or(c), delay: delay}
}

// reset supersedes everything pending and schedules job after the quiet
// period.
func (d *debouncer) reset(job func(ctx context.Context, gen uint64)) uint64 {
	return d.schedule(d.delay, job)
}

// now supersedes everything pending and starts job immediately.
func (d *debouncer) now(job func(ctx context.Context, gen uint64)) uint64 {
	return d.schedule(0, job)
}

func (d *debouncer) schedule(delay time.Duration, job func(ctx context.Context, gen uint64)) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.supersedeLocked()
	if d.closed {
		return d.gen
	}
	gen := d.gen
	if delay <= 0 {
		d.startLocked(gen, job)
		return gen
	}
	d.timer = d.clock.AfterFunc(delay, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if gen != d.gen || d.closed {
			return
		}
		d.timer = nil
		d.startLocked(gen, job)
	})
	return gen
}

func (d *debouncer) startLocked(gen uint64, job func(context.Context, uint64)) {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancel()
		job(ctx, gen)
	}()
}

// supersede invalidates the pending timer and any in-flight job.
func (d *debouncer) supersede() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.supersedeLocked()
	return d.gen
}

func (d *debouncer) supersedeLocked() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

func (d *debouncer) current(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return gen == d.gen && !d.closed
}

func (d *debouncer) pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *debouncer) wait() { d.wg.Wait() }

func (d *debouncer) close() {
	d.mu.Lock()
	d.supersedeLocked()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
