package controller

import "gobengali/internal/viewsync"

// signalSync is the sync flag's notify hook. It may run with the controller
// lock held, so it only wakes the sync loop.
func (c *Controller) signalSync() {
	select {
	case c.syncCh <- struct{}{}:
	default:
	}
}

func (c *Controller) syncLoop() {
	defer close(c.loopDone)
	for {
		select {
		case <-c.done:
			return
		case <-c.syncCh:
			c.sync()
		}
	}
}

// sync pushes the buffer into the view while the sync flag is pending. A
// cooldown is opened before each push so the change events the view emits
// for it are not taken for typing. The flag is cleared once the view holds
// the current buffer; a failed push leaves it pending for the next
// mutation to retry.
func (c *Controller) sync() {
	c.pushMu.Lock()
	defer c.pushMu.Unlock()
	c.pushLocked()
}

// pushLocked is sync for callers already holding pushMu.
func (c *Controller) pushLocked() {
	for {
		c.mu.Lock()
		flag := c.doc.Flag()
		if c.closed || flag.State() != viewsync.PendingSync {
			c.mu.Unlock()
			return
		}
		s := c.doc.Text()
		c.cooldown.Start(c.cooldownEnded)
		c.mu.Unlock()

		err := c.ed.SetContent(s, false)
		if err == nil {
			c.ed.FocusEnd()
		}

		c.mu.Lock()
		if err != nil {
			c.log.Error("push to view failed", "error", err)
			c.queued = append(c.queued, Event{Kind: EventSyncFailed, Err: err})
			c.unlockAndNotify()
			return
		}
		if c.doc.Text() != s {
			// Changed again while pushing; go round with the flag still set.
			c.mu.Unlock()
			continue
		}
		flag.Clear()
		c.rec.SyncPushed()
		c.queued = append(c.queued, Event{Kind: EventSynced})
		c.highlight = true
		c.unlockAndNotify()
		return
	}
}

// cooldownEnded re-arms analysis for text typed while changes were being
// ignored.
func (c *Controller) cooldownEnded() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	dirty := c.dirty
	c.dirty = false
	if dirty || c.opts.ReanalyzeAfterCooldown {
		s := c.doc.Text()
		if dirty && c.doc.ClearCorrections() > 0 {
			c.changedCorrectionsLocked(nil)
		}
		c.log.Debug("cooldown ended, analysis re-armed", "dirty", dirty)
		c.scheduleLocked(s)
	}
	c.unlockAndNotify()
}
