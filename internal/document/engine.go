package document

import (
	"context"
	"fmt"

	"gobengali/internal/apply"
	"gobengali/internal/text"
)

// Accept replaces the anchored text of correction id with choice, removes
// the correction, charges one accept and raises the sync flag.
func (d *Document) Accept(ctx context.Context, id, choice string) error {
	d.mu.Lock()
	c, ok := d.set.Get(id)
	if !ok {
		d.mu.Unlock()
		d.log.Debug("accept of unknown correction ignored", "id", id)
		return fmt.Errorf("accept %s: %w", id, ErrStaleReference)
	}
	if d.quota != nil && !d.quota.CanAccept() {
		d.mu.Unlock()
		d.log.Info("accept blocked by quota", "id", id)
		return fmt.Errorf("accept %s: %w", id, ErrLimitReached)
	}

	old := d.buf
	d.buf = apply.Single(old, c, choice)
	d.stats = text.Measure(d.buf)
	d.set.Remove(id)
	if d.active == id {
		d.active = ""
	}
	if d.reoffset && !d.set.Empty() {
		kept, dropped := apply.Reoffset(old, d.buf, d.set.List())
		d.set.Replace(kept)
		for _, c := range dropped {
			d.log.Debug("correction dropped after accept", "id", c.ID)
		}
	}
	d.mu.Unlock()

	if d.quota != nil {
		d.quota.RecordAccepts(ctx, 1)
	}
	d.flag.Set()
	return nil
}

// AcceptPrimary accepts correction id with its first suggestion.
func (d *Document) AcceptPrimary(ctx context.Context, id string) error {
	c, ok := d.Correction(id)
	if !ok {
		d.log.Debug("accept of unknown correction ignored", "id", id)
		return fmt.Errorf("accept %s: %w", id, ErrStaleReference)
	}
	choice, ok := c.Primary()
	if !ok {
		return fmt.Errorf("accept %s: no suggestions", id)
	}
	return d.Accept(ctx, id, choice)
}

// BulkResult summarizes an AcceptAll.
type BulkResult struct {
	Resolved int
	Skipped  int
	Counted  int
}

// AcceptAll applies the primary suggestion of every pending correction,
// highest offset first, then clears the set. When the pending count exceeds
// the remaining allowance, confirm decides whether to go ahead; a nil
// confirm declines.
func (d *Document) AcceptAll(ctx context.Context, confirm Confirm) (BulkResult, error) {
	d.mu.Lock()
	pending := d.set.Len()
	if pending == 0 {
		d.mu.Unlock()
		return BulkResult{}, nil
	}

	if d.quota != nil {
		remaining := d.quota.RemainingAccepts()
		if remaining == 0 {
			d.mu.Unlock()
			d.log.Info("bulk accept blocked by quota", "pending", pending)
			return BulkResult{}, fmt.Errorf("accept all: %w", ErrLimitReached)
		}
		if remaining > 0 && pending > remaining {
			// confirm may block on the user, so it runs unlocked.
			d.mu.Unlock()
			if confirm == nil || !confirm(pending, remaining) {
				return BulkResult{}, fmt.Errorf("accept all: %w", ErrDeclined)
			}
			d.mu.Lock()
		}
	}

	cs := d.set.List()
	var resolved []string
	d.buf, resolved = apply.All(d.buf, cs)
	d.stats = text.Measure(d.buf)
	d.set.Clear()
	d.active = ""
	d.mu.Unlock()

	res := BulkResult{Resolved: len(resolved), Skipped: len(cs) - len(resolved)}
	if d.quota != nil {
		res.Counted = d.quota.RecordAccepts(ctx, len(resolved))
	}
	d.log.Info("bulk accept applied", "resolved", res.Resolved, "skipped", res.Skipped)
	d.flag.Set()
	return res, nil
}

// Reject discards correction id without touching the buffer or the quota.
func (d *Document) Reject(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.set.Remove(id) {
		d.log.Debug("reject of unknown correction ignored", "id", id)
		return fmt.Errorf("reject %s: %w", id, ErrStaleReference)
	}
	if d.active == id {
		d.active = ""
	}
	return nil
}

// RejectAll discards every pending correction.
func (d *Document) RejectAll() int {
	return d.ClearCorrections()
}
