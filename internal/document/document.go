// Package document holds the editing session state: the buffer, the pending
// corrections, the sync flag and the quota tracker. Every mutation goes
// through a Document method.
package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gobengali/internal/correction"
	"gobengali/internal/quota"
	"gobengali/internal/text"
	"gobengali/internal/viewsync"
)

var (
	// ErrLimitReached is returned when the daily accept allowance is used up.
	// Nothing is mutated.
	ErrLimitReached = errors.New("daily accept limit reached")

	// ErrStaleReference is returned for IDs that are no longer pending.
	ErrStaleReference = errors.New("correction no longer pending")

	// ErrDeclined is returned when a bulk accept needing confirmation was
	// not confirmed.
	ErrDeclined = errors.New("bulk accept declined")
)

// Confirm is asked before a bulk accept that exceeds the remaining
// allowance. Returning false aborts the operation.
type Confirm func(pending, remaining int) bool

// Options configure a Document.
type Options struct {
	Quota *quota.Tracker
	// Reoffset remaps the remaining anchors after a single accept instead of
	// leaving them pointing into the previous buffer.
	Reoffset bool
	// OnSync is called whenever the sync flag goes pending.
	OnSync func()
	Logger *slog.Logger
}

// Document is safe for concurrent use. Callbacks never run with its lock
// held.
type Document struct {
	mu       sync.Mutex
	buf      string
	stats    text.Stats
	set      *correction.Set
	active   string
	lang     string
	quota    *quota.Tracker
	reoffset bool
	flag     *viewsync.Flag
	log      *slog.Logger
}

// New creates a document holding initial.
func New(initial string, opts Options) *Document {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Document{
		buf:      initial,
		stats:    text.Measure(initial),
		set:      correction.NewSet(),
		quota:    opts.Quota,
		reoffset: opts.Reoffset,
		flag:     viewsync.NewFlag(opts.OnSync),
		log:      opts.Logger.With("component", "document"),
	}
}

// Text returns the buffer.
func (d *Document) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf
}

// Stats returns word and character counts of the buffer.
func (d *Document) Stats() text.Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Flag exposes the sync flag to its consumer.
func (d *Document) Flag() *viewsync.Flag { return d.flag }

// Quota returns the tracker, which may be nil for unlimited sessions.
func (d *Document) Quota() *quota.Tracker { return d.quota }

// SetText records a user edit. Word growth is charged to the quota; the
// pending corrections are left for the caller to invalidate.
func (d *Document) SetText(ctx context.Context, s string) bool {
	d.mu.Lock()
	if s == d.buf {
		d.mu.Unlock()
		return false
	}
	prev := d.stats
	d.buf = s
	d.stats = text.Measure(s)
	delta := d.stats.Words - prev.Words
	d.mu.Unlock()

	if d.quota != nil {
		d.quota.RecordWords(ctx, delta)
	}
	return true
}

// ReplaceText performs a programmatic rewrite of the whole buffer, e.g. with
// a translation, and raises the sync flag.
func (d *Document) ReplaceText(s string) {
	d.mu.Lock()
	d.buf = s
	d.stats = text.Measure(s)
	d.mu.Unlock()
	d.flag.Set()
}

// Corrections returns the pending corrections in insertion order.
func (d *Document) Corrections() []correction.Correction {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.set.List()
}

// Pending returns how many corrections are pending.
func (d *Document) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.set.Len()
}

// Correction looks a pending correction up.
func (d *Document) Correction(id string) (correction.Correction, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.set.Get(id)
}

// ReplaceCorrections swaps the pending set for the result of an analysis.
func (d *Document) ReplaceCorrections(cs []correction.Correction) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.set.Replace(cs)
	if _, ok := d.set.Get(d.active); !ok {
		d.active = ""
	}
}

// ClearCorrections drops every pending correction and returns how many
// there were.
func (d *Document) ClearCorrections() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active = ""
	return d.set.Clear()
}

// SetActive marks the correction the user has opened.
func (d *Document) SetActive(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id == "" {
		d.active = ""
		return nil
	}
	if _, ok := d.set.Get(id); !ok {
		return fmt.Errorf("activate %s: %w", id, ErrStaleReference)
	}
	d.active = id
	return nil
}

// Active returns the opened correction, if any.
func (d *Document) Active() (correction.Correction, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active == "" {
		return correction.Correction{}, false
	}
	return d.set.Get(d.active)
}

// SetLanguage records the detected source language.
func (d *Document) SetLanguage(lang string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lang = lang
}

// Language returns the detected source language.
func (d *Document) Language() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lang
}
