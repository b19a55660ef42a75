// Package controller attaches a document to an editor view. It turns view
// change events into analysis requests, applies analysis results, pushes
// programmatic edits back into the view and drives transliteration.
//
// Editor calls are never made while the controller lock is held, so editors
// may report changes synchronously from SetContent or ReplaceRange.
package controller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"gobengali/internal/analysis"
	"gobengali/internal/clock"
	"gobengali/internal/correction"
	"gobengali/internal/document"
	"gobengali/internal/quota"
	"gobengali/internal/translit"
	"gobengali/internal/view"
	"gobengali/internal/viewsync"
)

// Collaborator is the remote service as seen by the controller.
type Collaborator interface {
	analysis.Analyzer
	analysis.LanguageDetector
	translit.Transliterator
}

// EventKind identifies what changed.
type EventKind int

const (
	// EventCorrections means the pending corrections were replaced or
	// cleared.
	EventCorrections EventKind = iota
	// EventSynced means the buffer was pushed into the view.
	EventSynced
	// EventSuggestions means the transliteration menu opened or closed.
	EventSuggestions
	// EventLanguage means a source language was detected.
	EventLanguage
	// EventAnalysisFailed means the service could not analyze the buffer.
	EventAnalysisFailed
	// EventSyncFailed means the view rejected a push; the sync flag stays
	// pending.
	EventSyncFailed
)

func (k EventKind) String() string {
	switch k {
	case EventCorrections:
		return "corrections"
	case EventSynced:
		return "synced"
	case EventSuggestions:
		return "suggestions"
	case EventLanguage:
		return "language"
	case EventAnalysisFailed:
		return "analysis_failed"
	case EventSyncFailed:
		return "sync_failed"
	}
	return "unknown"
}

// Event is delivered to Options.OnEvent outside the controller lock.
type Event struct {
	Kind        EventKind
	Corrections []correction.Correction
	Suggestions translit.Result
	Language    string
	Err         error
}

// Options configure a Controller.
type Options struct {
	Analysis analysis.Options

	// Cooldown is how long view changes are ignored after a push.
	Cooldown time.Duration
	// Reoffset remaps remaining anchors after a single accept.
	Reoffset bool
	// ReanalyzeAfterCooldown schedules an analysis when a cooldown ends
	// even if nothing was typed during it.
	ReanalyzeAfterCooldown bool

	DetectLanguage  bool
	DetectDebounce  time.Duration
	DetectMinLength int

	Transliterate bool
	Lookback      int
	Translit      translit.Options

	Quota    *quota.Tracker
	Clock    clock.Clock
	Logger   *slog.Logger
	Recorder Recorder

	OnEvent func(Event)
	// OnMarkup receives the buffer rendered with correction spans, for views
	// that do not implement view.Highlighter.
	OnMarkup func(html string)
}

// Controller is safe for concurrent use.
type Controller struct {
	opts     Options
	ed       view.Editor
	doc      *document.Document
	trigger  *analysis.Trigger
	detector *analysis.Detector
	cooldown *viewsync.Cooldown
	lookup   *translit.Lookup
	rec      Recorder
	log      *slog.Logger

	// pushMu serializes pushes into the view. Lock order: pushMu, mu.
	pushMu sync.Mutex

	mu        sync.Mutex
	closed    bool
	dirty     bool
	menu      translit.Menu
	tlGen     uint64
	tlCancel  context.CancelFunc
	queued    []Event
	highlight bool

	tlWG     sync.WaitGroup
	syncCh   chan struct{}
	done     chan struct{}
	loopDone chan struct{}
	unsub    func()
}

// New attaches a document holding the editor's current text to ed.
func New(ed view.Editor, svc Collaborator, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	opts.Clock = clock.Or(opts.Clock)
	if opts.Analysis.Clock == nil {
		opts.Analysis.Clock = opts.Clock
	}
	if opts.Analysis.Logger == nil {
		opts.Analysis.Logger = opts.Logger
	}
	if opts.Translit.Logger == nil {
		opts.Translit.Logger = opts.Logger
	}
	if opts.Lookback <= 0 {
		opts.Lookback = translit.DefaultLookback
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}

	c := &Controller{
		opts:     opts,
		ed:       ed,
		cooldown: viewsync.NewCooldown(opts.Clock, opts.Cooldown),
		rec:      opts.Recorder,
		log:      opts.Logger.With("component", "controller"),
		syncCh:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	c.doc = document.New(ed.PlainText(), document.Options{
		Quota:    opts.Quota,
		Reoffset: opts.Reoffset,
		OnSync:   c.signalSync,
		Logger:   opts.Logger,
	})
	c.trigger = analysis.NewTrigger(svc, opts.Analysis, c.onResult)
	if opts.DetectLanguage {
		c.detector = analysis.NewDetector(svc, opts.Clock, opts.DetectDebounce, opts.DetectMinLength, opts.Logger, c.onDetect)
	}
	if opts.Transliterate {
		c.lookup = translit.NewLookup(svc, opts.Translit)
	}

	go c.syncLoop()
	c.unsub = ed.OnChange(c.onChange)
	return c
}

// Document returns the attached document. Mutations should go through the
// controller so the view stays in sync.
func (c *Controller) Document() *document.Document { return c.doc }

// Close detaches from the editor and waits for background work.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.tlCancel != nil {
		c.tlCancel()
	}
	c.mu.Unlock()

	c.unsub()
	close(c.done)
	<-c.loopDone
	c.cooldown.Stop()
	c.trigger.Close()
	if c.detector != nil {
		c.detector.Close()
	}
	c.tlWG.Wait()
}

// Wait blocks until started analyses, detections and lookups have finished.
func (c *Controller) Wait() {
	c.trigger.Wait()
	if c.detector != nil {
		c.detector.Wait()
	}
	c.tlWG.Wait()
}

// CoolingDown reports whether view changes are currently being ignored.
func (c *Controller) CoolingDown() bool { return c.cooldown.Active() }

// AnalysisPending reports whether a debounced analysis is armed.
func (c *Controller) AnalysisPending() bool { return c.trigger.Pending() }

func (c *Controller) onChange(s string) {
	ctx := context.Background()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	if c.cooldown.Active() {
		// While a push is pending the buffer is ahead of the view, so the
		// view's text is stale and must not overwrite it.
		if !c.doc.Flag().Pending() && c.doc.SetText(ctx, s) {
			c.dirty = true
		}
		c.rec.ChangeSuppressed()
		c.log.Debug("view change during cooldown ignored", "dirty", c.dirty)
		c.mu.Unlock()
		return
	}

	if !c.doc.SetText(ctx, s) {
		c.mu.Unlock()
		return
	}
	if c.doc.ClearCorrections() > 0 {
		c.changedCorrectionsLocked(nil)
	}
	c.scheduleLocked(s)
	if c.detector != nil {
		c.detector.Schedule(s)
	}
	if c.lookup != nil {
		c.suggestLocked(s)
	}
	c.unlockAndNotify()
}

func (c *Controller) scheduleLocked(s string) {
	if reason := c.trigger.Schedule(s); reason != analysis.SkipNone {
		c.rec.AnalysisSkipped(string(reason))
		c.log.Debug("analysis skipped", "reason", string(reason))
	}
}

// AnalyzeNow analyzes the buffer without waiting for the debounce. Skip
// conditions still apply, and nothing happens during a cooldown.
func (c *Controller) AnalyzeNow() analysis.SkipReason {
	c.mu.Lock()
	defer c.unlockAndNotify()
	if c.cooldown.Active() {
		return analysis.SkipCooldown
	}
	reason := c.trigger.Now(c.doc.Text())
	if reason != analysis.SkipNone {
		c.rec.AnalysisSkipped(string(reason))
		if c.doc.ClearCorrections() > 0 {
			c.changedCorrectionsLocked(nil)
		}
	}
	return reason
}

// Translate asks the service to translate the buffer. The translation
// replaces the buffer when it arrives and is pushed into the view.
func (c *Controller) Translate() analysis.SkipReason {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cooldown.Active() {
		return analysis.SkipCooldown
	}
	return c.trigger.Translate(c.doc.Text())
}

func (c *Controller) onResult(r analysis.Result) {
	c.mu.Lock()
	if c.closed || !c.trigger.IsCurrent(r.Generation) {
		c.mu.Unlock()
		c.log.Debug("analysis result superseded", "generation", r.Generation)
		return
	}
	c.rec.AnalysisFinished(r.Outcome.String(), r.Latency)

	translated := false
	switch r.Outcome {
	case analysis.OutcomeFailed:
		c.doc.ClearCorrections()
		c.queued = append(c.queued, Event{Kind: EventAnalysisFailed, Err: r.Err})
		c.changedCorrectionsLocked(nil)
	default:
		if r.Translation != "" && r.Translation != c.doc.Text() {
			c.doc.ReplaceText(r.Translation)
			translated = true
			c.cooldown.Start(c.cooldownEnded)
		}
		if r.Outcome == analysis.OutcomeIssues {
			c.doc.ReplaceCorrections(r.Corrections)
		} else {
			c.doc.ClearCorrections()
		}
		c.changedCorrectionsLocked(c.doc.Corrections())
	}
	c.unlockAndNotify()

	if translated {
		c.sync()
	}
}

func (c *Controller) onDetect(d analysis.Detection) {
	c.mu.Lock()
	if c.closed || !c.detector.IsCurrent(d.Generation) {
		c.mu.Unlock()
		return
	}
	c.doc.SetLanguage(d.Language)
	c.log.Debug("language detected", "language", d.Language, "confidence", d.Confidence, "local", d.Local)
	c.queued = append(c.queued, Event{Kind: EventLanguage, Language: d.Language})
	c.unlockAndNotify()
}

// Accept applies choice for correction id.
func (c *Controller) Accept(ctx context.Context, id, choice string) error {
	c.pushMu.Lock()
	defer c.pushMu.Unlock()
	c.mu.Lock()
	err := c.doc.Accept(ctx, id, choice)
	c.afterMutationLocked(err, 1)
	c.unlockAndNotify()
	if err == nil {
		c.pushLocked()
	}
	return err
}

// AcceptPrimary applies the first suggestion of correction id.
func (c *Controller) AcceptPrimary(ctx context.Context, id string) error {
	c.pushMu.Lock()
	defer c.pushMu.Unlock()
	c.mu.Lock()
	err := c.doc.AcceptPrimary(ctx, id)
	c.afterMutationLocked(err, 1)
	c.unlockAndNotify()
	if err == nil {
		c.pushLocked()
	}
	return err
}

// AcceptAll applies every pending correction. confirm runs with the
// controller locked, so view changes wait until it returns.
//
// The accept methods hold the push lock until the view has the new buffer;
// OnEvent handlers must not call them.
func (c *Controller) AcceptAll(ctx context.Context, confirm document.Confirm) (document.BulkResult, error) {
	c.pushMu.Lock()
	defer c.pushMu.Unlock()
	c.mu.Lock()
	res, err := c.doc.AcceptAll(ctx, confirm)
	if err == nil && res.Resolved+res.Skipped == 0 {
		c.mu.Unlock()
		return res, nil
	}
	c.afterMutationLocked(err, res.Resolved)
	c.unlockAndNotify()
	if err == nil {
		c.pushLocked()
	}
	return res, err
}

func (c *Controller) afterMutationLocked(err error, accepted int) {
	switch {
	case err == nil:
		c.rec.Accepted(accepted)
		if c.doc.Flag().Pending() {
			c.cooldown.Start(c.cooldownEnded)
		}
		// The view is about to be rewritten; a pending analysis would run
		// against text that is no longer there.
		c.trigger.Cancel()
		c.changedCorrectionsLocked(c.doc.Corrections())
	case errors.Is(err, document.ErrLimitReached):
		c.rec.QuotaDenied()
	case errors.Is(err, document.ErrStaleReference):
		c.log.Debug("stale correction reference", "error", err)
	}
}

// Open makes correction id the active one. An empty id closes it.
func (c *Controller) Open(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc.SetActive(id)
}

// Active returns the opened correction, if it is still pending.
func (c *Controller) Active() (correction.Correction, bool) {
	return c.doc.Active()
}

// Reject discards correction id.
func (c *Controller) Reject(id string) error {
	c.mu.Lock()
	err := c.doc.Reject(id)
	if err == nil {
		c.rec.Rejected(1)
		c.changedCorrectionsLocked(c.doc.Corrections())
	}
	c.unlockAndNotify()
	return err
}

// RejectAll discards every pending correction.
func (c *Controller) RejectAll() int {
	c.mu.Lock()
	n := c.doc.RejectAll()
	if n > 0 {
		c.rec.Rejected(n)
		c.changedCorrectionsLocked(nil)
	}
	c.unlockAndNotify()
	return n
}

func (c *Controller) changedCorrectionsLocked(cs []correction.Correction) {
	c.highlight = true
	c.queued = append(c.queued, Event{Kind: EventCorrections, Corrections: cs})
}

// unlockAndNotify releases the lock, then repaints highlights and delivers
// queued events.
func (c *Controller) unlockAndNotify() {
	events := c.queued
	c.queued = nil
	var (
		paint bool
		cs    []correction.Correction
		buf   string
	)
	if c.highlight {
		paint, c.highlight = true, false
		cs, buf = c.doc.Corrections(), c.doc.Text()
	}
	c.mu.Unlock()

	if paint {
		if hl, ok := c.ed.(view.Highlighter); ok {
			hl.Highlight(cs)
		}
		if c.opts.OnMarkup != nil {
			c.opts.OnMarkup(view.Markup(buf, cs))
		}
	}
	if c.opts.OnEvent != nil {
		for _, ev := range events {
			c.opts.OnEvent(ev)
		}
	}
}
