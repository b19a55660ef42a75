// Package analysis decides when the buffer is worth sending to the analysis
// service and turns replies into corrections.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gobengali/internal/clock"
	"gobengali/internal/correction"
	"gobengali/internal/service"
	"gobengali/internal/text"
)

// Analyzer is the part of the collaborator client the trigger needs.
type Analyzer interface {
	Analyze(ctx context.Context, req service.AnalyzeRequest) (*service.AnalyzeResponse, error)
}

// SkipReason explains why a buffer was not sent for analysis.
type SkipReason string

const (
	SkipNone     SkipReason = ""
	SkipEmpty    SkipReason = "empty"
	SkipShort    SkipReason = "too_short"
	SkipNoScript SkipReason = "no_target_script"
	// SkipCooldown is reported by callers that hold analysis back while the
	// view is being synchronized.
	SkipCooldown SkipReason = "cooldown"
)

// Outcome classifies a finished analysis.
type Outcome int

const (
	OutcomeIssues Outcome = iota
	OutcomeClean
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIssues:
		return "issues"
	case OutcomeClean:
		return "clean"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// Result is delivered for every analysis that completes while still current.
// Callers must confirm Generation with Trigger.IsCurrent before applying it,
// since the buffer may have changed between delivery and application.
type Result struct {
	Generation uint64
	Text       string

	// Translation is the translated text when the analysis was a Translate;
	// Corrections are then anchored in it rather than in Text.
	Translation string
	Outcome     Outcome
	Corrections []correction.Correction
	Response    *service.AnalyzeResponse
	Err         error
	Latency     time.Duration
}

// Options configure a Trigger.
type Options struct {
	Debounce      time.Duration
	MinLength     int
	Script        text.Script
	Lang          string
	CheckGrammar  bool
	CheckSpelling bool
	Clock         clock.Clock
	Logger        *slog.Logger
}

// DefaultOptions match the production editor.
func DefaultOptions() Options {
	return Options{
		Debounce:      1500 * time.Millisecond,
		MinLength:     5,
		Script:        text.Bengali,
		Lang:          "bn",
		CheckGrammar:  true,
		CheckSpelling: true,
	}
}

// Trigger debounces buffer changes into analysis requests. Only the latest
// scheduled text is ever analyzed, and only its result is delivered.
type Trigger struct {
	analyzer Analyzer
	opts     Options
	deb      *debouncer
	log      *slog.Logger
	onResult func(Result)
}

// NewTrigger creates a trigger that reports to onResult from a background
// goroutine.
func NewTrigger(a Analyzer, opts Options, onResult func(Result)) *Trigger {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Script.Table == nil {
		opts.Script = text.Bengali
	}
	return &Trigger{
		analyzer: a,
		opts:     opts,
		deb:      newDebouncer(opts.Clock, opts.Debounce),
		log:      opts.Logger.With("component", "analysis"),
		onResult: onResult,
	}
}

// Skip returns why s would not be analyzed, or SkipNone.
func (t *Trigger) Skip(s string) SkipReason {
	trimmed := strings.TrimSpace(s)
	switch {
	case trimmed == "":
		return SkipEmpty
	case text.Len(trimmed) < t.opts.MinLength:
		return SkipShort
	case !t.opts.Script.Contains(s):
		return SkipNoScript
	}
	return SkipNone
}

// Schedule supersedes any pending or in-flight analysis and, unless s is
// skipped, arms the debounce timer for it. Skips are reported synchronously
// through the return value and never reach onResult.
func (t *Trigger) Schedule(s string) SkipReason {
	if reason := t.Skip(s); reason != SkipNone {
		t.deb.supersede()
		return reason
	}
	t.deb.reset(t.job(s, t.opts.Lang))
	return SkipNone
}

// Now analyzes s immediately, bypassing the debounce.
func (t *Trigger) Now(s string) SkipReason {
	if reason := t.Skip(s); reason != SkipNone {
		t.deb.supersede()
		return reason
	}
	t.deb.now(t.job(s, t.opts.Lang))
	return SkipNone
}

// Translate analyzes s without a language hint so the service returns a
// translation alongside corrections against it. Skip rules other than the
// empty buffer do not apply.
func (t *Trigger) Translate(s string) SkipReason {
	if strings.TrimSpace(s) == "" {
		t.deb.supersede()
		return SkipEmpty
	}
	t.deb.now(t.job(s, ""))
	return SkipNone
}

// Cancel drops any pending or in-flight analysis.
func (t *Trigger) Cancel() { t.deb.supersede() }

// IsCurrent reports whether gen is still the latest generation.
func (t *Trigger) IsCurrent(gen uint64) bool { return t.deb.current(gen) }

// Pending reports whether a debounce timer is armed.
func (t *Trigger) Pending() bool { return t.deb.pending() }

// Wait blocks until every started analysis has returned.
func (t *Trigger) Wait() { t.deb.wait() }

// Close cancels outstanding work and waits for it.
func (t *Trigger) Close() { t.deb.close() }

func (t *Trigger) job(s, lang string) func(context.Context, uint64) {
	return func(ctx context.Context, gen uint64) {
		start := time.Now()
		resp, err := t.analyzer.Analyze(ctx, service.AnalyzeRequest{
			Text:          s,
			Lang:          lang,
			CheckGrammar:  t.opts.CheckGrammar,
			CheckSpelling: t.opts.CheckSpelling,
		})
		if ctx.Err() != nil || !t.deb.current(gen) {
			t.log.Debug("stale analysis dropped", "generation", gen)
			return
		}

		res := Result{Generation: gen, Text: s, Response: resp, Latency: time.Since(start)}
		target := s
		if err == nil && lang == "" && resp != nil && resp.TranslatedText != "" {
			target = resp.TranslatedText
			res.Translation = target
		}
		if err == nil {
			res.Corrections, err = FromResponse(target, resp)
		}
		switch {
		case err != nil:
			res.Outcome = OutcomeFailed
			res.Err = err
			t.log.Warn("analysis failed", "generation", gen, "error", err)
		case len(res.Corrections) == 0:
			res.Outcome = OutcomeClean
		default:
			res.Outcome = OutcomeIssues
		}
		t.log.Debug("analysis finished",
			"generation", gen,
			"outcome", res.Outcome.String(),
			"corrections", len(res.Corrections),
			"latency", res.Latency)

		if t.onResult != nil {
			t.onResult(res)
		}
	}
}

// ErrInvalidIssue marks a reply item that cannot be anchored in the text.
var ErrInvalidIssue = errors.New("invalid issue")

// FromResponse converts reply items into corrections with fresh identities.
// A single invalid item discards the whole reply.
func FromResponse(s string, resp *service.AnalyzeResponse) ([]correction.Correction, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: empty reply", service.ErrMalformed)
	}
	n := text.Len(s)
	out := make([]correction.Correction, 0, len(resp.Errors))
	for i, is := range resp.Errors {
		kind, err := correction.ParseKind(is.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: %w: item %d: %v", service.ErrMalformed, ErrInvalidIssue, i, err)
		}
		if is.Offset < 0 || is.Length < 0 || is.Offset+is.Length > n {
			return nil, fmt.Errorf("%w: %w: item %d: range [%d,%d) outside text of %d",
				service.ErrMalformed, ErrInvalidIssue, i, is.Offset, is.Offset+is.Length, n)
		}
		out = append(out, correction.Correction{
			ID:           correction.NewID(),
			Kind:         kind,
			Anchor:       correction.Anchor{Offset: is.Offset, Length: is.Length},
			OriginalText: is.OriginalText,
			Suggestions:  append([]string(nil), is.Suggestions...),
			Message:      is.Message,
			Reason:       is.Reason,
			Confidence:   is.Confidence,
		})
	}
	return out, nil
}
