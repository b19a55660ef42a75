package controller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gobengali/internal/analysis"
	"gobengali/internal/clock"
	"gobengali/internal/correction"
	"gobengali/internal/document"
	"gobengali/internal/quota"
	"gobengali/internal/service"
	"gobengali/internal/text"
	"gobengali/internal/translit"
	"gobengali/internal/view"
	"gobengali/internal/viewsync"
)

const sample = "আমি তোমাকে তিনশত টাকা দিয়েছিলাম।"

var sampleIssues = []service.Issue{
	{Type: "spelling", Offset: 11, Length: 5, OriginalText: "তিনশত", Suggestions: []string{"তিনশ"}, Message: "spelling"},
	{Type: "grammar", Offset: 17, Length: 4, OriginalText: "টাকা", Suggestions: []string{"টাকাটা"}, Message: "article"},
}

type fakeCollab struct {
	mu       sync.Mutex
	analyze  func(req service.AnalyzeRequest) (*service.AnalyzeResponse, error)
	requests []service.AnalyzeRequest
	translit []service.TransliterateRequest
}

func (f *fakeCollab) Analyze(ctx context.Context, req service.AnalyzeRequest) (*service.AnalyzeResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	fn := f.analyze
	f.mu.Unlock()
	if fn == nil {
		return &service.AnalyzeResponse{Errors: sampleIssues}, nil
	}
	return fn(req)
}

func (f *fakeCollab) DetectLanguage(ctx context.Context, s string) (*service.DetectResponse, error) {
	return &service.DetectResponse{Language: "bn", Confidence: 0.9}, nil
}

func (f *fakeCollab) Transliterate(ctx context.Context, req service.TransliterateRequest) (*service.TransliterateResponse, error) {
	f.mu.Lock()
	f.translit = append(f.translit, req)
	f.mu.Unlock()
	return &service.TransliterateResponse{Suggestions: []service.Suggestion{
		{Text: "অমি", Score: 0.5},
		{Text: "আমি", Score: 0.9},
	}}, nil
}

func (f *fakeCollab) setAnalyze(fn func(service.AnalyzeRequest) (*service.AnalyzeResponse, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyze = fn
}

func (f *fakeCollab) analyzed() []service.AnalyzeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]service.AnalyzeRequest(nil), f.requests...)
}

type countingRecorder struct {
	mu         sync.Mutex
	outcomes   map[string]int
	accepted   int
	rejected   int
	denied     int
	suggested  map[string]int
	pushes     int
	suppressed int
}

func (r *countingRecorder) AnalysisFinished(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[outcome]++
}

func (r *countingRecorder) AnalysisSkipped(string) {}

func (r *countingRecorder) Accepted(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accepted += n
}

func (r *countingRecorder) Rejected(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected += n
}

func (r *countingRecorder) QuotaDenied() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.denied++
}

func (r *countingRecorder) Suggested(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suggested[source]++
}

func (r *countingRecorder) SyncPushed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushes++
}

func (r *countingRecorder) ChangeSuppressed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suppressed++
}

func (r *countingRecorder) get(fn func(r *countingRecorder) int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r)
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) add(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) kinds() []EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventKind, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (l *eventLog) find(k EventKind) (Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ev := range l.events {
		if ev.Kind == k {
			return ev, true
		}
	}
	return Event{}, false
}

type harness struct {
	c   *Controller
	ed  *view.Memory
	clk *clock.Fake
	svc *fakeCollab
	rec *countingRecorder
	log *eventLog
}

func newHarness(t *testing.T, initial string, configure func(*Options)) *harness {
	t.Helper()
	h := &harness{
		ed:  view.NewMemory(initial),
		clk: clock.NewFake(time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local)),
		svc: &fakeCollab{},
		rec: &countingRecorder{outcomes: map[string]int{}, suggested: map[string]int{}},
		log: &eventLog{},
	}
	h.ed.EchoOnSet = true
	opts := Options{
		Analysis: analysis.DefaultOptions(),
		Cooldown: viewsync.DefaultCooldown,
		Clock:    h.clk,
		Recorder: h.rec,
		OnEvent:  h.log.add,
	}
	if configure != nil {
		configure(&opts)
	}
	h.c = New(h.ed, h.svc, opts)
	t.Cleanup(h.c.Close)
	return h
}

// analyzeSample types the sample and lets the debounce fire.
func (h *harness) analyzeSample(t *testing.T) {
	t.Helper()
	h.ed.Type(sample)
	h.clk.Advance(1500 * time.Millisecond)
	h.c.Wait()
	require.Len(t, h.c.Document().Corrections(), 2)
}

func (h *harness) idOf(t *testing.T, original string) string {
	t.Helper()
	for _, c := range h.c.Document().Corrections() {
		if c.OriginalText == original {
			return c.ID
		}
	}
	t.Fatalf("no correction for %q", original)
	return ""
}

func TestDebounceAnalyzesOncePerQuietPeriod(t *testing.T) {
	h := newHarness(t, "", nil)

	h.ed.Type("আমি")
	h.clk.Advance(500 * time.Millisecond)
	h.ed.Type("আমি তোমাকে")
	h.clk.Advance(500 * time.Millisecond)
	h.ed.Type(sample)
	h.clk.Advance(1499 * time.Millisecond)
	assert.Empty(t, h.svc.analyzed())
	assert.True(t, h.c.AnalysisPending())

	h.clk.Advance(time.Millisecond)
	h.c.Wait()

	reqs := h.svc.analyzed()
	require.Len(t, reqs, 1)
	assert.Equal(t, service.AnalyzeRequest{Text: sample, Lang: "bn", CheckGrammar: true, CheckSpelling: true}, reqs[0])
	assert.Len(t, h.c.Document().Corrections(), 2)
	assert.Len(t, h.ed.Highlights(), 2)
	assert.Equal(t, 1, h.rec.get(func(r *countingRecorder) int { return r.outcomes["issues"] }))
}

func TestTypingClearsCorrections(t *testing.T) {
	h := newHarness(t, "", nil)
	h.analyzeSample(t)

	h.ed.Type(sample + " ")
	assert.Zero(t, h.c.Document().Pending())
	assert.Empty(t, h.ed.Highlights())
	assert.True(t, h.c.AnalysisPending())
}

func TestSkippedTextIsNotSent(t *testing.T) {
	h := newHarness(t, "", nil)
	h.ed.Type("hello world")
	h.clk.Advance(2 * time.Second)
	h.c.Wait()
	assert.Empty(t, h.svc.analyzed())
	assert.False(t, h.c.AnalysisPending())
}

func TestAcceptPushesAndSuppressesEcho(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "", nil)
	h.analyzeSample(t)

	require.NoError(t, h.c.Accept(ctx, h.idOf(t, "তিনশত"), "তিনশ"))

	want := "আমি তোমাকে তিনশ টাকা দিয়েছিলাম।"
	doc := h.c.Document()
	assert.Equal(t, want, doc.Text())
	assert.Equal(t, want, h.ed.PlainText())
	assert.Equal(t, 1, h.ed.Sets())
	assert.Equal(t, text.Len(want), h.ed.CaretOffset())
	assert.Equal(t, viewsync.Idle, doc.Flag().State())
	assert.True(t, h.c.CoolingDown())

	// The echo of the push must not look like typing.
	assert.Len(t, doc.Corrections(), 1)
	assert.False(t, h.c.AnalysisPending())
	assert.Equal(t, 1, h.rec.get(func(r *countingRecorder) int { return r.suppressed }))
	assert.Equal(t, 1, h.rec.get(func(r *countingRecorder) int { return r.pushes }))
	assert.Len(t, h.ed.Highlights(), 1)

	h.clk.Advance(viewsync.DefaultCooldown)
	assert.False(t, h.c.CoolingDown())
	assert.False(t, h.c.AnalysisPending())
	assert.Len(t, h.svc.analyzed(), 1)
	assert.Contains(t, h.log.kinds(), EventSynced)
}

func TestTypingDuringCooldownReanalyzesAfterwards(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "", nil)
	h.analyzeSample(t)
	require.NoError(t, h.c.Accept(ctx, h.idOf(t, "তিনশত"), "তিনশ"))

	typed := h.ed.PlainText() + " ভালো"
	h.ed.Type(typed)
	assert.Equal(t, typed, h.c.Document().Text())
	assert.Len(t, h.c.Document().Corrections(), 1)
	assert.False(t, h.c.AnalysisPending())

	h.clk.Advance(viewsync.DefaultCooldown)
	assert.Zero(t, h.c.Document().Pending())
	assert.True(t, h.c.AnalysisPending())

	h.clk.Advance(1500 * time.Millisecond)
	h.c.Wait()
	reqs := h.svc.analyzed()
	require.Len(t, reqs, 2)
	assert.Equal(t, typed, reqs[1].Text)
}

func TestViewChangeBeforePushKeepsAcceptedText(t *testing.T) {
	ctx := context.Background()
	var (
		h     *harness
		armed atomic.Bool
	)
	h = newHarness(t, "", func(o *Options) {
		record := o.OnEvent
		o.OnEvent = func(ev Event) {
			record(ev)
			// The view still shows the text from before the accept.
			if ev.Kind == EventCorrections && armed.CompareAndSwap(true, false) {
				h.ed.Type(h.ed.PlainText() + " x")
			}
		}
	})
	h.analyzeSample(t)
	armed.Store(true)

	require.NoError(t, h.c.Accept(ctx, h.idOf(t, "তিনশত"), "তিনশ"))

	want := "আমি তোমাকে তিনশ টাকা দিয়েছিলাম।"
	assert.False(t, armed.Load())
	assert.Equal(t, want, h.c.Document().Text())
	assert.Equal(t, want, h.ed.PlainText())
	assert.Equal(t, viewsync.Idle, h.c.Document().Flag().State())
	assert.Equal(t, 1, h.rec.get(func(r *countingRecorder) int { return r.accepted }))
	assert.Equal(t, 2, h.rec.get(func(r *countingRecorder) int { return r.suppressed }))
	assert.Len(t, h.c.Document().Corrections(), 1)
}

type rejectingEditor struct {
	*view.Memory
	err error
}

func (e *rejectingEditor) SetContent(string, bool) error { return e.err }

func TestFailedPushLeavesFlagPending(t *testing.T) {
	ed := &rejectingEditor{Memory: view.NewMemory(""), err: errors.New("view detached")}
	clk := clock.NewFake(time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local))
	events := &eventLog{}
	c := New(ed, &fakeCollab{}, Options{
		Analysis: analysis.DefaultOptions(),
		Clock:    clk,
		OnEvent:  events.add,
	})
	t.Cleanup(c.Close)

	ed.Type(sample)
	clk.Advance(1500 * time.Millisecond)
	c.Wait()
	require.Len(t, c.Document().Corrections(), 2)

	var id string
	for _, cr := range c.Document().Corrections() {
		if cr.OriginalText == "তিনশত" {
			id = cr.ID
		}
	}
	require.NoError(t, c.Accept(context.Background(), id, "তিনশ"))

	assert.Equal(t, "আমি তোমাকে তিনশ টাকা দিয়েছিলাম।", c.Document().Text())
	assert.Equal(t, sample, ed.PlainText())
	assert.True(t, c.Document().Flag().Pending())
	ev, ok := events.find(EventSyncFailed)
	require.True(t, ok)
	assert.ErrorIs(t, ev.Err, ed.err)
	assert.NotContains(t, events.kinds(), EventSynced)
}

func TestOpenTracksActiveCorrection(t *testing.T) {
	h := newHarness(t, "", nil)
	h.analyzeSample(t)

	id := h.idOf(t, "টাকা")
	require.NoError(t, h.c.Open(id))
	active, ok := h.c.Active()
	require.True(t, ok)
	assert.Equal(t, "টাকা", active.OriginalText)

	assert.ErrorIs(t, h.c.Open("gone"), document.ErrStaleReference)

	require.NoError(t, h.c.Reject(id))
	_, ok = h.c.Active()
	assert.False(t, ok)
}

func TestReanalyzeAfterCooldown(t *testing.T) {
	h := newHarness(t, "", func(o *Options) { o.ReanalyzeAfterCooldown = true })
	h.analyzeSample(t)
	require.NoError(t, h.c.Accept(context.Background(), h.idOf(t, "টাকা"), "টাকাটা"))

	h.clk.Advance(viewsync.DefaultCooldown)
	assert.True(t, h.c.AnalysisPending())
}

func TestStaleResultIsDropped(t *testing.T) {
	h := newHarness(t, "", nil)
	newer := "আমি ভাত খাই না"
	release := make(chan struct{})
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }
	t.Cleanup(unblock)
	h.svc.setAnalyze(func(req service.AnalyzeRequest) (*service.AnalyzeResponse, error) {
		if req.Text == sample {
			<-release
			return &service.AnalyzeResponse{Errors: sampleIssues}, nil
		}
		return &service.AnalyzeResponse{Errors: []service.Issue{
			{Type: "grammar", Offset: 4, Length: 3, OriginalText: "ভাত", Suggestions: []string{"ভাতটা"}},
		}}, nil
	})

	h.ed.Type(sample)
	h.clk.Advance(1500 * time.Millisecond)
	h.ed.Type(newer)
	h.clk.Advance(1500 * time.Millisecond)

	doc := h.c.Document()
	assert.Eventually(t, func() bool {
		cs := doc.Corrections()
		return len(cs) == 1 && cs[0].OriginalText == "ভাত"
	}, 5*time.Second, 5*time.Millisecond)

	unblock()
	h.c.Wait()
	cs := doc.Corrections()
	require.Len(t, cs, 1)
	assert.Equal(t, "ভাত", cs[0].OriginalText)
}

func TestAnalysisFailureClearsCorrections(t *testing.T) {
	h := newHarness(t, "", nil)
	h.analyzeSample(t)

	h.svc.setAnalyze(func(service.AnalyzeRequest) (*service.AnalyzeResponse, error) {
		return nil, &service.UnavailableError{Op: "analyze", Status: 502}
	})
	assert.Equal(t, analysis.SkipNone, h.c.AnalyzeNow())
	h.c.Wait()

	assert.Zero(t, h.c.Document().Pending())
	assert.Empty(t, h.ed.Highlights())
	ev, ok := h.log.find(EventAnalysisFailed)
	require.True(t, ok)
	assert.ErrorIs(t, ev.Err, service.ErrUnavailable)
}

func TestAnalyzeNowRespectsCooldown(t *testing.T) {
	h := newHarness(t, "", nil)
	h.analyzeSample(t)
	require.NoError(t, h.c.Accept(context.Background(), h.idOf(t, "টাকা"), "টাকাটা"))

	assert.Equal(t, analysis.SkipCooldown, h.c.AnalyzeNow())
	assert.Equal(t, analysis.SkipCooldown, h.c.Translate())
	h.clk.Advance(viewsync.DefaultCooldown)
	assert.Equal(t, analysis.SkipNone, h.c.AnalyzeNow())
	h.c.Wait()
	assert.Len(t, h.svc.analyzed(), 2)
}

func TestAcceptBlockedByQuota(t *testing.T) {
	ctx := context.Background()
	var tr *quota.Tracker
	h := newHarness(t, "", func(o *Options) {
		var err error
		tr, err = quota.NewTracker(ctx, nil, quota.Options{
			Limits: quota.Limits{DailyWords: 500, DailyAccepts: 1},
			Clock:  o.Clock,
		})
		require.NoError(t, err)
		o.Quota = tr
	})
	h.analyzeSample(t)

	require.NoError(t, h.c.Accept(ctx, h.idOf(t, "তিনশত"), "তিনশ"))
	before := h.c.Document().Text()

	err := h.c.Accept(ctx, h.idOf(t, "টাকা"), "টাকাটা")
	require.ErrorIs(t, err, document.ErrLimitReached)
	assert.Equal(t, before, h.c.Document().Text())
	assert.Equal(t, 1, h.c.Document().Pending())
	assert.Equal(t, 1, h.ed.Sets())
	assert.Equal(t, 1, h.rec.get(func(r *countingRecorder) int { return r.denied }))
	assert.Equal(t, 1, tr.State().AcceptsUsedToday)
}

func TestAcceptAll(t *testing.T) {
	h := newHarness(t, "", nil)
	h.analyzeSample(t)

	res, err := h.c.AcceptAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Resolved)

	want := "আমি তোমাকে তিনশ টাকাটা দিয়েছিলাম।"
	assert.Equal(t, want, h.ed.PlainText())
	assert.Zero(t, h.c.Document().Pending())
	assert.Empty(t, h.ed.Highlights())
	assert.Equal(t, 2, h.rec.get(func(r *countingRecorder) int { return r.accepted }))

	res, err = h.c.AcceptAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, res.Resolved)
	assert.Equal(t, 1, h.ed.Sets())
}

func TestStaleAcceptIsIgnored(t *testing.T) {
	h := newHarness(t, "", nil)
	h.analyzeSample(t)

	err := h.c.Accept(context.Background(), "gone", "x")
	assert.ErrorIs(t, err, document.ErrStaleReference)
	assert.Zero(t, h.ed.Sets())
	assert.Equal(t, sample, h.ed.PlainText())
}

func TestRejectLeavesBuffer(t *testing.T) {
	h := newHarness(t, "", nil)
	h.analyzeSample(t)

	require.NoError(t, h.c.Reject(h.idOf(t, "টাকা")))
	assert.Equal(t, sample, h.ed.PlainText())
	assert.Zero(t, h.ed.Sets())
	assert.Len(t, h.ed.Highlights(), 1)
	assert.False(t, h.c.CoolingDown())

	assert.Equal(t, 1, h.c.RejectAll())
	assert.Empty(t, h.ed.Highlights())
	assert.Equal(t, 2, h.rec.get(func(r *countingRecorder) int { return r.rejected }))
}

func TestTranslateReplacesBuffer(t *testing.T) {
	h := newHarness(t, "I gave you three hundred taka.", nil)
	h.svc.setAnalyze(func(req service.AnalyzeRequest) (*service.AnalyzeResponse, error) {
		if req.Lang != "" {
			return &service.AnalyzeResponse{}, nil
		}
		return &service.AnalyzeResponse{
			TranslatedText:   sample,
			DetectedLanguage: "en",
			Errors:           sampleIssues[:1],
		}, nil
	})

	assert.Equal(t, analysis.SkipNone, h.c.Translate())
	h.c.Wait()

	assert.Equal(t, sample, h.c.Document().Text())
	assert.Equal(t, sample, h.ed.PlainText())
	cs := h.c.Document().Corrections()
	require.Len(t, cs, 1)
	assert.Equal(t, correction.Anchor{Offset: 11, Length: 5}, cs[0].Anchor)
	assert.True(t, h.c.CoolingDown())
	assert.False(t, h.c.AnalysisPending())
}

func TestMarkupHook(t *testing.T) {
	var (
		mu   sync.Mutex
		last string
	)
	h := newHarness(t, "", func(o *Options) {
		o.OnMarkup = func(s string) {
			mu.Lock()
			defer mu.Unlock()
			last = s
		}
	})
	h.analyzeSample(t)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, last, `<span class="spelling-error" data-error-id="`)
	assert.Contains(t, last, `<span class="grammar-error" data-error-id="`)
}

func TestTransliterationCommit(t *testing.T) {
	h := newHarness(t, "", func(o *Options) { o.Transliterate = true })

	h.ed.Type("ami")
	h.c.Wait()

	m := h.c.Menu()
	require.True(t, m.IsOpen())
	assert.Equal(t, "আমি", m.Result().Suggestions[0].Text)
	assert.Equal(t, view.Point{X: 0, Y: 0}, m.Anchor)
	assert.Equal(t, view.Point{X: 3, Y: 0}, m.Caret)

	act, err := h.c.HandleKey(translit.KeyDown)
	require.NoError(t, err)
	assert.Equal(t, translit.ActionMove, act)
	_, _ = h.c.HandleKey(translit.KeyUp)
	act, err = h.c.HandleKey(translit.KeyEnter)
	require.NoError(t, err)
	assert.Equal(t, translit.ActionCommit, act)
	h.c.Wait()

	assert.Equal(t, "আমি ", h.ed.PlainText())
	assert.Equal(t, "আমি ", h.c.Document().Text())
	assert.False(t, h.c.Menu().IsOpen())
	assert.Equal(t, 1, h.rec.get(func(r *countingRecorder) int { return r.suggested[translit.SourceService] }))
	assert.Empty(t, h.c.Document().Corrections())
}

func TestTransliterationEscape(t *testing.T) {
	h := newHarness(t, "", func(o *Options) { o.Transliterate = true })
	h.ed.Type("ami")
	h.c.Wait()

	act, err := h.c.HandleKey(translit.KeyEscape)
	require.NoError(t, err)
	assert.Equal(t, translit.ActionDismiss, act)
	assert.Equal(t, "ami", h.ed.PlainText())
	assert.False(t, h.c.Menu().IsOpen())
}

func TestLanguageDetection(t *testing.T) {
	h := newHarness(t, "", func(o *Options) {
		o.DetectLanguage = true
		o.DetectDebounce = time.Second
		o.DetectMinLength = 10
	})
	h.ed.Type(sample)
	h.clk.Advance(time.Second)
	h.c.Wait()

	assert.Equal(t, "bn", h.c.Document().Language())
	ev, ok := h.log.find(EventLanguage)
	require.True(t, ok)
	assert.Equal(t, "bn", ev.Language)
}

func TestCloseDetaches(t *testing.T) {
	h := newHarness(t, "", nil)
	h.c.Close()
	h.ed.Type(sample)
	assert.Empty(t, h.c.Document().Text())
	h.c.Close()
}
