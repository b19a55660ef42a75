package service

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

// fakeServer serves canned replies keyed by request path over an in-memory
// listener.
type fakeServer struct {
	mu      sync.Mutex
	replies map[string]reply
	bodies  map[string][]byte
	block   chan struct{}
}

type reply struct {
	status int
	body   string
}

func newFakeServer(t *testing.T, replies map[string]reply) (*fakeServer, *Client) {
	t.Helper()
	fs := &fakeServer{replies: replies, bodies: make(map[string][]byte)}

	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: fs.handle}
	go srv.Serve(ln)
	t.Cleanup(func() { ln.Close() })

	c, err := New(Options{
		BaseURL: "http://collaborator/api",
		Timeout: 2 * time.Second,
		Dial:    func(string) (net.Conn, error) { return ln.Dial() },
	})
	require.NoError(t, err)
	return fs, c
}

func (fs *fakeServer) handle(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	fs.mu.Lock()
	fs.bodies[path] = append([]byte(nil), ctx.PostBody()...)
	r, ok := fs.replies[path]
	block := fs.block
	fs.mu.Unlock()

	if block != nil {
		<-block
	}
	if !ok {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		return
	}
	ctx.SetStatusCode(r.status)
	ctx.SetContentType("application/json")
	ctx.SetBodyString(r.body)
}

func (fs *fakeServer) body(path string) []byte {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.bodies[path]
}

const analyzeReply = `{
  "translated_text": "",
  "detected_language": "bn",
  "errors": [{
    "type": "spelling",
    "offset": 11,
    "length": 5,
    "original_text": "তিনশত",
    "suggestions": ["তিনশ", "তিনশো"],
    "message": "সম্ভাব্য বানান ভুল",
    "confidence": 0.91
  }],
  "word_count": 5,
  "char_count": 33
}`

func TestAnalyze(t *testing.T) {
	fs, c := newFakeServer(t, map[string]reply{"/api/analyze": {200, analyzeReply}})

	resp, err := c.Analyze(context.Background(), AnalyzeRequest{
		Text: "আমি তোমাকে তিনশত টাকা দিয়েছিলাম।", Lang: "bn", CheckGrammar: true, CheckSpelling: true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Errors, 1)
	issue := resp.Errors[0]
	assert.Equal(t, "spelling", issue.Type)
	assert.Equal(t, 11, issue.Offset)
	assert.Equal(t, []string{"তিনশ", "তিনশো"}, issue.Suggestions)
	require.NotNil(t, issue.Confidence)
	assert.InDelta(t, 0.91, *issue.Confidence, 1e-9)
	assert.Equal(t, 33, resp.CharCount)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(fs.body("/api/analyze"), &sent))
	assert.Equal(t, "bn", sent["lang"])
	assert.Equal(t, true, sent["check_grammar"])
	assert.Equal(t, true, sent["check_spelling"])
}

func TestAnalyzeRejectsMalformedReplies(t *testing.T) {
	cases := map[string]string{
		"not json":        `{"errors": [`,
		"negative offset": `{"errors": [{"type": "spelling", "offset": -1, "length": 2, "original_text": "ab", "suggestions": []}]}`,
		"unknown kind":    `{"errors": [{"type": "style", "offset": 0, "length": 2, "original_text": "ab", "suggestions": []}]}`,
		"missing errors":  `{"translated_text": "x"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, c := newFakeServer(t, map[string]reply{"/api/analyze": {200, body}})
			_, err := c.Analyze(context.Background(), AnalyzeRequest{Text: "abcdef"})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
			assert.ErrorIs(t, err, ErrUnavailable)
		})
	}
}

func TestNon2xxIsUnavailable(t *testing.T) {
	_, c := newFakeServer(t, map[string]reply{"/api/analyze": {503, `{"detail": "loading"}`}})
	_, err := c.Analyze(context.Background(), AnalyzeRequest{Text: "abcdef"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, errors.Is(err, ErrMalformed))

	var ue *UnavailableError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 503, ue.Status)
}

func TestTransliterateAndDetect(t *testing.T) {
	fs, c := newFakeServer(t, map[string]reply{
		"/api/transliterate":   {200, `{"suggestions": [{"text": "আমি", "score": 0.9}, {"text": "আমী", "score": 0.4}]}`},
		"/api/detect-language": {200, `{"language": "en", "confidence": 0.97}`},
		"/api/health":          {200, `{"status": "healthy", "models": {}}`},
	})
	ctx := context.Background()

	tr, err := c.Transliterate(ctx, TransliterateRequest{Text: "ami", MaxSuggestions: 4})
	require.NoError(t, err)
	require.Len(t, tr.Suggestions, 2)
	assert.Equal(t, "আমি", tr.Suggestions[0].Text)
	assert.JSONEq(t, `{"text": "ami", "max_suggestions": 4}`, string(fs.body("/api/transliterate")))

	d, err := c.DetectLanguage(ctx, "hello world again")
	require.NoError(t, err)
	assert.Equal(t, "en", d.Language)

	h, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)
}

func TestCancelledContextAbandonsRequest(t *testing.T) {
	fs, c := newFakeServer(t, map[string]reply{"/api/analyze": {200, analyzeReply}})
	block := make(chan struct{})
	fs.mu.Lock()
	fs.block = block
	fs.mu.Unlock()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := c.Analyze(ctx, AnalyzeRequest{Text: "abcdef"})
		errc <- err
	}()
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, errors.Is(err, ErrUnavailable))
	case <-time.After(time.Second):
		t.Fatal("cancelled request did not return")
	}
}

type recordingObserver struct {
	mu   sync.Mutex
	ops  []string
	errs []error
}

func (r *recordingObserver) ObserveRequest(op string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
	r.errs = append(r.errs, err)
}

func TestObserverSeesEveryCall(t *testing.T) {
	_, c := newFakeServer(t, map[string]reply{"/api/detect-language": {200, `{"language": "bn"}`}})
	obs := &recordingObserver{}
	c.obs = obs

	_, err := c.DetectLanguage(context.Background(), "আমি বাংলায় লিখি")
	require.NoError(t, err)
	_, err = c.Analyze(context.Background(), AnalyzeRequest{Text: "x"})
	require.Error(t, err)

	assert.Equal(t, []string{"detect-language", "analyze"}, obs.ops)
	assert.NoError(t, obs.errs[0])
	assert.Error(t, obs.errs[1])
}
