// Package service is the client for the remote analysis, transliteration and
// language detection collaborator.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// DefaultBaseURL is where the collaborator listens in a local deployment.
const DefaultBaseURL = "http://localhost:8000/api"

// DefaultTimeout bounds a single call; model inference can be slow.
const DefaultTimeout = 30 * time.Second

// Observer receives the outcome of every call.
type Observer interface {
	ObserveRequest(op string, d time.Duration, err error)
}

// Options configure a Client.
type Options struct {
	BaseURL  string
	Timeout  time.Duration
	MaxConns int
	// Dial overrides the transport dialer, e.g. with an in-memory listener.
	Dial     fasthttp.DialFunc
	Logger   *slog.Logger
	Observer Observer
}

// Client talks JSON over HTTP to the collaborator. It is safe for
// concurrent use.
type Client struct {
	baseURL string
	timeout time.Duration
	hc      *fasthttp.Client
	log     *slog.Logger
	obs     Observer
	schemas *schemas
}

// New creates a client.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxConns <= 0 {
		opts.MaxConns = 16
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	sc, err := loadSchemas()
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		timeout: opts.Timeout,
		hc: &fasthttp.Client{
			Name:                "gobengali",
			MaxConnsPerHost:     opts.MaxConns,
			ReadTimeout:         opts.Timeout,
			WriteTimeout:        opts.Timeout,
			MaxIdleConnDuration: 90 * time.Second,
			Dial:                opts.Dial,
		},
		log:     opts.Logger.With("component", "service"),
		obs:     opts.Observer,
		schemas: sc,
	}, nil
}

// BaseURL returns the collaborator root.
func (c *Client) BaseURL() string { return c.baseURL }

// Analyze requests corrections for req.Text.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error) {
	var resp AnalyzeResponse
	if err := c.call(ctx, "analyze", fasthttp.MethodPost, "/analyze", req, &resp, c.schemas.analyze); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Transliterate requests ranked candidates for a single token.
func (c *Client) Transliterate(ctx context.Context, req TransliterateRequest) (*TransliterateResponse, error) {
	var resp TransliterateResponse
	if err := c.call(ctx, "transliterate", fasthttp.MethodPost, "/transliterate", req, &resp, c.schemas.transliterate); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DetectLanguage asks the collaborator which language text is written in.
func (c *Client) DetectLanguage(ctx context.Context, text string) (*DetectResponse, error) {
	var resp DetectResponse
	if err := c.call(ctx, "detect-language", fasthttp.MethodPost, "/detect-language", DetectRequest{Text: text}, &resp, c.schemas.detect); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health probes GET /health.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.call(ctx, "health", fasthttp.MethodGet, "/health", nil, &resp, nil); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) call(ctx context.Context, op, method, path string, in, out any, sch *compiled) (err error) {
	start := time.Now()
	defer func() {
		if c.obs != nil {
			c.obs.ObserveRequest(op, time.Since(start), err)
		}
	}()

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	release := func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			release()
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	done := make(chan error, 1)
	go func() { done <- c.hc.DoDeadline(req, resp, deadline) }()

	select {
	case <-ctx.Done():
		// The request still owns req and resp until DoDeadline returns.
		go func() {
			<-done
			release()
		}()
		c.log.Debug("request abandoned", "op", op, "error", ctx.Err())
		return fmt.Errorf("%s: %w", op, ctx.Err())
	case err := <-done:
		defer release()
		if err != nil {
			c.log.Warn("request failed", "op", op, "error", err)
			return &UnavailableError{Op: op, Err: err}
		}
	}

	if status := resp.StatusCode(); status < 200 || status > 299 {
		c.log.Warn("unexpected status", "op", op, "status", status)
		return &UnavailableError{Op: op, Status: status}
	}

	body := resp.Body()
	if sch != nil {
		if err := sch.validate(body); err != nil {
			c.log.Warn("response rejected", "op", op, "error", err)
			return &malformedError{op: op, err: err}
		}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &malformedError{op: op, err: err}
	}
	return nil
}
