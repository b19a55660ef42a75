package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gobengali/internal/quota"
	"gobengali/internal/service"
)

type fakeProber struct {
	status string
	err    error
	delay  time.Duration
}

func (f fakeProber) Health(ctx context.Context) (*service.HealthResponse, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &service.HealthResponse{Status: f.status}, nil
}

func TestServiceCheck(t *testing.T) {
	ctx := context.Background()

	r := ServiceCheck(fakeProber{status: "ok"}, "http://svc")(ctx)
	assert.Equal(t, StatusHealthy, r.Status)
	assert.Equal(t, "http://svc", r.Details["base_url"])

	r = ServiceCheck(fakeProber{status: "loading models"}, "http://svc")(ctx)
	assert.Equal(t, StatusDegraded, r.Status)

	r = ServiceCheck(fakeProber{err: service.ErrUnavailable}, "http://svc")(ctx)
	assert.Equal(t, StatusUnhealthy, r.Status)
	assert.NotEmpty(t, r.Error)
}

func TestCheckTimeout(t *testing.T) {
	c := NewChecker()
	c.Register(&Component{
		Name:     "service",
		Critical: true,
		Check:    ServiceCheck(fakeProber{status: "ok", delay: time.Second}, "http://svc"),
		Timeout:  20 * time.Millisecond,
	})

	results := c.Check(context.Background())
	require.Contains(t, results, "service")
	assert.Equal(t, StatusUnhealthy, results["service"].Status)
	assert.Equal(t, StatusUnhealthy, c.OverallStatus())
}

func TestCheckRecoversPanic(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("broken", false, func(context.Context) CheckResult { panic("boom") })

	r, ok := c.CheckComponent(context.Background(), "broken")
	require.True(t, ok)
	assert.Equal(t, StatusUnhealthy, r.Status)
	assert.Equal(t, "boom", r.Error)
	assert.Equal(t, StatusDegraded, c.OverallStatus(), "non-critical failure only degrades")

	_, ok = c.CheckComponent(context.Background(), "missing")
	assert.False(t, ok)
}

func TestOverallStatus(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("db", true, DatabaseCheck(func(context.Context) error { return nil }))
	c.RegisterFunc("service", false, ServiceCheck(fakeProber{status: "ok"}, ""))

	assert.Equal(t, StatusUnknown, c.OverallStatus(), "critical component not yet checked")
	c.Check(context.Background())
	assert.Equal(t, StatusHealthy, c.OverallStatus())
	assert.Equal(t, []string{"db", "service"}, c.Names())

	c.RegisterFunc("db", true, DatabaseCheck(func(context.Context) error { return errors.New("locked") }))
	c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, c.OverallStatus())
	assert.Equal(t, "locked", c.Results()["db"].Error)
}

func TestQuotaCheck(t *testing.T) {
	ctx := context.Background()
	tracker, err := quota.NewTracker(ctx, quota.NewMemoryStore(), quota.Options{
		Limits: quota.Limits{DailyWords: 10, DailyAccepts: 2},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusHealthy, QuotaCheck(tracker)(ctx).Status)

	tracker.RecordWords(ctx, 10)
	r := QuotaCheck(tracker)(ctx)
	assert.Equal(t, StatusDegraded, r.Status)
	assert.Equal(t, 10, r.Details["words_used"])

	tracker.SetTier(quota.TierPro)
	assert.Equal(t, StatusHealthy, QuotaCheck(tracker)(ctx).Status)
}

func TestHandler(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("service", true, ServiceCheck(fakeProber{err: service.ErrUnavailable}, "http://svc"))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.Equal(t, StatusUnhealthy, report.Components["service"].Status)
}
