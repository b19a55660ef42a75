package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gobengali/internal/clock"
	"gobengali/internal/quota"
)

func TestRecorderCounters(t *testing.T) {
	m := New()

	m.AnalysisFinished("issues", 120*time.Millisecond)
	m.AnalysisFinished("issues", 80*time.Millisecond)
	m.AnalysisFinished("failed", time.Second)
	m.AnalysisSkipped("too_short")
	m.Accepted(3)
	m.Accepted(0)
	m.Rejected(1)
	m.QuotaDenied()
	m.Suggested("offline")
	m.SyncPushed()
	m.ChangeSuppressed()
	m.ChangeSuppressed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AnalysesTotal.WithLabelValues("issues")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalysesTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalysesSkippedTotal.WithLabelValues("too_short")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.AcceptsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RejectsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QuotaDenialsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SuggestionsTotal.WithLabelValues("offline")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncPushesTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ChangesSuppressed))
	assert.Equal(t, 2, testutil.CollectAndCount(m.AnalysisDuration))
}

func TestObserveRequest(t *testing.T) {
	m := New()

	m.ObserveRequest("analyze", 50*time.Millisecond, nil)
	m.ObserveRequest("analyze", 30*time.Second, errors.New("timeout"))
	m.ObserveRequest("transliterate", 10*time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("analyze", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("analyze", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("transliterate", "ok")))
}

func TestCustomRegisterer(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m := NewWithRegisterer(reg, reg)
	m.SyncPushed()

	n, err := testutil.GatherAndCount(reg, "gobengali_view_sync_pushes_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWatchQuota(t *testing.T) {
	fake := clock.NewFake(time.Date(2024, 3, 10, 9, 0, 0, 0, time.Local))
	tracker, err := quota.NewTracker(context.Background(), quota.NewMemoryStore(), quota.Options{
		User:   "u",
		Tier:   quota.TierFree,
		Limits: quota.DefaultLimits,
		Clock:  fake,
	})
	require.NoError(t, err)
	tracker.RecordWords(context.Background(), 120)

	m := New()
	m.WatchQuota(nil, tracker)

	expected := `
# HELP gobengali_quota_words_used Words analyzed today
# TYPE gobengali_quota_words_used gauge
gobengali_quota_words_used 120
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "gobengali_quota_words_used"))
}

func TestServe(t *testing.T) {
	m := New()
	m.Accepted(2)

	srv, err := m.Serve("127.0.0.1:0", nil)
	require.NoError(t, err)
	defer srv.Shutdown(context.Background())

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "gobengali_accepts_total 2")
	assert.Contains(t, string(body), "go_goroutines")
}
