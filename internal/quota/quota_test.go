package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gobengali/internal/clock"
)

func newTracker(t *testing.T, store Store, clk clock.Clock, tier Tier) *Tracker {
	t.Helper()
	tr, err := NewTracker(context.Background(), store, Options{User: "u1", Tier: tier, Clock: clk})
	require.NoError(t, err)
	return tr
}

func noon(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.Local)
}

func TestFreshUserStartsToday(t *testing.T) {
	clk := clock.NewFake(noon(2024, 3, 10))
	tr := newTracker(t, nil, clk, TierFree)

	st := tr.State()
	assert.Equal(t, "2024-03-10", st.LastResetDate)
	assert.Zero(t, st.WordsUsedToday)
	assert.Equal(t, 15, tr.RemainingAccepts())
	assert.True(t, tr.CanAccept())
}

func TestRolloverResetsStaleCounters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Save(ctx, "u1", State{WordsUsedToday: 480, AcceptsUsedToday: 15, LastResetDate: "2024-03-09"}))

	clk := clock.NewFake(noon(2024, 3, 10))
	tr := newTracker(t, store, clk, TierFree)

	assert.True(t, tr.CanAccept())
	st := tr.State()
	assert.Equal(t, State{LastResetDate: "2024-03-10"}, st)

	persisted, ok, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, st, persisted)
}

func TestRolloverIsIdempotentWithinADay(t *testing.T) {
	clk := clock.NewFake(noon(2024, 3, 10))
	store := NewMemoryStore()
	tr := newTracker(t, store, clk, TierFree)

	tr.RecordWords(context.Background(), 12)
	saves := store.Saves()
	for i := 0; i < 5; i++ {
		tr.CanAccept()
		tr.Usage()
	}
	assert.Equal(t, 12, tr.State().WordsUsedToday)
	assert.Equal(t, saves, store.Saves())

	clk.Advance(24 * time.Hour)
	assert.Zero(t, tr.State().WordsUsedToday)
	assert.Equal(t, "2024-03-11", tr.State().LastResetDate)
}

func TestRecordAcceptsCapsAtLimit(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t, nil, clock.NewFake(noon(2024, 3, 10)), TierFree)

	assert.Equal(t, 10, tr.RecordAccepts(ctx, 10))
	assert.Equal(t, 5, tr.RemainingAccepts())
	assert.Equal(t, 5, tr.RecordAccepts(ctx, 8))
	assert.Equal(t, 15, tr.State().AcceptsUsedToday)
	assert.False(t, tr.CanAccept())
	assert.Zero(t, tr.RecordAccepts(ctx, 1))
}

func TestRecordWordsIgnoresDeletions(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t, nil, clock.NewFake(noon(2024, 3, 10)), TierFree)

	tr.RecordWords(ctx, 7)
	tr.RecordWords(ctx, -3)
	tr.RecordWords(ctx, 0)
	assert.Equal(t, 7, tr.State().WordsUsedToday)
}

func TestProTierIsUnlimited(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t, nil, clock.NewFake(noon(2024, 3, 10)), TierPro)

	assert.Equal(t, -1, tr.RemainingAccepts())
	assert.Zero(t, tr.RecordAccepts(ctx, 100))
	tr.RecordWords(ctx, 10000)
	assert.True(t, tr.CanAccept())
	assert.False(t, tr.WordLimitReached())

	u := tr.Usage()
	assert.True(t, u.Unlimited)
	assert.False(t, u.Near)
	assert.False(t, u.Reached)
}

func TestUsageThresholds(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t, nil, clock.NewFake(noon(2024, 3, 10)), TierFree)

	tr.RecordWords(ctx, 399)
	assert.False(t, tr.Usage().Near)

	tr.RecordWords(ctx, 1)
	u := tr.Usage()
	assert.True(t, u.Near)
	assert.False(t, u.Reached)
	assert.InDelta(t, 80.0, u.WordsPercent, 0.001)

	tr.RecordWords(ctx, 100)
	assert.True(t, tr.Usage().Reached)
	assert.True(t, tr.WordLimitReached())
}

func TestSetTierUnlocksAccepts(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t, nil, clock.NewFake(noon(2024, 3, 10)), TierFree)
	tr.RecordAccepts(ctx, 15)
	require.False(t, tr.CanAccept())

	tr.SetTier(TierPro)
	assert.True(t, tr.CanAccept())
	assert.Equal(t, TierPro, tr.Tier())
}

type failingStore struct{ *MemoryStore }

func (f *failingStore) Save(context.Context, string, State) error { return errors.New("disk full") }

func TestPersistFailureDoesNotBlockCounting(t *testing.T) {
	fs := &failingStore{MemoryStore: NewMemoryStore()}
	tr := newTracker(t, fs, clock.NewFake(noon(2024, 3, 10)), TierFree)

	assert.Equal(t, 1, tr.RecordAccepts(context.Background(), 1))
	assert.Equal(t, 14, tr.RemainingAccepts())
}

func TestParseTier(t *testing.T) {
	tier, err := ParseTier("pro")
	require.NoError(t, err)
	assert.True(t, tier.Unlimited())

	_, err = ParseTier("enterprise")
	assert.Error(t, err)
}
