// Package quota tracks and enforces the daily word and accept allowances of a
// user tier. Counters roll over at local midnight and persist across
// restarts through a Store.
package quota

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"gobengali/internal/clock"
)

// DateLayout is the layout of State.LastResetDate.
const DateLayout = "2006-01-02"

// Tier is the subscription level gating the limits.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// ParseTier validates a configured tier name.
func ParseTier(s string) (Tier, error) {
	switch t := Tier(s); t {
	case TierFree, TierPro:
		return t, nil
	}
	return "", fmt.Errorf("unknown tier %q", s)
}

// Unlimited reports whether the tier bypasses every check.
func (t Tier) Unlimited() bool { return t == TierPro }

// Limits are the daily caps of the free tier.
type Limits struct {
	DailyWords   int `json:"daily_words"`
	DailyAccepts int `json:"daily_accepts"`
}

// DefaultLimits are the published free tier allowances.
var DefaultLimits = Limits{DailyWords: 500, DailyAccepts: 15}

// State is the persisted per-user counter record.
type State struct {
	WordsUsedToday   int    `json:"words_used_today"`
	AcceptsUsedToday int    `json:"accepts_used_today"`
	LastResetDate    string `json:"last_reset_date"`
}

// Store persists State records atomically.
type Store interface {
	// Load returns the stored record for user; ok is false when none exists.
	Load(ctx context.Context, user string) (s State, ok bool, err error)
	Save(ctx context.Context, user string, s State) error
}

// Options configure a Tracker.
type Options struct {
	User        string
	Tier        Tier
	Limits      Limits
	WarnPercent int
	Clock       clock.Clock
	Logger      *slog.Logger
}

// Tracker owns the in-memory counters for one user and writes every change
// through to its Store. Persistence failures are logged, never returned to
// the editing path.
type Tracker struct {
	mu     sync.Mutex
	store  Store
	user   string
	tier   Tier
	limits Limits
	warn   int
	clock  clock.Clock
	log    *slog.Logger
	state  State
}

// NewTracker creates a tracker and loads the persisted record for the user.
func NewTracker(ctx context.Context, store Store, opts Options) (*Tracker, error) {
	if store == nil {
		store = NewMemoryStore()
	}
	if opts.User == "" {
		opts.User = "default"
	}
	if opts.Tier == "" {
		opts.Tier = TierFree
	}
	if opts.Limits == (Limits{}) {
		opts.Limits = DefaultLimits
	}
	if opts.WarnPercent <= 0 {
		opts.WarnPercent = 80
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	t := &Tracker{
		store:  store,
		user:   opts.User,
		tier:   opts.Tier,
		limits: opts.Limits,
		warn:   opts.WarnPercent,
		clock:  clock.Or(opts.Clock),
		log:    opts.Logger.With("component", "quota"),
	}

	st, ok, err := store.Load(ctx, t.user)
	if err != nil {
		return nil, fmt.Errorf("load quota state: %w", err)
	}
	if !ok {
		st = State{LastResetDate: t.today()}
	}
	t.state = st
	return t, nil
}

// Tier returns the current tier.
func (t *Tracker) Tier() Tier {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tier
}

// SetTier switches tiers, e.g. after an upgrade.
func (t *Tracker) SetTier(tier Tier) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tier = tier
}

// State returns the counters after applying any pending day rollover.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked()
	return t.state
}

// CanAccept reports whether one more correction may be accepted today.
func (t *Tracker) CanAccept() bool {
	return t.RemainingAccepts() != 0
}

// RemainingAccepts returns how many accepts are left today, or -1 when the
// tier is unlimited.
func (t *Tracker) RemainingAccepts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked()
	if t.tier.Unlimited() {
		return -1
	}
	return max(t.limits.DailyAccepts-t.state.AcceptsUsedToday, 0)
}

// WordLimitReached reports whether today's word allowance is used up.
func (t *Tracker) WordLimitReached() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked()
	return !t.tier.Unlimited() && t.state.WordsUsedToday >= t.limits.DailyWords
}

// RecordAccepts adds n resolved corrections to today's counter, capped at
// the daily limit, and returns the amount actually counted.
func (t *Tracker) RecordAccepts(ctx context.Context, n int) int {
	if n <= 0 {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked()
	if t.tier.Unlimited() {
		return 0
	}
	room := max(t.limits.DailyAccepts-t.state.AcceptsUsedToday, 0)
	n = min(n, room)
	if n == 0 {
		return 0
	}
	t.state.AcceptsUsedToday += n
	t.persistLocked(ctx)
	return n
}

// RecordWords adds the positive part of delta to today's word counter.
// Deletions never give words back. Paid tiers are not counted.
func (t *Tracker) RecordWords(ctx context.Context, delta int) {
	if delta <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked()
	if t.tier.Unlimited() {
		return
	}
	t.state.WordsUsedToday += delta
	t.persistLocked(ctx)
}

// Usage is a snapshot for limit banners.
type Usage struct {
	Tier           Tier    `json:"tier"`
	Unlimited      bool    `json:"unlimited"`
	WordsUsed      int     `json:"words_used"`
	WordsLimit     int     `json:"words_limit"`
	WordsPercent   float64 `json:"words_percent"`
	AcceptsUsed    int     `json:"accepts_used"`
	AcceptsLimit   int     `json:"accepts_limit"`
	AcceptsPercent float64 `json:"accepts_percent"`
	Near           bool    `json:"near"`
	Reached        bool    `json:"reached"`
	ResetDate      string  `json:"reset_date"`
}

// Usage reports the current consumption against the limits.
func (t *Tracker) Usage() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked()

	u := Usage{
		Tier:         t.tier,
		Unlimited:    t.tier.Unlimited(),
		WordsUsed:    t.state.WordsUsedToday,
		WordsLimit:   t.limits.DailyWords,
		AcceptsUsed:  t.state.AcceptsUsedToday,
		AcceptsLimit: t.limits.DailyAccepts,
		ResetDate:    t.state.LastResetDate,
	}
	if u.Unlimited {
		return u
	}
	u.WordsPercent = percent(u.WordsUsed, u.WordsLimit)
	u.AcceptsPercent = percent(u.AcceptsUsed, u.AcceptsLimit)
	u.Reached = u.WordsUsed >= u.WordsLimit || u.AcceptsUsed >= u.AcceptsLimit
	u.Near = u.Reached || u.WordsPercent >= float64(t.warn) || u.AcceptsPercent >= float64(t.warn)
	return u
}

func percent(used, limit int) float64 {
	if limit <= 0 {
		return 100
	}
	return float64(used) / float64(limit) * 100
}

func (t *Tracker) today() string {
	return t.clock.Now().Local().Format(DateLayout)
}

// rolloverLocked zeroes the counters once per calendar day. Calling it again
// on the same day is a no-op.
func (t *Tracker) rolloverLocked() {
	today := t.today()
	if t.state.LastResetDate == today {
		return
	}
	t.log.Info("daily quota reset",
		"previous_date", t.state.LastResetDate,
		"date", today,
		"words", t.state.WordsUsedToday,
		"accepts", t.state.AcceptsUsedToday)
	t.state = State{LastResetDate: today}
	t.persistLocked(context.Background())
}

func (t *Tracker) persistLocked(ctx context.Context) {
	if err := t.store.Save(ctx, t.user, t.state); err != nil {
		t.log.Warn("persist quota state", "user", t.user, "error", err)
	}
}
