package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penwyp/go-claude-wrap/internal/core/cache"
	"github.com/penwyp/go-claude-wrap/internal/store"
)

func TestBillingCycleStart(t *testing.T) {
	tests := []struct {
		name       string
		now        time.Time
		renewalDay int
		want       time.Time
	}{
		{
			name:       "before renewal day anchors previous month",
			now:        time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC),
			renewalDay: 15,
			want:       time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "past renewal day anchors current month",
			now:        time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
			renewalDay: 15,
			want:       time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "on renewal day anchors current month",
			now:        time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
			renewalDay: 15,
			want:       time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "january wraps to december of previous year",
			now:        time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC),
			renewalDay: 15,
			want:       time.Date(2025, 12, 15, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, billingCycleStart(tt.now, tt.renewalDay))
		})
	}
}

func TestStartOfWeekIsSunday(t *testing.T) {
	// Thursday 2026-08-27 belongs to the week starting Sunday 2026-08-23.
	thursday := time.Date(2026, 8, 27, 18, 45, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC), startOfWeek(thursday))

	// A Sunday is its own week start.
	sunday := time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC), startOfWeek(sunday))
}

func TestBillingCycleValidation(t *testing.T) {
	mgr, _, _ := newTestManager(t, testConfig{})
	ctx := context.Background()

	var verr *ValidationError
	_, err := mgr.BillingCycleSessionCount(ctx, 0)
	assert.ErrorAs(t, err, &verr)
	_, err = mgr.BillingCycleSessionCount(ctx, 32)
	assert.ErrorAs(t, err, &verr)
	_, err = mgr.BillingCycleTokens(ctx, -3)
	assert.ErrorAs(t, err, &verr)
}

func TestAggregateCounts(t *testing.T) {
	mgr, st, _ := newTestManager(t, testConfig{})
	ctx := context.Background()

	// Clock is fixed at 2026-08-20 14:30 UTC (a Thursday). Week start is
	// Sunday 2026-08-16, month start 2026-08-01.
	insertAt := func(id string, at time.Time, tokens int64) {
		require.NoError(t, st.Insert(ctx, store.SessionRow{
			ID:          id,
			StartTime:   at.UnixMilli(),
			EndTime:     at.Add(time.Hour).UnixMilli(),
			TotalTokens: tokens,
		}))
	}

	insertAt("this-week", time.Date(2026, 8, 18, 10, 0, 0, 0, time.UTC), 100)
	insertAt("this-month", time.Date(2026, 8, 5, 10, 0, 0, 0, time.UTC), 200)
	insertAt("last-month", time.Date(2026, 7, 10, 10, 0, 0, 0, time.UTC), 400)

	assert.Equal(t, 2, mgr.MonthlySessionCount(ctx))
	assert.Equal(t, 1, mgr.WeeklySessionCount(ctx))
	assert.Equal(t, int64(100), mgr.WeeklyTokens(ctx))
	// Trailing 30 days reaches back to July 21, excluding the July 10 row.
	assert.Equal(t, int64(300), mgr.MonthlyTokens(ctx))

	// Renewal on the 15th: window starts 2026-08-15, only the week's row
	// and nothing older counts.
	count, err := mgr.BillingCycleSessionCount(ctx, 15)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	tokens, err := mgr.BillingCycleTokens(ctx, 15)
	require.NoError(t, err)
	assert.Equal(t, int64(100), tokens)

	// Renewal on the 25th: today (the 20th) is before it, so the window
	// starts 2026-07-25 and picks up both August rows.
	count, err = mgr.BillingCycleSessionCount(ctx, 25)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func newTestManagerCache(t *testing.T) *cache.Cache {
	t.Helper()
	c := cache.New(30*time.Second, time.Minute)
	t.Cleanup(c.Close)
	return c
}

func TestAggregatesFailToZero(t *testing.T) {
	c := newTestManagerCache(t)
	mgr := NewManager(&failAggregateStore{}, c, testConfig{})
	ctx := context.Background()

	assert.Equal(t, 0, mgr.MonthlySessionCount(ctx))
	assert.Equal(t, int64(0), mgr.WeeklyTokens(ctx))
}

type failAggregateStore struct {
	store.Store
}

func (s *failAggregateStore) CountSince(ctx context.Context, sinceMs int64) (int, error) {
	return 0, assert.AnError
}

func (s *failAggregateStore) SumTokensSince(ctx context.Context, sinceMs int64) (int64, error) {
	return 0, assert.AnError
}
