package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penwyp/go-claude-wrap/internal/store"
)

func TestDetailedAnalytics(t *testing.T) {
	mgr, st, _ := newTestManager(t, testConfig{})
	ctx := context.Background()

	// Clock is fixed at Thursday 2026-08-20 14:30 UTC.
	insertAt := func(id string, at time.Time, tokens int64) {
		require.NoError(t, st.Insert(ctx, store.SessionRow{
			ID:          id,
			StartTime:   at.UnixMilli(),
			EndTime:     at.Add(time.Hour).UnixMilli(),
			TotalTokens: tokens,
		}))
	}

	// Two starts at 09:00, one at 14:00: nine o'clock wins.
	insertAt("a", time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC), 10)   // Monday
	insertAt("b", time.Date(2026, 8, 10, 9, 30, 0, 0, time.UTC), 20) // Monday
	insertAt("c", time.Date(2026, 8, 18, 14, 0, 0, 0, time.UTC), 40) // Tuesday

	analytics := mgr.DetailedAnalytics(ctx)
	require.NotNil(t, analytics)

	assert.Equal(t, 9, analytics.MostActiveHour)
	// Monday has two starts to Tuesday's one.
	assert.Equal(t, time.Monday, analytics.MostActiveWeekday)

	// Trailing seven days: 2026-08-14 through 2026-08-20.
	require.Len(t, analytics.Daily, 7)
	assert.Equal(t, "2026-08-14", analytics.Daily[0].Date)
	assert.Equal(t, "2026-08-20", analytics.Daily[6].Date)

	byDate := map[string]int{}
	for i, day := range analytics.Daily {
		byDate[day.Date] = i
	}
	aug18 := analytics.Daily[byDate["2026-08-18"]]
	assert.Equal(t, 1, aug18.Sessions)
	assert.Equal(t, int64(40), aug18.Tokens)
	aug19 := analytics.Daily[byDate["2026-08-19"]]
	assert.Equal(t, 0, aug19.Sessions)
	assert.Equal(t, int64(0), aug19.Tokens)
}

func TestDetailedAnalyticsTieBreak(t *testing.T) {
	mgr, st, _ := newTestManager(t, testConfig{})
	ctx := context.Background()

	// One start at 08:00 and one at 16:00 on different weekdays: ties
	// resolve to the earliest hour and earliest weekday.
	starts := []time.Time{
		time.Date(2026, 8, 4, 16, 0, 0, 0, time.UTC), // Tuesday
		time.Date(2026, 8, 10, 8, 0, 0, 0, time.UTC), // Monday
	}
	for i, at := range starts {
		require.NoError(t, st.Insert(ctx, store.SessionRow{
			ID:        fmt.Sprintf("tie-%d", i),
			StartTime: at.UnixMilli(),
			EndTime:   at.Add(time.Hour).UnixMilli(),
		}))
	}

	analytics := mgr.DetailedAnalytics(ctx)
	require.NotNil(t, analytics)
	assert.Equal(t, 8, analytics.MostActiveHour)
	assert.Equal(t, time.Monday, analytics.MostActiveWeekday)
}

func TestDetailedAnalyticsEmptyStore(t *testing.T) {
	mgr, _, _ := newTestManager(t, testConfig{})

	analytics := mgr.DetailedAnalytics(context.Background())
	require.NotNil(t, analytics)
	assert.Equal(t, 0, analytics.MostActiveHour)
	assert.Equal(t, time.Sunday, analytics.MostActiveWeekday)
	assert.Len(t, analytics.Daily, 7)
}
