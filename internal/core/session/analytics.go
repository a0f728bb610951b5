package session

import (
	"context"
	"time"

	"github.com/penwyp/go-claude-wrap/internal/core/constants"
	"github.com/penwyp/go-claude-wrap/internal/core/model"
	"github.com/penwyp/go-claude-wrap/internal/store"
	"github.com/penwyp/go-claude-wrap/internal/util"
)

// DetailedAnalytics reports the busiest hour-of-day and day-of-week for
// session starts this month, plus per-day counts and token sums for the
// trailing seven days. When counts tie, the earliest hour/day wins. Store
// failures degrade to nil like every other read path.
func (m *Manager) DetailedAnalytics(ctx context.Context) *model.Analytics {
	v, err := m.cache.GetOrCompute(keyAnalytics, func() (interface{}, error) {
		return m.computeAnalytics(ctx)
	}, constants.StatsCacheTTL)
	if err != nil {
		util.LogWarnf("Analytics query failed: %v", err)
		return nil
	}
	analytics, _ := v.(*model.Analytics)
	return analytics
}

func (m *Manager) computeAnalytics(ctx context.Context) (*model.Analytics, error) {
	now := m.now()

	monthRows, err := m.store.ListSince(ctx, startOfMonth(now).UnixMilli())
	if err != nil {
		return nil, err
	}

	weekStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -6)
	weekRows, err := m.store.ListSince(ctx, weekStart.UnixMilli())
	if err != nil {
		return nil, err
	}

	analytics := &model.Analytics{
		MostActiveHour:    busiestHour(monthRows, now.Location()),
		MostActiveWeekday: busiestWeekday(monthRows, now.Location()),
		Daily:             dailyActivity(weekRows, weekStart, now.Location()),
	}
	return analytics, nil
}

func busiestHour(rows []store.SessionRow, loc *time.Location) int {
	var counts [24]int
	for _, r := range rows {
		counts[time.UnixMilli(r.StartTime).In(loc).Hour()]++
	}

	best := 0
	for hour, count := range counts {
		if count > counts[best] {
			best = hour
		}
	}
	return best
}

func busiestWeekday(rows []store.SessionRow, loc *time.Location) time.Weekday {
	var counts [7]int
	for _, r := range rows {
		counts[time.UnixMilli(r.StartTime).In(loc).Weekday()]++
	}

	best := 0
	for day, count := range counts {
		if count > counts[best] {
			best = day
		}
	}
	return time.Weekday(best)
}

// dailyActivity buckets rows into the seven calendar days ending today.
func dailyActivity(rows []store.SessionRow, weekStart time.Time, loc *time.Location) []model.DailyActivity {
	const days = 7

	daily := make([]model.DailyActivity, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		date := weekStart.AddDate(0, 0, i).Format("2006-01-02")
		daily[i] = model.DailyActivity{Date: date}
		index[date] = i
	}

	for _, r := range rows {
		date := time.UnixMilli(r.StartTime).In(loc).Format("2006-01-02")
		if i, ok := index[date]; ok {
			daily[i].Sessions++
			daily[i].Tokens += r.TotalTokens
		}
	}
	return daily
}
