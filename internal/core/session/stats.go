package session

import (
	"context"
	"time"

	"github.com/penwyp/go-claude-wrap/internal/core/constants"
	"github.com/penwyp/go-claude-wrap/internal/util"
)

// Aggregate queries are read-mostly and cached for a short interval. Store
// failures degrade to zero: these numbers feed status displays, not
// billing.

// MonthlySessionCount counts sessions started in the current calendar
// month.
func (m *Manager) MonthlySessionCount(ctx context.Context) int {
	return m.cachedCount(ctx, keyMonthlyCount, startOfMonth(m.now()))
}

// WeeklySessionCount counts sessions started this week, with weeks
// starting on Sunday.
func (m *Manager) WeeklySessionCount(ctx context.Context) int {
	return m.cachedCount(ctx, keyWeeklyCount, startOfWeek(m.now()))
}

// BillingCycleSessionCount counts sessions started in the billing window
// anchored at renewalDay of the month.
func (m *Manager) BillingCycleSessionCount(ctx context.Context, renewalDay int) (int, error) {
	if err := validateRenewalDay(renewalDay); err != nil {
		return 0, err
	}
	return m.cachedCount(ctx, keyBillingCount(renewalDay), billingCycleStart(m.now(), renewalDay)), nil
}

// MonthlyTokens sums tokens over the trailing 30 days.
func (m *Manager) MonthlyTokens(ctx context.Context) int64 {
	return m.cachedSum(ctx, keyMonthlyTokens, m.now().AddDate(0, 0, -30))
}

// WeeklyTokens sums tokens for the week starting Sunday.
func (m *Manager) WeeklyTokens(ctx context.Context) int64 {
	return m.cachedSum(ctx, keyWeeklyTokens, startOfWeek(m.now()))
}

// BillingCycleTokens sums tokens over the billing window anchored at
// renewalDay of the month.
func (m *Manager) BillingCycleTokens(ctx context.Context, renewalDay int) (int64, error) {
	if err := validateRenewalDay(renewalDay); err != nil {
		return 0, err
	}
	return m.cachedSum(ctx, keyBillingTokens(renewalDay), billingCycleStart(m.now(), renewalDay)), nil
}

func (m *Manager) cachedCount(ctx context.Context, key string, since time.Time) int {
	v, err := m.cache.GetOrCompute(key, func() (interface{}, error) {
		return m.store.CountSince(ctx, since.UnixMilli())
	}, constants.StatsCacheTTL)
	if err != nil {
		util.LogWarnf("Session count query failed for %s: %v", key, err)
		return 0
	}
	count, _ := v.(int)
	return count
}

func (m *Manager) cachedSum(ctx context.Context, key string, since time.Time) int64 {
	v, err := m.cache.GetOrCompute(key, func() (interface{}, error) {
		return m.store.SumTokensSince(ctx, since.UnixMilli())
	}, constants.StatsCacheTTL)
	if err != nil {
		util.LogWarnf("Token sum query failed for %s: %v", key, err)
		return 0
	}
	sum, _ := v.(int64)
	return sum
}

// Window start helpers. All boundaries are midnight in the process-local
// timezone.

func startOfMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}

func startOfWeek(now time.Time) time.Time {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return midnight.AddDate(0, 0, -int(now.Weekday()))
}

// billingCycleStart anchors the window at renewalDay of the current month
// when today is on or past it, otherwise at renewalDay of the previous
// month. Days past the end of a short month normalize forward.
func billingCycleStart(now time.Time, renewalDay int) time.Time {
	month := now.Month()
	year := now.Year()
	if now.Day() < renewalDay {
		month--
	}
	return time.Date(year, month, renewalDay, 0, 0, 0, 0, now.Location())
}
