package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/penwyp/go-claude-wrap/internal/core/cache"
	"github.com/penwyp/go-claude-wrap/internal/core/constants"
	"github.com/penwyp/go-claude-wrap/internal/core/model"
	"github.com/penwyp/go-claude-wrap/internal/store"
	"github.com/penwyp/go-claude-wrap/internal/util"
)

// Cache keys owned by the manager. The active-session entry caches an
// explicit nil to absorb lookup bursts when no window is open; a cache
// miss means "not yet queried", a cached nil means "queried, none".
const (
	keyActiveSession = "active_session"

	keyMonthlyCount  = "stats:monthly_count"
	keyWeeklyCount   = "stats:weekly_count"
	keyMonthlyTokens = "stats:monthly_tokens"
	keyWeeklyTokens  = "stats:weekly_tokens"
	keyAnalytics     = "stats:analytics"
)

func keyBillingCount(day int) string  { return fmt.Sprintf("stats:billing_count:%d", day) }
func keyBillingTokens(day int) string { return fmt.Sprintf("stats:billing_tokens:%d", day) }

// ConfigProvider is the slice of configuration the manager consumes.
type ConfigProvider interface {
	SessionLengthMs() int64
	SubscriptionRenewalDay() (int, bool)
}

// Manager owns the session window lifecycle and aggregate queries. All
// collaborators are injected; the manager holds no ambient global state.
type Manager struct {
	store store.Store
	cache *cache.Cache
	cfg   ConfigProvider

	// now is injectable so tests can drive the wall clock.
	now func() time.Time
}

// NewManager creates a session window manager over the given store, cache
// and configuration.
func NewManager(st store.Store, c *cache.Cache, cfg ConfigProvider) *Manager {
	return &Manager{
		store: st,
		cache: c,
		cfg:   cfg,
		now:   time.Now,
	}
}

// GetActiveSession returns the session whose window contains the current
// instant, or nil when there is none. The result is served from cache when
// possible; a cached hit is still revalidated against the wall clock since
// the window may have closed after the entry was written. Store failures
// degrade to nil: the wrapped program is never blocked on store health.
func (m *Manager) GetActiveSession(ctx context.Context) *model.Session {
	nowMs := m.now().UnixMilli()

	if v, ok := m.cache.Get(keyActiveSession); ok {
		sess, _ := v.(*model.Session)
		if sess == nil {
			return nil
		}
		if sess.ActiveAt(nowMs) {
			return sess
		}
		// Entry outlived its own window; fall through to the store.
	}

	return m.queryAndCacheActive(ctx, nowMs)
}

func (m *Manager) queryAndCacheActive(ctx context.Context, nowMs int64) *model.Session {
	row, err := m.store.FindActive(ctx, nowMs)
	if err != nil {
		util.LogWarnf("Active session lookup failed, degrading to none: %v", err)
		m.cache.SetWithTTL(keyActiveSession, (*model.Session)(nil), constants.ActiveSessionCacheTTL)
		return nil
	}

	var sess *model.Session
	if row != nil {
		sess = row.ToModel()
	}
	m.cache.SetWithTTL(keyActiveSession, sess, constants.ActiveSessionCacheTTL)
	return sess
}

// CreateSession opens a new activity window, or joins the existing one: if
// an active session already exists the call returns it unchanged, so two
// racing callers never start two windows. The candidate id is only used
// when this call actually creates the row; the returned session's id is
// authoritative.
func (m *Manager) CreateSession(ctx context.Context, candidateID string) (*model.Session, error) {
	if err := validateSessionID(candidateID); err != nil {
		return nil, err
	}

	if existing := m.GetActiveSession(ctx); existing != nil {
		return existing, nil
	}

	nowMs := m.now().UnixMilli()
	row := store.SessionRow{
		ID:        candidateID,
		StartTime: nowMs,
		EndTime:   nowMs + m.cfg.SessionLengthMs() - constants.SessionEndSafetyMarginMs,
	}

	err := m.store.Insert(ctx, row)
	if errors.Is(err, store.ErrDuplicateID) {
		// A concurrent wrapper won the insert race. Reconcile by reading
		// back whatever window it opened.
		util.LogDebugf("Session insert conflict on %s, adopting winner", candidateID)
		winner := m.queryAndCacheActive(ctx, nowMs)
		if winner != nil {
			return winner, nil
		}
		return nil, fmt.Errorf("session %s conflicted but no active session found", candidateID)
	}
	if err != nil {
		return nil, err
	}

	sess := row.ToModel()
	m.invalidateStats()
	// Seed the cache so a concurrent reader sees the new window without a
	// store round-trip.
	m.cache.SetWithTTL(keyActiveSession, sess, constants.ActiveSessionCacheTTL)

	util.LogInfof("Session %s started, window ends %s", sess.ID,
		time.UnixMilli(sess.EndTime).Format(time.RFC3339))
	return sess, nil
}

// invalidateStats drops aggregate entries that a new session row makes
// stale.
func (m *Manager) invalidateStats() {
	m.cache.Delete(keyMonthlyCount)
	m.cache.Delete(keyWeeklyCount)
	m.cache.Delete(keyMonthlyTokens)
	m.cache.Delete(keyWeeklyTokens)
	m.cache.Delete(keyAnalytics)
	if day, ok := m.cfg.SubscriptionRenewalDay(); ok {
		m.cache.Delete(keyBillingCount(day))
		m.cache.Delete(keyBillingTokens(day))
	}
}

// GetSessionTimeRemaining returns the hour/minute view of the active
// window, nil when no window is open. Already-closed windows floor to
// zero rather than going negative.
func (m *Manager) GetSessionTimeRemaining(ctx context.Context) *model.TimeRemaining {
	sess := m.GetActiveSession(ctx)
	if sess == nil {
		return nil
	}

	left := sess.RemainingAt(m.now().UnixMilli())
	return &model.TimeRemaining{
		Hours:   int(left.Hours()),
		Minutes: int(left.Minutes()) % 60,
	}
}

// IncrementSessionTokens adds delta to the session's token counter.
func (m *Manager) IncrementSessionTokens(ctx context.Context, id string, delta int64) error {
	if err := validateSessionID(id); err != nil {
		return err
	}
	if delta < 0 {
		return &ValidationError{Field: "token delta", Reason: "must be non-negative"}
	}
	return m.store.AddTokens(ctx, id, delta)
}

// SetSessionTokens overwrites the session's token counter. This is the
// administrative correction path; normal accounting only ever increments.
func (m *Manager) SetSessionTokens(ctx context.Context, id string, total int64) error {
	if err := validateSessionID(id); err != nil {
		return err
	}
	if total < 0 {
		return &ValidationError{Field: "token total", Reason: "must be non-negative"}
	}
	return m.store.SetTokens(ctx, id, total)
}

// PurgeKeepingLatest deletes all sessions except the n most recently
// started and returns the number deleted.
func (m *Manager) PurgeKeepingLatest(ctx context.Context, n int) (int64, error) {
	if n < 0 || n > constants.MaxPurgeKeepCount {
		return 0, &ValidationError{Field: "keep count",
			Reason: fmt.Sprintf("must be between 0 and %d", constants.MaxPurgeKeepCount)}
	}

	deleted, err := m.store.DeleteKeepingLatest(ctx, n)
	if err != nil {
		return 0, err
	}
	m.invalidateStats()
	m.cache.Delete(keyActiveSession)
	return deleted, nil
}
