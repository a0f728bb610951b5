package monitor

import (
	"context"
	"regexp"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/penwyp/go-claude-wrap/internal/core/model"
	"github.com/penwyp/go-claude-wrap/internal/util"
)

// SessionAPI is the slice of the session window manager the monitor
// consumes.
type SessionAPI interface {
	GetActiveSession(ctx context.Context) *model.Session
	CreateSession(ctx context.Context, candidateID string) (*model.Session, error)
	IncrementSessionTokens(ctx context.Context, id string, delta int64) error
}

// Claude renders a running token counter like "1234 tokens" in its status
// line. The monitor watches for it in the raw output stream.
var tokenPattern = regexp.MustCompile(`(\d+) tokens?\b`)

type trackingState int

const (
	stateIdle trackingState = iota
	stateStarted
	stateTracking
)

// Monitor infers usage activity for one wrapped Claude invocation from its
// output stream and reconciles the rendered counter against the persisted
// session total. The numbers come from someone else's UI, so this is
// deliberately approximate: the goal is never blocking the wrapped
// program, not audit-grade accounting.
type Monitor struct {
	api                 SessionAPI
	resumeJumpThreshold int64
	requestedID         string

	mu                sync.Mutex
	state             trackingState
	lastObservedCount int64
	instanceBaseline  int64
	lastReportedDelta int64
	resolvedSessionID string
	sessionRequested  bool
	updateInFlight    bool

	// Async store writes deliberately run on context.Background: closing
	// the wrapped session never cancels an in-flight write, it completes
	// or fails on its own.
	wg sync.WaitGroup
}

// NewMonitor creates a monitor for a single wrapped-process invocation.
// resumeJumpThreshold separates resumed-session re-renders from genuine
// fresh usage; pass 0 for the default.
func NewMonitor(api SessionAPI, resumeJumpThreshold int64) *Monitor {
	if resumeJumpThreshold <= 0 {
		resumeJumpThreshold = defaultResumeJumpThreshold
	}
	return &Monitor{
		api:                 api,
		resumeJumpThreshold: resumeJumpThreshold,
		requestedID:         uuid.NewString(),
	}
}

const defaultResumeJumpThreshold = 2000

// ProcessChunk scans one raw output chunk for the token counter and
// updates tracking state. It never blocks on the store; all session
// traffic happens on goroutines.
func (m *Monitor) ProcessChunk(chunk []byte) {
	count, ok := extractTokenCount(chunk)
	if !ok {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Claude re-renders the same number constantly; only a strict
	// increase means anything.
	if count <= m.lastObservedCount {
		return
	}
	prior := m.lastObservedCount
	m.lastObservedCount = count

	if m.state == stateIdle {
		m.beginTracking(prior, count)
	}

	if m.resolvedSessionID == "" {
		// Session creation still pending; the contribution keeps accruing
		// against the baseline and flushes once the id resolves.
		return
	}

	contribution := count - m.instanceBaseline
	delta := contribution - m.lastReportedDelta
	if delta <= 0 || m.updateInFlight {
		// In-flight updates are skipped, not queued; the next increase
		// picks up whatever this one missed.
		return
	}

	m.updateInFlight = true
	// Optimistic: recorded before the store write lands. A failed write
	// loses this delta rather than risking double counting on retry.
	m.lastReportedDelta = contribution

	m.wg.Add(1)
	go m.flush(delta)
}

// beginTracking decides the baseline on the first observed increase. A
// single jump from zero past the threshold means Claude is re-rendering a
// resumed session's total, so this instance's own contribution starts at
// zero. Anything smaller is a fresh start counted from the prior value.
func (m *Monitor) beginTracking(prior, count int64) {
	if prior == 0 && count > m.resumeJumpThreshold {
		m.instanceBaseline = count
		util.LogInfof("Resume jump detected (0 -> %d), baseline set to %d", count, count)
	} else {
		m.instanceBaseline = prior
	}
	m.state = stateStarted

	if !m.sessionRequested {
		m.sessionRequested = true
		m.wg.Add(1)
		go m.resolveSession()
	}
}

// resolveSession asks the manager for a session exactly once per
// invocation. The manager may hand back a different id than requested when
// an active window already exists; that id is authoritative.
func (m *Monitor) resolveSession() {
	defer m.wg.Done()

	sess, err := m.api.CreateSession(context.Background(), m.requestedID)
	if err != nil {
		util.LogErrorf("Session create failed, tokens will not be recorded: %v", err)
		return
	}

	m.mu.Lock()
	m.resolvedSessionID = sess.ID
	m.state = stateTracking
	m.mu.Unlock()

	util.LogDebugf("Monitor resolved session %s (requested %s)", sess.ID, m.requestedID)
}

// flush persists one delta. The active window may have rolled over since
// the baseline was set, so the current active id is fetched first.
func (m *Monitor) flush(delta int64) {
	defer m.wg.Done()

	ctx := context.Background()
	id := m.currentResolvedID()
	if current := m.api.GetActiveSession(ctx); current != nil {
		id = current.ID
	}

	if err := m.api.IncrementSessionTokens(ctx, id, delta); err != nil {
		// Accepted drift: lastReportedDelta is not rolled back.
		util.LogErrorf("Token increment of %d on session %s failed: %v", delta, id, err)
	}

	m.mu.Lock()
	m.updateInFlight = false
	m.mu.Unlock()
}

func (m *Monitor) currentResolvedID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolvedSessionID
}

// Sync waits for pending async session traffic to settle.
func (m *Monitor) Sync() {
	m.wg.Wait()
}

// Close drains pending work and flushes a final log line. No further store
// writes happen after it returns.
func (m *Monitor) Close() {
	m.Sync()

	m.mu.Lock()
	count := m.lastObservedCount
	m.mu.Unlock()
	util.LogInfof("Monitor closed, last observed count %d", count)
}

// extractTokenCount returns the largest token count rendered in the chunk.
// A redraw can carry several; the largest is the current one.
func extractTokenCount(chunk []byte) (int64, bool) {
	matches := tokenPattern.FindAllSubmatch(chunk, -1)
	if len(matches) == 0 {
		return 0, false
	}

	var max int64
	found := false
	for _, match := range matches {
		n, err := strconv.ParseInt(string(match[1]), 10, 64)
		if err != nil {
			continue
		}
		found = true
		if n > max {
			max = n
		}
	}
	return max, found
}
