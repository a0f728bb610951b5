package inject

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/penwyp/go-claude-wrap/internal/core/constants"
	"github.com/penwyp/go-claude-wrap/internal/core/model"
	"github.com/penwyp/go-claude-wrap/internal/util"
)

// TimeProvider is the slice of the session window manager the injector
// consumes.
type TimeProvider interface {
	GetSessionTimeRemaining(ctx context.Context) *model.TimeRemaining
}

const (
	statusLabel = "⏱"
	colorStart  = "\x1b[36m"
	colorReset  = "\x1b[0m"
)

var tokenText = regexp.MustCompile(`(\d+) tokens?\b`)

// Injector rewrites outgoing output chunks in place to superimpose a
// session-time-remaining label onto Claude's own status line. It only
// touches chunks that carry the token counter inside a wide whitespace
// run, and it keeps the counter at its original column so the visual
// layout survives.
type Injector struct {
	provider TimeProvider

	// structural matches a run of whitespace, optional SGR sequences,
	// then the token counter. The run length tracks Claude's current
	// rendering and is configurable for that reason.
	structural *regexp.Regexp

	statusMu sync.RWMutex
	status   string

	mu                sync.Mutex
	replacing         bool
	lastInjectedCount int64
	lastInjectedAt    time.Time
	lastRefreshReq    time.Time

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewInjector creates an injector reading time-remaining from provider.
// minWhitespaceRun is the smallest padding run considered injectable; pass
// 0 for the default.
func NewInjector(provider TimeProvider, minWhitespaceRun int) *Injector {
	if minWhitespaceRun <= 0 {
		minWhitespaceRun = constants.DefaultMinWhitespaceRun
	}
	inj := &Injector{
		provider: provider,
		structural: regexp.MustCompile(
			fmt.Sprintf(`( {%d,})((?:\x1b\[[0-9;]*m)*)(\d+ tokens?\b)`, minWhitespaceRun)),
		status: statusLabel + " no active session",
		stop:   make(chan struct{}),
	}
	return inj
}

// Start begins the fixed-interval status refresh loop.
func (inj *Injector) Start(ctx context.Context) {
	inj.refreshStatus(ctx)

	inj.wg.Add(1)
	go func() {
		defer inj.wg.Done()
		ticker := time.NewTicker(constants.StatusRefreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-inj.stop:
				return
			case <-ticker.C:
				inj.refreshStatus(ctx)
			}
		}
	}()
}

// Stop cancels the refresh loop.
func (inj *Injector) Stop() {
	inj.stopOnce.Do(func() {
		close(inj.stop)
	})
	inj.wg.Wait()
}

func (inj *Injector) refreshStatus(ctx context.Context) {
	remaining := inj.provider.GetSessionTimeRemaining(ctx)

	var status string
	if remaining == nil {
		status = statusLabel + " no active session"
	} else {
		status = fmt.Sprintf("%s %dh %dm remaining", statusLabel, remaining.Hours, remaining.Minutes)
	}

	inj.statusMu.Lock()
	inj.status = status
	inj.statusMu.Unlock()
}

func (inj *Injector) currentStatus() string {
	inj.statusMu.RLock()
	defer inj.statusMu.RUnlock()
	return inj.status
}

// ProcessChunk returns the chunk with the status label injected when safe,
// or the chunk unchanged. It must never corrupt layout: any doubt means
// passthrough.
func (inj *Injector) ProcessChunk(chunk []byte) []byte {
	inj.mu.Lock()
	if inj.replacing {
		// Another chunk is mid-rewrite; pass this one through untouched.
		inj.mu.Unlock()
		return chunk
	}
	inj.replacing = true
	inj.mu.Unlock()

	defer func() {
		inj.mu.Lock()
		inj.replacing = false
		inj.mu.Unlock()
	}()

	count, ok := chunkTokenCount(chunk)
	if !ok {
		return chunk
	}

	now := time.Now()

	// A token-count change is a good moment to refresh the label, but not
	// more than twice a second.
	inj.mu.Lock()
	if now.Sub(inj.lastRefreshReq) >= constants.InjectDedupWindow {
		inj.lastRefreshReq = now
		inj.wg.Add(1)
		go func() {
			defer inj.wg.Done()
			inj.refreshStatus(context.Background())
		}()
	}

	// Mid-render partial writes have no line break and are short; touching
	// them corrupts the redraw in progress.
	if !bytes.ContainsAny(chunk, "\r\n") && len(chunk) < constants.MinInjectableChunkSize {
		inj.mu.Unlock()
		return chunk
	}

	// Rapid redraws repeat an unchanged value; injecting again is wasted
	// churn.
	if count == inj.lastInjectedCount && now.Sub(inj.lastInjectedAt) < constants.InjectDedupWindow {
		inj.mu.Unlock()
		return chunk
	}
	inj.mu.Unlock()

	out, injected := inj.inject(chunk)
	if injected {
		inj.mu.Lock()
		inj.lastInjectedCount = count
		inj.lastInjectedAt = now
		inj.mu.Unlock()
	}
	return out
}

// inject performs the structural replacement. The whitespace run is
// rewritten as left padding, the colored status, then padding out to the
// original column of the counter, so the counter does not move.
func (inj *Injector) inject(chunk []byte) ([]byte, bool) {
	loc := inj.structural.FindSubmatchIndex(chunk)
	if loc == nil {
		return chunk, false
	}

	runStart, runEnd := loc[2], loc[3]
	runLen := runEnd - runStart

	status := inj.currentStatus()
	statusWidth := runewidth.StringWidth(status)

	fill := runLen - constants.InjectLeftPadding - statusWidth
	if fill < constants.InjectMinGap {
		// Not enough room; never truncate or wrap the label.
		return chunk, false
	}

	var buf bytes.Buffer
	buf.Grow(len(chunk) + len(colorStart) + len(colorReset) + len(status))
	buf.Write(chunk[:runStart])
	buf.Write(bytes.Repeat([]byte{' '}, constants.InjectLeftPadding))
	buf.WriteString(colorStart)
	buf.WriteString(status)
	buf.WriteString(colorReset)
	buf.Write(bytes.Repeat([]byte{' '}, fill))
	buf.Write(chunk[runEnd:])

	util.LogDebugf("Injected status %q over %d-column run", status, runLen)
	return buf.Bytes(), true
}

// chunkTokenCount returns the largest token count rendered in the chunk.
func chunkTokenCount(chunk []byte) (int64, bool) {
	matches := tokenText.FindAllSubmatch(chunk, -1)
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
