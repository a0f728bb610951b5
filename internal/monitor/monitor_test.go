package monitor

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penwyp/go-claude-wrap/internal/core/model"
)

// fakeAPI records session traffic from the monitor.
type fakeAPI struct {
	mu         sync.Mutex
	active     *model.Session
	created    []string
	increments []increment
	createErr  error

	// When set, IncrementSessionTokens blocks until released. Used to
	// exercise the single-flight guard.
	incrementGate chan struct{}
}

type increment struct {
	id    string
	delta int64
}

func (f *fakeAPI) GetActiveSession(ctx context.Context) *model.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *fakeAPI) CreateSession(ctx context.Context, candidateID string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, candidateID)
	if f.active == nil {
		f.active = &model.Session{ID: "resolved-session", StartTime: 0, EndTime: 1 << 60}
	}
	return f.active, nil
}

func (f *fakeAPI) IncrementSessionTokens(ctx context.Context, id string, delta int64) error {
	if f.incrementGate != nil {
		<-f.incrementGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.increments = append(f.increments, increment{id: id, delta: delta})
	return nil
}

func (f *fakeAPI) totalIncremented() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, inc := range f.increments {
		total += inc.delta
	}
	return total
}

func TestProcessChunkNoMatch(t *testing.T) {
	api := &fakeAPI{}
	m := NewMonitor(api, 0)

	m.ProcessChunk([]byte("plain output with no counter"))
	m.Sync()

	assert.Empty(t, api.created, "no counter means no session")
	assert.Equal(t, int64(0), m.lastObservedCount)
}

func TestProcessChunkRepeatedCountIgnored(t *testing.T) {
	api := &fakeAPI{}
	m := NewMonitor(api, 0)

	m.ProcessChunk([]byte("  100 tokens"))
	m.Sync()
	m.ProcessChunk([]byte("  100 tokens"))
	m.ProcessChunk([]byte("  99 tokens"))
	m.Sync()

	// UI re-renders of the same (or a smaller) number are no-ops.
	assert.Equal(t, int64(100), m.lastObservedCount)
	assert.Len(t, api.created, 1)
	assert.Equal(t, int64(0), api.totalIncremented())
}

func TestFreshStartBaseline(t *testing.T) {
	api := &fakeAPI{}
	m := NewMonitor(api, 2000)

	// 0 -> 1500 is below the resume threshold: a genuine fresh start.
	m.ProcessChunk([]byte("  1500 tokens"))
	m.Sync()
	assert.Equal(t, int64(0), m.instanceBaseline)

	m.ProcessChunk([]byte("  1600 tokens"))
	m.Sync()

	// Contribution is counted from zero.
	assert.Equal(t, int64(1600), api.totalIncremented())
}

func TestResumeJumpBaseline(t *testing.T) {
	api := &fakeAPI{}
	m := NewMonitor(api, 2000)

	// 0 -> 5000 in one jump reads as a resumed session re-rendering its
	// total; this instance's own contribution starts at zero.
	m.ProcessChunk([]byte("  5000 tokens"))
	m.Sync()
	assert.Equal(t, int64(5000), m.instanceBaseline)
	assert.Equal(t, int64(0), api.totalIncremented())

	m.ProcessChunk([]byte("  5200 tokens"))
	m.Sync()
	assert.Equal(t, int64(200), api.totalIncremented())
}

func TestSessionRequestedExactlyOnce(t *testing.T) {
	api := &fakeAPI{}
	m := NewMonitor(api, 0)

	m.ProcessChunk([]byte("  10 tokens"))
	m.ProcessChunk([]byte("  20 tokens"))
	m.ProcessChunk([]byte("  30 tokens"))
	m.Sync()

	require.Len(t, api.created, 1)
	assert.Equal(t, m.requestedID, api.created[0])
	assert.Equal(t, "resolved-session", m.currentResolvedID())
}

func TestIncrementsTargetCurrentActiveSession(t *testing.T) {
	api := &fakeAPI{}
	m := NewMonitor(api, 0)

	m.ProcessChunk([]byte("  10 tokens"))
	m.Sync()

	// The window rolls over to a new session between observations; the
	// increment must land on the new window, not the stale resolved id.
	api.mu.Lock()
	api.active = &model.Session{ID: "rolled-over", StartTime: 0, EndTime: 1 << 60}
	api.mu.Unlock()

	m.ProcessChunk([]byte("  50 tokens"))
	m.Sync()

	require.NotEmpty(t, api.increments)
	assert.Equal(t, "rolled-over", api.increments[len(api.increments)-1].id)
}

func TestSingleFlightSkipsWhileInFlight(t *testing.T) {
	api := &fakeAPI{incrementGate: make(chan struct{})}
	m := NewMonitor(api, 0)

	m.ProcessChunk([]byte("  10 tokens"))
	m.Sync() // session resolved, no increment yet

	m.ProcessChunk([]byte("  20 tokens")) // starts a blocked flush of 20
	m.ProcessChunk([]byte("  30 tokens")) // skipped: update in flight

	close(api.incrementGate)
	m.Sync()

	// The skipped update is dropped, not queued; only one write happened.
	require.Len(t, api.increments, 1)
	assert.Equal(t, int64(20), api.increments[0].delta)

	// The next increase picks up everything missed so far.
	m.ProcessChunk([]byte("  35 tokens"))
	m.Sync()
	assert.Equal(t, int64(35), api.totalIncremented())
}

func TestCreateFailureStopsRecordingNotObservation(t *testing.T) {
	api := &fakeAPI{createErr: assert.AnError}
	m := NewMonitor(api, 0)

	m.ProcessChunk([]byte("  10 tokens"))
	m.Sync()
	m.ProcessChunk([]byte("  20 tokens"))
	m.Sync()

	// Observation continues even though nothing can be recorded.
	assert.Equal(t, int64(20), m.lastObservedCount)
	assert.Empty(t, api.increments)
}

func TestExtractTokenCount(t *testing.T) {
	tests := []struct {
		name  string
		chunk string
		want  int64
		ok    bool
	}{
		{name: "simple", chunk: "123 tokens", want: 123, ok: true},
		{name: "singular", chunk: "1 token", want: 1, ok: true},
		{name: "embedded in redraw", chunk: "\x1b[2K\x1b[1G  42 tokens \x1b[0m", want: 42, ok: true},
		{name: "several counts keeps largest", chunk: "5 tokens ... 900 tokens", want: 900, ok: true},
		{name: "no match", chunk: "tokenizer warming up", ok: false},
		{name: "word boundary", chunk: "300 tokenstream", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractTokenCount([]byte(tt.chunk))
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
