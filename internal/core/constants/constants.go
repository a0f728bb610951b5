package constants

import "time"

const (
	// Session window durations
	DefaultSessionDuration = 5 * time.Hour
	DefaultSessionLengthMs = int64(5 * 3600 * 1000)

	// End-of-window safety margin subtracted at session creation so the
	// wrapper never claims time the upstream limiter has already reclaimed.
	SessionEndSafetyMarginMs = int64(60 * 1000)

	// Cache TTLs for the session window manager
	ActiveSessionCacheTTL = 10 * time.Second
	StatsCacheTTL         = 30 * time.Second

	// Background sweep interval for the TTL cache
	CacheSweepInterval = 60 * time.Second

	// Resume detection: a single jump from 0 past this many tokens is
	// treated as Claude re-rendering a resumed session's running total,
	// not as new usage produced by this invocation.
	DefaultResumeJumpThreshold = 2000

	// Status injection tuning. Both track Claude's current status-line
	// rendering and are overridable through the config file since that
	// format is not contractually stable.
	DefaultMinWhitespaceRun = 50
	MinInjectableChunkSize  = 80

	// Injector left padding and the minimum gap kept between the injected
	// label and the original token counter.
	InjectLeftPadding = 2
	InjectMinGap      = 2

	// Throttles shared by the monitor and the injector
	StatusRefreshInterval = 5 * time.Second
	InjectDedupWindow     = 500 * time.Millisecond

	// Validation bounds
	MaxSessionIDLength = 100
	MaxPurgeKeepCount  = 10000
)
