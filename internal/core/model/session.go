package model

import "time"

// Session represents one activity window. StartTime and EndTime are Unix
// milliseconds and are fixed at creation; continued activity never extends
// the window. TotalTokens only ever grows, except through the explicit
// administrative set path.
type Session struct {
	ID          string `json:"id"`
	StartTime   int64  `json:"start_time"`
	EndTime     int64  `json:"end_time"`
	TotalTokens int64  `json:"total_tokens"`
}

// ActiveAt reports whether the session's window contains the given instant.
func (s *Session) ActiveAt(nowMs int64) bool {
	return s.StartTime <= nowMs && nowMs < s.EndTime
}

// RemainingAt returns the time left in the window, floored at zero.
func (s *Session) RemainingAt(nowMs int64) time.Duration {
	leftMs := s.EndTime - nowMs
	if leftMs < 0 {
		leftMs = 0
	}
	return time.Duration(leftMs) * time.Millisecond
}

// TimeRemaining is the hour/minute view of the active window served to the
// status injector.
type TimeRemaining struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}
