package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionActiveAt(t *testing.T) {
	s := &Session{ID: "s", StartTime: 1000, EndTime: 2000}

	assert.False(t, s.ActiveAt(999))
	assert.True(t, s.ActiveAt(1000), "window start is inclusive")
	assert.True(t, s.ActiveAt(1999))
	assert.False(t, s.ActiveAt(2000), "window end is exclusive")
}

func TestSessionRemainingAt(t *testing.T) {
	s := &Session{ID: "s", StartTime: 0, EndTime: 90_000}

	assert.Equal(t, 90*time.Second, s.RemainingAt(0))
	assert.Equal(t, 30*time.Second, s.RemainingAt(60_000))
	assert.Equal(t, time.Duration(0), s.RemainingAt(90_000))
	assert.Equal(t, time.Duration(0), s.RemainingAt(100_000), "never negative")
}
