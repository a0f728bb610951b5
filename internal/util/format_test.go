package util

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1.0K"},
		{1500, "1.5K"},
		{999999, "1000.0K"},
		{1000000, "1.0M"},
		{2500000, "2.5M"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatNumber(tt.input))
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{45 * time.Minute, "45m"},
		{time.Hour, "1h 0m"},
		{3*time.Hour + 29*time.Minute, "3h 29m"},
		{90 * time.Second, "1m"},
		{0, "0m"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatDuration(tt.input))
	}
}

func TestExpandPath(t *testing.T) {
	home := ExpandPath("~/somewhere")
	assert.True(t, filepath.IsAbs(home))
	assert.Equal(t, "somewhere", filepath.Base(home))

	abs := ExpandPath("/tmp/already-absolute")
	assert.Equal(t, "/tmp/already-absolute", abs)

	rel := ExpandPath("relative/path")
	assert.True(t, filepath.IsAbs(rel))
}
