package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/penwyp/go-claude-wrap/internal/core/constants"
	"github.com/penwyp/go-claude-wrap/internal/util"
)

// Defaults and file locations. Everything lives under ~/.claude-wrap.
const (
	DefaultConfigDir    = "~/.claude-wrap"
	DefaultDatabaseFile = "~/.claude-wrap/sessions.db"
	DefaultLogFile      = "~/.claude-wrap/logs/wrap.log"
)

// Config exposes the wrapper's settings. Values come from
// ~/.claude-wrap/config.yaml with sensible defaults for a missing file,
// and the file is watched so tuning constants (the resume threshold, the
// whitespace-run width) can be adjusted without restarting a session.
type Config struct {
	v *viper.Viper
}

// Load reads the config file from dir (the default directory when empty).
func Load(dir string) (*Config, error) {
	if dir == "" {
		dir = DefaultConfigDir
	}
	dir = util.ExpandPath(dir)

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetDefault("session_length_hours", 5)
	v.SetDefault("subscription_renewal_day", 0)
	v.SetDefault("resume_jump_threshold", constants.DefaultResumeJumpThreshold)
	v.SetDefault("min_whitespace_run", constants.DefaultMinWhitespaceRun)
	v.SetDefault("database_path", DefaultDatabaseFile)
	v.SetDefault("log_file", DefaultLogFile)
	v.SetDefault("log_level", "info")
	v.SetDefault("claude_path", "claude")

	err := v.ReadInConfig()
	if err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, err
		}
		// No file is fine, defaults carry the day.
	} else {
		v.OnConfigChange(func(e fsnotify.Event) {
			util.LogInfof("Config reloaded from %s", e.Name)
		})
		v.WatchConfig()
	}

	return &Config{v: v}, nil
}

// SessionLengthMs returns the configured session window length in
// milliseconds.
func (c *Config) SessionLengthMs() int64 {
	hours := c.v.GetInt64("session_length_hours")
	if hours <= 0 {
		return constants.DefaultSessionLengthMs
	}
	return hours * 3600 * 1000
}

// SubscriptionRenewalDay returns the configured billing renewal day of
// month, with ok=false when unset.
func (c *Config) SubscriptionRenewalDay() (int, bool) {
	day := c.v.GetInt("subscription_renewal_day")
	if day < 1 || day > 31 {
		return 0, false
	}
	return day, true
}

// ResumeJumpThreshold returns the token count above which a single jump
// from zero reads as a session resume.
func (c *Config) ResumeJumpThreshold() int64 {
	return c.v.GetInt64("resume_jump_threshold")
}

// MinWhitespaceRun returns the smallest padding run the injector will
// rewrite.
func (c *Config) MinWhitespaceRun() int {
	return c.v.GetInt("min_whitespace_run")
}

// DatabasePath returns the session store location.
func (c *Config) DatabasePath() string {
	return util.ExpandPath(c.v.GetString("database_path"))
}

// LogFile returns the log file location.
func (c *Config) LogFile() string {
	return util.ExpandPath(c.v.GetString("log_file"))
}

// LogLevel returns the configured log level.
func (c *Config) LogLevel() string {
	return c.v.GetString("log_level")
}

// ClaudePath returns the executable to wrap.
func (c *Config) ClaudePath() string {
	return c.v.GetString("claude_path")
}
