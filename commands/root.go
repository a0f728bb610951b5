package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/penwyp/go-claude-wrap/internal/bridge"
	"github.com/penwyp/go-claude-wrap/internal/config"
	"github.com/penwyp/go-claude-wrap/internal/core/cache"
	"github.com/penwyp/go-claude-wrap/internal/core/constants"
	"github.com/penwyp/go-claude-wrap/internal/core/session"
	"github.com/penwyp/go-claude-wrap/internal/inject"
	"github.com/penwyp/go-claude-wrap/internal/monitor"
	"github.com/penwyp/go-claude-wrap/internal/store"
	"github.com/penwyp/go-claude-wrap/internal/util"
)

// version is stamped at build time via -ldflags.
var version = "dev"

var (
	// System and debugging
	debug     bool
	configDir string

	// Wrapped program
	claudePath string

	rootCmd = &cobra.Command{
		Use:   "go-claude-wrap [flags] -- [claude args]",
		Short: "Claude Code wrapper with session window tracking",
		Long: `go-claude-wrap runs Claude Code under a pseudo-terminal, watches its output
for the rendered token counter, and keeps a local record of 5-hour session
windows and cumulative usage. While a window is open, the time remaining is
drawn directly into Claude's own status line.

Examples:
  go-claude-wrap                        # Wrap claude with default settings
  go-claude-wrap -- --continue          # Pass flags through to claude
  go-claude-wrap stats                  # Show session and token aggregates
  go-claude-wrap stats --output json    # Aggregates as JSON
  go-claude-wrap purge --keep 50        # Drop all but the 50 newest sessions`,
		Args:    cobra.ArbitraryArgs,
		RunE:    runWrap,
		Version: version,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"Enable debug mode")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", config.DefaultConfigDir,
		"Configuration directory")
	rootCmd.Flags().StringVar(&claudePath, "claude-path", "",
		"Path to the claude executable (overrides config)")
}

func Execute() error {
	return rootCmd.Execute()
}

// setup loads configuration, initializes logging and opens the session
// store plus its cache. The returned cleanup closes everything in order.
func setup() (*config.Config, *session.Manager, func(), error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logLevel := cfg.LogLevel()
	if debug {
		logLevel = "debug"
	}
	logFile := cfg.LogFile()
	if err := util.EnsureDir(filepath.Dir(logFile)); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	util.InitLogger(logLevel, logFile, debug)

	dbPath := cfg.DatabasePath()
	if err := util.EnsureDir(filepath.Dir(dbPath)); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	st, err := store.OpenSQLite(dbPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open session store: %w", err)
	}
	if err := st.EnsureSchema(context.Background()); err != nil {
		_ = st.Close()
		return nil, nil, nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	c := cache.New(constants.StatsCacheTTL, constants.CacheSweepInterval)
	mgr := session.NewManager(st, c, cfg)

	cleanup := func() {
		c.Close()
		if err := st.Close(); err != nil {
			util.LogWarnf("Store close failed: %v", err)
		}
	}
	return cfg, mgr, cleanup, nil
}

func runWrap(cmd *cobra.Command, args []string) error {
	cfg, mgr, cleanup, err := setup()
	if err != nil {
		return err
	}

	command := cfg.ClaudePath()
	if claudePath != "" {
		command = claudePath
	}

	mon := monitor.NewMonitor(mgr, cfg.ResumeJumpThreshold())
	inj := inject.NewInjector(mgr, cfg.MinWhitespaceRun())

	ctx, cancel := context.WithCancel(cmd.Context())
	inj.Start(ctx)

	br := bridge.New(command, args)
	br.OnOutput(mon.ProcessChunk)
	br.SetRewriter(inj.ProcessChunk)

	util.LogInfof("Wrapping %s %v", command, args)
	exitCode, runErr := br.Run(ctx)

	// Teardown order matters: stop producing status updates, then drain
	// the monitor's pending store writes, then close store and cache.
	cancel()
	inj.Stop()
	mon.Close()
	cleanup()

	if runErr != nil {
		return fmt.Errorf("failed to run %s: %w", command, runErr)
	}
	if exitCode != 0 {
		// The child's exit code is the only value callers must observe.
		os.Exit(exitCode)
	}
	return nil
}
