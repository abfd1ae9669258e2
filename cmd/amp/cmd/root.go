// Package cmd provides the CLI commands for amp.
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentmemory/amp/internal/config"
	"github.com/agentmemory/amp/internal/errors"
	"github.com/agentmemory/amp/internal/lockfile"
	"github.com/agentmemory/amp/internal/logging"
	"github.com/agentmemory/amp/internal/watcher"
	"github.com/agentmemory/amp/pkg/version"
)

// NewRootCmd creates the root command for the amp CLI.
func NewRootCmd() *cobra.Command {
	var (
		verbose bool
		logFile string
		noLock  bool
	)

	cmd := &cobra.Command{
		Use:   "amp",
		Short: "Unified memory management for AI code agents",
		Long: `amp keeps agent instruction files (CLAUDE.md, GEMINI.md, ...) in sync
with a single canonical truth file (AGENT.md by default).

It scans the directories listed in ` + config.EnvPaths + ` for ` + config.Filename + `
configuration files, performs an initial sync, then watches for changes
and propagates every truth-file write to the configured agent files.

Example ` + config.Filename + `:

  agents: [claude, gemini]
  truth_memory_file: AGENT.md

Press Ctrl+C to stop.`,
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProxy(cmd, verbose, logFile, noLock)
		},
	}

	cmd.SetVersionTemplate("amp version {{.Version}}\n")

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	cmd.Flags().StringVar(&logFile, "log-file", logging.DefaultLogPath(), "Log file path (empty disables file logging)")
	cmd.Flags().BoolVar(&noLock, "no-lock", false, "Skip the single-instance lock")

	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command and reports errors to stderr.
func Execute() error {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprint(os.Stderr, errors.FormatForCLI(err))
		return err
	}
	return nil
}

func runProxy(cmd *cobra.Command, verbose bool, logFile string, noLock bool) error {
	logCfg := logging.DefaultConfig()
	logCfg.FilePath = logFile
	if verbose {
		logCfg.Level = "debug"
	}

	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err)
	}
	defer cleanup()

	if !noLock {
		lock := lockfile.New(lockfile.DefaultPath())
		acquired, err := lock.TryAcquire()
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err)
		}
		if !acquired {
			return errors.New(errors.ErrCodeLockHeld,
				"another amp instance is already running", nil).
				WithSuggestion("stop the other instance, or pass --no-lock if this is intentional")
		}
		defer func() { _ = lock.Release() }()
	}

	controller, err := watcher.NewController()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return controller.Run(ctx)
}
