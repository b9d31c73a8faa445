package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bamsammich/ferry/internal/config"
	"github.com/bamsammich/ferry/internal/ui"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// globalOptions are accepted by every command.
type globalOptions struct {
	verbose    bool
	quiet      bool
	logFile    string
	configFile string

	cfg     config.Config
	logSink io.Closer
}

func run(args []string, stdout, stderr io.Writer) int {
	g := &globalOptions{}
	defer g.teardown()

	root := newRootCmd(g)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return 0
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	return exitFailed
}

func newRootCmd(g *globalOptions) *cobra.Command {
	copyOpts := &copyOptions{}
	var showVersion bool

	rootCmd := &cobra.Command{
		Use:   "ferry [flags] <source> <destination-base>",
		Short: "Resumable, chunk-verified directory copy",
		Long: `ferry copies a directory tree chunk by chunk. Every chunk is written,
synced, and checked against the digest taken when the source was scanned, and
progress is checkpointed to a manifest after each one. An interrupted copy
picks up at the first unverified chunk when run again with the same source
and destination.

A source named after a subcommand (copy, scan, status, history) is read as
that subcommand. Spell it as a path (./status) or use "ferry copy".`,
		Example: `  ferry ~/photos /mnt/backup
  ferry copy --chunk-size 64M ./status /mnt/backup
  ferry status ~/.local/state/ferry/<job-id>.manifest.json`,
		Args: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				return nil
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Fprintf(cmd.OutOrStdout(), "ferry %s\n", version)
				return nil
			}
			return runCopy(cmd, g, copyOpts, args[0], args[1])
		},
	}

	rootCmd.Flags().BoolVar(&showVersion, "version", false, "print version and exit")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&g.quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().StringVar(&g.logFile, "log", "", "write structured JSON log to FILE")
	rootCmd.PersistentFlags().
		StringVar(&g.configFile, "config", "", "config file (default: $XDG_CONFIG_HOME/ferry/config.toml)")
	addCopyFlags(rootCmd, copyOpts)

	rootCmd.AddCommand(newCopyCmd(g))
	rootCmd.AddCommand(newScanCmd(g))
	rootCmd.AddCommand(newStatusCmd(g))
	rootCmd.AddCommand(newHistoryCmd(g))
	rootCmd.AddCommand(newDocsCmd())

	return rootCmd
}

// setup loads the config file and configures logging before any command
// runs.
func (g *globalOptions) setup(cmd *cobra.Command) error {
	var err error
	if g.configFile != "" {
		g.cfg, err = config.LoadFile(g.configFile)
	} else {
		g.cfg, err = config.Load()
	}

	logLevel := slog.LevelWarn
	if g.verbose {
		logLevel = slog.LevelDebug
	} else if !g.quiet {
		logLevel = slog.LevelInfo
	}
	textHandler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	})
	var logHandler slog.Handler = textHandler
	if g.logFile != "" {
		lf, lfErr := os.Create(g.logFile)
		if lfErr != nil {
			return fmt.Errorf("open log file: %w", lfErr)
		}
		g.logSink = lf
		jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
		logHandler = ui.NewMultiHandler(textHandler, jsonHandler)
	}
	slog.SetDefault(slog.New(logHandler))

	if err != nil {
		slog.Warn("failed to load config", "error", err)
	}
	ui.ApplyTheme(g.cfg.Theme)
	return nil
}

func (g *globalOptions) teardown() {
	if g.logSink != nil {
		g.logSink.Close()
		g.logSink = nil
	}
}

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit code %d", e.code)
}

func (e *exitError) Unwrap() error {
	return e.err
}
