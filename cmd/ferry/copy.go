package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bamsammich/ferry/internal/config"
	"github.com/bamsammich/ferry/internal/engine"
	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/hash"
	"github.com/bamsammich/ferry/internal/history"
	"github.com/bamsammich/ferry/internal/manifest"
	"github.com/bamsammich/ferry/internal/scan"
	"github.com/bamsammich/ferry/internal/stats"
	"github.com/bamsammich/ferry/internal/ui"
)

const defaultChunkSize = "32M"

// Exit codes.
const (
	exitPartial   = 1 // transfer failed after verifying at least one chunk
	exitFailed    = 2 // nothing transferred, or bad usage
	exitIntegrity = 3 // a chunk did not match its expected digest
)

type copyOptions struct {
	chunkSize  string
	hash       string
	stateDir   string
	manifest   string
	history    string
	bwLimit    string
	workers    int
	readback   bool
	keepState  bool
	restart    bool
	noProgress bool
	noHistory  bool
}

func newCopyCmd(g *globalOptions) *cobra.Command {
	o := &copyOptions{}
	cmd := &cobra.Command{
		Use:   "copy [flags] <source> <destination-base>",
		Short: "Copy source into <destination-base>/<basename(source)>, resuming if possible",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCopy(cmd, g, o, args[0], args[1])
		},
	}
	addCopyFlags(cmd, o)
	return cmd
}

func addCopyFlags(cmd *cobra.Command, o *copyOptions) {
	fs := cmd.Flags()
	fs.StringVar(&o.chunkSize, "chunk-size", defaultChunkSize, "chunk size for new manifests (e.g. 4M, 32M)")
	fs.StringVar(&o.hash, "hash", string(hash.Default), "chunk digest for new manifests (sha256 or blake3)")
	fs.StringVar(&o.stateDir, "state-dir", "", "directory for manifests and scan metadata (default: $XDG_STATE_HOME/ferry)")
	fs.StringVar(&o.manifest, "manifest", "", "manifest path (default: <state-dir>/<job-id>.manifest.json)")
	fs.StringVar(&o.history, "history", "", "run history database (default: $XDG_STATE_HOME/ferry/history.db)")
	fs.StringVar(&o.bwLimit, "bwlimit", "", "bandwidth limit (e.g. 100M, 1G)")
	fs.IntVarP(&o.workers, "workers", "n", 0, "files hashed in parallel while scanning (default: min(NumCPU, 4))")
	fs.BoolVar(&o.readback, "readback", false, "re-read every chunk from the destination and verify it")
	fs.BoolVar(&o.keepState, "keep-state", false, "keep the manifest and scan metadata after a successful copy")
	fs.BoolVar(&o.restart, "restart", false, "discard any stored manifest for this job and start over")
	fs.BoolVar(&o.noProgress, "no-progress", false, "disable progress display")
	fs.BoolVar(&o.noHistory, "no-history", false, "do not record this run in the history database")
}

// explicitKeys records which manifest layout settings the user chose, as
// opposed to defaults. Only those are checked when resuming.
type explicitKeys struct {
	chunkSize bool
	hash      bool
}

// applyConfigDefaults applies config file defaults for flags not explicitly set on the CLI.
func applyConfigDefaults(fs *pflag.FlagSet, d config.DefaultsConfig, o *copyOptions) explicitKeys {
	keys := explicitKeys{
		chunkSize: fs.Changed("chunk-size"),
		hash:      fs.Changed("hash"),
	}
	if !keys.chunkSize && d.ChunkSize != nil {
		o.chunkSize = *d.ChunkSize
		keys.chunkSize = true
	}
	if !keys.hash && d.Hash != nil {
		o.hash = *d.Hash
		keys.hash = true
	}
	if !fs.Changed("state-dir") && d.StateDir != nil {
		o.stateDir = *d.StateDir
	}
	if !fs.Changed("history") && d.History != nil {
		o.history = *d.History
	}
	if !fs.Changed("bwlimit") && d.BWLimit != nil {
		o.bwLimit = *d.BWLimit
	}
	if !fs.Changed("workers") && d.Workers != nil {
		o.workers = *d.Workers
	}
	if !fs.Changed("readback") && d.Readback != nil {
		o.readback = *d.Readback
	}
	if !fs.Changed("keep-state") && d.KeepState != nil {
		o.keepState = *d.KeepState
	}
	return keys
}

// copyPlan is a fully resolved copy job.
type copyPlan struct {
	src          string
	dst          string
	chunkSize    int64
	alg          hash.Algorithm
	bwLimit      int64
	jobID        string
	manifestPath string
	metadataPath string
	historyPath  string
}

func (o *copyOptions) plan(srcArg, baseArg string) (*copyPlan, error) {
	src, err := filepath.Abs(srcArg)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", srcArg, err)
	}
	info, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %s is not a directory", src)
	}

	base, err := filepath.Abs(baseArg)
	if err != nil {
		return nil, fmt.Errorf("destination %s: %w", baseArg, err)
	}
	dst := filepath.Join(base, filepath.Base(src))
	if dst == src || strings.HasPrefix(dst, src+string(filepath.Separator)) {
		return nil, fmt.Errorf("destination %s is inside source %s", dst, src)
	}

	chunkSize, err := config.ParseSize(o.chunkSize)
	if err != nil {
		return nil, fmt.Errorf("invalid --chunk-size: %w", err)
	}
	if chunkSize <= 0 || chunkSize > scan.MaxChunkSize {
		return nil, fmt.Errorf("invalid --chunk-size: must be between 1 and %s, got %q",
			stats.FormatBytes(scan.MaxChunkSize), o.chunkSize)
	}
	alg, err := hash.Parse(o.hash)
	if err != nil {
		return nil, fmt.Errorf("invalid --hash: %w", err)
	}

	var bwLimit int64
	if o.bwLimit != "" {
		bwLimit, err = config.ParseSize(o.bwLimit)
		if err != nil {
			return nil, fmt.Errorf("invalid --bwlimit: %w", err)
		}
	}

	jobID := hash.JobID(src, dst)
	stateDir := o.stateDir
	if stateDir == "" {
		stateDir = config.StateDir()
	}
	manifestPath := o.manifest
	if manifestPath == "" {
		manifestPath = filepath.Join(stateDir, jobID+".manifest.json")
	}
	historyPath := o.history
	if historyPath == "" {
		historyPath = history.DefaultPath()
	}

	return &copyPlan{
		src:          src,
		dst:          dst,
		chunkSize:    chunkSize,
		alg:          alg,
		bwLimit:      bwLimit,
		jobID:        jobID,
		manifestPath: manifestPath,
		metadataPath: filepath.Join(filepath.Dir(manifestPath), jobID+".metadata.json"),
		historyPath:  historyPath,
	}, nil
}

//nolint:revive // cognitive-complexity: orchestrates scan, transfer, history, and cleanup
func runCopy(cmd *cobra.Command, g *globalOptions, o *copyOptions, srcArg, baseArg string) error {
	keys := applyConfigDefaults(cmd.Flags(), g.cfg.Defaults, o)
	p, err := o.plan(srcArg, baseArg)
	if err != nil {
		return &exitError{code: exitFailed, err: err}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Debug("starting copy",
		"source", p.src,
		"destination", p.dst,
		"job", p.jobID,
		"manifest", p.manifestPath,
		"chunk_size", p.chunkSize,
		"hash", p.alg.String(),
	)

	rec := startRecord(p, o.noHistory)
	defer rec.close()

	collector := stats.NewCollector()
	events := make(chan event.Event, 256)
	presenterEvents := (<-chan event.Event)(events)
	if g.logFile != "" {
		presenterEvents = teeEvents(events)
	}

	presenter := ui.NewPresenter(ui.Config{
		Writer:     cmd.OutOrStdout(),
		ErrWriter:  cmd.ErrOrStderr(),
		Stats:      collector,
		IsTTY:      ui.IsTTY(cmd.ErrOrStderr()),
		Quiet:      g.quiet,
		NoProgress: o.noProgress,
	})
	var presenterErr error
	var presenterWg sync.WaitGroup
	presenterWg.Add(1)
	go func() {
		defer presenterWg.Done()
		presenterErr = presenter.Run(presenterEvents)
	}()
	finishPresenter := func() {
		close(events)
		presenterWg.Wait()
		if presenterErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "presenter: %v\n", presenterErr)
		}
	}

	m, err := prepareManifest(ctx, p, o, keys, events, collector)
	if err == nil {
		err = os.MkdirAll(p.dst, 0o755)
	}
	if err != nil {
		finishPresenter()
		rec.finish(err, collector.Snapshot())
		return &exitError{code: exitFailed, err: err}
	}

	result := engine.Run(ctx, engine.Config{
		Manifest: m,
		Store:    manifest.FileStore{Path: p.manifestPath},
		Events:   events,
		Stats:    collector,
		BWLimit:  p.bwLimit,
		Readback: o.readback,
	})
	stop()
	finishPresenter()
	rec.finish(result.Err, result.Stats)

	if !g.quiet {
		if summary := presenter.Summary(); summary != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), summary)
		}
	}

	if result.Err != nil {
		slog.Info("state preserved for resume", "manifest", p.manifestPath)
		return &exitError{code: exitCode(result), err: result.Err}
	}

	if o.keepState {
		slog.Info("state kept", "manifest", p.manifestPath, "metadata", p.metadataPath)
	} else {
		removeState(p.manifestPath, p.metadataPath)
	}
	slog.Info("copy completed", "destination", p.dst)
	return nil
}

// prepareManifest resumes the stored manifest for this job when it matches,
// and otherwise scans the source and persists a fresh one.
func prepareManifest(
	ctx context.Context,
	p *copyPlan,
	o *copyOptions,
	keys explicitKeys,
	events chan<- event.Event,
	collector *stats.Collector,
) (*manifest.Manifest, error) {
	if !o.restart {
		key := manifest.ResumeKey{SourceRoot: p.src, DestinationRoot: p.dst}
		if keys.chunkSize {
			key.ChunkSize = p.chunkSize
		}
		if keys.hash {
			key.HashAlgorithm = p.alg
		}

		m, err := manifest.Resume(p.manifestPath, key)
		if err == nil {
			prog := m.Progress()
			slog.Info("resuming",
				"manifest", p.manifestPath,
				"files_completed", prog.FilesCompleted,
				"files", prog.Files,
				"chunks_verified", prog.ChunksVerified,
				"chunks", prog.Chunks,
			)
			return m, nil
		}
		if !errors.Is(err, manifest.ErrNoManifest) {
			return nil, fmt.Errorf("%w (use --restart to discard it)", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(p.manifestPath), 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	meta, err := scan.Scan(ctx, scan.Config{
		Root:      p.src,
		ChunkSize: p.chunkSize,
		Algorithm: p.alg,
		Workers:   o.workers,
		Events:    events,
		Stats:     collector,
	})
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if err := manifest.SaveScan(p.metadataPath, meta); err != nil {
		return nil, err
	}
	return manifest.Create(manifest.FileStore{Path: p.manifestPath}, meta, p.src, p.dst)
}

func exitCode(r engine.Result) int {
	if errors.Is(r.Err, engine.ErrChunkCorruption) {
		return exitIntegrity
	}
	if r.Stats.ChunksVerified > 0 || r.Stats.FilesCompleted > 0 {
		return exitPartial
	}
	return exitFailed
}

func removeState(paths ...string) {
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to remove state file", "path", path, "error", err)
		}
	}
}

// teeEvents writes a structured record for every event before forwarding
// it to the presenter.
func teeEvents(events <-chan event.Event) <-chan event.Event {
	teed := make(chan event.Event, cap(events))
	go func() {
		defer close(teed)
		for ev := range events {
			attrs := []slog.Attr{
				slog.String("type", ev.Type.String()),
				slog.String("path", ev.Path),
				slog.Int64("size", ev.Size),
			}
			if ev.Type == event.ChunkVerified {
				attrs = append(attrs, slog.Int("chunk", ev.Chunk))
			}
			if ev.Error != nil {
				attrs = append(attrs, slog.String("error", ev.Error.Error()))
			}
			slog.LogAttrs(context.Background(), slog.LevelDebug, "ferry.event", attrs...)
			teed <- ev
		}
	}()
	return teed
}

// record tracks one run in the history database. History is best effort:
// failures are logged and never affect the copy.
type record struct {
	db *history.DB
	id string
}

func startRecord(p *copyPlan, disabled bool) *record {
	if disabled {
		return &record{}
	}
	db, err := history.Open(p.historyPath)
	if err != nil {
		slog.Warn("run history unavailable", "path", p.historyPath, "error", err)
		return &record{}
	}
	id, err := db.Start(p.jobID, p.src, p.dst, p.manifestPath)
	if err != nil {
		slog.Warn("failed to record run", "error", err)
		db.Close()
		return &record{}
	}
	return &record{db: db, id: id}
}

func (r *record) finish(runErr error, snap stats.Snapshot) {
	if r.db == nil {
		return
	}
	err := r.db.Finish(r.id, history.Outcome{
		Err:          runErr,
		ChunksCopied: snap.ChunksVerified,
		BytesCopied:  snap.BytesCopied,
	})
	if err != nil {
		slog.Warn("failed to record run outcome", "error", err)
	}
}

func (r *record) close() {
	if r.db != nil {
		r.db.Close()
	}
}
