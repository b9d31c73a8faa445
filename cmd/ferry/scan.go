package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bamsammich/ferry/internal/config"
	"github.com/bamsammich/ferry/internal/hash"
	"github.com/bamsammich/ferry/internal/manifest"
	"github.com/bamsammich/ferry/internal/scan"
	"github.com/bamsammich/ferry/internal/stats"
)

type scanOptions struct {
	out       string
	chunkSize string
	hash      string
	workers   int
}

func newScanCmd(g *globalOptions) *cobra.Command {
	o := &scanOptions{}
	cmd := &cobra.Command{
		Use:   "scan [flags] <source>",
		Short: "Hash a directory into scan metadata without copying",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, g, o, args[0])
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&o.out, "out", "o", "", "write scan metadata to FILE instead of stdout")
	fs.StringVar(&o.chunkSize, "chunk-size", defaultChunkSize, "chunk size (e.g. 4M, 32M)")
	fs.StringVar(&o.hash, "hash", string(hash.Default), "chunk digest (sha256 or blake3)")
	fs.IntVarP(&o.workers, "workers", "n", 0, "files hashed in parallel (default: min(NumCPU, 4))")
	return cmd
}

func runScan(cmd *cobra.Command, g *globalOptions, o *scanOptions, root string) error {
	d := g.cfg.Defaults
	if !cmd.Flags().Changed("chunk-size") && d.ChunkSize != nil {
		o.chunkSize = *d.ChunkSize
	}
	if !cmd.Flags().Changed("hash") && d.Hash != nil {
		o.hash = *d.Hash
	}
	if !cmd.Flags().Changed("workers") && d.Workers != nil {
		o.workers = *d.Workers
	}

	chunkSize, err := config.ParseSize(o.chunkSize)
	if err != nil {
		return &exitError{code: exitFailed, err: fmt.Errorf("invalid --chunk-size: %w", err)}
	}
	alg, err := hash.Parse(o.hash)
	if err != nil {
		return &exitError{code: exitFailed, err: fmt.Errorf("invalid --hash: %w", err)}
	}

	collector := stats.NewCollector()
	meta, err := scan.Scan(cmd.Context(), scan.Config{
		Root:      root,
		ChunkSize: chunkSize,
		Algorithm: alg,
		Workers:   o.workers,
		Stats:     collector,
	})
	if err != nil {
		return &exitError{code: exitFailed, err: err}
	}

	snap := collector.Snapshot()
	if o.out != "" {
		out, err := filepath.Abs(o.out)
		if err != nil {
			return &exitError{code: exitFailed, err: err}
		}
		if err := manifest.SaveScan(out, meta); err != nil {
			return &exitError{code: exitFailed, err: err}
		}
		slog.Info("scan written",
			"path", out,
			"files", snap.FilesScanned,
			"bytes", stats.FormatBytes(snap.BytesScanned),
		)
		return nil
	}

	data, err := manifest.MarshalScan(meta)
	if err != nil {
		return &exitError{code: exitFailed, err: err}
	}
	if _, err := cmd.OutOrStdout().Write(data); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}
