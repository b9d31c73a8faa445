// Package scan walks a source tree and produces the per-chunk digests that
// a transfer manifest is built from.
package scan

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/hash"
	"github.com/bamsammich/ferry/internal/manifest"
	"github.com/bamsammich/ferry/internal/stats"
)

// Version is written into every scan metadata document.
const Version = "1.0"

// MaxChunkSize is the largest chunk size Scan accepts. The transfer engine
// holds one chunk in memory at a time.
const MaxChunkSize = 1 << 30

// copyBufferSize bounds the read buffer each hashing worker allocates.
const copyBufferSize = 1 << 20

// Config controls scanner behavior.
type Config struct {
	Root      string
	ChunkSize int64
	Algorithm hash.Algorithm
	Workers   int // files hashed concurrently; defaults to min(NumCPU, 4)
	Events    chan<- event.Event
	Stats     stats.Writer
}

type job struct {
	index int
	abs   string
	rel   string
	size  int64
}

// Scan walks cfg.Root and hashes every regular file in cfg.ChunkSize
// chunks. Symlinks, devices, and other special files are skipped. Any
// unreadable file aborts the scan.
func Scan(ctx context.Context, cfg Config) (*manifest.ScanMetadata, error) {
	if cfg.ChunkSize <= 0 || cfg.ChunkSize > MaxChunkSize {
		return nil, fmt.Errorf("chunk size must be between 1 and %d, got %d", int64(MaxChunkSize), cfg.ChunkSize)
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = hash.Default
	}
	if cfg.Workers <= 0 {
		cfg.Workers = min(runtime.NumCPU(), 4)
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", cfg.Root, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %s is not a directory", root)
	}

	event.Emit(cfg.Events, event.Event{Type: event.ScanStarted, Path: root})

	jobs, total, err := walk(ctx, root)
	if err != nil {
		return nil, err
	}

	files := make([]*manifest.ScannedFile, len(jobs))
	if err := hashAll(ctx, cfg, jobs, files); err != nil {
		return nil, err
	}

	event.Emit(cfg.Events, event.Event{
		Type:      event.ScanComplete,
		Total:     int64(len(files)),
		TotalSize: total,
	})
	slog.Debug("scan complete", "root", root, "files", len(files), "bytes", total)

	// walk visits entries in lexical order, so files is already sorted.
	return &manifest.ScanMetadata{
		Version:       Version,
		ChunkSize:     cfg.ChunkSize,
		HashAlgorithm: cfg.Algorithm,
		Files:         files,
	}, nil
}

func walk(ctx context.Context, root string) ([]job, int64, error) {
	var (
		jobs  []job
		total int64
	)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			slog.Debug("skipping non-regular file", "path", p, "type", d.Type().String())
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return fmt.Errorf("rel path for %s: %w", p, err)
		}
		jobs = append(jobs, job{
			index: len(jobs),
			abs:   p,
			rel:   filepath.ToSlash(rel),
			size:  info.Size(),
		})
		total += info.Size()
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("walk %s: %w", root, err)
	}
	return jobs, total, nil
}

// hashAll fans jobs out to cfg.Workers goroutines and stores each result at
// its job index. The first error cancels the remaining work.
func hashAll(ctx context.Context, cfg Config, jobs []job, out []*manifest.ScannedFile) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	queue := make(chan job, cfg.Workers*2)
	var wg sync.WaitGroup
	for range cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			buf := make([]byte, min(cfg.ChunkSize, copyBufferSize))
			for j := range queue {
				sf, err := hashFile(ctx, cfg.Algorithm, cfg.ChunkSize, j, buf)
				if err != nil {
					cancel(err)
					continue
				}
				out[j.index] = sf
				if cfg.Stats != nil {
					cfg.Stats.AddFilesScanned(1)
					cfg.Stats.AddBytesScanned(sf.Size)
				}
				event.Emit(cfg.Events, event.Event{Type: event.FileScanned, Path: sf.Path, Size: sf.Size})
			}
		}()
	}

feed:
	for _, j := range jobs {
		select {
		case queue <- j:
		case <-ctx.Done():
			break feed
		}
	}
	close(queue)
	wg.Wait()

	if err := context.Cause(ctx); err != nil {
		return err
	}
	return nil
}

// hashFile streams one file, digesting each chunk as it is read. buf is
// only a copy buffer; chunk boundaries come from chunkSize.
func hashFile(ctx context.Context, alg hash.Algorithm, chunkSize int64, j job, buf []byte) (*manifest.ScannedFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(j.abs)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", j.abs, err)
	}
	defer f.Close()

	sf := &manifest.ScannedFile{
		Path:   j.rel,
		Hashes: make([]string, 0, manifest.ChunkCount(j.size, chunkSize)),
	}
	h := alg.New()
	for {
		h.Reset()
		n, err := io.CopyBuffer(h, io.LimitReader(f, chunkSize), buf)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", j.abs, err)
		}
		if n > 0 {
			sf.Hashes = append(sf.Hashes, hex.EncodeToString(h.Sum(nil)))
			sf.Size += n
		}
		if n < chunkSize {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	if sf.Size != j.size {
		slog.Debug("file size changed during scan", "path", j.rel, "listed", j.size, "read", sf.Size)
	}
	return sf, nil
}
