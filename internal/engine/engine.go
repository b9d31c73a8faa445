package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/time/rate"

	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/manifest"
	"github.com/bamsammich/ferry/internal/platform"
	"github.com/bamsammich/ferry/internal/stats"
)

// Config describes a transfer.
type Config struct {
	Manifest *manifest.Manifest
	Store    manifest.Store // receives a checkpoint after every verified chunk
	Events   chan<- event.Event
	Stats    *stats.Collector
	BWLimit  int64 // bytes per second, 0 = unlimited
	Readback bool  // re-read and re-hash each chunk from the destination
}

// Result is the outcome of a transfer.
type Result struct {
	Stats stats.Snapshot
	Err   error
}

// Run copies every incomplete file in the manifest chunk by chunk, blocking
// until done. Chunks are processed strictly in sequence and the manifest is
// checkpointed through cfg.Store after each one verifies, so the stored
// manifest never claims more than what is on the destination.
//
// The first failure aborts the whole run. Cancelling ctx stops the run
// between chunks.
func Run(ctx context.Context, cfg Config) Result {
	collector := cfg.Stats
	if collector == nil {
		collector = stats.NewCollector()
	}
	if cfg.Manifest == nil || cfg.Store == nil {
		return Result{Stats: collector.Snapshot(), Err: errors.New("engine: manifest and store are required")}
	}

	t := &transfer{
		m:       cfg.Manifest,
		store:   cfg.Store,
		events:  cfg.Events,
		stats:   collector,
		reback:  cfg.Readback,
		logger:  slog.With("component", "engine"),
		limiter: nil,
	}
	if cfg.BWLimit > 0 {
		t.limiter = NewBWLimiter(cfg.BWLimit)
	}

	p := t.m.Progress()
	collector.SetTotals(int64(p.Files), int64(p.Chunks), p.Bytes)
	event.Emit(t.events, event.Event{
		Type:      event.TransferStarted,
		Total:     int64(p.Files),
		TotalSize: p.Bytes,
	})

	err := t.run(ctx)
	return Result{Stats: collector.Snapshot(), Err: err}
}

type transfer struct {
	m       *manifest.Manifest
	store   manifest.Store
	events  chan<- event.Event
	stats   *stats.Collector
	reback  bool
	limiter *rate.Limiter
	logger  *slog.Logger
	buf     []byte
}

func (t *transfer) run(ctx context.Context) error {
	for _, f := range t.m.Files {
		if f.Completed {
			t.stats.AddFilesSkipped(1)
			t.stats.AddChunksResumed(int64(len(f.Chunks)))
			t.stats.AddBytesResumed(f.Size)
			event.Emit(t.events, event.Event{Type: event.FileSkipped, Path: f.Path, Size: f.Size})
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		event.Emit(t.events, event.Event{Type: event.FileStarted, Path: f.Path, Size: f.Size})
		if err := t.transferFile(ctx, f); err != nil {
			t.stats.AddFilesFailed(1)
			event.Emit(t.events, event.Event{Type: event.FileFailed, Path: f.Path, Size: f.Size, Error: err})
			return err
		}
		t.stats.AddFilesCompleted(1)
		event.Emit(t.events, event.Event{Type: event.FileCompleted, Path: f.Path, Size: f.Size})
	}
	return nil
}

func (t *transfer) transferFile(ctx context.Context, f *manifest.FileEntry) error {
	srcPath := manifest.LocalPath(t.m.SourceRoot, f.Path)
	dstPath := manifest.LocalPath(t.m.DestinationRoot, f.Path)

	src, err := os.Open(srcPath)
	if err != nil {
		return sourceErr(f.Path, -1, err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return destErr(f.Path, -1, err)
	}
	dst, err := openDestination(dstPath, f.Size)
	if err != nil {
		return destErr(f.Path, -1, err)
	}
	defer dst.Close()

	remaining := len(f.Chunks) - f.VerifiedChunks()
	for i := range f.Chunks {
		c := &f.Chunks[i]
		if c.Status == manifest.StatusVerified {
			_, n := manifest.ChunkSpan(i, f.Size, t.m.ChunkSize)
			t.stats.AddChunksResumed(1)
			t.stats.AddBytesResumed(n)
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := t.copyChunk(ctx, f, i, src, dst)
		if err != nil {
			return err
		}

		c.Status = manifest.StatusVerified
		remaining--
		if remaining == 0 {
			f.Completed = true
		}
		if err := t.checkpoint(f.Path, i); err != nil {
			return err
		}

		t.stats.AddChunksVerified(1)
		t.stats.AddBytesCopied(n)
		event.Emit(t.events, event.Event{Type: event.ChunkVerified, Path: f.Path, Chunk: i, Size: n})
	}

	// Zero-chunk files, and files whose last chunk verified in an earlier
	// run that stopped before recording completion.
	if !f.Completed {
		f.Completed = true
		if err := t.checkpoint(f.Path, -1); err != nil {
			return err
		}
	}
	t.logger.Debug("file completed", "path", f.Path, "size", f.Size, "chunks", len(f.Chunks))
	return nil
}

// copyChunk moves chunk i from src to dst at the same offset, syncs the
// destination, and checks the digest. It returns the chunk length.
func (t *transfer) copyChunk(ctx context.Context, f *manifest.FileEntry, i int, src, dst *os.File) (int64, error) {
	offset, length := manifest.ChunkSpan(i, f.Size, t.m.ChunkSize)
	expected := f.Chunks[i].ExpectedHash
	buf := t.buffer(length)

	n, err := src.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, sourceErr(f.Path, i, err)
	}
	data := buf[:n]
	if int64(n) < length {
		// The source shrank since it was scanned.
		return 0, &TransferError{
			Kind:     ChunkCorruption,
			Path:     f.Path,
			Chunk:    i,
			Expected: expected,
			Actual:   t.m.HashAlgorithm.Sum(data),
			Err:      fmt.Errorf("short read: %d of %d bytes at offset %d", n, length, offset),
		}
	}

	if err := waitN(ctx, t.limiter, length); err != nil {
		return 0, err
	}

	if _, err := dst.WriteAt(data, offset); err != nil {
		return 0, destErr(f.Path, i, err)
	}
	if err := platform.Datasync(dst); err != nil {
		return 0, destErr(f.Path, i, err)
	}

	if actual := t.m.HashAlgorithm.Sum(data); actual != expected {
		return 0, &TransferError{Kind: ChunkCorruption, Path: f.Path, Chunk: i, Expected: expected, Actual: actual}
	}

	if t.reback {
		if _, err := dst.ReadAt(data, offset); err != nil {
			return 0, destErr(f.Path, i, fmt.Errorf("readback: %w", err))
		}
		if actual := t.m.HashAlgorithm.Sum(data); actual != expected {
			return 0, &TransferError{
				Kind: ChunkCorruption, Path: f.Path, Chunk: i,
				Expected: expected, Actual: actual, Readback: true,
			}
		}
	}

	t.logger.Debug("chunk verified", "path", f.Path, "chunk", i, "offset", offset, "bytes", length)
	return length, nil
}

func (t *transfer) checkpoint(relPath string, chunk int) error {
	if err := t.store.Save(t.m); err != nil {
		return &TransferError{Kind: CheckpointFailed, Path: relPath, Chunk: chunk, Err: err}
	}
	return nil
}

// buffer returns a scratch slice of length n, reusing one allocation for
// the whole run.
func (t *transfer) buffer(n int64) []byte {
	if int64(cap(t.buf)) < n {
		t.buf = make([]byte, n)
	}
	return t.buf[:n]
}

// openDestination opens path for in-place update, creating it if needed.
// An existing file is never truncated below size, since its verified
// chunks must survive; bytes past size are dropped. New files are
// preallocated.
func openDestination(path string, size int64) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err == nil {
		platform.Preallocate(f, size)
		return f, nil
	}
	if !errors.Is(err, os.ErrExist) {
		return nil, err
	}

	f, err = os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() > size {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, fmt.Errorf("trim to %d bytes: %w", size, err)
		}
		if err := platform.Datasync(f); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}
