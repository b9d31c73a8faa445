package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const ringSize = 60

// Writer is the write side of a Collector, used by the scanner and engine.
type Writer interface {
	AddFilesScanned(n int64)
	AddBytesScanned(n int64)
	AddFilesCompleted(n int64)
	AddFilesSkipped(n int64)
	AddFilesFailed(n int64)
	AddChunksVerified(n int64)
	AddChunksResumed(n int64)
	AddChunksFailed(n int64)
	AddBytesCopied(n int64)
	AddBytesResumed(n int64)
	SetTotals(files, chunks, bytes int64)
}

// Reader is the read side of a Collector, used by presenters.
type Reader interface {
	Snapshot() Snapshot
}

// ReadTicker is a Reader that also maintains rolling throughput samples.
type ReadTicker interface {
	Reader
	Tick()
	RollingSpeed(seconds int) float64
	SparklineData(n int) []float64
	ETA() time.Duration
}

// Collector tracks transfer statistics using lock-free atomic counters.
type Collector struct {
	filesScanned   atomic.Int64
	bytesScanned   atomic.Int64
	filesCompleted atomic.Int64
	filesSkipped   atomic.Int64
	filesFailed    atomic.Int64
	chunksVerified atomic.Int64
	chunksResumed  atomic.Int64
	chunksFailed   atomic.Int64
	bytesCopied    atomic.Int64
	bytesResumed   atomic.Int64
	filesTotal     atomic.Int64
	chunksTotal    atomic.Int64
	bytesTotal     atomic.Int64
	startTime      time.Time

	// Ring buffer, written only by the presenter's Tick().
	mu         sync.Mutex
	throughput [ringSize]int64 // bytes delta per second
	ringIdx    int
	ringCount  int // samples written, capped at ringSize
	lastBytes  int64
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// SetTotals records the size of the transfer (called once per run).
func (c *Collector) SetTotals(files, chunks, bytes int64) {
	c.filesTotal.Store(files)
	c.chunksTotal.Store(chunks)
	c.bytesTotal.Store(bytes)
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	FilesScanned   int64
	BytesScanned   int64
	FilesCompleted int64
	FilesSkipped   int64
	FilesFailed    int64
	ChunksVerified int64
	ChunksResumed  int64
	ChunksFailed   int64
	BytesCopied    int64
	BytesResumed   int64
	FilesTotal     int64
	ChunksTotal    int64
	BytesTotal     int64
	Elapsed        time.Duration
}

func (c *Collector) AddFilesScanned(n int64)   { c.filesScanned.Add(n) }
func (c *Collector) AddBytesScanned(n int64)   { c.bytesScanned.Add(n) }
func (c *Collector) AddFilesCompleted(n int64) { c.filesCompleted.Add(n) }
func (c *Collector) AddFilesSkipped(n int64)   { c.filesSkipped.Add(n) }
func (c *Collector) AddFilesFailed(n int64)    { c.filesFailed.Add(n) }
func (c *Collector) AddChunksVerified(n int64) { c.chunksVerified.Add(n) }
func (c *Collector) AddChunksResumed(n int64)  { c.chunksResumed.Add(n) }
func (c *Collector) AddChunksFailed(n int64)   { c.chunksFailed.Add(n) }
func (c *Collector) AddBytesCopied(n int64)    { c.bytesCopied.Add(n) }
func (c *Collector) AddBytesResumed(n int64)   { c.bytesResumed.Add(n) }

// Snapshot returns a consistent point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		FilesScanned:   c.filesScanned.Load(),
		BytesScanned:   c.bytesScanned.Load(),
		FilesCompleted: c.filesCompleted.Load(),
		FilesSkipped:   c.filesSkipped.Load(),
		FilesFailed:    c.filesFailed.Load(),
		ChunksVerified: c.chunksVerified.Load(),
		ChunksResumed:  c.chunksResumed.Load(),
		ChunksFailed:   c.chunksFailed.Load(),
		BytesCopied:    c.bytesCopied.Load(),
		BytesResumed:   c.bytesResumed.Load(),
		FilesTotal:     c.filesTotal.Load(),
		ChunksTotal:    c.chunksTotal.Load(),
		BytesTotal:     c.bytesTotal.Load(),
		Elapsed:        c.Elapsed(),
	}
}

// Tick snapshots the byte delta into the ring buffer. Called 1/sec by the presenter.
func (c *Collector) Tick() {
	current := c.bytesCopied.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.throughput[c.ringIdx] = current - c.lastBytes
	c.lastBytes = current
	c.ringIdx = (c.ringIdx + 1) % ringSize
	if c.ringCount < ringSize {
		c.ringCount++
	}
}

// RollingSpeed returns average bytes/sec over the last n seconds of samples.
func (c *Collector) RollingSpeed(seconds int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := min(seconds, c.ringCount)
	if count <= 0 {
		return 0
	}
	var sum int64
	for i := range count {
		idx := (c.ringIdx - 1 - i + ringSize) % ringSize
		sum += c.throughput[idx]
	}
	return float64(sum) / float64(count)
}

// SparklineData returns up to n bytes/sec samples, oldest first.
func (c *Collector) SparklineData(n int) []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := min(n, c.ringCount)
	if count <= 0 {
		return nil
	}
	data := make([]float64, count)
	for i := range count {
		idx := (c.ringIdx - count + i + ringSize) % ringSize
		data[i] = float64(c.throughput[idx])
	}
	return data
}

// ETA estimates remaining time from rolling speed and bytes not yet on the
// destination. Bytes resumed from an earlier run count as done.
func (c *Collector) ETA() time.Duration {
	speed := c.RollingSpeed(10)
	if speed <= 0 {
		return 0
	}
	remaining := c.bytesTotal.Load() - c.bytesCopied.Load() - c.bytesResumed.Load()
	if remaining <= 0 {
		return 0
	}
	return time.Duration(float64(remaining)/speed) * time.Second
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"files=%d/%d skipped=%d failed=%d chunks=%d resumed=%d bytes=%d",
		s.FilesCompleted, s.FilesTotal, s.FilesSkipped, s.FilesFailed,
		s.ChunksVerified, s.ChunksResumed, s.BytesCopied,
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
