package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/stats"
)

func TestHudPresenterFileCompleted(t *testing.T) {
	var out bytes.Buffer
	collector := stats.NewCollector()
	collector.SetTotals(10, 20, 10240)

	p := &hudPresenter{w: &out, stats: collector}

	events := make(chan Event, 10)
	events <- Event{Type: event.TransferStarted, Total: 10, TotalSize: 10240}
	events <- Event{Type: event.FileStarted, Path: "test/file.txt", Size: 1024}
	events <- Event{Type: event.FileCompleted, Path: "test/file.txt", Size: 1024}
	close(events)

	err := p.Run(events)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "file.txt")
	assert.Contains(t, out.String(), "✓")
}

func TestHudPresenterFileFailed(t *testing.T) {
	var out bytes.Buffer
	p := &hudPresenter{w: &out, stats: stats.NewCollector()}

	events := make(chan Event, 10)
	events <- Event{Type: event.FileFailed, Path: "bad.bin", Size: 10, Error: errors.New("chunk corruption")}
	close(events)

	require.NoError(t, p.Run(events))
	assert.Contains(t, out.String(), "✗")
	assert.Contains(t, out.String(), "chunk corruption")
}

func TestHudPresenterFileSkipped(t *testing.T) {
	var out bytes.Buffer
	p := &hudPresenter{w: &out, stats: stats.NewCollector()}

	events := make(chan Event, 10)
	events <- Event{Type: event.FileSkipped, Path: "done.bin", Size: 10}
	close(events)

	require.NoError(t, p.Run(events))
	assert.Contains(t, out.String(), "done.bin")
	assert.Contains(t, out.String(), "verified earlier")
}

func TestHudClearHUDSequence(t *testing.T) {
	var out bytes.Buffer
	p := &hudPresenter{w: &out, stats: stats.NewCollector()}

	p.drawHUD()
	require.True(t, p.hudDrawn)
	out.Reset()

	p.clearHUD()
	assert.Equal(t, "\033[2A\033[J", out.String())
	assert.False(t, p.hudDrawn)

	// Clearing twice writes nothing.
	out.Reset()
	p.clearHUD()
	assert.Empty(t, out.String())
}

func TestHudAlwaysRedrawsAfterFeedLine(t *testing.T) {
	var out bytes.Buffer
	p := &hudPresenter{w: &out, stats: stats.NewCollector()}

	p.handleEvent(Event{Type: event.FileCompleted, Path: "a.txt", Size: 1})
	assert.True(t, p.hudDrawn)

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 1+hudLines)
	assert.Contains(t, lines[0], "a.txt")
	assert.Contains(t, lines[2], "files")
}

func TestHudScanningLine(t *testing.T) {
	var out bytes.Buffer
	collector := stats.NewCollector()
	collector.AddFilesScanned(3)
	p := &hudPresenter{w: &out, stats: collector}

	p.handleEvent(Event{Type: event.ScanStarted})
	p.drawHUD()
	assert.Contains(t, out.String(), "scanning  3 files")

	p.handleEvent(Event{Type: event.ScanComplete})
	out.Reset()
	p.drawHUD()
	assert.NotContains(t, out.String(), "scanning")
}

func TestHudPresenterSummary(t *testing.T) {
	collector := stats.NewCollector()
	collector.AddFilesCompleted(5)
	p := &hudPresenter{stats: collector}
	assert.Contains(t, p.Summary(), "files 5")
}

func TestTruncPath(t *testing.T) {
	assert.Equal(t, "short.txt", truncPath("short.txt", 20))
	assert.Equal(t, "...ry/long/path.txt", truncPath("a/very/long/directory/long/path.txt", 19))
	assert.Equal(t, "ab", truncPath("abcdef", 2))
}

func TestStyledPath(t *testing.T) {
	// Styles render as plain text when output is not a terminal.
	assert.Equal(t, "file.txt", styledPath("file.txt"))
	assert.Equal(t, "some/dir/file.txt", styledPath("some/dir/file.txt"))
}

func TestStyledBar(t *testing.T) {
	assert.Equal(t, "█████░░░░░", styledBar(0.5, 10))
	assert.Equal(t, "████", styledBar(1, 4))
	assert.Equal(t, "░░░░", styledBar(0, 4))
}

func TestHudChunkProgress(t *testing.T) {
	var out bytes.Buffer
	collector := stats.NewCollector()
	collector.SetTotals(2, 8, 512)
	collector.AddChunksVerified(2)
	collector.AddChunksResumed(1)
	collector.AddBytesCopied(128)
	collector.AddBytesResumed(64)
	p := &hudPresenter{w: &out, stats: collector}

	p.drawHUD()
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, hudLines)
	assert.Contains(t, lines[1], " 38%")
	assert.Contains(t, lines[1], "3/8 chunks")
	assert.Contains(t, lines[1], "chunks/s")
	assert.Contains(t, lines[1], "eta --")
}

func TestHudPathWidth(t *testing.T) {
	p := &hudPresenter{w: &bytes.Buffer{}}
	assert.Equal(t, defaultTermWidth-hudLineOverhead, p.pathWidth())
}
