package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/bamsammich/ferry/internal/stats"
)

const plainProgressEvery = 5 // seconds between progress lines

// plainPresenter outputs one line per finished file to stdout,
// and periodic progress to stderr when not a TTY.
type plainPresenter struct {
	w     io.Writer
	errW  io.Writer
	stats stats.ReadTicker
	ticks int
}

func (p *plainPresenter) Run(events <-chan Event) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.handleEvent(ev)
		case <-ticker.C:
			p.stats.Tick()
			p.ticks++
			if p.ticks%plainProgressEvery == 0 {
				p.printProgress()
			}
		}
	}
}

func (p *plainPresenter) handleEvent(ev Event) {
	switch ev.Type {
	case ScanComplete:
		fmt.Fprintf(p.w, "scanned %s files  %s\n", FormatCount(ev.Total), FormatBytes(ev.TotalSize))
	case FileCompleted:
		speed := p.stats.RollingSpeed(5)
		fmt.Fprintf(p.w, "%s  %s  %s\n", ev.Path, FormatBytes(ev.Size), FormatRate(speed))
	case FileFailed:
		errMsg := "error"
		if ev.Error != nil {
			errMsg = ev.Error.Error()
		}
		fmt.Fprintf(p.w, "%s  %s  %s\n", ev.Path, FormatBytes(ev.Size), errMsg)
	case FileSkipped:
		fmt.Fprintf(p.w, "%s  skipped (already verified)\n", ev.Path)
	}
}

func (p *plainPresenter) printProgress() {
	snap := p.stats.Snapshot()
	done := snap.BytesCopied + snap.BytesResumed
	if snap.FilesTotal > 0 {
		speed := p.stats.RollingSpeed(10)
		fmt.Fprintf(p.errW, "progress: %.0f%% %s/%s %s/%s files %s %s %s eta %s\n",
			Fraction(done, snap.BytesTotal)*100,
			FormatBytes(done), FormatBytes(snap.BytesTotal),
			FormatCount(snap.FilesCompleted+snap.FilesSkipped), FormatCount(snap.FilesTotal),
			FormatChunks(snap.ChunksVerified+snap.ChunksResumed, snap.ChunksTotal),
			FormatRate(speed),
			FormatChunkRate(speed, MeanChunk(snap)),
			FormatDuration(p.stats.ETA()),
		)
		return
	}
	fmt.Fprintf(p.errW, "progress: %s scanned %s files\n",
		FormatBytes(snap.BytesScanned),
		FormatCount(snap.FilesScanned),
	)
}

func (p *plainPresenter) Summary() string {
	return CompletionSummary(p.stats.Snapshot())
}
