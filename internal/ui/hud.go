package ui

import (
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/bamsammich/ferry/internal/stats"
)

// hudPresenter provides a TTY display with a scrolling feed of finished
// files and a 2-line HUD that redraws in place.
type hudPresenter struct {
	w     io.Writer
	stats stats.ReadTicker

	hudDrawn    bool
	current     string // file being copied
	scanning    bool
	lastHUDDraw time.Time
}

const (
	sparklineWidth   = 20
	progressBarWidth = 20
	hudLines         = 2
	hudMinInterval   = 50 * time.Millisecond // don't redraw faster than this
	hudLineOverhead  = 60                    // sparkline, rate and byte totals
	minPathWidth     = 16
)

func (p *hudPresenter) Run(events <-chan Event) error {
	// Fire first tick quickly to seed the ring buffer with initial speed data,
	// then switch to 1s interval.
	secTicker := time.NewTicker(250 * time.Millisecond)
	defer secTicker.Stop()
	firstTickDone := false

	// Redraw while a large chunk is in flight and no events arrive.
	redrawTicker := time.NewTicker(100 * time.Millisecond)
	defer redrawTicker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				p.clearHUD()
				return nil
			}
			p.handleEvent(ev)
			p.maybeDrawHUD()

		case <-redrawTicker.C:
			p.drawHUD()

		case <-secTicker.C:
			p.stats.Tick()
			if !firstTickDone {
				firstTickDone = true
				secTicker.Reset(time.Second)
			}
		}
	}
}

func (p *hudPresenter) handleEvent(ev Event) {
	switch ev.Type {
	case ScanStarted:
		p.scanning = true
	case ScanComplete:
		p.scanning = false
	case FileStarted:
		p.current = ev.Path
	case FileCompleted:
		p.current = ""
		p.feedLine(styleIconDone.Render("✓"), ev, p.rateSuffix())
	case FileFailed:
		p.current = ""
		msg := "error"
		if ev.Error != nil {
			msg = ev.Error.Error()
		}
		p.feedLine(styleIconFailed.Render("✗"), ev, styleError.Render(msg))
	case FileSkipped:
		p.feedLine(styleIconSkipped.Render("–"), ev, styleLabel.Render("verified earlier"))
	}
}

func (p *hudPresenter) feedLine(icon string, ev Event, suffix string) {
	p.clearHUD()
	fmt.Fprintf(p.w, "%s  %s  %10s  %s\n", icon, styledPath(ev.Path), FormatBytes(ev.Size), suffix)
	p.drawHUD() // always redraw HUD after feed line
}

func (p *hudPresenter) rateSuffix() string {
	speed := p.stats.RollingSpeed(5)
	if speed <= 0 {
		return ""
	}
	return FormatRate(speed)
}

// maybeDrawHUD redraws the HUD if enough time has passed since the last draw.
func (p *hudPresenter) maybeDrawHUD() {
	if time.Since(p.lastHUDDraw) < hudMinInterval {
		return
	}
	p.drawHUD()
}

func (p *hudPresenter) drawHUD() {
	snap := p.stats.Snapshot()
	p.clearHUD()

	if p.scanning {
		fmt.Fprintf(p.w, "scanning  %s files  %s\n\n",
			FormatCount(snap.FilesScanned), FormatBytes(snap.BytesScanned))
		p.hudDrawn = true
		p.lastHUDDraw = time.Now()
		return
	}

	done := snap.BytesCopied + snap.BytesResumed
	var pct float64
	if snap.FilesTotal > 0 {
		pct = Fraction(done, snap.BytesTotal)
	}
	speed := p.stats.RollingSpeed(10)

	// Line 1: throughput sparkline + speed + byte totals + current file.
	spark := styleSparkline.Render(Sparkline(p.stats.SparklineData(sparklineWidth), sparklineWidth))
	fmt.Fprintf(p.w, "       %s   %s   %s / %s   %s\n",
		spark, FormatRate(speed),
		FormatBytes(done), FormatBytes(snap.BytesTotal),
		styleFileDir.Render(truncPath(p.current, p.pathWidth())))

	// Line 2: progress bar + files + chunks + eta.
	fmt.Fprintf(p.w, " %3.0f%%  %s   %s / %s files   %s  %s   eta %s\n",
		pct*100, styledBar(pct, progressBarWidth),
		FormatCount(snap.FilesCompleted+snap.FilesSkipped), FormatCount(snap.FilesTotal),
		FormatChunks(snap.ChunksVerified+snap.ChunksResumed, snap.ChunksTotal),
		styleLabel.Render(FormatChunkRate(speed, MeanChunk(snap))),
		FormatDuration(p.stats.ETA()))

	p.hudDrawn = true
	p.lastHUDDraw = time.Now()
}

func (p *hudPresenter) clearHUD() {
	if !p.hudDrawn {
		return
	}
	// Move cursor up N lines and clear to end of screen.
	fmt.Fprintf(p.w, "\033[%dA\033[J", hudLines)
	p.hudDrawn = false
}

func (p *hudPresenter) Summary() string {
	return CompletionSummary(p.stats.Snapshot())
}

// styledPath returns the path with the directory portion dimmed and the
// filename in normal weight, making the actual filename stand out.
func styledPath(relPath string) string {
	dir, base := path.Split(relPath)
	if dir == "" {
		return styleFilePath.Render(base)
	}
	return styleFileDir.Render(dir) + styleFilePath.Render(base)
}

// styledBar renders a width-cell progress bar for frac.
func styledBar(frac float64, width int) string {
	filled, empty := progressCells(frac, width)
	return styleProgressFilled.Render(strings.Repeat("█", filled)) +
		styleProgressEmpty.Render(strings.Repeat("░", empty))
}

// pathWidth is the room left for the current file on the HUD's first line.
func (p *hudPresenter) pathWidth() int {
	return max(TermWidth(p.w)-hudLineOverhead, minPathWidth)
}

// truncPath shortens a path to fit within maxLen characters.
func truncPath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	if maxLen <= 3 {
		return path[:maxLen]
	}
	return "..." + path[len(path)-maxLen+3:]
}
