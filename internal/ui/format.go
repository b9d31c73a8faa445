package ui

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bamsammich/ferry/internal/stats"
)

// FormatBytes formats a byte count with binary units ("1.5 MiB").
func FormatBytes(b int64) string {
	return stats.FormatBytes(b)
}

// FormatRate formats a byte rate ("12.0 MiB/s").
func FormatRate(bytesPerSec float64) string {
	if bytesPerSec <= 0 {
		return "0 B/s"
	}
	return stats.FormatBytes(int64(bytesPerSec)) + "/s"
}

// FormatChunkRate converts a byte rate into chunks per second, given the
// mean chunk length of the run.
func FormatChunkRate(bytesPerSec float64, meanChunk int64) string {
	if bytesPerSec <= 0 || meanChunk <= 0 {
		return "0 chunks/s"
	}
	r := bytesPerSec / float64(meanChunk)
	if r >= 10 {
		return fmt.Sprintf("%.0f chunks/s", r)
	}
	return fmt.Sprintf("%.1f chunks/s", r)
}

// MeanChunk is the average chunk length of a run, or 0 before totals are known.
func MeanChunk(snap stats.Snapshot) int64 {
	if snap.ChunksTotal <= 0 {
		return 0
	}
	return snap.BytesTotal / snap.ChunksTotal
}

// FormatChunks renders chunk progress as "3/40 chunks".
func FormatChunks(done, total int64) string {
	return FormatCount(done) + "/" + FormatCount(total) + " chunks"
}

// FormatCount formats an integer with comma separators.
func FormatCount(n int64) string {
	s := strconv.FormatInt(n, 10)
	sign := ""
	if s[0] == '-' {
		sign, s = "-", s[1:]
	}
	out := make([]byte, 0, len(s)+len(s)/3)
	for i := range len(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	return sign + string(out)
}

// Fraction returns done/total clamped to [0, 1]. Nothing to do counts as
// done.
func Fraction(done, total int64) float64 {
	if total <= 0 {
		return 1
	}
	return min(max(float64(done)/float64(total), 0), 1)
}

// FormatDuration formats d as "1h 02m 03s", "4m 05s" or "6s". A
// non-positive duration (unknown ETA, unfinished run) renders as "--".
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "--"
	}
	d = d.Round(time.Second)
	h, m, s := int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// progressCells splits width cells into filled and empty counts for frac.
func progressCells(frac float64, width int) (filled, empty int) {
	if width <= 0 {
		return 0, 0
	}
	filled = int(min(max(frac, 0), 1) * float64(width))
	return filled, width - filled
}
