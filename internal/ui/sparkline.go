package ui

import (
	"slices"
	"strings"

	"github.com/bamsammich/ferry/internal/manifest"
)

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders the last width samples as block characters scaled to
// the largest sample, left-padded with the lowest block.
func Sparkline(data []float64, width int) string {
	if width <= 0 {
		return ""
	}
	if len(data) > width {
		data = data[len(data)-width:]
	}
	peak := 0.0
	if len(data) > 0 {
		peak = slices.Max(data)
	}

	var b strings.Builder
	b.WriteString(strings.Repeat(string(sparkBlocks[0]), width-len(data)))
	top := len(sparkBlocks) - 1
	for _, v := range data {
		idx := 0
		if peak > 0 && v > 0 {
			idx = min(int(v/peak*float64(top)), top)
		}
		b.WriteRune(sparkBlocks[idx])
	}
	return b.String()
}

// Chunk map cells.
const (
	cellVerified = '█'
	cellPartial  = '▒'
	cellMissing  = '·'
)

// ChunkMap draws a file's chunks as at most width cells. When there are
// more chunks than cells, each cell covers a contiguous run of chunks and
// shows whether all, some, or none of them are verified.
func ChunkMap(chunks []manifest.ChunkState, width int) string {
	if width <= 0 || len(chunks) == 0 {
		return ""
	}
	cells := min(width, len(chunks))
	out := make([]rune, cells)
	for c := range cells {
		lo := c * len(chunks) / cells
		hi := (c + 1) * len(chunks) / cells
		verified := 0
		for _, ch := range chunks[lo:hi] {
			if ch.Status == manifest.StatusVerified {
				verified++
			}
		}
		switch verified {
		case hi - lo:
			out[c] = cellVerified
		case 0:
			out[c] = cellMissing
		default:
			out[c] = cellPartial
		}
	}
	return string(out)
}
