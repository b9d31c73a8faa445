package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bamsammich/ferry/internal/manifest"
)

func TestSparkline(t *testing.T) {
	tests := []struct {
		name  string
		data  []float64
		width int
		want  string
	}{
		{"zero width", []float64{1, 2}, 0, ""},
		{"no samples", nil, 3, "▁▁▁"},
		{"all zero", []float64{0, 0, 0}, 3, "▁▁▁"},
		{"padded", []float64{100}, 4, "▁▁▁█"},
		{"ramp", []float64{1, 2, 3, 4, 5, 6, 7, 8}, 8, "▁▂▃▄▅▆▇█"},
		{"flat", []float64{5, 5, 5}, 3, "███"},
		{"keeps newest", []float64{8, 8, 0, 8}, 2, "▁█"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sparkline(tt.data, tt.width))
		})
	}
}

func chunks(states string) []manifest.ChunkState {
	out := make([]manifest.ChunkState, len(states))
	for i, c := range states {
		out[i].Status = manifest.StatusMissing
		if c == 'v' {
			out[i].Status = manifest.StatusVerified
		}
	}
	return out
}

func TestChunkMap(t *testing.T) {
	tests := []struct {
		name   string
		states string
		width  int
		want   string
	}{
		{"no chunks", "", 8, ""},
		{"zero width", "vm", 0, ""},
		{"one cell per chunk", "vvmm", 8, "██··"},
		{"grouped", "vmvv", 2, "▒█"},
		{"all missing grouped", "mmmmmm", 3, "···"},
		{"all verified grouped", "vvvvvvv", 3, "███"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChunkMap(chunks(tt.states), tt.width))
		})
	}
}
