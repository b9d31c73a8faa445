package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bamsammich/ferry/internal/stats"
)

func TestFormatRate(t *testing.T) {
	tests := []struct {
		input float64
		want  string
	}{
		{0, "0 B/s"},
		{-1, "0 B/s"},
		{512, "512 B/s"},
		{1536, "1.5 KiB/s"},
		{1.5 * 1024 * 1024, "1.5 MiB/s"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatRate(tt.input))
		})
	}
}

func TestFormatChunkRate(t *testing.T) {
	tests := []struct {
		name      string
		rate      float64
		meanChunk int64
		want      string
	}{
		{"idle", 0, 64, "0 chunks/s"},
		{"no totals yet", 100, 0, "0 chunks/s"},
		{"fractional", 96, 64, "1.5 chunks/s"},
		{"whole above ten", 640, 64, "10 chunks/s"},
		{"32M chunks", 64 << 20, 32 << 20, "2.0 chunks/s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatChunkRate(tt.rate, tt.meanChunk))
		})
	}
}

func TestMeanChunk(t *testing.T) {
	assert.Zero(t, MeanChunk(stats.Snapshot{BytesTotal: 100}))
	assert.Equal(t, int64(250), MeanChunk(stats.Snapshot{BytesTotal: 1000, ChunksTotal: 4}))
}

func TestFormatChunks(t *testing.T) {
	assert.Equal(t, "0/0 chunks", FormatChunks(0, 0))
	assert.Equal(t, "3/40 chunks", FormatChunks(3, 40))
	assert.Equal(t, "1,024/2,048 chunks", FormatChunks(1024, 2048))
}

func TestFormatCount(t *testing.T) {
	tests := []struct {
		input int64
		want  string
	}{
		{0, "0"},
		{7, "7"},
		{999, "999"},
		{1000, "1,000"},
		{14302, "14,302"},
		{1000000, "1,000,000"},
		{-1000, "-1,000"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatCount(tt.input))
		})
	}
}

func TestFraction(t *testing.T) {
	assert.InDelta(t, 1.0, Fraction(0, 0), 0)
	assert.InDelta(t, 0.5, Fraction(5, 10), 0)
	assert.InDelta(t, 1.0, Fraction(20, 10), 0)
	assert.InDelta(t, 0.0, Fraction(-1, 10), 0)
}

func TestProgressCells(t *testing.T) {
	tests := []struct {
		frac          float64
		width         int
		filled, empty int
	}{
		{0.5, 10, 5, 5},
		{0, 4, 0, 4},
		{1, 4, 4, 0},
		{1.5, 4, 4, 0},
		{-1, 4, 0, 4},
		{0.5, 0, 0, 0},
	}
	for _, tt := range tests {
		filled, empty := progressCells(tt.frac, tt.width)
		assert.Equal(t, tt.filled, filled, "frac %v width %d", tt.frac, tt.width)
		assert.Equal(t, tt.empty, empty, "frac %v width %d", tt.frac, tt.width)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		input time.Duration
		want  string
	}{
		{0, "--"},
		{-time.Second, "--"},
		{300 * time.Millisecond, "0s"},
		{30 * time.Second, "30s"},
		{3*time.Minute + 17*time.Second, "3m 17s"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1h 02m 03s"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.input))
		})
	}
}
