package scan_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/hash"
	"github.com/bamsammich/ferry/internal/manifest"
	"github.com/bamsammich/ferry/internal/scan"
	"github.com/bamsammich/ferry/internal/stats"
)

func writeFile(t *testing.T, root, rel string, data []byte) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, data, 0o644))
}

func TestScan_HashesEachChunk(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.bin", []byte("0123456789"))

	meta, err := scan.Scan(context.Background(), scan.Config{
		Root:      root,
		ChunkSize: 4,
		Algorithm: hash.SHA256,
	})
	require.NoError(t, err)

	assert.Equal(t, scan.Version, meta.Version)
	assert.Equal(t, int64(4), meta.ChunkSize)
	assert.Equal(t, hash.SHA256, meta.HashAlgorithm)
	require.Len(t, meta.Files, 1)

	f := meta.Files[0]
	assert.Equal(t, "a.bin", f.Path)
	assert.Equal(t, int64(10), f.Size)
	assert.Equal(t, []string{
		hash.SHA256.Sum([]byte("0123")),
		hash.SHA256.Sum([]byte("4567")),
		hash.SHA256.Sum([]byte("89")),
	}, f.Hashes)
	require.NoError(t, meta.Validate())
}

func TestScan_MaxChunkSizeSmallFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "tiny", []byte("hello"))

	meta, err := scan.Scan(context.Background(), scan.Config{
		Root:      root,
		ChunkSize: scan.MaxChunkSize,
		Workers:   1,
	})
	require.NoError(t, err)
	require.Len(t, meta.Files, 1)
	assert.Equal(t, int64(5), meta.Files[0].Size)
	assert.Equal(t, []string{hash.SHA256.Sum([]byte("hello"))}, meta.Files[0].Hashes)
}

func TestScan_ChunksSpanReadBuffer(t *testing.T) {
	data := make([]byte, 5<<20/2)
	for i := range data {
		data[i] = byte(i % 251)
	}
	root := t.TempDir()
	writeFile(t, root, "big", data)

	chunkSize := int64(3 << 20 / 2)
	meta, err := scan.Scan(context.Background(), scan.Config{
		Root:      root,
		ChunkSize: chunkSize,
		Algorithm: hash.BLAKE3,
	})
	require.NoError(t, err)
	require.Len(t, meta.Files, 1)
	assert.Equal(t, []string{
		hash.BLAKE3.Sum(data[:chunkSize]),
		hash.BLAKE3.Sum(data[chunkSize:]),
	}, meta.Files[0].Hashes)
}

func TestScan_TreeIsSortedAndRelative(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "z.txt", []byte("z"))
	writeFile(t, root, "a/b/c.txt", []byte("nested"))
	writeFile(t, root, "a/a.txt", []byte("first"))
	writeFile(t, root, "empty", nil)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "emptydir"), 0o755))

	meta, err := scan.Scan(context.Background(), scan.Config{
		Root:      root,
		ChunkSize: 1024,
		Algorithm: hash.BLAKE3,
		Workers:   3,
	})
	require.NoError(t, err)

	paths := make([]string, 0, len(meta.Files))
	for _, f := range meta.Files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"a/a.txt", "a/b/c.txt", "empty", "z.txt"}, paths)

	empty := meta.Files[2]
	assert.Zero(t, empty.Size)
	assert.Empty(t, empty.Hashes)
	assert.Equal(t, []string{hash.BLAKE3.Sum([]byte("nested"))}, meta.Files[1].Hashes)
}

func TestScan_SkipsSymlinks(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "real.txt", []byte("data"))
	require.NoError(t, os.Symlink("real.txt", filepath.Join(root, "link.txt")))

	meta, err := scan.Scan(context.Background(), scan.Config{Root: root, ChunkSize: 8})
	require.NoError(t, err)
	require.Len(t, meta.Files, 1)
	assert.Equal(t, "real.txt", meta.Files[0].Path)
	assert.Equal(t, hash.Default, meta.HashAlgorithm)
}

func TestScan_BuildsValidManifest(t *testing.T) {
	root := t.TempDir()
	for i, name := range []string{"x", "y/z", "y/w"} {
		writeFile(t, root, name, make([]byte, 100*(i+1)))
	}

	meta, err := scan.Scan(context.Background(), scan.Config{Root: root, ChunkSize: 64})
	require.NoError(t, err)

	m, err := manifest.Build(meta, root, filepath.Join(t.TempDir(), "dst"))
	require.NoError(t, err)
	p := m.Progress()
	assert.Equal(t, 3, p.Files)
	assert.Equal(t, int64(600), p.Bytes)
	assert.Equal(t, 2+4+5, p.Chunks)
}

func TestScan_EventsAndStats(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a", []byte("aaaa"))
	writeFile(t, root, "b", []byte("bb"))

	events := make(chan event.Event, 16)
	collector := stats.NewCollector()
	_, err := scan.Scan(context.Background(), scan.Config{
		Root:      root,
		ChunkSize: 4,
		Events:    events,
		Stats:     collector,
	})
	require.NoError(t, err)
	close(events)

	var types []event.Type
	for ev := range events {
		types = append(types, ev.Type)
	}
	require.Len(t, types, 4)
	assert.Equal(t, event.ScanStarted, types[0])
	assert.Equal(t, event.FileScanned, types[1])
	assert.Equal(t, event.FileScanned, types[2])
	assert.Equal(t, event.ScanComplete, types[3])

	snap := collector.Snapshot()
	assert.Equal(t, int64(2), snap.FilesScanned)
	assert.Equal(t, int64(6), snap.BytesScanned)
}

func TestScan_Errors(t *testing.T) {
	t.Run("missing root", func(t *testing.T) {
		_, err := scan.Scan(context.Background(), scan.Config{
			Root:      filepath.Join(t.TempDir(), "nope"),
			ChunkSize: 4,
		})
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("root is a file", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "f", []byte("x"))
		_, err := scan.Scan(context.Background(), scan.Config{Root: filepath.Join(root, "f"), ChunkSize: 4})
		assert.ErrorContains(t, err, "not a directory")
	})

	t.Run("zero chunk size", func(t *testing.T) {
		_, err := scan.Scan(context.Background(), scan.Config{Root: t.TempDir()})
		assert.Error(t, err)
	})

	t.Run("chunk size above limit", func(t *testing.T) {
		_, err := scan.Scan(context.Background(), scan.Config{Root: t.TempDir(), ChunkSize: 1 << 50})
		assert.ErrorContains(t, err, "chunk size")
	})

	t.Run("unreadable file", func(t *testing.T) {
		if os.Geteuid() == 0 {
			t.Skip("root can read any file")
		}
		root := t.TempDir()
		writeFile(t, root, "secret", []byte("x"))
		require.NoError(t, os.Chmod(filepath.Join(root, "secret"), 0))
		_, err := scan.Scan(context.Background(), scan.Config{Root: root, ChunkSize: 4})
		assert.ErrorIs(t, err, os.ErrPermission)
	})

	t.Run("cancelled", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "f", []byte("x"))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := scan.Scan(ctx, scan.Config{Root: root, ChunkSize: 4})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
