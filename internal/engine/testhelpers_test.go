package engine_test

import (
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/hash"
	"github.com/bamsammich/ferry/internal/manifest"
)

// writeTree creates each file under root, making parent directories.
func writeTree(t *testing.T, root string, files map[string][]byte) {
	t.Helper()
	for rel, data := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, data, 0o644))
	}
}

// buildManifest hashes files chunk by chunk and returns a fresh manifest
// for copying src to dst.
func buildManifest(
	t *testing.T,
	alg hash.Algorithm,
	chunkSize int64,
	src, dst string,
	files map[string][]byte,
) *manifest.Manifest {
	t.Helper()
	scan := &manifest.ScanMetadata{
		Version:       "1.0",
		ChunkSize:     chunkSize,
		HashAlgorithm: alg,
	}
	for rel, data := range files {
		sf := &manifest.ScannedFile{Path: rel, Size: int64(len(data))}
		for off := int64(0); off < int64(len(data)); off += chunkSize {
			end := min(off+chunkSize, int64(len(data)))
			sf.Hashes = append(sf.Hashes, alg.Sum(data[off:end]))
		}
		scan.Files = append(scan.Files, sf)
	}
	m, err := manifest.Build(scan, src, dst)
	require.NoError(t, err)
	return m
}

// recordingStore keeps a deep copy of every checkpoint it receives. When
// failAfter is positive, saves beyond that count fail with err.
type recordingStore struct {
	mu        sync.Mutex
	saves     []*manifest.Manifest
	failAfter int
	err       error
}

func (s *recordingStore) Save(m *manifest.Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAfter > 0 && len(s.saves) >= s.failAfter {
		return s.err
	}
	s.saves = append(s.saves, m.Clone())
	return nil
}

func (s *recordingStore) last() *manifest.Manifest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saves) == 0 {
		return nil
	}
	return s.saves[len(s.saves)-1]
}

func (s *recordingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saves)
}

// collectEvents drains ch until it is closed.
func collectEvents(ch <-chan event.Event) <-chan []event.Event {
	out := make(chan []event.Event, 1)
	go func() {
		var evs []event.Event
		for ev := range ch {
			evs = append(evs, ev)
		}
		out <- evs
	}()
	return out
}

func eventTypes(evs []event.Event) []event.Type {
	types := make([]event.Type, 0, len(evs))
	for _, ev := range evs {
		types = append(types, ev.Type)
	}
	return types
}

func requireSameFile(t *testing.T, want []byte, path string) {
	t.Helper()
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, slices.Equal(want, got), "content of %s differs (want %d bytes, got %d)",
		path, len(want), len(got))
}

// pattern returns n deterministic, non-repeating-per-chunk bytes.
func pattern(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7) ^ seed ^ byte(i>>8)
	}
	return b
}
