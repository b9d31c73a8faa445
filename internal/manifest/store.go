package manifest

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bamsammich/ferry/internal/hash"
	"github.com/bamsammich/ferry/internal/platform"
)

// Store persists manifest checkpoints.
type Store interface {
	Save(m *Manifest) error
}

// FileStore saves the manifest as a JSON document at Path. Every save
// atomically replaces the previous document.
type FileStore struct {
	Path string
}

// Save implements Store.
func (s FileStore) Save(m *Manifest) error {
	data, err := Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := platform.WriteFileAtomic(s.Path, data, 0o644); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}
	return nil
}

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// SaveScan atomically writes scan metadata to path.
func SaveScan(path string, s *ScanMetadata) error {
	data, err := MarshalScan(s)
	if err != nil {
		return fmt.Errorf("encode scan metadata: %w", err)
	}
	if err := platform.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("save scan metadata: %w", err)
	}
	return nil
}

// LoadScan reads and validates the scan metadata at path.
func LoadScan(path string) (*ScanMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scan metadata: %w", err)
	}
	s, err := UnmarshalScan(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Build creates a fresh manifest from scan metadata: one entry per file,
// every chunk MISSING, no file completed. The scan is not modified.
func Build(scan *ScanMetadata, sourceRoot, destinationRoot string) (*Manifest, error) {
	if err := scan.Validate(); err != nil {
		return nil, err
	}
	if !filepath.IsAbs(sourceRoot) {
		return nil, fmt.Errorf("%w: source root %q is not absolute", ErrMalformed, sourceRoot)
	}
	if !filepath.IsAbs(destinationRoot) {
		return nil, fmt.Errorf("%w: destination root %q is not absolute", ErrMalformed, destinationRoot)
	}

	alg, _ := hash.Parse(string(scan.HashAlgorithm)) //nolint:errcheck // validated above
	m := &Manifest{
		Version:         scan.Version,
		ChunkSize:       scan.ChunkSize,
		HashAlgorithm:   alg,
		SourceRoot:      filepath.Clean(sourceRoot),
		DestinationRoot: filepath.Clean(destinationRoot),
		Files:           make([]*FileEntry, 0, len(scan.Files)),
	}
	for _, f := range scan.Files {
		entry := &FileEntry{
			Path:   f.Path,
			Size:   f.Size,
			Chunks: make([]ChunkState, len(f.Hashes)),
		}
		for i, h := range f.Hashes {
			entry.Chunks[i] = ChunkState{Status: StatusMissing, ExpectedHash: h}
		}
		m.Files = append(m.Files, entry)
	}
	sortFiles(m.Files)
	return m, nil
}

// Create builds a fresh manifest and persists it, replacing whatever the
// store held before. Nothing is written if the scan is malformed.
func Create(store Store, scan *ScanMetadata, sourceRoot, destinationRoot string) (*Manifest, error) {
	m, err := Build(scan, sourceRoot, destinationRoot)
	if err != nil {
		return nil, err
	}
	if err := store.Save(m); err != nil {
		return nil, err
	}
	return m, nil
}

// ResumeKey identifies the run a stored manifest must belong to. Zero
// ChunkSize and empty HashAlgorithm accept whatever the manifest holds.
type ResumeKey struct {
	SourceRoot      string
	DestinationRoot string
	ChunkSize       int64
	HashAlgorithm   hash.Algorithm
}

// Resume loads the manifest at path if it belongs to the run described by
// key. It returns ErrNoManifest when there is nothing to resume and
// ErrMismatch when the stored manifest describes a different run.
func Resume(path string, key ResumeKey) (*Manifest, error) {
	m, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w at %s", ErrNoManifest, path)
	}
	if err != nil {
		return nil, err
	}

	switch {
	case m.SourceRoot != filepath.Clean(key.SourceRoot):
		return nil, fmt.Errorf("%w: source root is %s, want %s", ErrMismatch, m.SourceRoot, key.SourceRoot)
	case m.DestinationRoot != filepath.Clean(key.DestinationRoot):
		return nil, fmt.Errorf("%w: destination root is %s, want %s",
			ErrMismatch, m.DestinationRoot, key.DestinationRoot)
	case key.ChunkSize != 0 && m.ChunkSize != key.ChunkSize:
		return nil, fmt.Errorf("%w: chunk size is %d, want %d", ErrMismatch, m.ChunkSize, key.ChunkSize)
	case key.HashAlgorithm != "" && m.HashAlgorithm != key.HashAlgorithm:
		return nil, fmt.Errorf("%w: hash algorithm is %s, want %s", ErrMismatch, m.HashAlgorithm, key.HashAlgorithm)
	}

	p := m.Progress()
	slog.Debug("resuming manifest",
		"path", path,
		"files", p.Files,
		"files_completed", p.FilesCompleted,
		"chunks_verified", p.ChunksVerified,
		"chunks", p.Chunks,
	)
	return m, nil
}
