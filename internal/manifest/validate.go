package manifest

import (
	"fmt"
	"path/filepath"

	"github.com/bamsammich/ferry/internal/hash"
)

// Validate checks the scan metadata invariants: a positive chunk size, local
// unique paths, and exactly ceil(size/chunk_size) well-formed hashes per file.
func (s *ScanMetadata) Validate() error {
	if s.Version == "" {
		return fmt.Errorf("%w: scan metadata: missing version", ErrMalformed)
	}
	if s.ChunkSize <= 0 {
		return fmt.Errorf("%w: scan metadata: chunk_size must be positive, got %d", ErrMalformed, s.ChunkSize)
	}
	if _, err := hash.Parse(string(s.HashAlgorithm)); err != nil {
		return fmt.Errorf("%w: scan metadata: %w", ErrMalformed, err)
	}

	seen := make(map[string]struct{}, len(s.Files))
	for _, f := range s.Files {
		if err := checkFile(f.Path, f.Size, len(f.Hashes), s.ChunkSize, seen); err != nil {
			return fmt.Errorf("scan metadata: %w", err)
		}
		for i, h := range f.Hashes {
			if !s.HashAlgorithm.IsHex(h) {
				return fmt.Errorf("%w: scan metadata: %s chunk %d: invalid %s digest %q",
					ErrMalformed, f.Path, i, s.HashAlgorithm, h)
			}
		}
	}
	return nil
}

// Validate checks the manifest invariants, including that no file claims
// completion while one of its chunks is still MISSING.
func (m *Manifest) Validate() error {
	if m.Version == "" {
		return fmt.Errorf("%w: manifest: missing version", ErrMalformed)
	}
	if m.ChunkSize <= 0 {
		return fmt.Errorf("%w: manifest: chunk_size must be positive, got %d", ErrMalformed, m.ChunkSize)
	}
	if _, err := hash.Parse(string(m.HashAlgorithm)); err != nil {
		return fmt.Errorf("%w: manifest: %w", ErrMalformed, err)
	}
	if !filepath.IsAbs(m.SourceRoot) {
		return fmt.Errorf("%w: manifest: source_root %q is not absolute", ErrMalformed, m.SourceRoot)
	}
	if !filepath.IsAbs(m.DestinationRoot) {
		return fmt.Errorf("%w: manifest: destination_root %q is not absolute", ErrMalformed, m.DestinationRoot)
	}

	seen := make(map[string]struct{}, len(m.Files))
	for _, f := range m.Files {
		if err := checkFile(f.Path, f.Size, len(f.Chunks), m.ChunkSize, seen); err != nil {
			return fmt.Errorf("manifest: %w", err)
		}
		for i, c := range f.Chunks {
			if !c.Status.valid() {
				return fmt.Errorf("%w: manifest: %s chunk %d: unknown status %q", ErrMalformed, f.Path, i, c.Status)
			}
			if !m.HashAlgorithm.IsHex(c.ExpectedHash) {
				return fmt.Errorf("%w: manifest: %s chunk %d: invalid %s digest %q",
					ErrMalformed, f.Path, i, m.HashAlgorithm, c.ExpectedHash)
			}
		}
		if f.Completed && !f.AllVerified() {
			return fmt.Errorf("%w: manifest: %s marked completed with unverified chunks", ErrMalformed, f.Path)
		}
	}
	return nil
}

func checkFile(relPath string, size int64, chunks int, chunkSize int64, seen map[string]struct{}) error {
	if !validRelPath(relPath) {
		return fmt.Errorf("%w: invalid relative path %q", ErrMalformed, relPath)
	}
	if _, dup := seen[relPath]; dup {
		return fmt.Errorf("%w: duplicate path %q", ErrMalformed, relPath)
	}
	seen[relPath] = struct{}{}

	if size < 0 {
		return fmt.Errorf("%w: %s: negative size %d", ErrMalformed, relPath, size)
	}
	if want := ChunkCount(size, chunkSize); int64(chunks) != want {
		return fmt.Errorf("%w: %s: size %d needs %d chunks of %d bytes, got %d",
			ErrMalformed, relPath, size, want, chunkSize, chunks)
	}
	return nil
}
