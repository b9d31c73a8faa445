// Package manifest defines the scan metadata and transfer manifest documents,
// builds fresh manifests from scan output, and persists them atomically.
//
// A manifest is the single source of truth for a transfer: every chunk of
// every file is either MISSING or VERIFIED, and the copy on disk is rewritten
// after each verified chunk so a crashed run can resume from it.
package manifest

import (
	"errors"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bamsammich/ferry/internal/hash"
)

var (
	// ErrMalformed is wrapped by every validation failure of a scan metadata
	// or manifest document.
	ErrMalformed = errors.New("malformed")

	// ErrNoManifest is returned by Resume when no manifest exists at the path.
	ErrNoManifest = errors.New("no manifest")

	// ErrMismatch is returned by Resume when the stored manifest belongs to a
	// different source, destination, or chunk layout.
	ErrMismatch = errors.New("manifest does not match requested run")
)

// Status is the transfer state of a single chunk.
type Status string

const (
	StatusMissing  Status = "MISSING"
	StatusVerified Status = "VERIFIED"
)

func (s Status) valid() bool {
	return s == StatusMissing || s == StatusVerified
}

// ChunkState tracks one chunk of a file.
type ChunkState struct {
	Status       Status
	ExpectedHash string
}

// FileEntry is the transfer record for one file. Chunks[i] covers bytes
// [i*chunkSize, min((i+1)*chunkSize, Size)).
type FileEntry struct {
	Path      string // relative, forward slashes
	Size      int64
	Completed bool
	Chunks    []ChunkState
}

// Manifest is the mutable transfer state for a whole run.
type Manifest struct {
	Version         string
	ChunkSize       int64
	HashAlgorithm   hash.Algorithm
	SourceRoot      string
	DestinationRoot string
	Files           []*FileEntry // sorted by Path
}

// ScannedFile is the scanner's view of one source file. Hashes[i] is the
// expected digest of chunk i.
type ScannedFile struct {
	Path   string
	Size   int64
	Hashes []string
}

// ScanMetadata is the read-only output of the source scanner.
type ScanMetadata struct {
	Version       string
	ChunkSize     int64
	HashAlgorithm hash.Algorithm
	Files         []*ScannedFile // sorted by Path
}

// ChunkCount returns the number of chunks a file of size bytes occupies.
func ChunkCount(size, chunkSize int64) int64 {
	if size <= 0 || chunkSize <= 0 {
		return 0
	}
	return (size-1)/chunkSize + 1
}

// ChunkSpan returns the byte offset and length of chunk index within a file
// of the given size.
func ChunkSpan(index int, size, chunkSize int64) (offset, length int64) {
	offset = int64(index) * chunkSize
	length = min(chunkSize, size-offset)
	if length < 0 {
		length = 0
	}
	return offset, length
}

// File returns the entry for relPath, or nil.
func (m *Manifest) File(relPath string) *FileEntry {
	i, ok := slices.BinarySearchFunc(m.Files, relPath, func(f *FileEntry, p string) int {
		return strings.Compare(f.Path, p)
	})
	if !ok {
		return nil
	}
	return m.Files[i]
}

// VerifiedChunks counts chunks already marked VERIFIED.
func (f *FileEntry) VerifiedChunks() int {
	n := 0
	for _, c := range f.Chunks {
		if c.Status == StatusVerified {
			n++
		}
	}
	return n
}

// AllVerified reports whether every chunk of the file is VERIFIED.
// A file with no chunks is trivially verified.
func (f *FileEntry) AllVerified() bool {
	return f.VerifiedChunks() == len(f.Chunks)
}

// Progress summarizes how much of a manifest is done.
type Progress struct {
	Files          int
	FilesCompleted int
	Chunks         int
	ChunksVerified int
	Bytes          int64
	BytesVerified  int64
}

// Progress walks the manifest and totals files, chunks, and bytes.
func (m *Manifest) Progress() Progress {
	var p Progress
	for _, f := range m.Files {
		p.Files++
		p.Bytes += f.Size
		if f.Completed {
			p.FilesCompleted++
		}
		for i, c := range f.Chunks {
			p.Chunks++
			if c.Status == StatusVerified {
				p.ChunksVerified++
				_, n := ChunkSpan(i, f.Size, m.ChunkSize)
				p.BytesVerified += n
			}
		}
	}
	return p
}

// Clone returns a deep copy of the manifest.
func (m *Manifest) Clone() *Manifest {
	c := *m
	c.Files = make([]*FileEntry, len(m.Files))
	for i, f := range m.Files {
		fc := *f
		fc.Chunks = slices.Clone(f.Chunks)
		c.Files[i] = &fc
	}
	return &c
}

// LocalPath converts a manifest-relative path to a path under root.
func LocalPath(root, relPath string) string {
	return filepath.Join(root, filepath.FromSlash(relPath))
}

// validRelPath rejects absolute paths, parent escapes, and non-canonical
// spellings such as "a//b" or "./a".
func validRelPath(p string) bool {
	if p == "" || path.Clean(p) != p {
		return false
	}
	return filepath.IsLocal(filepath.FromSlash(p))
}
