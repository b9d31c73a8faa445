package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/bamsammich/ferry/internal/hash"
)

// Wire documents. Chunk maps are JSON objects keyed by decimal index; they
// are emitted in ascending numeric order and files in path order so that the
// same state always serializes to the same bytes.

type manifestDoc struct {
	Version         *string            `json:"version"`
	ChunkSize       *int64             `json:"chunk_size"`
	HashAlgorithm   string             `json:"hash_algorithm,omitempty"`
	SourceRoot      *string            `json:"source_root"`
	DestinationRoot *string            `json:"destination_root"`
	Files           map[string]fileDoc `json:"files"`
}

type fileDoc struct {
	Size      *int64              `json:"size"`
	Completed bool                `json:"completed"`
	Chunks    map[string]chunkDoc `json:"chunks"`
}

type chunkDoc struct {
	Status       Status `json:"status"`
	ExpectedHash string `json:"expected_hash"`
}

type scanDoc struct {
	Version       *string                `json:"version"`
	ChunkSize     *int64                 `json:"chunk_size"`
	HashAlgorithm string                 `json:"hash_algorithm,omitempty"`
	Files         map[string]scanFileDoc `json:"files"`
}

type scanFileDoc struct {
	Size   *int64                  `json:"size"`
	Chunks map[string]scanChunkDoc `json:"chunks"`
}

type scanChunkDoc struct {
	Hash string `json:"hash"`
}

// member and object encode a JSON object with caller-controlled key order.
type member struct {
	key   string
	value any
}

type object []member

func (o object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(m.key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(m.value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Marshal encodes the manifest as an indented JSON document.
func Marshal(m *Manifest) ([]byte, error) {
	files := make(object, 0, len(m.Files))
	for _, f := range m.Files {
		chunks := make(object, len(f.Chunks))
		for i, c := range f.Chunks {
			chunks[i] = member{strconv.Itoa(i), chunkDoc{Status: c.Status, ExpectedHash: c.ExpectedHash}}
		}
		files = append(files, member{f.Path, object{
			{"size", f.Size},
			{"completed", f.Completed},
			{"chunks", chunks},
		}})
	}

	doc := object{
		{"version", m.Version},
		{"chunk_size", m.ChunkSize},
		{"hash_algorithm", m.HashAlgorithm.String()},
		{"source_root", m.SourceRoot},
		{"destination_root", m.DestinationRoot},
		{"files", files},
	}
	return indent(doc)
}

// Unmarshal decodes and validates a manifest document.
func Unmarshal(data []byte) (*Manifest, error) {
	var doc manifestDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: manifest: %w", ErrMalformed, err)
	}
	if err := requireFields("manifest", map[string]bool{
		"version":          doc.Version != nil,
		"chunk_size":       doc.ChunkSize != nil,
		"source_root":      doc.SourceRoot != nil,
		"destination_root": doc.DestinationRoot != nil,
		"files":            doc.Files != nil,
	}); err != nil {
		return nil, err
	}

	alg, err := hash.Parse(doc.HashAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("%w: manifest: %w", ErrMalformed, err)
	}

	m := &Manifest{
		Version:         *doc.Version,
		ChunkSize:       *doc.ChunkSize,
		HashAlgorithm:   alg,
		SourceRoot:      *doc.SourceRoot,
		DestinationRoot: *doc.DestinationRoot,
		Files:           make([]*FileEntry, 0, len(doc.Files)),
	}
	for relPath, fd := range doc.Files {
		if fd.Size == nil || fd.Chunks == nil {
			return nil, fmt.Errorf("%w: manifest: %s: missing size or chunks", ErrMalformed, relPath)
		}
		chunks, err := orderChunks(relPath, fd.Chunks)
		if err != nil {
			return nil, fmt.Errorf("manifest: %w", err)
		}
		entry := &FileEntry{Path: relPath, Size: *fd.Size, Completed: fd.Completed}
		entry.Chunks = make([]ChunkState, len(chunks))
		for i, c := range chunks {
			entry.Chunks[i] = ChunkState(c)
		}
		m.Files = append(m.Files, entry)
	}
	sortFiles(m.Files)

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// MarshalScan encodes scan metadata as an indented JSON document.
func MarshalScan(s *ScanMetadata) ([]byte, error) {
	files := make(object, 0, len(s.Files))
	for _, f := range s.Files {
		chunks := make(object, len(f.Hashes))
		for i, h := range f.Hashes {
			chunks[i] = member{strconv.Itoa(i), scanChunkDoc{Hash: h}}
		}
		files = append(files, member{f.Path, object{
			{"size", f.Size},
			{"chunks", chunks},
		}})
	}

	doc := object{
		{"version", s.Version},
		{"chunk_size", s.ChunkSize},
		{"hash_algorithm", s.HashAlgorithm.String()},
		{"files", files},
	}
	return indent(doc)
}

// UnmarshalScan decodes and validates a scan metadata document. A document
// without hash_algorithm is taken to use hash.Default.
func UnmarshalScan(data []byte) (*ScanMetadata, error) {
	var doc scanDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: scan metadata: %w", ErrMalformed, err)
	}
	if err := requireFields("scan metadata", map[string]bool{
		"version":    doc.Version != nil,
		"chunk_size": doc.ChunkSize != nil,
		"files":      doc.Files != nil,
	}); err != nil {
		return nil, err
	}

	alg, err := hash.Parse(doc.HashAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("%w: scan metadata: %w", ErrMalformed, err)
	}

	s := &ScanMetadata{
		Version:       *doc.Version,
		ChunkSize:     *doc.ChunkSize,
		HashAlgorithm: alg,
		Files:         make([]*ScannedFile, 0, len(doc.Files)),
	}
	for relPath, fd := range doc.Files {
		if fd.Size == nil || fd.Chunks == nil {
			return nil, fmt.Errorf("%w: scan metadata: %s: missing size or chunks", ErrMalformed, relPath)
		}
		chunks, err := orderChunks(relPath, fd.Chunks)
		if err != nil {
			return nil, fmt.Errorf("scan metadata: %w", err)
		}
		hashes := make([]string, len(chunks))
		for i, c := range chunks {
			hashes[i] = c.Hash
		}
		s.Files = append(s.Files, &ScannedFile{Path: relPath, Size: *fd.Size, Hashes: hashes})
	}
	slices.SortFunc(s.Files, func(a, b *ScannedFile) int { return strings.Compare(a.Path, b.Path) })

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// orderChunks converts an index-keyed map into a slice, rejecting keys that
// are not canonical non-negative integers and index sets with gaps.
func orderChunks[T any](relPath string, in map[string]T) ([]T, error) {
	out := make([]T, len(in))
	for key, v := range in {
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || strconv.Itoa(idx) != key {
			return nil, fmt.Errorf("%w: %s: chunk index %q is not a canonical non-negative integer",
				ErrMalformed, relPath, key)
		}
		// Keys are distinct and canonical, so len(in) in-range indices
		// cover 0..len(in)-1 exactly.
		if idx >= len(in) {
			return nil, fmt.Errorf("%w: %s: chunk indices are not contiguous from 0 (found %d with %d chunks)",
				ErrMalformed, relPath, idx, len(in))
		}
		out[idx] = v
	}
	return out, nil
}

func requireFields(doc string, present map[string]bool) error {
	var missing []string
	for name, ok := range present {
		if !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return fmt.Errorf("%w: %s: missing required field(s) %s", ErrMalformed, doc, strings.Join(missing, ", "))
}

func sortFiles(files []*FileEntry) {
	slices.SortFunc(files, func(a, b *FileEntry) int { return strings.Compare(a.Path, b.Path) })
}

func indent(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
