package engine

import (
	"errors"
	"fmt"
)

// Kind classifies a transfer failure.
type Kind int

const (
	SourceUnavailable Kind = iota + 1
	DestinationUnwritable
	ChunkCorruption
	CheckpointFailed
)

// Sentinels matched by errors.Is against a *TransferError of the same kind.
var (
	ErrSourceUnavailable     = errors.New("source unavailable")
	ErrDestinationUnwritable = errors.New("destination unwritable")
	ErrChunkCorruption       = errors.New("chunk corruption")
	ErrCheckpoint            = errors.New("checkpoint failed")
)

func (k Kind) sentinel() error {
	switch k {
	case SourceUnavailable:
		return ErrSourceUnavailable
	case DestinationUnwritable:
		return ErrDestinationUnwritable
	case ChunkCorruption:
		return ErrChunkCorruption
	case CheckpointFailed:
		return ErrCheckpoint
	default:
		return nil
	}
}

func (k Kind) String() string {
	if err := k.sentinel(); err != nil {
		return err.Error()
	}
	return "unknown"
}

// TransferError is returned by Run for every fatal condition. Chunk is -1
// when the failure is not tied to a single chunk.
type TransferError struct {
	Kind     Kind
	Path     string // manifest-relative path
	Chunk    int
	Expected string // ChunkCorruption only
	Actual   string // ChunkCorruption only
	Readback bool   // ChunkCorruption detected re-reading the destination
	Err      error
}

func (e *TransferError) Error() string {
	where := e.Path
	if e.Chunk >= 0 {
		where = fmt.Sprintf("%s [%d]", e.Path, e.Chunk)
	}

	if e.Kind == ChunkCorruption {
		side := "source"
		if e.Readback {
			side = "destination"
		}
		msg := fmt.Sprintf("chunk corruption: %s: %s digest %s, expected %s", where, side, e.Actual, e.Expected)
		if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
		return msg
	}

	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, where)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, where, e.Err)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *TransferError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func sourceErr(relPath string, chunk int, err error) error {
	return &TransferError{Kind: SourceUnavailable, Path: relPath, Chunk: chunk, Err: err}
}

func destErr(relPath string, chunk int, err error) error {
	return &TransferError{Kind: DestinationUnwritable, Path: relPath, Chunk: chunk, Err: err}
}
