package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	ScanStarted Type = iota + 1
	FileScanned
	ScanComplete
	TransferStarted
	FileStarted
	ChunkVerified
	FileCompleted
	FileSkipped
	FileFailed
)

var typeNames = [...]string{
	ScanStarted:     "ScanStarted",
	FileScanned:     "FileScanned",
	ScanComplete:    "ScanComplete",
	TransferStarted: "TransferStarted",
	FileStarted:     "FileStarted",
	ChunkVerified:   "ChunkVerified",
	FileCompleted:   "FileCompleted",
	FileSkipped:     "FileSkipped",
	FileFailed:      "FileFailed",
}

func (t Type) String() string {
	if int(t) > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Event represents a single progress event from the scanner or the engine.
type Event struct {
	Type      Type
	Timestamp time.Time
	Path      string // relative path
	Chunk     int    // chunk index (ChunkVerified)
	Size      int64  // file size or chunk length
	Total     int64  // total files (ScanComplete, TransferStarted)
	TotalSize int64  // total bytes (ScanComplete, TransferStarted)
	Error     error
}

// Emit sends e on ch without blocking. Events are dropped when the consumer
// falls behind; the copy never waits on a presenter.
func Emit(ch chan<- Event, e Event) {
	if ch == nil {
		return
	}
	e.Timestamp = time.Now()
	select {
	case ch <- e:
	default:
	}
}
