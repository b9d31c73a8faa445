package ui

import "github.com/bamsammich/ferry/internal/event"

// Event is the progress event consumed by presenters.
type Event = event.Event

// Re-export event types for convenience.
const (
	ScanStarted     = event.ScanStarted
	FileScanned     = event.FileScanned
	ScanComplete    = event.ScanComplete
	TransferStarted = event.TransferStarted
	FileStarted     = event.FileStarted
	ChunkVerified   = event.ChunkVerified
	FileCompleted   = event.FileCompleted
	FileSkipped     = event.FileSkipped
	FileFailed      = event.FileFailed
)
