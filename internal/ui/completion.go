package ui

import (
	"fmt"

	"github.com/bamsammich/ferry/internal/stats"
)

// CompletionSummary builds a final summary line from a snapshot.
// Format: done ✓  files 48,917  size 2.1 GiB  resumed 1.0 GiB  avg 641 MB/s  time 3m 17s  errors 0
func CompletionSummary(snap stats.Snapshot) string {
	avgSpeed := 0.0
	if snap.Elapsed.Seconds() > 0 {
		avgSpeed = float64(snap.BytesCopied) / snap.Elapsed.Seconds()
	}

	icon := "✓"
	if snap.FilesFailed > 0 {
		icon = "✗"
	}

	base := fmt.Sprintf("done %s  files %s  size %s",
		icon,
		FormatCount(snap.FilesCompleted+snap.FilesSkipped),
		FormatBytes(snap.BytesCopied),
	)
	if snap.BytesResumed > 0 {
		base += fmt.Sprintf("  resumed %s", FormatBytes(snap.BytesResumed))
	}
	base += fmt.Sprintf("  avg %s  time %s  errors %d",
		FormatRate(avgSpeed),
		FormatDuration(snap.Elapsed),
		snap.FilesFailed,
	)
	return base
}
