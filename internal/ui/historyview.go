package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/bamsammich/ferry/internal/history"
)

// RenderHistory prints one line per run, newest first as given.
func RenderHistory(w io.Writer, runs []history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, styleLabel.Render("no runs recorded"))
		return
	}
	for _, r := range runs {
		var icon string
		switch r.Status {
		case history.StatusSucceeded:
			icon = styleIconDone.Render("✓")
		case history.StatusFailed:
			icon = styleIconFailed.Render("✗")
		default:
			icon = styleIconPartial.Render("…")
		}

		took := "--"
		if d := r.Duration(); d > 0 {
			took = FormatDuration(d)
		}
		fmt.Fprintf(w, "%s  %s  %s  %s → %s  %s  %s\n",
			icon,
			styleLabel.Render(r.StartedAt.Local().Format(time.DateTime)),
			styleLabel.Render(r.JobID),
			r.SourceRoot, r.DestinationRoot,
			styleFileSize.Render(FormatBytes(r.BytesCopied)),
			took,
		)
		if r.Error != "" {
			fmt.Fprintf(w, "   %s\n", styleError.Render(r.Error))
		}
	}
}
