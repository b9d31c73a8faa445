package ui

import (
	"fmt"
	"io"

	"github.com/bamsammich/ferry/internal/manifest"
)

// RenderStatus prints a manifest's progress: a header with both roots and
// totals, then one line per file. Completed files are listed only when all
// is true.
func RenderStatus(w io.Writer, m *manifest.Manifest, all bool) {
	p := m.Progress()

	fmt.Fprintln(w, styleHeader.Render("ferry status"))
	fmt.Fprintf(w, "%s %s\n", styleLabel.Render("source      "), m.SourceRoot)
	fmt.Fprintf(w, "%s %s\n", styleLabel.Render("destination "), m.DestinationRoot)
	fmt.Fprintf(w, "%s %s  %s\n", styleLabel.Render("chunks      "),
		FormatBytes(m.ChunkSize), m.HashAlgorithm)

	pct := Fraction(p.BytesVerified, p.Bytes)
	if p.Bytes == 0 && p.FilesCompleted < p.Files {
		pct = 0
	}
	fmt.Fprintf(w, " %3.0f%%  %s   %s / %s files   %s   %s / %s\n\n",
		pct*100, styledBar(pct, progressBarWidth),
		FormatCount(int64(p.FilesCompleted)), FormatCount(int64(p.Files)),
		FormatChunks(int64(p.ChunksVerified), int64(p.Chunks)),
		FormatBytes(p.BytesVerified), FormatBytes(p.Bytes))

	for _, f := range m.Files {
		if f.Completed && !all {
			continue
		}
		fmt.Fprintln(w, statusLine(f))
	}
}

const chunkMapWidth = 32

func statusLine(f *manifest.FileEntry) string {
	verified := f.VerifiedChunks()
	var icon string
	switch {
	case f.Completed:
		icon = styleIconDone.Render("✓")
	case verified > 0:
		icon = styleIconPartial.Render("◐")
	default:
		icon = styleIconSkipped.Render("·")
	}
	line := fmt.Sprintf("%s  %s  %s  %s",
		icon,
		styledPath(f.Path),
		styleFileSize.Render(FormatBytes(f.Size)),
		styleLabel.Render(FormatChunks(int64(verified), int64(len(f.Chunks)))),
	)
	if verified > 0 && verified < len(f.Chunks) {
		line += "  " + styleSparkline.Render(ChunkMap(f.Chunks, chunkMapWidth))
	}
	return line
}
