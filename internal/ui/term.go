package ui

import (
	"io"
	"os"

	"golang.org/x/term"
)

const defaultTermWidth = 80

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// TermWidth returns the column count of w, or 80 when w is not a terminal.
func TermWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return defaultTermWidth
	}
	cols, _, err := term.GetSize(int(f.Fd()))
	if err != nil || cols <= 0 {
		return defaultTermWidth
	}
	return cols
}
