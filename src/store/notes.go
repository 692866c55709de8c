package store

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/QianXiquq/RankingAnalyzer/src/records"
)

// DefaultNotesFile is the notes sidecar used when none is configured.
const DefaultNotesFile = "note.txt"

// LoadNotes reads the notes sidecar. A missing file means "no notes yet" and is not an
// error.
func LoadNotes(path string) (string, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", &records.IOError{Op: "read notes", Path: path, Err: err}
	}
	return strings.TrimPrefix(string(b), "\ufeff"), nil
}

// SaveNotes overwrites the notes sidecar with the trimmed text.
func SaveNotes(path, text string) error {
	text = strings.TrimSpace(text)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return &records.IOError{Op: "write notes", Path: path, Err: err}
	}
	records.Debugf("saved notes %s (%d bytes)", path, len(text))
	return nil
}
