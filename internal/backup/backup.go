// Package backup exports the note and feedback collections as JSON files
// and re-imports previously exported note files.
//
// Import only restores metadata: audio bytes are never carried in a
// backup, and imported entries are only accepted when their uri already
// points inside the managed notes directory.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/voicenotelab/voicenote/internal/config"
	"github.com/voicenotelab/voicenote/internal/feedback"
	"github.com/voicenotelab/voicenote/internal/store"
)

var (
	// ErrExportFailed wraps any failure while writing a backup file.
	ErrExportFailed = errors.New("export failed")

	// ErrImportFailed wraps read failures and malformed JSON on import.
	ErrImportFailed = errors.New("import failed")
)

const timestampLayout = "20060102-150405"

// Export writes the full note collection to a timestamped JSON file in
// dir and returns its path.
func Export(notes []store.Note, dir string) (string, error) {
	path := filepath.Join(dir, "voicenote-backup-"+time.Now().Format(timestampLayout)+".json")
	if err := writeJSON(path, notes); err != nil {
		return "", fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	slog.Info("Notes exported", "path", path, "count", len(notes))
	return path, nil
}

// ExportFeedback writes the feedback collection to a timestamped JSON
// file in dir and returns its path.
func ExportFeedback(entries []feedback.Entry, dir string) (string, error) {
	path := filepath.Join(dir, "voicenote-feedback-"+time.Now().Format(timestampLayout)+".json")
	if err := writeJSON(path, entries); err != nil {
		return "", fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	slog.Info("Feedback exported", "path", path, "count", len(entries))
	return path, nil
}

func writeJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Import parses a previously exported notes file and returns the entries
// eligible for restoring: only notes whose uri contains the managed
// directory marker are accepted, since the backup never carries audio
// bytes and anything outside the managed directory cannot be owned by
// the store. An empty path means the user cancelled the pick and is a
// silent no-op returning (nil, nil).
//
// Accepted entries are returned as-is; the caller prepends them ahead of
// the existing list without de-duplicating ids.
func Import(path string) ([]store.Note, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportFailed, err)
	}

	var notes []store.Note
	if err := json.Unmarshal(data, &notes); err != nil {
		return nil, fmt.Errorf("%w: malformed backup file: %v", ErrImportFailed, err)
	}

	marker := string(filepath.Separator) + config.NotesDirName + string(filepath.Separator)
	accepted := make([]store.Note, 0, len(notes))
	for _, n := range notes {
		if strings.Contains(n.URI, marker) {
			accepted = append(accepted, n)
		} else {
			slog.Warn("Skipping imported note outside the managed directory", "id", n.ID, "uri", n.URI)
		}
	}

	slog.Info("Backup parsed", "path", path, "accepted", len(accepted), "skipped", len(notes)-len(accepted))
	return accepted, nil
}

// Share hands an exported file to the platform opener so the user can
// send it somewhere. Best effort: a missing opener is reported, not fatal.
func Share(path string) error {
	opener, err := exec.LookPath("xdg-open")
	if err != nil {
		return fmt.Errorf("no opener available to share %s: %w", path, err)
	}
	if err := exec.Command(opener, path).Start(); err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	return nil
}
