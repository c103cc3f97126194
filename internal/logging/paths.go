package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.issuesync/logs, or a temp-dir fallback when the
// home directory is unknown.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".issuesync", "logs")
	}
	return filepath.Join(home, ".issuesync", "logs")
}

// DefaultLogPath is the log file written by `issuesync --debug` when
// logging.file_path is unset.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "issuesync.log")
}
