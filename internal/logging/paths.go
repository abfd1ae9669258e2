package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.amp/logs/).
// Falls back to temp directory if home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".amp", "logs")
	}
	return filepath.Join(home, ".amp", "logs")
}

// DefaultLogPath returns the default proxy log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "amp.log")
}
