package config

import (
	"os"
	"path/filepath"
)

// defaultStorePath picks a per-user location for the shared store file,
// falling back to the working directory when no home is resolvable.
func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "mova", "tasks.db")
	}
	return filepath.Join(home, ".local", "share", "mova", "tasks.db")
}
