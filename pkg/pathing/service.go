package pathing

import (
	"os"
	"path/filepath"
)

// EnsureDirs creates the directories the services write to.
func EnsureDirs() error {
	// Directories that must exist:
	dirs := []string{
		GetDataDir(),
		GetConfigDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

func GetMeterDbPath() string {
	return filepath.Join(GetDataDir(), "teleinfo-state.db")
}

func GetDataDir() string {
	if dir := os.Getenv("TELEINFO_DATA_DIR"); dir != "" {
		return dir
	}
	return "/var/lib/teleinfo"
}

func GetConfigDir() string {
	if dir := os.Getenv("TELEINFO_CONFIG_DIR"); dir != "" {
		return dir
	}
	return "/etc/teleinfo"
}
