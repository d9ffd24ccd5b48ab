package pathing

import (
	"os"
	"path/filepath"
)

// EnsureDirs creates the directories the logger writes to.
func EnsureDirs() error {
	dirs := []string{
		GetDataDir(),
	}

	for _, dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}
		}
	}
	return nil
}

func GetReadingDbPath() string {
	return filepath.Join(GetDataDir(), "ut61e-readings.db")
}

func GetDataDir() string {
	return "/var/lib/ut61e_logger"
}

func GetConfigDir() string {
	return "/etc/ut61e_logger"
}
