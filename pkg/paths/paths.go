package paths

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	EnvSelectlyDataDir = "SELECTLY_DATA_DIR"
	EnvSelectlyLogDir  = "SELECTLY_LOG_DIR"
)

// DataDir returns the base directory for persisted state (sqlite database,
// exported backups). Defaults to ~/.selectly.
func DataDir() string {
	if dir := strings.TrimSpace(os.Getenv(EnvSelectlyDataDir)); dir != "" {
		return filepath.Clean(expandHomePath(dir))
	}
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return ".selectly"
	}
	return filepath.Join(home, ".selectly")
}

// LogsBaseDir returns the base directory for structured logs.
func LogsBaseDir() string {
	if dir := strings.TrimSpace(os.Getenv(EnvSelectlyLogDir)); dir != "" {
		return filepath.Clean(expandHomePath(dir))
	}
	return filepath.Join(DataDir(), "logs")
}

// DatabasePath returns the default sqlite database path.
func DatabasePath() string {
	return filepath.Join(DataDir(), "selectly.db")
}

// ConfigFilePath returns the daemon settings file path.
func ConfigFilePath() string {
	return filepath.Join(DataDir(), "config.yaml")
}

func expandHomePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil || strings.TrimSpace(home) == "" {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~/"))
	}
	return path
}
