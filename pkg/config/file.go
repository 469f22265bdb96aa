package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/samanhappy/selectly/pkg/paths"
)

// Settings is the daemon-level configuration file (~/.selectly/config.yaml).
// It controls how the process runs; the UserConfig record in storage holds
// everything the options page edits.
type Settings struct {
	Listen           string        `yaml:"listen"`
	DatabasePath     string        `yaml:"database_path"`
	Language         string        `yaml:"language"`
	CloudBaseURL     string        `yaml:"cloud_base_url"`
	LogLevel         string        `yaml:"log_level"`
	DebounceInterval time.Duration `yaml:"debounce_interval"`
	NetworkLogs      bool          `yaml:"network_logs"`
}

// DefaultSettings returns the daemon defaults.
func DefaultSettings() *Settings {
	return &Settings{
		Listen:           "127.0.0.1:4530",
		DatabasePath:     paths.DatabasePath(),
		Language:         "en",
		CloudBaseURL:     DefaultCloudBaseURL,
		LogLevel:         "info",
		DebounceInterval: 500 * time.Millisecond,
	}
}

// LoadSettings loads the settings file (if present) over the defaults and
// then applies environment overrides.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()

	if path == "" {
		path = paths.ConfigFilePath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading settings %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing settings %s: %w", path, err)
	}

	applyEnvOverrides(s)

	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("settings validation: %w", err)
	}
	return s, nil
}

func applyEnvOverrides(s *Settings) {
	if v := strings.TrimSpace(os.Getenv("SELECTLY_LISTEN")); v != "" {
		s.Listen = v
	}
	if v := strings.TrimSpace(os.Getenv("SELECTLY_DB_PATH")); v != "" {
		s.DatabasePath = v
	}
	if v := strings.TrimSpace(os.Getenv("SELECTLY_LANGUAGE")); v != "" {
		s.Language = v
	}
	if v := strings.TrimSpace(os.Getenv("SELECTLY_CLOUD_BASE_URL")); v != "" {
		s.CloudBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("SELECTLY_LOG_LEVEL")); v != "" {
		s.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("SELECTLY_NETWORK_LOGS")); v != "" {
		s.NetworkLogs = v == "1" || strings.EqualFold(v, "true")
	}
}

func (s *Settings) validate() error {
	switch s.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", s.LogLevel)
	}
	if s.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if s.DebounceInterval < 0 {
		return fmt.Errorf("debounce_interval must not be negative")
	}
	return nil
}
