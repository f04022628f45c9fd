// Package config loads and persists application configuration.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Config represents application configuration
type Config struct {
	// SocketDir overrides the per-user socket directory. Empty means the
	// platform default (see internal/ipc).
	SocketDir string `json:"socket_dir,omitempty"`
	// MaxConnections bounds concurrently processed requests
	MaxConnections int `json:"max_connections"`
	// IdleTimeoutMinutes shuts the daemon down after this long with zero sessions
	IdleTimeoutMinutes int `json:"idle_timeout_minutes"`
	// IdlePollSeconds is the idle monitor polling interval
	IdlePollSeconds int `json:"idle_poll_seconds"`
	// DefaultTimeoutSeconds is the default per-operation timeout for sessions
	DefaultTimeoutSeconds int    `json:"default_timeout_seconds"`
	LogLevel              string `json:"log_level"` // debug, info, warn, error, none
	LogPath               string `json:"-"`
	// HistoryPath is the sqlite database recording opened workbooks and commands
	HistoryPath string `json:"-"`
}

func defaultConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := strings.TrimSpace(os.Getenv("APPDATA")); appData != "" {
			return filepath.Join(appData, "exceld")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Roaming", "exceld")
	default:
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", "exceld")
	}
}

func defaultStateDir() string {
	switch runtime.GOOS {
	case "linux":
		if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
			return filepath.Join(stateHome, "exceld")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".local", "state", "exceld")
	case "windows":
		if localAppData := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); localAppData != "" {
			return filepath.Join(localAppData, "exceld")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Local", "exceld")
	default:
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", "exceld")
	}
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	stateDir := defaultStateDir()

	return &Config{
		MaxConnections:        10,
		IdleTimeoutMinutes:    10,
		IdlePollSeconds:       30,
		DefaultTimeoutSeconds: 300,
		LogLevel:              "info",
		LogPath:               filepath.Join(stateDir, "exceld.log"),
		HistoryPath:           filepath.Join(stateDir, "history.db"),
	}
}

// GetConfigPath returns the path of the configuration file
func GetConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.json")
}

// Load loads configuration from file, merging over defaults. A missing file
// is not an error.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return applyEnvOverrides(config), nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, err
	}

	stateDir := defaultStateDir()
	if config.MaxConnections <= 0 {
		config.MaxConnections = 10
	}
	if config.IdleTimeoutMinutes <= 0 {
		config.IdleTimeoutMinutes = 10
	}
	if config.IdlePollSeconds <= 0 {
		config.IdlePollSeconds = 30
	}
	if config.DefaultTimeoutSeconds <= 0 {
		config.DefaultTimeoutSeconds = 300
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogPath == "" {
		config.LogPath = filepath.Join(stateDir, "exceld.log")
	}
	if config.HistoryPath == "" {
		config.HistoryPath = filepath.Join(stateDir, "history.db")
	}

	return applyEnvOverrides(config), nil
}

// applyEnvOverrides lets environment variables override log settings
func applyEnvOverrides(config *Config) *Config {
	if envLevel := strings.TrimSpace(os.Getenv("EXCELD_LOG_LEVEL")); envLevel != "" {
		config.LogLevel = envLevel
	}
	if envPath := strings.TrimSpace(os.Getenv("EXCELD_LOG_PATH")); envPath != "" {
		config.LogPath = envPath
	}
	return config
}

// Save writes the configuration to file
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
