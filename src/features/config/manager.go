package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Manager holds the application configuration and provides thread-safe access to it.
type Manager struct {
	mu     sync.RWMutex
	config *Config
}

// NewManager creates a new ConfigManager.
func NewManager(config *Config) *Manager {
	return &Manager{config: config}
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Update updates the configuration.
func (m *Manager) Update(config *Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldConfig := m.config
	m.config = config

	if oldConfig != nil {
		slog.Debug("Configuration updated",
			"cache_path_changed", oldConfig.CachePath != config.CachePath,
			"voting_changed", oldConfig.Queue.Voting != config.Queue.Voting,
			"max_download_size_changed", oldConfig.Requests.MaxDownloadSizeMB != config.Requests.MaxDownloadSizeMB,
			"default_source_changed", oldConfig.Requests.DefaultSource != config.Requests.DefaultSource,
		)
	}
}

// Save writes the current configuration to the specified file path.
func (m *Manager) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	file, err := os.Create(path)
	if err != nil {
		slog.Error("failed to create config file", "path", path, "error", err)
		return err
	}
	defer file.Close()

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)
	if err := encoder.Encode(m.config); err != nil {
		slog.Error("failed to encode config", "path", path, "error", err)
		return err
	}

	slog.Info("Configuration saved successfully", "path", path)
	return nil
}

// EnsureDirectories creates the cache directory if it doesn't exist.
func (m *Manager) EnsureDirectories() error {
	cfg := m.Get()
	if err := os.MkdirAll(cfg.CachePath, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory %s: %w", cfg.CachePath, err)
	}
	slog.Info("Required directories created/verified", "cache", cfg.CachePath)
	return nil
}

// redactedCfg gets a redacted copy of the Config
func (m *Manager) redactedCfg() Config {
	cfgCpy := *m.config
	if cfgCpy.Telegram.Token != "" {
		cfgCpy.Telegram.Token = "<redacted>"
	}
	if cfgCpy.Broadcast.Redis.Password != "" {
		cfgCpy.Broadcast.Redis.Password = "<redacted>"
	}
	return cfgCpy
}

// GetYAML returns the current configuration as a YAML string.
func (m *Manager) GetYAML() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	redacted := m.redactedCfg()
	yamlBytes, err := yaml.Marshal(&redacted)
	if err != nil {
		slog.Error("failed to marshal config to YAML", "error", err)
		return err.Error()
	}
	return string(yamlBytes)
}

// GetJSON returns the current configuration as a JSON string.
func (m *Manager) GetJSON() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jsonBytes, err := json.Marshal(m.redactedCfg())
	if err != nil {
		slog.Error("failed to marshal config to JSON", "error", err)
		return err.Error()
	}
	return string(jsonBytes)
}
