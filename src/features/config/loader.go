package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads a YAML file from the given path and returns a new ConfigManager.
// If the file doesn't exist, creates a default configuration.
func Load(path string) (*Manager, error) {
	// A missing .env is the normal case, existing env vars are never overridden.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		slog.Info("Config file not found, creating default configuration", "path", path)
		defaultCfg := createDefaultConfig()
		if err := saveDefaultConfig(path, defaultCfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		applyEnvOverrides(defaultCfg)
		manager := NewManager(defaultCfg)
		if err := manager.EnsureDirectories(); err != nil {
			return nil, err
		}
		return manager, nil
	}

	cfg, err := readConfig(path)
	if err != nil {
		return nil, err
	}

	manager := NewManager(cfg)
	if err := manager.EnsureDirectories(); err != nil {
		return nil, err
	}
	return manager, nil
}

// readConfig decodes, defaults and validates the config file at path.
func readConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the struct tags of cfg.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// applyDefaults fills zero values that have no sensible zero meaning.
func applyDefaults(cfg *Config) {
	defaults := createDefaultConfig()
	if cfg.Requests.DefaultSource == "" {
		cfg.Requests.DefaultSource = defaults.Requests.DefaultSource
	}
	if cfg.Jobs.Workers == 0 {
		cfg.Jobs.Workers = defaults.Jobs.Workers
	}
	if cfg.Jobs.LogPath == "" {
		cfg.Jobs.LogPath = defaults.Jobs.LogPath
	}
	if cfg.Sources.Remote.Extension == "" {
		cfg.Sources.Remote.Extension = defaults.Sources.Remote.Extension
	}
	if cfg.Sources.Deezer.BaseURL == "" {
		cfg.Sources.Deezer.BaseURL = defaults.Sources.Deezer.BaseURL
	}
	if cfg.Broadcast.Redis.Channel == "" {
		cfg.Broadcast.Redis.Channel = defaults.Broadcast.Redis.Channel
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
}

// applyEnvOverrides lets secrets and deployment paths come from the environment.
func applyEnvOverrides(cfg *Config) {
	if token := os.Getenv("TELEGRAM_TOKEN"); token != "" {
		cfg.Telegram.Token = token
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Broadcast.Redis.Password = password
	}
	if cachePath := os.Getenv("JUKEBOX_CACHE_PATH"); cachePath != "" {
		cfg.CachePath = cachePath
	}
}

// saveDefaultConfig saves the default configuration to the specified file path
func saveDefaultConfig(path string, cfg *Config) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()
	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	slog.Info("Default configuration saved", "path", path)
	return nil
}
