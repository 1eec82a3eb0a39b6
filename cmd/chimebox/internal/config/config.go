// Package config loads the chimebox device configuration.
//
// The configuration is a single YAML file, by default in the OS config
// directory:
//
//	macOS:   ~/Library/Application Support/chimebox/config.yaml
//	Linux:   ~/.config/chimebox/config.yaml
//	Windows: %AppData%/chimebox/config.yaml
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

const appDir = "chimebox"

// Storage configures the on-device audio file store.
type Storage struct {
	// Dir is the directory backing the flash store.
	Dir string `yaml:"dir"`

	// Capacity is the modeled flash capacity in bytes.
	Capacity int64 `yaml:"capacity"`
}

// Config is the device configuration.
type Config struct {
	// Broker is the MQTT broker address (mqtt:// or mqtts://).
	Broker string `yaml:"broker"`

	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// ClientID defaults to a random identifier when empty.
	ClientID string `yaml:"client_id"`

	// TopicPrefix roots every bus topic the device uses.
	TopicPrefix string `yaml:"topic_prefix"`

	Storage Storage `yaml:"storage"`

	// SettingsDir holds the persisted settings database.
	SettingsDir string `yaml:"settings_dir"`

	// StreamListen is the listen address for the streaming ingest
	// endpoint.
	StreamListen string `yaml:"stream_listen"`
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: cannot determine config directory: %w", err)
	}
	return filepath.Join(base, appDir, "config.yaml"), nil
}

// Default returns the built-in configuration, with data directories
// rooted next to the config file.
func Default() (*Config, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("config: cannot determine config directory: %w", err)
	}
	root := filepath.Join(base, appDir)
	cfg := &Config{}
	cfg.applyDefaults(root)
	return cfg, nil
}

func (c *Config) applyDefaults(root string) {
	if c.Broker == "" {
		c.Broker = "mqtt://localhost:1883"
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "chimebox"
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = filepath.Join(root, "audio")
	}
	if c.Storage.Capacity == 0 {
		c.Storage.Capacity = 4 << 20
	}
	if c.SettingsDir == "" {
		c.SettingsDir = filepath.Join(root, "settings")
	}
	if c.StreamListen == "" {
		c.StreamListen = ":8090"
	}
}

// Load reads the config file at path. A missing file yields the default
// configuration.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg := &Config{}
		cfg.applyDefaults(filepath.Dir(path))
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults(filepath.Dir(path))
	return cfg, nil
}
