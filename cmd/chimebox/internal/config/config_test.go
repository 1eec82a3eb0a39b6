package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Broker != "mqtt://localhost:1883" {
		t.Errorf("Broker = %q", cfg.Broker)
	}
	if cfg.TopicPrefix != "chimebox" {
		t.Errorf("TopicPrefix = %q", cfg.TopicPrefix)
	}
	if cfg.Storage.Capacity != 4<<20 {
		t.Errorf("Capacity = %d", cfg.Storage.Capacity)
	}
	if cfg.StreamListen != ":8090" {
		t.Errorf("StreamListen = %q", cfg.StreamListen)
	}
}

func TestLoadMergesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `broker: mqtt://broker.example:1883
topic_prefix: mybox
storage:
  capacity: 1048576
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Broker != "mqtt://broker.example:1883" {
		t.Errorf("Broker = %q", cfg.Broker)
	}
	if cfg.TopicPrefix != "mybox" {
		t.Errorf("TopicPrefix = %q", cfg.TopicPrefix)
	}
	if cfg.Storage.Capacity != 1<<20 {
		t.Errorf("Capacity = %d", cfg.Storage.Capacity)
	}
	// Unset fields fall back to defaults rooted at the config dir.
	if cfg.Storage.Dir != filepath.Join(filepath.Dir(path), "audio") {
		t.Errorf("Storage.Dir = %q", cfg.Storage.Dir)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("broker: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load should fail on malformed YAML")
	}
}
