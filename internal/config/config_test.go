package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
log_level: debug
data_dir: /tmp/gw
telegram:
  token: "123:abc"
  poll_timeout: 15s
owners: [42, 43]
channel:
  required: "@mychannel"
remote:
  base_url: "https://example.com/control"
  ttl: 30s
cooldown:
  free: 5m
  premium: 1m
  owner: "0"
broadcast:
  batch_size: 20
  batch_delay: 100ms
storage:
  driver: file
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if len(cfg.Owners) != 2 || cfg.Owners[0] != 42 {
		t.Fatalf("owners = %v", cfg.Owners)
	}
	if cfg.Channel.Required != "@mychannel" {
		t.Fatalf("channel = %q", cfg.Channel.Required)
	}
	if cfg.Broadcast.BatchSize != 20 {
		t.Fatalf("batch size = %d", cfg.Broadcast.BatchSize)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
telegram:
  token: "123:abc"
owners: [42]
no_such_field: true
`)
	if _, err := Load(path); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestLoadRequiresTokenAndOwners(t *testing.T) {
	t.Parallel()
	if _, err := Load(writeConfig(t, "owners: [42]\n")); err == nil {
		t.Fatal("missing token accepted")
	}
	if _, err := Load(writeConfig(t, "telegram:\n  token: x\n")); err == nil {
		t.Fatal("missing owners accepted")
	}
}

func TestLoadDefaultsDataDir(t *testing.T) {
	t.Parallel()
	cfg, err := Load(writeConfig(t, "telegram:\n  token: x\nowners: [1]\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir == "" {
		t.Fatal("data_dir not defaulted")
	}
}
