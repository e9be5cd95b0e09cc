// Package config loads the gateway's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"
)

type Config struct {
	LogLevel string `yaml:"log_level"`
	DataDir  string `yaml:"data_dir"`

	Telegram  Telegram  `yaml:"telegram"`
	Owners    []int64   `yaml:"owners"`
	Channel   Channel   `yaml:"channel"`
	Remote    Remote    `yaml:"remote"`
	Cooldown  Cooldown  `yaml:"cooldown"`
	Broadcast Broadcast `yaml:"broadcast"`
	Progress  Progress  `yaml:"progress"`
	Session   Session   `yaml:"session"`
	Storage   Storage   `yaml:"storage"`
}

type Telegram struct {
	Token       string `yaml:"token"`
	PollTimeout string `yaml:"poll_timeout"`
}

// Channel configures the follow-to-use gate. An empty Required disables it.
type Channel struct {
	Required string `yaml:"required"`
}

type Remote struct {
	BaseURL      string `yaml:"base_url"`
	TTL          string `yaml:"ttl"`
	FetchTimeout string `yaml:"fetch_timeout"`
}

// Cooldown holds the default per-tier windows in the operator command
// grammar (bare number = seconds, or s/m/h/d suffix). The persisted window
// file overrides these once it exists.
type Cooldown struct {
	Free    string `yaml:"free"`
	Premium string `yaml:"premium"`
	Owner   string `yaml:"owner"`
}

type Broadcast struct {
	BatchSize  int    `yaml:"batch_size"`
	BatchDelay string `yaml:"batch_delay"`
	RatePerSec int    `yaml:"rate_per_sec"`
}

// Progress tunes delivery status messages. When pending_image is set, status
// messages are photos and progress edits go through the caption; the
// plain-text path is used otherwise.
type Progress struct {
	MinInterval  string `yaml:"min_interval"`
	PendingImage string `yaml:"pending_image"`
	DoneImage    string `yaml:"done_image"`
}

type Session struct {
	ReconnectDelay string `yaml:"reconnect_delay"`
}

type Storage struct {
	Driver string `yaml:"driver"` // "file" (default), "sqlite", "none"
	Path   string `yaml:"path"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(string(b)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	if len(c.Owners) == 0 {
		return errors.New("at least one owner id is required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./data"
	}
	if c.Broadcast.BatchSize < 0 {
		return errors.New("broadcast.batch_size must be >= 0")
	}
	return nil
}
