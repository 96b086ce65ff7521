// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hjson/hjson-go/v4"
	"gopkg.in/yaml.v3"
)

// Loader handles configuration file loading.
type Loader struct{}

// NewLoader creates a new config loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses the configuration from the given path.
// Files ending in .yaml or .yml are parsed as YAML; anything else as HJSON
// (which also accepts plain JSON).
func (l *Loader) Load(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return l.Parse(data, filepath.Ext(path))
}

// Parse parses configuration bytes. ext selects the syntax (".yaml", ".yml",
// or anything else for HJSON).
func (l *Loader) Parse(data []byte, ext string) (*Config, error) {
	var raw map[string]interface{}
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		if err := hjson.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse hjson: %w", err)
		}
	}

	// Convert to JSON and unmarshal to struct (for type safety)
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("convert to json: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config with default values applied and validates it.
func (l *Loader) LoadWithDefaults(ctx context.Context, path string) (*Config, error) {
	cfg, err := l.Load(ctx, path)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	if err := NewValidator().Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// FindConfig searches for a config file in the current directory.
func (l *Loader) FindConfig() (string, error) {
	candidates := []string{
		"launchpad.hjson",
		"launchpad.json",
		"launchpad.yaml",
		"launchpad.yml",
	}

	for _, name := range candidates {
		path := filepath.Join(".", name)
		if _, err := os.Stat(path); err == nil {
			abs, err := filepath.Abs(path)
			if err != nil {
				return path, nil
			}
			return abs, nil
		}
	}

	return "", fmt.Errorf("config file not found (looked for %s)", strings.Join(candidates, ", "))
}

// ApplyDefaults fills in missing values. Exposed for configs built in code.
func ApplyDefaults(cfg *Config) {
	applyDefaults(cfg)
}

// applyDefaults sets default values for missing config fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 4477
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}

	if cfg.DataDir == "" {
		cfg.DataDir = "~/.launchpad"
	}
	cfg.DataDir = ExpandHome(cfg.DataDir)

	if cfg.Events.History.MaxEvents == 0 {
		cfg.Events.History.MaxEvents = 10000
	}
	if cfg.Events.History.MaxAge == "" {
		cfg.Events.History.MaxAge = "1h"
	}

	if cfg.Launch.SettleDelay == "" {
		cfg.Launch.SettleDelay = "1s"
	}
	if cfg.Launch.PerfDelay == "" {
		cfg.Launch.PerfDelay = "3s"
	}
	if cfg.Launch.HealthDelay == "" {
		cfg.Launch.HealthDelay = "5s"
	}
	if cfg.Launch.StopGrace == "" {
		cfg.Launch.StopGrace = "2s"
	}
	if cfg.Launch.MaxAutoRestarts == 0 {
		cfg.Launch.MaxAutoRestarts = 5
	}
	if cfg.Launch.RestartWindow == "" {
		cfg.Launch.RestartWindow = "5m"
	}

	perf := &cfg.Performance
	if perf.Interval == "" {
		perf.Interval = "2s"
	}
	if perf.HistorySize == 0 {
		perf.HistorySize = 60
	}
	if perf.MaxPersisted == 0 {
		perf.MaxPersisted = 50000
	}
	if perf.AlertCooldown == "" {
		perf.AlertCooldown = "5m"
	}
	if perf.CPUWarning == 0 {
		perf.CPUWarning = 80
	}
	if perf.CPUCritical == 0 {
		perf.CPUCritical = 95
	}
	if perf.MemoryWarningMB == 0 {
		perf.MemoryWarningMB = 500
	}
	if perf.MemoryCriticalMB == 0 {
		perf.MemoryCriticalMB = 1024
	}

	if cfg.Watch.Debounce == "" {
		cfg.Watch.Debounce = "250ms"
	}

	for i := range cfg.Projects {
		applyProjectDefaults(&cfg.Projects[i])
	}
}

func applyProjectDefaults(p *Project) {
	if p.ID == "" {
		p.ID = Slugify(p.Name)
	}
	if p.Name == "" {
		p.Name = p.ID
	}
	for i := range p.Tasks {
		t := &p.Tasks[i]
		if t.Mode == "" {
			t.Mode = ModeInternal
		}
		t.WorkDir = ExpandHome(t.WorkDir)
		t.EnvFile = ExpandHome(t.EnvFile)
	}
}

// ExpandHome expands a leading ~ to the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return home + path[1:]
		}
	}
	return path
}
