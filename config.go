// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package gostash

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// configEnvVar overrides the configuration file location, mainly for
// tests and containerized deployments.
const configEnvVar = "GOSTASH_CONFIG"

// Config is the on-disk registry of named stashes.
type Config struct {
	DefaultStash string                 `yaml:"default_stash,omitempty"`
	Stashes      map[string]StashConfig `yaml:"stashes"`
}

// ConfigPath returns the location of the stash registry, honoring the
// GOSTASH_CONFIG override.
func ConfigPath() (string, error) {
	if path := os.Getenv(configEnvVar); path != "" {
		return path, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "gostash", "stashes.yaml"), nil
}

// LoadConfig reads the stash registry. A missing file is not an
// error; it yields an empty registry so first-run tooling can add
// stashes and save.
func LoadConfig() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{Stashes: map[string]StashConfig{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Stashes == nil {
		cfg.Stashes = map[string]StashConfig{}
	}
	return &cfg, nil
}

// SaveConfig writes the stash registry, creating the parent directory
// if needed.
func SaveConfig(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
