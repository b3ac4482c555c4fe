// Package config holds the deployer's runtime configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	PVE    PVEConfig    `yaml:"pve"`
	Scan   ScanConfig   `yaml:"scan"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
}

type PVEConfig struct {
	// LXCConfigDir is where the per-container config files live.
	LXCConfigDir string `yaml:"lxc_config_dir"`
	// SubUIDPath / SubGIDPath are the flat subordinate-ID grant stores.
	SubUIDPath string `yaml:"subuid_path"`
	SubGIDPath string `yaml:"subgid_path"`
	// PctBinary is the container tool to shell out to.
	PctBinary string `yaml:"pct_binary"`
	// StatusTimeout bounds one status query.
	StatusTimeout time.Duration `yaml:"status_timeout"`
}

type ScanConfig struct {
	// Workers caps the status worker pool for bulk scans.
	Workers int `yaml:"workers"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     8400,
			LogLevel: "info",
		},
		PVE: PVEConfig{
			LXCConfigDir:  "/etc/pve/lxc",
			SubUIDPath:    "/etc/subuid",
			SubGIDPath:    "/etc/subgid",
			PctBinary:     "pct",
			StatusTimeout: 5 * time.Second,
		},
		Scan: ScanConfig{
			Workers: 8,
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies the
// environment overlay. An empty path skips straight to the overlay.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(os.ExpandEnv(path))
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	LoadFromEnv(cfg)
	return cfg, nil
}
