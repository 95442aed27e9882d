// Package config provides configuration loading and management for the
// permutation testing engine. It handles loading configuration from YAML
// files and provides the historical command defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the run configuration loaded from YAML.
type Config struct {
	// Permutation parameters
	Permutations struct {
		// Count is the total number of permutations, identity included.
		Count int `yaml:"count"`

		// Seed fixes the permutation sequence when non-zero; 0 seeds from
		// the wall clock.
		Seed int64 `yaml:"seed"`

		// SignFlip switches to sign-flip permutations for designs symmetric
		// about zero.
		SignFlip bool `yaml:"signFlip"`
	} `yaml:"permutations"`

	// TFCE integration parameters
	TFCE struct {
		// DH is the height increment of the threshold integration.
		DH float64 `yaml:"dh"`

		// ExtentExponent is the cluster-extent exponent E.
		ExtentExponent float64 `yaml:"extentExponent"`

		// HeightExponent is the height exponent H.
		HeightExponent float64 `yaml:"heightExponent"`
	} `yaml:"tfce"`

	// Connectivity graph parameters
	Connectivity struct {
		// Use26 selects the full 26-neighborhood instead of the default 6.
		Use26 bool `yaml:"use26"`

		// AngleThreshold is the angular threshold in degrees for
		// orientation-aware adjacency.
		AngleThreshold float64 `yaml:"angleThreshold"`
	} `yaml:"connectivity"`

	// Processing parameters
	Processing struct {
		// Workers sizes the worker pool; 0 uses all available cores.
		Workers int `yaml:"workers"`
	} `yaml:"processing"`
}

// DefaultConfig returns a configuration with the historical defaults:
// 5000 permutations, dh 0.1, E 0.5, H 2.0, 6-neighborhood, 12 degree
// angular threshold.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Permutations.Count = 5000
	cfg.Permutations.Seed = 0
	cfg.Permutations.SignFlip = false

	cfg.TFCE.DH = 0.1
	cfg.TFCE.ExtentExponent = 0.5
	cfg.TFCE.HeightExponent = 2.0

	cfg.Connectivity.Use26 = false
	cfg.Connectivity.AngleThreshold = 12

	cfg.Processing.Workers = runtime.NumCPU()

	return cfg
}

// LoadConfig loads configuration from a YAML file. If the file doesn't
// exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}
